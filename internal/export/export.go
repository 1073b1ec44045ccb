// Package export produces and consumes the single-document archive of
// everything the local store holds.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sbenjam1n/studysync/internal/backup"
	"github.com/sbenjam1n/studysync/internal/store"
)

// Version of the archive format.
const Version = "1"

// BackupEntry is one exported backup, payload kept as raw JSON.
type BackupEntry struct {
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// Archive is the export/import document.
type Archive struct {
	MainState     json.RawMessage                `json:"main_state,omitempty"`
	Backups       []BackupEntry                  `json:"backups,omitempty"`
	Settings      *store.SettingsEnvelope        `json:"settings,omitempty"`
	TopicProgress map[string]store.TopicProgress `json:"topic_progress,omitempty"`
	ExportDate    string                         `json:"export_date"`
	Version       string                         `json:"version"`
}

// Export gathers the main state, all backups, settings, and topic
// progress into one archive.
func Export(st *store.Store, backups *backup.Manager) (*Archive, error) {
	archive := &Archive{
		ExportDate: time.Now().UTC().Format(time.RFC3339),
		Version:    Version,
	}

	raw, err := st.RawState()
	if err != nil {
		return nil, fmt.Errorf("export state: %w", err)
	}
	archive.MainState = raw

	infos, err := backups.List()
	if err != nil {
		return nil, fmt.Errorf("export backups: %w", err)
	}
	for _, info := range infos {
		payload, err := backups.Get(info.Key)
		if err != nil || payload == nil {
			continue
		}
		archive.Backups = append(archive.Backups, BackupEntry{Key: info.Key, Payload: payload})
	}

	settings, err := st.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("export settings: %w", err)
	}
	archive.Settings = settings

	progress, err := st.ListTopicProgress()
	if err != nil {
		return nil, fmt.Errorf("export topic progress: %w", err)
	}
	if len(progress) > 0 {
		archive.TopicProgress = progress
	}
	return archive, nil
}

// Import validates the archive envelope, snapshots the current main state
// under a before_import_* backup, and then applies the archive's
// contents. Partial archives are fine; only present sections are applied.
func Import(st *store.Store, backups *backup.Manager, archive *Archive) error {
	if archive == nil {
		return errors.New("nil archive")
	}
	if archive.ExportDate == "" || archive.Version == "" {
		return errors.New("archive missing export_date or version")
	}

	if _, err := backups.Create(backup.LabelBeforeImport); err != nil && !errors.Is(err, backup.ErrNoState) {
		return fmt.Errorf("snapshot before import: %w", err)
	}

	if len(archive.MainState) > 0 {
		if err := st.PutRawState(archive.MainState); err != nil {
			return fmt.Errorf("import state: %w", err)
		}
	}
	for _, entry := range archive.Backups {
		suffix, ok := backupSuffix(entry.Key)
		if !ok {
			continue
		}
		if err := st.PutBackup(suffix, entry.Payload); err != nil {
			return fmt.Errorf("import backup %s: %w", entry.Key, err)
		}
	}
	if archive.Settings != nil {
		if err := st.SaveSettings(archive.Settings.Payload); err != nil {
			return fmt.Errorf("import settings: %w", err)
		}
	}
	for topicID, record := range archive.TopicProgress {
		if err := st.SaveTopicProgress(topicID, record.Interactions); err != nil {
			return fmt.Errorf("import topic progress %s: %w", topicID, err)
		}
	}
	return nil
}

func backupSuffix(key string) (string, bool) {
	if len(key) <= len(store.BackupPrefix) || key[:len(store.BackupPrefix)] != store.BackupPrefix {
		return "", false
	}
	return key[len(store.BackupPrefix):], true
}
