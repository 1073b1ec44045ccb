// Package backup maintains a bounded, chronologically ordered set of
// full-state snapshots on top of the local store's backup namespace.
package backup

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sbenjam1n/studysync/internal/store"
)

// Provenance labels other components attach to backup suffixes. They are
// informational tags for display, not behaviorally distinct storage.
const (
	LabelCorrupted     = "corrupted"
	LabelBeforeRestore = "before_restore"
	LabelBeforeImport  = "before_import"
	LabelFinal         = "final_backup"
	LabelFailedSync    = "failed_sync"
)

// ErrNoState is returned by Create when there is no main state to snapshot.
var ErrNoState = errors.New("no state to back up")

// Manager owns the rotation policy: creation, listing, restore
// reversibility, and retention.
type Manager struct {
	store *store.Store
	max   int
	log   *zap.SugaredLogger
}

// New creates a Manager retaining at most max backups (<=0 means the
// store default).
func New(st *store.Store, max int, logger *zap.SugaredLogger) *Manager {
	if max <= 0 {
		max = store.DefaultMaxBackups
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{store: st, max: max, log: logger}
}

// MaxBackups returns the configured retention bound.
func (m *Manager) MaxBackups() int {
	return m.max
}

// Create snapshots the current main state under a new timestamped key and
// enforces retention. With a label, the key is "<label>_<timestamp>";
// otherwise it is the bare timestamp. Returns ErrNoState when there is no
// main state.
func (m *Manager) Create(label string) (string, error) {
	raw, err := m.store.RawState()
	if err != nil {
		return "", fmt.Errorf("read state for backup: %w", err)
	}
	if raw == nil {
		return "", ErrNoState
	}

	suffix := fmt.Sprintf("%d", m.store.NextBackupStamp())
	if label != "" {
		suffix = fmt.Sprintf("%s_%d", label, m.store.NextBackupStamp())
	}
	if err := m.store.PutBackup(suffix, raw); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	if pruned, err := m.store.PruneBackups(m.max); err != nil {
		m.log.Warnw("retention cleanup failed", "error", err)
	} else if pruned > 0 {
		m.log.Infow("retention cleanup pruned backups", "pruned", pruned, "max", m.max)
	}
	return store.BackupPrefix + suffix, nil
}

// List returns all backups, newest first.
func (m *Manager) List() ([]store.BackupInfo, error) {
	return m.store.ListBackups()
}

// Get reads a backup payload by its full key, or nil when absent.
func (m *Manager) Get(key string) ([]byte, error) {
	return m.store.GetBackup(key)
}

// Restore overwrites the main state with the named backup. The pre-restore
// main state is first snapshotted under a before_restore_* key so a bad
// restore is itself reversible.
func (m *Manager) Restore(key string) error {
	payload, err := m.store.GetBackup(key)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if payload == nil {
		return fmt.Errorf("backup not found: %s", key)
	}

	if _, err := m.Create(LabelBeforeRestore); err != nil && !errors.Is(err, ErrNoState) {
		return fmt.Errorf("snapshot before restore: %w", err)
	}

	if err := m.store.PutRawState(payload); err != nil {
		return fmt.Errorf("apply restore: %w", err)
	}
	m.log.Infow("restored backup", "key", key)
	return nil
}

// Delete removes one backup by its full key.
func (m *Manager) Delete(key string) error {
	return m.store.DeleteBackup(key)
}
