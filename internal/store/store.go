// Package store is the single source of truth for everything written to
// the local embedded database: the main application state, rotated
// backups, per-topic progress, user settings, and a bounded performance
// log. All operations are best-effort; callers must tolerate a failed
// save or an empty load without aborting the workflow.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/sbenjam1n/studysync/internal/plan"
)

// DefaultBudgetBytes mirrors the storage budget of the browser store this
// layer replaces (~10 MB).
const DefaultBudgetBytes = 10 << 20

// DefaultMaxBackups is the retention bound applied when the save-path
// quota probe triggers cleanup.
const DefaultMaxBackups = 5

// ErrDisabled is returned by write operations when the store could not be
// opened and is running in disabled (no-op) mode.
var ErrDisabled = errors.New("local store disabled")

// Options configures a Store.
type Options struct {
	// Dir is the directory for database files. Ignored when InMemory.
	Dir string

	// InMemory opens the database without disk persistence. For tests.
	InMemory bool

	// BudgetBytes caps how much the store may hold. The save path probes
	// this budget before writing. Zero means DefaultBudgetBytes.
	BudgetBytes int64

	// MaxBackups is the retention bound used by quota cleanup.
	// Zero means DefaultMaxBackups.
	MaxBackups int

	Logger *zap.SugaredLogger
}

// Store wraps BadgerDB with the key namespacing, serialization, quota
// handling, and corruption quarantine the rest of the system relies on.
type Store struct {
	db     *badger.DB
	budget int64
	maxBak int
	log    *zap.SugaredLogger

	stampMu   sync.Mutex
	lastStamp int64
}

// Open opens (or creates) the local store. On failure the caller may fall
// back to Disabled() so persistence degrades instead of crashing.
func Open(opts Options) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("data directory is required")
		}
		bopts = badger.DefaultOptions(opts.Dir).WithSyncWrites(true)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return newStore(db, opts), nil
}

// Disabled returns a store whose saves fail softly with ErrDisabled and
// whose loads report empty. Used when local storage is unavailable.
func Disabled(logger *zap.SugaredLogger) *Store {
	return newStore(nil, Options{Logger: logger})
}

func newStore(db *badger.DB, opts Options) *Store {
	budget := opts.BudgetBytes
	if budget <= 0 {
		budget = DefaultBudgetBytes
	}
	maxBak := opts.MaxBackups
	if maxBak <= 0 {
		maxBak = DefaultMaxBackups
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{db: db, budget: budget, maxBak: maxBak, log: log}
}

// Close releases the underlying database. Safe on a disabled store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enabled reports whether the store has a usable database.
func (s *Store) Enabled() bool {
	return s.db != nil
}

// SaveState stamps last_saved_at and schema_version, serializes the state,
// probes the storage budget (pruning old backups and retrying once when
// over), and writes the main key. The returned error signals best-effort
// failure; it never indicates partial writes.
func (s *Store) SaveState(state *plan.ApplicationState) error {
	if s.db == nil {
		return ErrDisabled
	}
	if state == nil {
		return errors.New("nil state")
	}

	now := time.Now().UnixMilli()
	if now <= state.LastSavedAt {
		now = state.LastSavedAt + 1
	}
	state.LastSavedAt = now
	state.SchemaVersion = plan.SchemaVersion

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}

	if err := s.writeWithinBudget(keyMain, payload); err != nil {
		return err
	}
	s.recordPerf("save", len(payload))
	return nil
}

// PutRawState writes a pre-serialized state payload under the main key,
// bypassing stamping. Used by backup restore and import, whose payloads
// already carry their original timestamps.
func (s *Store) PutRawState(payload []byte) error {
	if s.db == nil {
		return ErrDisabled
	}
	return s.writeWithinBudget(keyMain, payload)
}

func (s *Store) writeWithinBudget(key string, payload []byte) error {
	if over, _ := s.overBudget(len(payload)); over {
		pruned, err := s.PruneBackups(s.maxBak)
		if err != nil {
			s.log.Warnw("quota cleanup failed", "error", err)
		} else if pruned > 0 {
			s.log.Infow("quota cleanup pruned backups", "pruned", pruned)
		}
		if over, used := s.overBudget(len(payload)); over {
			return fmt.Errorf("storage budget exceeded: %d used + %d payload > %d budget", used, len(payload), s.budget)
		}
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) overBudget(incoming int) (bool, int64) {
	stats, err := s.Stats()
	if err != nil {
		return false, 0
	}
	return stats.UsedBytes+int64(incoming) > s.budget, stats.UsedBytes
}

// LoadState reads the main state. A missing key yields (nil, nil). A
// payload that fails to parse is quarantined under a corrupted_* backup
// key, the main key is deleted, and (nil, nil) is returned: corruption is
// isolated, never propagated. Documents stored under an older schema
// version are migrated on the way out.
func (s *Store) LoadState() (*plan.ApplicationState, error) {
	if s.db == nil {
		return nil, nil
	}

	raw, found, err := s.get(keyMain)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if !found {
		return nil, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.quarantine(raw, err)
		return nil, nil
	}
	doc = plan.MigrateDocument(doc)

	migrated, err := json.Marshal(doc)
	if err != nil {
		s.quarantine(raw, err)
		return nil, nil
	}
	var state plan.ApplicationState
	if err := json.Unmarshal(migrated, &state); err != nil {
		s.quarantine(raw, err)
		return nil, nil
	}

	s.recordPerf("load", len(raw))
	return &state, nil
}

// quarantine moves a corrupted main payload into a labeled backup so it
// can be inspected or recovered later, then clears the main key.
func (s *Store) quarantine(raw []byte, cause error) {
	suffix := fmt.Sprintf("corrupted_%d", s.NextBackupStamp())
	s.log.Warnw("quarantining corrupted state", "backup", BackupPrefix+suffix, "error", cause)
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(BackupPrefix+suffix), raw); err != nil {
			return err
		}
		return txn.Delete([]byte(keyMain))
	})
	if err != nil {
		s.log.Errorw("quarantine failed", "error", err)
	}
}

// RawState returns the serialized main state as stored, or nil when absent.
func (s *Store) RawState() ([]byte, error) {
	if s.db == nil {
		return nil, nil
	}
	raw, found, err := s.get(keyMain)
	if err != nil || !found {
		return nil, err
	}
	return raw, nil
}

// DeleteState removes the main state key.
func (s *Store) DeleteState() error {
	if s.db == nil {
		return ErrDisabled
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyMain))
	})
}

// TopicProgress is the per-topic sub-resource persisted independently of
// the main blob.
type TopicProgress struct {
	TopicID      string                 `json:"topic_id"`
	Interactions plan.TopicInteractions `json:"interactions"`
	UpdatedAt    int64                  `json:"last_updated"`
}

// SaveTopicProgress persists interactions for one topic under its own key.
func (s *Store) SaveTopicProgress(topicID string, interactions plan.TopicInteractions) error {
	if s.db == nil {
		return ErrDisabled
	}
	if topicID == "" {
		return errors.New("empty topic id")
	}
	record := TopicProgress{
		TopicID:      topicID,
		Interactions: interactions,
		UpdatedAt:    time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("serialize topic progress: %w", err)
	}
	return s.writeWithinBudget(topicKey(topicID), payload)
}

// LoadTopicProgress reads one topic's progress. Missing or unparseable
// records yield (nil, nil).
func (s *Store) LoadTopicProgress(topicID string) (*TopicProgress, error) {
	if s.db == nil {
		return nil, nil
	}
	raw, found, err := s.get(topicKey(topicID))
	if err != nil {
		return nil, fmt.Errorf("read topic progress: %w", err)
	}
	if !found {
		return nil, nil
	}
	var record TopicProgress
	if err := json.Unmarshal(raw, &record); err != nil {
		s.log.Warnw("dropping unparseable topic progress", "topic", topicID, "error", err)
		return nil, nil
	}
	return &record, nil
}

// ListTopicProgress returns every stored topic progress record, keyed by
// topic id. Used by export.
func (s *Store) ListTopicProgress() (map[string]TopicProgress, error) {
	if s.db == nil {
		return nil, nil
	}
	out := map[string]TopicProgress{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(topicPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record TopicProgress
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				continue
			}
			out[record.TopicID] = record
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list topic progress: %w", err)
	}
	return out, nil
}

// SettingsEnvelope is the tagged, versioned wrapper for the arbitrary
// settings record, so future migrations can match on version instead of
// probing field presence.
type SettingsEnvelope struct {
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
	LastUpdated   int64           `json:"last_updated"`
}

// SaveSettings wraps the payload in a versioned envelope and persists it.
func (s *Store) SaveSettings(payload json.RawMessage) error {
	if s.db == nil {
		return ErrDisabled
	}
	envelope := SettingsEnvelope{
		SchemaVersion: plan.SchemaVersion,
		Payload:       payload,
		LastUpdated:   time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("serialize settings: %w", err)
	}
	return s.writeWithinBudget(keySettings, raw)
}

// LoadSettings reads the settings envelope, or (nil, nil) when absent.
func (s *Store) LoadSettings() (*SettingsEnvelope, error) {
	if s.db == nil {
		return nil, nil
	}
	raw, found, err := s.get(keySettings)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if !found {
		return nil, nil
	}
	var envelope SettingsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.log.Warnw("dropping unparseable settings", "error", err)
		return nil, nil
	}
	return &envelope, nil
}

// PerfEntry is one entry in the bounded performance log.
type PerfEntry struct {
	Timestamp int64  `json:"timestamp"`
	DataSize  int    `json:"data_size"`
	Action    string `json:"action"`
}

// PerfLog holds the last perfLogCap save and load entries.
type PerfLog struct {
	Saves []PerfEntry `json:"saves"`
	Loads []PerfEntry `json:"loads"`
}

const perfLogCap = 10

// recordPerf appends a save/load entry, keeping only the newest
// perfLogCap per action. Best effort: failures are logged and swallowed.
func (s *Store) recordPerf(action string, size int) {
	entry := PerfEntry{Timestamp: time.Now().UnixMilli(), DataSize: size, Action: action}
	err := s.db.Update(func(txn *badger.Txn) error {
		var pl PerfLog
		item, err := txn.Get([]byte(keyPerf))
		if err == nil {
			_ = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &pl)
			})
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		switch action {
		case "save":
			pl.Saves = capPerf(append(pl.Saves, entry))
		case "load":
			pl.Loads = capPerf(append(pl.Loads, entry))
		}

		raw, err := json.Marshal(pl)
		if err != nil {
			return err
		}
		return txn.Set([]byte(keyPerf), raw)
	})
	if err != nil {
		s.log.Debugw("performance log update failed", "error", err)
	}
}

func capPerf(entries []PerfEntry) []PerfEntry {
	if len(entries) > perfLogCap {
		return entries[len(entries)-perfLogCap:]
	}
	return entries
}

// PerformanceLog returns the bounded save/load log.
func (s *Store) PerformanceLog() (*PerfLog, error) {
	if s.db == nil {
		return &PerfLog{}, nil
	}
	raw, found, err := s.get(keyPerf)
	if err != nil {
		return nil, fmt.Errorf("read performance log: %w", err)
	}
	pl := &PerfLog{}
	if found {
		if err := json.Unmarshal(raw, pl); err != nil {
			return &PerfLog{}, nil
		}
	}
	return pl, nil
}

// Stats summarizes the keys this service owns. For user-facing quota
// display; the only control-flow use is the save-path budget probe.
type Stats struct {
	UsedBytes          int64   `json:"used_bytes"`
	TotalBytesEstimate int64   `json:"total_bytes_estimate"`
	AvailableBytes     int64   `json:"available_bytes"`
	PercentUsed        float64 `json:"percent_used"`
	KeyCount           int     `json:"key_count"`
}

// Stats enumerates all owned keys and sums their sizes.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{TotalBytesEstimate: s.budget}
	if s.db == nil {
		return stats, nil
	}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			stats.KeyCount++
			stats.UsedBytes += item.ValueSize() + int64(len(item.Key()))
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("enumerate keys: %w", err)
	}
	stats.AvailableBytes = s.budget - stats.UsedBytes
	if stats.AvailableBytes < 0 {
		stats.AvailableBytes = 0
	}
	if s.budget > 0 {
		stats.PercentUsed = float64(stats.UsedBytes) / float64(s.budget) * 100
	}
	return stats, nil
}

// BackupInfo describes one stored backup.
type BackupInfo struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"`
	SizeBytes int64  `json:"size_bytes"`
}

// PutBackup writes a full-state payload under BackupPrefix + suffix.
// Backups are immutable once written; callers pick fresh suffixes.
func (s *Store) PutBackup(suffix string, payload []byte) error {
	if s.db == nil {
		return ErrDisabled
	}
	if suffix == "" {
		return errors.New("empty backup suffix")
	}
	return s.writeWithinBudget(BackupPrefix+suffix, payload)
}

// GetBackup reads a backup by its full key.
func (s *Store) GetBackup(key string) ([]byte, error) {
	if s.db == nil {
		return nil, nil
	}
	if !strings.HasPrefix(key, BackupPrefix) {
		return nil, fmt.Errorf("not a backup key: %s", key)
	}
	raw, found, err := s.get(key)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if !found {
		return nil, nil
	}
	return raw, nil
}

// DeleteBackup removes a backup by its full key.
func (s *Store) DeleteBackup(key string) error {
	if s.db == nil {
		return ErrDisabled
	}
	if !strings.HasPrefix(key, BackupPrefix) {
		return fmt.Errorf("not a backup key: %s", key)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// ListBackups returns all backups sorted newest first. The timestamp is
// parsed from the key's trailing numeric token; keys without one sort
// oldest.
func (s *Store) ListBackups() ([]BackupInfo, error) {
	if s.db == nil {
		return nil, nil
	}
	var backups []BackupInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(BackupPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			backups = append(backups, BackupInfo{
				Key:       key,
				Timestamp: parseStamp(key),
				SizeBytes: item.ValueSize(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].Timestamp != backups[j].Timestamp {
			return backups[i].Timestamp > backups[j].Timestamp
		}
		return backups[i].Key > backups[j].Key
	})
	return backups, nil
}

// PruneBackups deletes the oldest backups beyond max, by timestamp.
// Returns how many were deleted.
func (s *Store) PruneBackups(max int) (int, error) {
	if s.db == nil || max < 0 {
		return 0, nil
	}
	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}
	if len(backups) <= max {
		return 0, nil
	}
	excess := backups[max:]
	deleted := 0
	for _, b := range excess {
		if err := s.DeleteBackup(b.Key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// NextBackupStamp returns a strictly increasing millisecond timestamp so
// that backups created within the same millisecond still get unique keys
// and a total chronological order.
func (s *Store) NextBackupStamp() int64 {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	ms := time.Now().UnixMilli()
	if ms <= s.lastStamp {
		ms = s.lastStamp + 1
	}
	s.lastStamp = ms
	return ms
}

// parseStamp extracts the trailing numeric token of a backup key:
// "backup/1712000000123" and "backup/corrupted_1712000000123" both parse
// to 1712000000123.
func parseStamp(key string) int64 {
	suffix := strings.TrimPrefix(key, BackupPrefix)
	if idx := strings.LastIndex(suffix, "_"); idx >= 0 {
		suffix = suffix[idx+1:]
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (s *Store) get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
