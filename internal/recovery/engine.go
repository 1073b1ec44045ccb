// Package recovery produces one authoritative application state from
// however many partial or conflicting copies exist, and survives the
// corruption of any single copy. Its correctness property: the user's
// most advanced, structurally valid state is never silently discarded.
package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sbenjam1n/studysync/internal/plan"
	"github.com/sbenjam1n/studysync/internal/store"
)

// Mode selects the resolution policy when both local and cloud candidates
// are valid.
type Mode int

const (
	// PreferLatest picks the candidate with the larger last_saved_at.
	PreferLatest Mode = iota
	// FieldMerge merges the candidates field by field.
	FieldMerge
)

// LocalStore is the slice of the durable store the engine needs.
type LocalStore interface {
	LoadState() (*plan.ApplicationState, error)
	SaveState(state *plan.ApplicationState) error
}

// CloudStore is the slice of the sync gateway the engine needs.
type CloudStore interface {
	Enabled() bool
	Pull(ctx context.Context, userID string) (*plan.ApplicationState, error)
	Push(ctx context.Context, userID string, state *plan.ApplicationState) error
}

// BackupSource is the slice of the rotation manager the engine needs.
type BackupSource interface {
	List() ([]store.BackupInfo, error)
	Get(key string) ([]byte, error)
	Create(label string) (string, error)
}

// PendingQueue receives pushes that exhausted their retries. May be nil.
type PendingQueue interface {
	Enabled() bool
	Enqueue(ctx context.Context, userID string, state *plan.ApplicationState) error
}

// Engine coordinates gather, validate, resolve, and the emergency path.
type Engine struct {
	local   LocalStore
	cloud   CloudStore
	backups BackupSource
	pending PendingQueue
	log     *zap.SugaredLogger

	// Push retry policy. The local store and gateway are single-attempt
	// components; retrying is exclusively the engine's job.
	pushAttempts int
	pushBackoff  time.Duration
}

// New creates an Engine. pending may be nil when no outbox is configured.
func New(local LocalStore, cloud CloudStore, backups BackupSource, pending PendingQueue, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		local:        local,
		cloud:        cloud,
		backups:      backups,
		pending:      pending,
		log:          logger,
		pushAttempts: 3,
		pushBackoff:  time.Second,
	}
}

// Recover produces the single state the application resumes from, or nil
// when nothing recoverable exists anywhere. It never returns an error:
// every sub-failure is absorbed and logged.
func (e *Engine) Recover(ctx context.Context, userID string, mode Mode) *plan.ApplicationState {
	local, cloudState := e.gather(ctx, userID)

	localValid := Validate(local)
	if local != nil && !localValid.Valid {
		e.log.Warnw("discarding invalid local state", "checks", localValid.Checks)
		local = nil
	}
	cloudValid := Validate(cloudState)
	if cloudState != nil && !cloudValid.Valid {
		e.log.Warnw("discarding invalid cloud state", "checks", cloudValid.Checks)
		cloudState = nil
	}

	switch {
	case local != nil && cloudState != nil:
		if mode == FieldMerge {
			return Normalize(Merge(local, cloudState))
		}
		if cloudState.LastSavedAt > local.LastSavedAt {
			return Normalize(cloudState)
		}
		return Normalize(local)
	case local != nil:
		return Normalize(local)
	case cloudState != nil:
		return Normalize(cloudState)
	}

	return e.recoverFromBackups()
}

// gather attempts the local load and the cloud pull independently; a
// failure in one never aborts the other.
func (e *Engine) gather(ctx context.Context, userID string) (local, cloudState *plan.ApplicationState) {
	var err error
	local, err = e.local.LoadState()
	if err != nil {
		e.log.Warnw("local load failed during recovery", "error", err)
	}

	if userID != "" && e.cloud.Enabled() {
		cloudState, err = e.cloud.Pull(ctx, userID)
		if err != nil {
			e.log.Warnw("cloud pull failed during recovery", "error", err)
		}
	}
	return local, cloudState
}

// recoverFromBackups walks the rotation newest to oldest until a backup
// passes validation, re-persists it, and returns it. Exhaustion yields nil.
func (e *Engine) recoverFromBackups() *plan.ApplicationState {
	backups, err := e.backups.List()
	if err != nil {
		e.log.Errorw("cannot list backups for emergency recovery", "error", err)
		return nil
	}

	for _, info := range backups {
		payload, err := e.backups.Get(info.Key)
		if err != nil || payload == nil {
			continue
		}
		state, err := decodeState(payload)
		if err != nil {
			e.log.Debugw("skipping undecodable backup", "key", info.Key, "error", err)
			continue
		}
		if result := Validate(state); !result.Valid {
			e.log.Debugw("skipping invalid backup", "key", info.Key, "checks", result.Checks)
			continue
		}

		e.log.Infow("recovered state from backup", "key", info.Key, "last_saved", state.LastSavedAt)
		if err := e.local.SaveState(state); err != nil {
			e.log.Warnw("could not re-persist recovered state", "error", err)
		}
		return Normalize(state)
	}

	e.log.Warnw("emergency recovery exhausted all backups", "tried", len(backups))
	return nil
}

// decodeState parses a serialized state, applying schema migration the
// same way the store's load path does.
func decodeState(payload []byte) (*plan.ApplicationState, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	doc = plan.MigrateDocument(doc)
	migrated, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-serialize state: %w", err)
	}
	var state plan.ApplicationState
	if err := json.Unmarshal(migrated, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// SafePush validates the state once, then pushes it with bounded retries
// and increasing backoff. On final failure the state is preserved locally
// under a failed_sync_* backup and, when an outbox is configured, queued
// for later delivery — the data is never lost just because the remote was
// unreachable.
func (e *Engine) SafePush(ctx context.Context, userID string, state *plan.ApplicationState) error {
	// Validate before the loop: retrying an invalid payload cannot
	// change its validity.
	if result := Validate(state); !result.Valid {
		return fmt.Errorf("refusing to push invalid state: %+v", result.Checks)
	}
	if !e.cloud.Enabled() {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= e.pushAttempts; attempt++ {
		lastErr = e.cloud.Push(ctx, userID, state)
		if lastErr == nil {
			return nil
		}
		e.log.Warnw("push attempt failed", "attempt", attempt, "error", lastErr)
		if attempt < e.pushAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*e.pushBackoff); err != nil {
				lastErr = err
				break
			}
		}
	}

	if _, err := e.backups.Create("failed_sync"); err != nil {
		e.log.Errorw("could not preserve unsynced state locally", "error", err)
	}
	if e.pending != nil && e.pending.Enabled() {
		if err := e.pending.Enqueue(ctx, userID, state); err != nil {
			e.log.Warnw("could not queue push for later delivery", "error", err)
		}
	}
	return fmt.Errorf("push failed after %d attempts: %w", e.pushAttempts, lastErr)
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
