// Package cloud mirrors the application state to and from PostgreSQL,
// one row per user. It is a fail-fast, single-attempt transport: retry
// policy lives in the recovery engine, and conflict resolution is not
// its job (push is last-writer-wins at the row level).
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sbenjam1n/studysync/internal/plan"
)

// SyncError is the typed error raised by every remote failure. Callers
// catch it and fall back to local-only operation.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("cloud sync %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// ErrSyncDisabled marks operations attempted against a disabled gateway.
// Disabled-gateway reads short-circuit to empty results instead; only
// writes surface this error.
var ErrSyncDisabled = errors.New("cloud sync disabled")

// Gateway pushes and pulls state rows keyed by user id.
type Gateway struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// New creates a Gateway over an open pool.
func New(pool *pgxpool.Pool, logger *zap.SugaredLogger) *Gateway {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Gateway{pool: pool, log: logger}
}

// Disabled returns a gateway whose every operation short-circuits,
// for running without remote configuration.
func Disabled(logger *zap.SugaredLogger) *Gateway {
	return New(nil, logger)
}

// Enabled reports whether remote sync is configured.
func (g *Gateway) Enabled() bool {
	return g.pool != nil
}

// Push upserts the single row for the user, overwriting any previous
// remote state unconditionally.
func (g *Gateway) Push(ctx context.Context, userID string, state *plan.ApplicationState) error {
	if g.pool == nil {
		return &SyncError{Op: "push", Err: ErrSyncDisabled}
	}
	if userID == "" {
		return &SyncError{Op: "push", Err: errors.New("empty user id")}
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return &SyncError{Op: "push", Err: fmt.Errorf("serialize state: %w", err)}
	}

	_, err = g.pool.Exec(ctx, `
		INSERT INTO plan_states (user_id, state_json, last_saved, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET state_json = $2, last_saved = $3, updated_at = NOW()
	`, userID, payload, state.LastSavedAt)
	if err != nil {
		return &SyncError{Op: "push", Err: err}
	}
	g.log.Debugw("pushed state", "user", userID, "last_saved", state.LastSavedAt)
	return nil
}

// Pull fetches the user's row. A missing row is a normal empty result
// (nil, nil), not an error.
func (g *Gateway) Pull(ctx context.Context, userID string) (*plan.ApplicationState, error) {
	if g.pool == nil {
		return nil, nil
	}
	var payload []byte
	err := g.pool.QueryRow(ctx,
		"SELECT state_json FROM plan_states WHERE user_id = $1", userID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &SyncError{Op: "pull", Err: err}
	}

	var state plan.ApplicationState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, &SyncError{Op: "pull", Err: fmt.Errorf("malformed remote state: %w", err)}
	}
	return &state, nil
}

// Remove deletes the user's row.
func (g *Gateway) Remove(ctx context.Context, userID string) error {
	if g.pool == nil {
		return &SyncError{Op: "remove", Err: ErrSyncDisabled}
	}
	if _, err := g.pool.Exec(ctx, "DELETE FROM plan_states WHERE user_id = $1", userID); err != nil {
		return &SyncError{Op: "remove", Err: err}
	}
	return nil
}

// LastSyncTime returns the user's remote last_saved stamp, or 0 when no
// row exists.
func (g *Gateway) LastSyncTime(ctx context.Context, userID string) (int64, error) {
	if g.pool == nil {
		return 0, nil
	}
	var lastSaved int64
	err := g.pool.QueryRow(ctx,
		"SELECT last_saved FROM plan_states WHERE user_id = $1", userID,
	).Scan(&lastSaved)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &SyncError{Op: "last_sync_time", Err: err}
	}
	return lastSaved, nil
}

// SyncStatus summarizes reachability and divergence for display.
type SyncStatus struct {
	IsOnline        bool  `json:"is_online"`
	LastSync        int64 `json:"last_sync"`
	HasLocalChanges bool  `json:"has_local_changes"`
	HasCloudChanges bool  `json:"has_cloud_changes"`
}

// Status reports sync state for the user. When the remote is unreachable
// or unconfigured it conservatively assumes local is ahead, without
// making a network call for the comparison.
func (g *Gateway) Status(ctx context.Context, userID string, local *plan.ApplicationState) SyncStatus {
	status := SyncStatus{HasLocalChanges: true}
	if g.pool == nil {
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := g.pool.Ping(pingCtx); err != nil {
		g.log.Debugw("remote unreachable", "error", err)
		return status
	}
	status.IsOnline = true

	lastSync, err := g.LastSyncTime(ctx, userID)
	if err != nil {
		return status
	}
	status.LastSync = lastSync

	localSaved := int64(0)
	if local != nil {
		localSaved = local.LastSavedAt
	}
	status.HasLocalChanges = localSaved > lastSync
	status.HasCloudChanges = lastSync > localSaved
	return status
}
