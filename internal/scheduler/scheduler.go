// Package scheduler runs periodic background persistence of the in-memory
// application state through the local store.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sbenjam1n/studysync/internal/plan"
	"github.com/sbenjam1n/studysync/internal/store"
)

// DefaultInterval between auto-save ticks.
const DefaultInterval = 30 * time.Second

// Supplier returns the current in-memory state on each tick. Returning
// nil skips the tick.
type Supplier func() *plan.ApplicationState

// AutoSaver periodically persists the supplied state. At most one timer
// is active per instance; re-enabling replaces the running timer rather
// than stacking a second one. Manual saves and timer ticks share a
// single-flight guard so two saves never interleave writes to the same
// key.
type AutoSaver struct {
	store *store.Store
	log   *zap.SugaredLogger

	mu   sync.Mutex // guards timer lifecycle
	stop chan struct{}
	done chan struct{}

	saveMu sync.Mutex // single-flight guard around the save path
}

// New creates an AutoSaver writing through the given store.
func New(st *store.Store, logger *zap.SugaredLogger) *AutoSaver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AutoSaver{store: st, log: logger}
}

// Enable starts the repeating timer. Any previously active timer is
// stopped first. A failed save is logged, not retried; the next tick
// retries naturally.
func (a *AutoSaver) Enable(supply Supplier, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	a.Disable()

	a.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	a.stop = stop
	a.done = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if state := supply(); state != nil {
					if err := a.SaveNow(state); err != nil {
						a.log.Warnw("auto-save failed", "error", err)
					}
				}
			}
		}
	}()
}

// SaveNow persists the state immediately, serialized against any
// concurrent timer tick. In-flight saves complete; they are never aborted.
func (a *AutoSaver) SaveNow(state *plan.ApplicationState) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	return a.store.SaveState(state)
}

// Disable cancels the timer. Idempotent, and safe to call from teardown
// while a save is mid-flight: the in-flight save completes, and no new
// tick fires afterwards.
func (a *AutoSaver) Disable() {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
