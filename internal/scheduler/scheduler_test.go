package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/sbenjam1n/studysync/internal/plan"
	"github.com/sbenjam1n/studysync/internal/store"
)

func testSaver(t *testing.T) (*AutoSaver, *store.Store) {
	t.Helper()
	st, err := store.Open(store.Options{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, nil), st
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSaveNow(t *testing.T) {
	saver, st := testSaver(t)

	state := plan.NewState()
	state.SourceText = "manual"
	state.Phase = plan.PhasePreferences
	if err := saver.SaveNow(state); err != nil {
		t.Fatalf("save now: %v", err)
	}

	loaded, err := st.LoadState()
	if err != nil || loaded == nil {
		t.Fatalf("load: %v, %v", loaded, err)
	}
	if loaded.SourceText != "manual" {
		t.Errorf("state not persisted: %+v", loaded)
	}
}

func TestEnableTicksAndSaves(t *testing.T) {
	saver, st := testSaver(t)

	var mu sync.Mutex
	counter := 0
	saver.Enable(func() *plan.ApplicationState {
		mu.Lock()
		defer mu.Unlock()
		counter++
		state := plan.NewState()
		state.SourceText = "tick"
		return state
	}, 10*time.Millisecond)
	defer saver.Disable()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counter >= 2
	})

	loaded, err := st.LoadState()
	if err != nil || loaded == nil {
		t.Fatalf("load: %v, %v", loaded, err)
	}
	if loaded.SourceText != "tick" {
		t.Errorf("ticked state not persisted: %+v", loaded)
	}
}

func TestNilSupplierResultSkipsTick(t *testing.T) {
	saver, st := testSaver(t)

	saver.Enable(func() *plan.ApplicationState { return nil }, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	saver.Disable()

	loaded, err := st.LoadState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Errorf("nil supplier tick must not write, got %+v", loaded)
	}
}

func TestReEnableReplacesTimer(t *testing.T) {
	saver, _ := testSaver(t)

	var mu sync.Mutex
	first, second := 0, 0

	saver.Enable(func() *plan.ApplicationState {
		mu.Lock()
		first++
		mu.Unlock()
		return nil
	}, 10*time.Millisecond)

	saver.Enable(func() *plan.ApplicationState {
		mu.Lock()
		second++
		mu.Unlock()
		return nil
	}, 10*time.Millisecond)
	defer saver.Disable()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return second >= 2
	})

	mu.Lock()
	firstAfter := first
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if first != firstAfter {
		t.Errorf("replaced timer still ticking: %d -> %d", firstAfter, first)
	}
}

func TestDisableIdempotent(t *testing.T) {
	saver, _ := testSaver(t)

	// Disable before any Enable must be a no-op.
	saver.Disable()

	saver.Enable(func() *plan.ApplicationState { return nil }, 10*time.Millisecond)
	saver.Disable()
	saver.Disable()
}

func TestDisableStopsTicks(t *testing.T) {
	saver, _ := testSaver(t)

	var mu sync.Mutex
	counter := 0
	saver.Enable(func() *plan.ApplicationState {
		mu.Lock()
		counter++
		mu.Unlock()
		return nil
	}, 10*time.Millisecond)

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counter >= 1
	})
	saver.Disable()

	mu.Lock()
	after := counter
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if counter != after {
		t.Errorf("ticks continued after Disable: %d -> %d", after, counter)
	}
}

func TestConcurrentSavesSerialize(t *testing.T) {
	saver, st := testSaver(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state := plan.NewState()
			state.SourceText = "concurrent"
			if err := saver.SaveNow(state); err != nil {
				t.Errorf("save: %v", err)
			}
		}()
	}
	wg.Wait()

	loaded, err := st.LoadState()
	if err != nil || loaded == nil {
		t.Fatalf("load: %v, %v", loaded, err)
	}
	if loaded.SourceText != "concurrent" {
		t.Errorf("unexpected final state: %+v", loaded)
	}
}
