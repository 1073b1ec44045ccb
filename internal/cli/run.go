package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/studysync/internal/plan"
	"github.com/sbenjam1n/studysync/internal/recovery"
	"github.com/sbenjam1n/studysync/internal/scheduler"
)

var runMerge bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the persistence agent: recover, auto-save, and sync until interrupted",
	Long: `Recovers the authoritative state, then keeps it safe: the auto-save
scheduler persists it locally on an interval, and each sync tick pushes
it to the cloud and drains the offline outbox. Ctrl-C triggers a final
save and push before exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		gw, err := connectCloud(ctx, log)
		if err != nil {
			return err
		}
		ob, err := connectOutbox(log)
		if err != nil {
			return err
		}
		engine := newEngine(st, gw, ob, log)

		mode := recovery.PreferLatest
		if runMerge {
			mode = recovery.FieldMerge
		}
		state := engine.Recover(ctx, cfg.UserID, mode)
		if state == nil {
			state = plan.NewState()
			log.Infow("starting from a fresh state")
		} else {
			log.Infow("recovered state", "phase", state.Phase, "last_saved", state.LastSavedAt)
		}
		if err := st.SaveState(state); err != nil {
			return fmt.Errorf("persist recovered state: %w", err)
		}

		var mu sync.Mutex
		current := state
		supply := func() *plan.ApplicationState {
			mu.Lock()
			defer mu.Unlock()
			return current
		}

		saver := scheduler.New(st, log)
		saver.Enable(supply, cfg.AutosaveInterval)
		defer saver.Disable()
		fmt.Printf("Agent running: auto-save every %s, user=%q. Ctrl-C to stop.\n",
			cfg.AutosaveInterval, cfg.UserID)

		syncTicker := time.NewTicker(2 * cfg.AutosaveInterval)
		defer syncTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				saver.Disable()
				final := supply()
				if err := saver.SaveNow(final); err != nil {
					log.Errorw("final save failed", "error", err)
				}
				if cfg.UserID != "" && gw.Enabled() {
					pushCtx, pushCancel := context.WithTimeout(context.Background(), 10*time.Second)
					if err := engine.SafePush(pushCtx, cfg.UserID, final); err != nil {
						log.Warnw("final push failed", "error", err)
					}
					pushCancel()
				}
				fmt.Println("\nAgent stopped.")
				return nil

			case <-syncTicker.C:
				// The store is the system of record while the agent runs:
				// reload before each sync so edits made by other commands
				// are picked up.
				latest, err := st.LoadState()
				if err != nil {
					log.Warnw("reload before sync failed", "error", err)
					continue
				}
				if latest != nil {
					mu.Lock()
					current = latest
					mu.Unlock()
				}
				if cfg.UserID == "" || !gw.Enabled() {
					continue
				}
				if err := engine.SafePush(ctx, cfg.UserID, supply()); err != nil {
					log.Warnw("periodic push failed", "error", err)
					continue
				}
				drainOutbox(ctx, log, gw, ob)
			}
		}
	},
}

func init() {
	runCmd.Flags().BoolVar(&runMerge, "merge", false, "Use field-level merge during startup recovery")
}
