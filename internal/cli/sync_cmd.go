package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbenjam1n/studysync/internal/cloud"
	"github.com/sbenjam1n/studysync/internal/outbox"
	"github.com/sbenjam1n/studysync/internal/recovery"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Cloud synchronization",
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the local state to the cloud with retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log := newLogger()
		defer log.Sync()

		userID, err := requireUserID()
		if err != nil {
			return err
		}
		st := openStore(log)
		defer st.Close()

		state, err := st.LoadState()
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if state == nil {
			fmt.Println("No local state to push.")
			return nil
		}

		gw, err := connectCloud(ctx, log)
		if err != nil {
			return err
		}
		if !gw.Enabled() {
			return fmt.Errorf("cloud sync is not configured; set STUDYSYNC_DATABASE_URL")
		}
		ob, err := connectOutbox(log)
		if err != nil {
			return err
		}

		engine := newEngine(st, gw, ob, log)
		if err := engine.SafePush(ctx, userID, state); err != nil {
			return fmt.Errorf("sync push: %w", err)
		}
		fmt.Printf("Pushed state for %s (last_saved_at=%d)\n", userID, state.LastSavedAt)
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the cloud state and write it locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log := newLogger()
		defer log.Sync()

		userID, err := requireUserID()
		if err != nil {
			return err
		}
		gw, err := connectCloud(ctx, log)
		if err != nil {
			return err
		}
		if !gw.Enabled() {
			return fmt.Errorf("cloud sync is not configured; set STUDYSYNC_DATABASE_URL")
		}

		state, err := gw.Pull(ctx, userID)
		if err != nil {
			return fmt.Errorf("sync pull: %w", err)
		}
		if state == nil {
			fmt.Printf("No cloud state for %s.\n", userID)
			return nil
		}

		st := openStore(log)
		defer st.Close()
		if err := st.SaveState(state); err != nil {
			return fmt.Errorf("persist pulled state: %w", err)
		}
		fmt.Printf("Pulled state for %s (last_saved_at=%d)\n", userID, state.LastSavedAt)
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare local and cloud copies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log := newLogger()
		defer log.Sync()

		userID, err := requireUserID()
		if err != nil {
			return err
		}
		st := openStore(log)
		defer st.Close()
		local, err := st.LoadState()
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}

		gw, err := connectCloud(ctx, log)
		if err != nil {
			return err
		}
		status := gw.Status(ctx, userID, local)

		fmt.Printf("Online:            %v\n", status.IsOnline)
		if status.LastSync > 0 {
			fmt.Printf("Last cloud sync:   %s\n", time.UnixMilli(status.LastSync).Format(time.RFC3339))
		} else {
			fmt.Println("Last cloud sync:   never")
		}
		fmt.Printf("Local changes:     %v\n", status.HasLocalChanges)
		fmt.Printf("Cloud changes:     %v\n", status.HasCloudChanges)
		return nil
	},
}

var syncDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver queued pushes from the offline outbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log := newLogger()
		defer log.Sync()

		gw, err := connectCloud(ctx, log)
		if err != nil {
			return err
		}
		if !gw.Enabled() {
			return fmt.Errorf("cloud sync is not configured; set STUDYSYNC_DATABASE_URL")
		}
		ob, err := connectOutbox(log)
		if err != nil {
			return err
		}
		if !ob.Enabled() {
			fmt.Println("No outbox configured; nothing to drain.")
			return nil
		}

		delivered := drainOutbox(ctx, log, gw, ob)
		fmt.Printf("Delivered %d queued push(es).\n", delivered)
		return nil
	},
}

// outboxConsumer names this process in the outbox consumer group.
const outboxConsumer = "studysync-cli"

// drainOutbox delivers queued pushes until the stream is empty or a push
// fails. Undecodable entries are acked and dropped; a failed push leaves
// the entry pending for the next drain.
func drainOutbox(ctx context.Context, log *zap.SugaredLogger, gw *cloud.Gateway, ob *outbox.Outbox) int {
	if !ob.Enabled() || !gw.Enabled() {
		return 0
	}
	delivered := 0
	for {
		entry, id, err := ob.Read(ctx, outboxConsumer)
		if err != nil {
			log.Warnw("outbox read failed", "error", err)
			return delivered
		}
		if entry == nil {
			return delivered
		}
		state, err := entry.State()
		if err != nil {
			log.Warnw("dropping undecodable outbox entry", "id", id, "error", err)
			if err := ob.Ack(ctx, id); err != nil {
				log.Warnw("outbox ack failed", "id", id, "error", err)
				return delivered
			}
			continue
		}
		// Last-writer-wins: a queued payload older than what the cloud
		// already holds must not clobber the newer row.
		if lastSync, err := gw.LastSyncTime(ctx, entry.UserID); err == nil && entry.LastSaved < lastSync {
			log.Infow("dropping stale outbox entry", "id", id, "queued", entry.LastSaved, "cloud", lastSync)
			if err := ob.Ack(ctx, id); err != nil {
				log.Warnw("outbox ack failed", "id", id, "error", err)
				return delivered
			}
			continue
		}
		if err := gw.Push(ctx, entry.UserID, state); err != nil {
			log.Warnw("queued push delivery failed", "user", entry.UserID, "error", err)
			return delivered
		}
		if err := ob.Ack(ctx, id); err != nil {
			log.Warnw("outbox ack failed", "id", id, "error", err)
			return delivered
		}
		delivered++
	}
}

var recoverMerge bool

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Reconcile local, cloud, and backup copies into one state",
	Long: `Gathers the local state and the cloud state, discards whichever copies
fail validation, resolves the survivors (newest wins, or a field-level
merge with --merge), and falls back to the backup rotation when both
primaries are gone. The winning state is persisted locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
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

		mode := recovery.PreferLatest
		if recoverMerge {
			mode = recovery.FieldMerge
		}

		engine := newEngine(st, gw, ob, log)
		state := engine.Recover(ctx, cfg.UserID, mode)
		if state == nil {
			fmt.Println("Nothing recoverable: no local state, no cloud state, no usable backup.")
			return nil
		}
		if err := st.SaveState(state); err != nil {
			return fmt.Errorf("persist recovered state: %w", err)
		}
		fmt.Printf("Recovered state: phase=%s last_saved_at=%d\n", state.Phase, state.LastSavedAt)
		return nil
	},
}

func init() {
	recoverCmd.Flags().BoolVar(&recoverMerge, "merge", false, "Merge local and cloud field by field instead of taking the newer copy")

	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncDrainCmd)
}
