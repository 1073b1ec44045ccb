package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage usage, backup rotation, sync state, and recent save/load timings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		fmt.Println("StudySync Status")
		fmt.Println("================")

		if !st.Enabled() {
			fmt.Println("Local store:  DISABLED (persistence unavailable)")
		} else {
			stats, err := st.Stats()
			if err != nil {
				return fmt.Errorf("storage stats: %w", err)
			}
			fmt.Printf("Local store:  %s\n", cfg.DataDir)
			fmt.Printf("  Used:       %d / %d bytes (%.1f%%)\n", stats.UsedBytes, stats.TotalBytesEstimate, stats.PercentUsed)
			fmt.Printf("  Keys:       %d\n", stats.KeyCount)
		}

		state, err := st.LoadState()
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if state == nil {
			fmt.Println("State:        none")
		} else {
			fmt.Printf("State:        phase=%s, last saved %s\n",
				state.Phase, time.UnixMilli(state.LastSavedAt).Format(time.RFC3339))
		}

		backups := newBackupManager(st, log)
		infos, err := backups.List()
		if err != nil {
			return fmt.Errorf("list backups: %w", err)
		}
		fmt.Printf("Backups:      %d (max %d)\n", len(infos), backups.MaxBackups())

		gw, err := connectCloud(ctx, log)
		if err != nil {
			fmt.Printf("Cloud sync:   unavailable (%v)\n", err)
		} else if !gw.Enabled() {
			fmt.Println("Cloud sync:   disabled")
		} else {
			status := gw.Status(ctx, cfg.UserID, state)
			fmt.Printf("Cloud sync:   online=%v local_changes=%v cloud_changes=%v\n",
				status.IsOnline, status.HasLocalChanges, status.HasCloudChanges)
		}

		ob, err := connectOutbox(log)
		if err != nil {
			fmt.Printf("Outbox:       unavailable (%v)\n", err)
		} else if !ob.Enabled() {
			fmt.Println("Outbox:       disabled")
		} else {
			pending, err := ob.Pending(ctx)
			if err != nil {
				fmt.Printf("Outbox:       error (%v)\n", err)
			} else {
				fmt.Printf("Outbox:       %d pending push(es)\n", pending)
			}
		}

		perf, err := st.PerformanceLog()
		if err != nil {
			return fmt.Errorf("performance log: %w", err)
		}
		if len(perf.Saves) > 0 {
			last := perf.Saves[len(perf.Saves)-1]
			fmt.Printf("Last save:    %s (%d bytes)\n",
				time.UnixMilli(last.Timestamp).Format(time.RFC3339), last.DataSize)
		}
		if len(perf.Loads) > 0 {
			last := perf.Loads[len(perf.Loads)-1]
			fmt.Printf("Last load:    %s (%d bytes)\n",
				time.UnixMilli(last.Timestamp).Format(time.RFC3339), last.DataSize)
		}
		return nil
	},
}
