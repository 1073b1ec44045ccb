package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/studysync/internal/db"
)

var localOnly bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the local store and, when configured, the cloud schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log := newLogger()
		defer log.Sync()

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		st := openStore(log)
		defer st.Close()
		if !st.Enabled() {
			return fmt.Errorf("local store could not be opened at %s", cfg.DataDir)
		}
		fmt.Printf("Local store ready at %s\n", cfg.DataDir)

		if localOnly {
			fmt.Println("Local-only init complete.")
			return nil
		}

		if cfg.CloudEnabled() {
			fmt.Println("Connecting to PostgreSQL...")
			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer pool.Close()

			fmt.Println("Running migrations...")
			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Cloud schema created")
		} else {
			fmt.Println("Cloud sync disabled (no STUDYSYNC_DATABASE_URL)")
		}

		if cfg.OutboxEnabled() {
			fmt.Println("Connecting to Redis...")
			ob, err := connectOutbox(log)
			if err != nil {
				return fmt.Errorf("redis connection failed: %w", err)
			}
			if err := ob.EnsureStream(ctx); err != nil {
				return fmt.Errorf("redis stream setup failed: %w", err)
			}
			fmt.Println("Outbox stream created")
		} else {
			fmt.Println("Offline outbox disabled (no STUDYSYNC_REDIS_URL)")
		}

		fmt.Println("\nStudySync initialized successfully.")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&localOnly, "local-only", false, "Initialize the local store only, skip cloud and outbox setup")
}
