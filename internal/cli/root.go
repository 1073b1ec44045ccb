package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbenjam1n/studysync/internal/backup"
	"github.com/sbenjam1n/studysync/internal/cloud"
	"github.com/sbenjam1n/studysync/internal/config"
	"github.com/sbenjam1n/studysync/internal/outbox"
	"github.com/sbenjam1n/studysync/internal/recovery"
	"github.com/sbenjam1n/studysync/internal/store"
)

var (
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "studysync",
		Short: "StudySync: durable local storage, backups, and cloud sync for study plans",
		Long: `StudySync keeps a study plan safe across an unreliable network and a
size-constrained local store: periodic local persistence, rotated
backups, cloud mirroring keyed by user id, and a recovery engine that
reconciles whichever copies survive.

Persistence is best-effort by design: a failed save or an unreachable
cloud never blocks the workflow, it only degrades to local-only mode.`,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *zap.SugaredLogger {
	var logger *zap.Logger
	var err error
	if cfg.LogMode == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// openStore opens the local store, degrading to a disabled store when the
// data directory is unusable so persistence fails softly instead of
// aborting the command.
func openStore(log *zap.SugaredLogger) *store.Store {
	st, err := store.Open(store.Options{
		Dir:         cfg.DataDir,
		BudgetBytes: cfg.StorageBudgetBytes,
		MaxBackups:  cfg.MaxBackups,
		Logger:      log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: local store unavailable (%v); continuing without persistence\n", err)
		return store.Disabled(log)
	}
	return st
}

func newBackupManager(st *store.Store, log *zap.SugaredLogger) *backup.Manager {
	return backup.New(st, cfg.MaxBackups, log)
}

// connectCloud returns the gateway, disabled when no database URL is
// configured. Misconfiguration is detected here, once, so commands
// short-circuit instead of failing repeatedly.
func connectCloud(ctx context.Context, log *zap.SugaredLogger) (*cloud.Gateway, error) {
	if !cfg.CloudEnabled() {
		return cloud.Disabled(log), nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w\nSet STUDYSYNC_DATABASE_URL environment variable", err)
	}
	return cloud.New(pool, log), nil
}

func connectOutbox(log *zap.SugaredLogger) (*outbox.Outbox, error) {
	if !cfg.OutboxEnabled() {
		return outbox.New(nil, log), nil
	}
	client, err := outbox.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w\nSet STUDYSYNC_REDIS_URL environment variable", err)
	}
	return outbox.New(client, log), nil
}

func newEngine(st *store.Store, gw *cloud.Gateway, ob *outbox.Outbox, log *zap.SugaredLogger) *recovery.Engine {
	return recovery.New(st, gw, newBackupManager(st, log), ob, log)
}

func requireUserID() (string, error) {
	if cfg.UserID == "" {
		return "", fmt.Errorf("no user identity configured; set STUDYSYNC_USER_ID")
	}
	return cfg.UserID, nil
}
