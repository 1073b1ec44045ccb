package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/studysync/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup management",
}

var backupLabel string

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the current state",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		backups := newBackupManager(st, log)
		key, err := backups.Create(backupLabel)
		if errors.Is(err, backup.ErrNoState) {
			fmt.Println("No state to back up.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
		fmt.Printf("Backup created: %s\n", key)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		backups := newBackupManager(st, log)
		infos, err := backups.List()
		if err != nil {
			return fmt.Errorf("list backups: %w", err)
		}
		if len(infos) == 0 {
			fmt.Println("No backups.")
			return nil
		}

		fmt.Printf("%d backup(s), retaining at most %d:\n", len(infos), backups.MaxBackups())
		for _, info := range infos {
			when := "unknown time"
			if info.Timestamp > 0 {
				when = time.UnixMilli(info.Timestamp).Format(time.RFC3339)
			}
			fmt.Printf("  %-48s %s  %d bytes\n", info.Key, when, info.SizeBytes)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [key]",
	Short: "Restore a backup (the pre-restore state is snapshotted first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		backups := newBackupManager(st, log)
		if err := backups.Restore(args[0]); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		fmt.Printf("Restored %s\n", args[0])
		return nil
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete [key]",
	Short: "Delete a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		backups := newBackupManager(st, log)
		if err := backups.Delete(args[0]); err != nil {
			return fmt.Errorf("delete backup: %w", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().StringVar(&backupLabel, "label", "", "Label prefix for the backup key")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupDeleteCmd)
}
