package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/studysync/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the full local state (state, backups, settings, progress) to an archive file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		archive, err := export.Export(st, newBackupManager(st, log))
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		out, err := json.MarshalIndent(archive, "", "  ")
		if err != nil {
			return fmt.Errorf("encode archive: %w", err)
		}
		if err := os.WriteFile(args[0], out, 0o644); err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
		fmt.Printf("Exported %d backup(s) and the main state to %s (%d bytes)\n",
			len(archive.Backups), args[0], len(out))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Restore an archive file (the current state is snapshotted first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		var archive export.Archive
		if err := json.Unmarshal(raw, &archive); err != nil {
			return fmt.Errorf("parse archive: %w", err)
		}

		if err := export.Import(st, newBackupManager(st, log), &archive); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		fmt.Printf("Imported archive from %s (exported %s)\n", args[0], archive.ExportDate)
		return nil
	},
}
