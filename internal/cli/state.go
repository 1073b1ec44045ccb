package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/studysync/internal/backup"
	"github.com/sbenjam1n/studysync/internal/recovery"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Local state management",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current local state as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		state, err := st.LoadState()
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if state == nil {
			fmt.Println("No local state.")
			return nil
		}
		out, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var stateValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the current local state against the structural invariants",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		state, err := st.LoadState()
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if state == nil {
			fmt.Println("No local state to validate.")
			return nil
		}

		result := recovery.Validate(state)
		for _, check := range result.Checks {
			status := "PASS"
			if !check.Passed {
				status = "FAIL"
			}
			line := fmt.Sprintf("%s %s", status, check.Check)
			if check.Detail != "" {
				line += ": " + check.Detail
			}
			fmt.Println(line)
		}
		if !result.Valid {
			return fmt.Errorf("state failed validation")
		}
		fmt.Println("State is structurally valid.")
		return nil
	},
}

var wipeYes bool

var stateWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete the local state (a final backup is written first)",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()
		st := openStore(log)
		defer st.Close()

		if !wipeYes {
			fmt.Print("This deletes the local study plan state. Type 'yes' to continue: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(answer) != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		backups := newBackupManager(st, log)
		key, err := backups.Create(backup.LabelFinal)
		if err != nil && !errors.Is(err, backup.ErrNoState) {
			return fmt.Errorf("final backup: %w", err)
		}
		if key != "" {
			fmt.Printf("Final backup written: %s\n", key)
		}

		if err := st.DeleteState(); err != nil {
			return fmt.Errorf("delete state: %w", err)
		}
		fmt.Println("Local state wiped.")
		return nil
	},
}

func init() {
	stateWipeCmd.Flags().BoolVar(&wipeYes, "yes", false, "Skip the confirmation prompt")

	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateValidateCmd)
	stateCmd.AddCommand(stateWipeCmd)
}
