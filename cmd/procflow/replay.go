package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/procflow/procflow/types"
	"github.com/procflow/procflow/workflow"
)

var replayCmd = &cobra.Command{
	Use:   "replay <definition> <eventlog>",
	Short: "Rebuild a run from a recorded event log",
	Long: `Replays a recorded event log (as produced by "procflow run") against a
definition and prints the reconstructed run state. Given the same definition
and log this always yields the same result.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run-id")

		def, err := loadDefinition(args[0])
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read event log: %w", err)
		}
		var log []types.Event
		if err := json.Unmarshal(raw, &log); err != nil {
			// Accept a full run dump as produced by "procflow run" too.
			var dump struct {
				RunID  string        `json:"run_id"`
				Events []types.Event `json:"events"`
			}
			if err2 := json.Unmarshal(raw, &dump); err2 != nil {
				return fmt.Errorf("parse event log: %w", err)
			}
			log = dump.Events
			if runID == "" {
				runID = dump.RunID
			}
		}

		run, err := workflow.NewEngine().Replay(def, log, runID)
		if err != nil {
			return err
		}
		return printJSON(run)
	},
}

func init() {
	replayCmd.Flags().String("run-id", "", "Run id for the reconstructed run")
	rootCmd.AddCommand(replayCmd)
}
