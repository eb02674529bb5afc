package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/procflow/procflow/types"
	"github.com/procflow/procflow/workflow"
)

// submission is one entry in an --events file: an external event to feed
// into the run, in order.
type submission struct {
	EventType      types.EventType        `json:"event_type"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
}

var runCmd = &cobra.Command{
	Use:   "run <definition>",
	Short: "Start a run and feed it a sequence of events",
	Long: `Starts a run with the given initial context, then submits the events from
the --events file in order. The resulting run state, including the event log
needed for later replay, is printed as JSON on stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contextJSON, _ := cmd.Flags().GetString("context")
		eventsPath, _ := cmd.Flags().GetString("events")
		runID, _ := cmd.Flags().GetString("run-id")

		def, err := loadDefinition(args[0])
		if err != nil {
			return err
		}

		initial := map[string]interface{}{}
		if contextJSON != "" {
			if err := json.Unmarshal([]byte(contextJSON), &initial); err != nil {
				return fmt.Errorf("parse --context: %w", err)
			}
		}

		var submissions []submission
		if eventsPath != "" {
			raw, err := os.ReadFile(eventsPath)
			if err != nil {
				return fmt.Errorf("read events file: %w", err)
			}
			if err := json.Unmarshal(raw, &submissions); err != nil {
				return fmt.Errorf("parse events file: %w", err)
			}
		}

		eng := workflow.NewEngine()
		run, err := eng.Start(def, initial, runID)
		if err != nil {
			return err
		}
		slog.Info("run started", "run_id", run.RunID, "node", run.CurrentNodeID)

		for i, s := range submissions {
			if run, err = eng.SubmitEvent(run, s.EventType, s.Payload, s.IdempotencyKey); err != nil {
				return fmt.Errorf("event %d (%s): %w", i, s.EventType, err)
			}
			slog.Info("event applied", "run_id", run.RunID,
				"event_type", string(s.EventType), "node", run.CurrentNodeID)
		}

		return printJSON(run)
	},
}

func init() {
	runCmd.Flags().String("context", "", "Initial context as a JSON object")
	runCmd.Flags().String("events", "", "JSON file with events to submit in order")
	runCmd.Flags().String("run-id", "", "Explicit run id (generated when empty)")
	rootCmd.AddCommand(runCmd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
