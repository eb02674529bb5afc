package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/procflow/procflow/schema"
	"github.com/procflow/procflow/types"
)

var rootCmd = &cobra.Command{
	Use:   "procflow",
	Short: "Procflow validates, runs and replays declarative workflows",
	Long: `Procflow executes workflow definitions (JSON or YAML graphs of start,
task, approval, decision and end nodes) and reconstructs runs from their
recorded event logs.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		setupLogging(level)
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

// setupLogging routes JSON logs to stderr; stdout is reserved for command
// output so results stay pipeable.
func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(handler))
}

// loadDefinition parses a definition file, choosing the YAML or JSON front
// end by extension.
func loadDefinition(path string) (*types.WorkflowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return schema.ParseWorkflowYAML(raw)
	default:
		return schema.ParseWorkflow(raw)
	}
}
