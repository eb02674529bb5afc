package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/procflow/procflow/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition>",
	Short: "Check a workflow definition for well-formedness",
	Long: `Runs the JSON schema check and the structural checks (single start node,
resolvable references, reachability) and reports every violation found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := loadDefinition(args[0])
		if err != nil {
			var verr *schema.ValidationError
			var derr *schema.DefinitionError
			if errors.As(err, &verr) || errors.As(err, &derr) {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return err
		}
		fmt.Printf("%s %s is valid: %d nodes, %d transitions\n",
			def.Name, def.Version, len(def.Nodes), len(def.Transitions))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
