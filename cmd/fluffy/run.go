package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single pipeline cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		deps, err := buildRuntime(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to build pipeline: %w", err)
		}
		defer deps.cleanup()

		stats, err := deps.pipeline.RunCycle(cmd.Context())
		if err != nil {
			return fmt.Errorf("cycle failed: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
