package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/glit/internal/scenario"
)

var runCmd = &cobra.Command{
	Use:     "run <scenario.yml>...",
	Aliases: []string{"r"},
	Short:   "Play scenarios and print every frame",
	Long: `Play one or more scenario files and print the frame each step produced:
the container markup, the DOM mutations the render caused and any error.

The command fails when a step did not meet its expectation.

Examples:
  glit run demo.yml                 # Print frames as a table
  glit run demo.yml -f json         # Output as JSON
  glit run a.yml b.yml -q           # Only print the summary`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var runFlags *OutputFlags

func init() {
	rootCmd.AddCommand(runCmd)
	runFlags = AddOutputFlags(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := runFlags.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	runner := scenario.NewRunner(logger, scenario.WithDefaultCSP(cfg.TrustedTypes.CSP))
	results := make([]*scenario.Result, 0, len(args))
	for _, path := range args {
		s, err := scenario.Load(path)
		if err != nil {
			return err
		}
		result, err := runner.Run(cmd.Context(), s)
		if err != nil {
			return fmt.Errorf("failed to run %s: %w", path, err)
		}
		results = append(results, result)
	}

	if err := writeResults(cmd.OutOrStdout(), runFlags.Format, runFlags.Quiet, results); err != nil {
		return err
	}
	if n := failedSteps(results); n > 0 {
		return fmt.Errorf("%d step(s) failed", n)
	}
	return nil
}
