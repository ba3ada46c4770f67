package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/glit/internal/config"
	"github.com/conneroisu/glit/internal/scenario"
	"github.com/conneroisu/glit/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch <scenario.yml>",
	Aliases: []string{"w"},
	Short:   "Re-run a scenario whenever its file changes",
	Long: `Play a scenario, then play it again every time the file is saved.
Bursts of file events are debounced into a single run.

Examples:
  glit watch demo.yml                  # Watch with the configured debounce
  glit watch demo.yml --debounce 1s    # Wait longer for editors to settle`,
	Args:    cobra.ExactArgs(1),
	PreRunE: bindWatchFlags,
	RunE:    runWatch,
}

var watchFlags *OutputFlags

func init() {
	rootCmd.AddCommand(watchCmd)
	watchFlags = AddOutputFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", config.DefaultDebounce, "Delay before a burst of changes triggers a run")
}

func bindWatchFlags(cmd *cobra.Command, args []string) error {
	return viper.BindPFlag("watch.debounce", cmd.Flags().Lookup("debounce"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := watchFlags.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	runner := scenario.NewRunner(logger, scenario.WithDefaultCSP(cfg.TrustedTypes.CSP))

	fmt.Fprintf(out, "Watching %s (Press Ctrl+C to stop)\n", args[0])
	return watcher.Watch(cmd.Context(), args[0], cfg.Watch.Debounce, runner, logger,
		func(result *scenario.Result, err error) {
			fmt.Fprintf(out, "\n[%s] %s\n", time.Now().Format("15:04:05"), args[0])
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				return
			}
			if werr := writeResults(out, watchFlags.Format, watchFlags.Quiet, []*scenario.Result{result}); werr != nil {
				logger.Error(cmd.Context(), werr, "Failed to print results")
			}
		})
}
