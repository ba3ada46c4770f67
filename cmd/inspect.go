package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/glit/internal/config"
	glerrors "github.com/conneroisu/glit/internal/errors"
	"github.com/conneroisu/glit/internal/inspector"
	"github.com/conneroisu/glit/internal/scenario"
	"github.com/conneroisu/glit/internal/watcher"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <scenario.yml>",
	Aliases: []string{"i"},
	Short:   "Serve a live inspector for a scenario",
	Long: `Serve an HTML page listing every frame of a scenario, re-running it on
each change and streaming new frames to the page over a websocket.
Prometheus metrics are served at /metrics.

Examples:
  glit inspect demo.yml                # Serve on the configured address
  glit inspect demo.yml --port 9000    # Serve on another port`,
	Args:    cobra.ExactArgs(1),
	PreRunE: bindInspectFlags,
	RunE:    runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("host", config.DefaultInspectorHost, "Host to bind to")
	inspectCmd.Flags().IntP("port", "p", config.DefaultInspectorPort, "Port to serve on")
	inspectCmd.Flags().Duration("debounce", config.DefaultDebounce, "Delay before a burst of changes triggers a run")
}

// bindInspectFlags binds at run time since watch binds the same debounce key.
func bindInspectFlags(cmd *cobra.Command, args []string) error {
	for key, name := range map[string]string{
		"inspector.host": "host",
		"inspector.port": "port",
		"watch.debounce": "debounce",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := args[0]

	server := inspector.New(cfg.Inspector, "glit "+filepath.Base(path), logger)
	runner := scenario.NewRunner(logger,
		scenario.WithDefaultCSP(cfg.TrustedTypes.CSP),
		scenario.WithFrameHandler(server.FrameHandler()),
	)

	errHandler := glerrors.NewErrorHandler(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(ctx)
		cancel()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Inspector running at http://%s (Press Ctrl+C to stop)\n", cfg.Inspector.Address())

	watchErr := watcher.Watch(ctx, path, cfg.Watch.Debounce, runner, logger,
		func(result *scenario.Result, err error) {
			if err != nil {
				errHandler.Handle(ctx, err)
				return
			}
			logger.Info(ctx, "Scenario run", "path", path, "frames", len(result.Frames), "passed", result.Passed())
		})
	cancel()

	if err := <-serveErr; err != nil {
		return fmt.Errorf("inspector server failed: %w", err)
	}
	return watchErr
}
