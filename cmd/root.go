// Package cmd provides the glit command-line interface.
//
// Configuration is read from several sources, highest priority first:
//  1. Command-line flags (--config, --log-level, --port, ...)
//  2. GLIT_CONFIG_FILE: path to a configuration file
//  3. GLIT_<SECTION>_<OPTION> environment variables, e.g. GLIT_INSPECTOR_PORT
//  4. .glit.yml in the current directory
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/glit/internal/config"
	"github.com/conneroisu/glit/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "glit",
	Short: "Developer tooling for the glit template engine",
	Long: `glit renders tagged HTML templates into an emulated DOM, updating only the
parts whose values changed and routing markup sinks through Trusted Types.

The CLI plays scenario files: YAML documents that declare templates and a
sequence of renders, and records every resulting frame.

Quick Start:
  glit run demo.yml              Play a scenario and print its frames
  glit watch demo.yml            Re-run a scenario whenever it changes
  glit inspect demo.yml          Serve a live inspector page for a scenario
  glit parse demo.yml            Show the parts of each template`,
	SilenceUsage: true,
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .glit.yml, can also use GLIT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("GLIT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".glit")
	}

	viper.SetEnvPrefix("GLIT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and builds a logger writing to the
// command's error stream.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	return cfg, logging.NewLogger(lc), nil
}
