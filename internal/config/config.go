// Package config provides configuration management for the glit CLI using
// Viper for loading from files, environment variables and command-line
// flags.
//
// Settings come from .glit.yml (or the file named by --config or
// GLIT_CONFIG_FILE) and GLIT_ prefixed environment variables. They cover
// logging, the Trusted Types policy applied to scenario documents, the
// watcher debounce and the inspector server.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/glit/internal/logging"
	"github.com/conneroisu/glit/pkg/trusted"
)

type Config struct {
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
	TrustedTypes TrustedTypesConfig `mapstructure:"trusted_types" yaml:"trusted_types"`
	Watch        WatchConfig        `mapstructure:"watch" yaml:"watch"`
	Inspector    InspectorConfig    `mapstructure:"inspector" yaml:"inspector"`
	Scenarios    []string           `mapstructure:"-" yaml:"-"` // CLI arguments, not from config file
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type TrustedTypesConfig struct {
	// CSP is a Content-Security-Policy header value applied to scenario
	// documents that do not declare their own.
	CSP string `mapstructure:"csp" yaml:"csp"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type InspectorConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

const (
	DefaultDebounce      = 150 * time.Millisecond
	DefaultInspectorHost = "localhost"
	DefaultInspectorPort = 7357
)

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
	if !v.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}
	if config.Inspector.Host == "" {
		config.Inspector.Host = DefaultInspectorHost
	}
	if !v.IsSet("inspector.port") {
		config.Inspector.Port = DefaultInspectorPort
	}

	// Handle allowed origins set via viper (workaround for viper slice handling)
	if v.IsSet("inspector.allowed_origins") && len(config.Inspector.AllowedOrigins) == 0 {
		config.Inspector.AllowedOrigins = v.GetStringSlice("inspector.allowed_origins")
	}
	if len(config.Inspector.AllowedOrigins) == 0 {
		config.Inspector.AllowedOrigins = []string{
			fmt.Sprintf("http://%s:%d", config.Inspector.Host, config.Inspector.Port),
		}
	}

	result := ValidateConfigWithDetails(&config)
	if result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", &result.Errors[0])
	}

	return &config, nil
}

// LoggerConfig converts the log section into a logging configuration.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = level
	}
	lc.Format = c.Log.Format
	return lc
}

// Factory builds the Trusted Types factory described by the CSP, or nil
// when no CSP is configured.
func (c *TrustedTypesConfig) Factory() (*trusted.Factory, error) {
	if c.CSP == "" {
		return nil, nil
	}
	return trusted.FromCSP(c.CSP)
}

// Address returns host:port of the inspector.
func (c *InspectorConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
