//go:build property
// +build property

package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestConfigurationProperties tests configuration loading and validation properties
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: ports inside the valid range always validate
	properties.Property("port range", prop.ForAll(
		func(port int) bool {
			cfg := &Config{
				Log:       LogConfig{Level: "info", Format: "text"},
				Inspector: InspectorConfig{Host: "localhost", Port: port},
			}
			return ValidateConfigWithDetails(cfg).Valid == (port >= 0 && port <= 65535)
		},
		gen.IntRange(-1000, 70000),
	))

	// Property: debounce validation matches its documented bounds
	properties.Property("debounce bounds", prop.ForAll(
		func(ms int64) bool {
			d := time.Duration(ms) * time.Millisecond
			result := &ValidationResult{}
			validateWatchConfigDetails(&WatchConfig{Debounce: d}, result)
			return result.HasErrors() == (d < 0 || d > maxDebounce)
		},
		gen.Int64Range(-5000, 20000),
	))

	// Property: loading always fills a default allowed origin derived from host and port
	properties.Property("default origin", prop.ForAll(
		func(port int) bool {
			v := viper.New()
			v.Set("inspector.port", port)
			cfg, err := LoadFrom(v)
			if err != nil {
				return false
			}
			want := fmt.Sprintf("http://localhost:%d", port)
			return len(cfg.Inspector.AllowedOrigins) == 1 && cfg.Inspector.AllowedOrigins[0] == want
		},
		gen.IntRange(1024, 65535),
	))

	// Property: hostnames built from safe labels are accepted
	properties.Property("safe hostnames", prop.ForAll(
		func(labels []string) bool {
			host := "localhost"
			for _, l := range labels {
				if l == "" || len(l) > 63 {
					continue
				}
				host = l + "." + host
			}
			return validateHostname(host) == nil
		},
		gen.SliceOfN(3, gen.AlphaString()),
	))

	properties.TestingRun(t)
}
