package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/conneroisu/glit/internal/logging"
	"github.com/conneroisu/glit/pkg/trusted"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

const maxDebounce = 10 * time.Second

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateLogConfigDetails(&config.Log, result)
	validateTrustedTypesConfigDetails(&config.TrustedTypes, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateInspectorConfigDetails(&config.Inspector, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"Use one of debug, info, warn, error"},
		})
	}
	if config.Format != "text" && config.Format != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.format",
			Value:       config.Format,
			Message:     fmt.Sprintf("unknown log format %q", config.Format),
			Suggestions: []string{"Use text or json"},
		})
	}
}

func validateTrustedTypesConfigDetails(config *TrustedTypesConfig, result *ValidationResult) {
	if config.CSP == "" {
		return
	}
	f, err := trusted.FromCSP(config.CSP)
	if err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "trusted_types.csp",
			Value:   config.CSP,
			Message: err.Error(),
			Suggestions: []string{
				"Use require-trusted-types-for 'script'",
				"List policy names in a trusted-types directive",
			},
		})
		return
	}
	if !f.Enforced() {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "trusted_types.csp",
			Value:       config.CSP,
			Message:     "policy names are restricted but sinks are not enforced",
			Suggestions: []string{"Add require-trusted-types-for 'script'"},
		})
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 || config.Debounce > maxDebounce {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "watch.debounce",
			Value:       config.Debounce,
			Message:     fmt.Sprintf("debounce %s is not in range 0-%s", config.Debounce, maxDebounce),
			Suggestions: []string{"Values between 50ms and 500ms work well"},
		})
	}
}

func validateInspectorConfigDetails(config *InspectorConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "inspector.port",
			Value:   config.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			Suggestions: []string{
				"Use a port between 1024-65535 for non-privileged access",
			},
		})
	}

	if err := validateHostname(config.Host); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "inspector.host",
			Value:   config.Host,
			Message: err.Error(),
		})
	} else if config.Host == "0.0.0.0" || config.Host == "::" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "inspector.host",
			Value:       config.Host,
			Message:     "inspector listens on all interfaces",
			Suggestions: []string{"Use localhost unless the inspector must be reachable remotely"},
		})
	}

	for _, origin := range config.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "inspector.allowed_origins",
				Value:       origin,
				Message:     fmt.Sprintf("origin %q is not an http(s) origin", origin),
				Suggestions: []string{"Use scheme://host[:port], e.g. http://localhost:7357"},
			})
		}
	}
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}
