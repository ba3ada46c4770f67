package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var outputFormats = []string{"table", "json", "yaml"}

// OutputFlags are the output options shared by commands that print results.
type OutputFlags struct {
	Format string
	Quiet  bool
}

// AddOutputFlags registers --format/-f and --quiet/-q on cmd.
func AddOutputFlags(cmd *cobra.Command) *OutputFlags {
	flags := &OutputFlags{}
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "table", "Output format ("+strings.Join(outputFormats, "|")+")")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Only print the summary")
	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, outputFormats)
	})
	return flags
}

// Validate checks flag values set without going through the command line.
func (f *OutputFlags) Validate() error {
	return ValidateFormatWithSuggestion(f.Format, outputFormats)
}

// ValidateFormatWithSuggestion accepts format if it is one of valid,
// case-insensitively, and otherwise suggests the closest match.
func ValidateFormatWithSuggestion(format string, valid []string) error {
	lower := strings.ToLower(format)
	for _, v := range valid {
		if lower == v {
			return nil
		}
	}
	for _, v := range valid {
		if lower != "" && (strings.HasPrefix(v, lower) || strings.HasPrefix(lower, v)) {
			return fmt.Errorf("invalid format %q, did you mean %q? (valid: %s)", format, v, strings.Join(valid, ", "))
		}
	}
	return fmt.Errorf("invalid format %q (valid: %s)", format, strings.Join(valid, ", "))
}

// AddFlagValidation makes flagName reject values the validator refuses at
// parse time.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}
