package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/glit/internal/scenario"
	"github.com/conneroisu/glit/pkg/lit"
)

var parseCmd = &cobra.Command{
	Use:   "parse <scenario.yml>",
	Short: "Show the parts of each template in a scenario",
	Long: `Parse the templates declared by a scenario and print the part each
interpolation binds to: its kind, the node it sits on, the attribute or
property name and the template values it consumes.

Examples:
  glit parse demo.yml                   # Every template as a table
  glit parse demo.yml -t greeting       # One template
  glit parse demo.yml --markup -f yaml  # Include the parsed skeleton`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var (
	parseFlags    *OutputFlags
	parseTemplate string
	parseMarkup   bool
)

func init() {
	rootCmd.AddCommand(parseCmd)
	parseFlags = AddOutputFlags(parseCmd)
	parseCmd.Flags().StringVarP(&parseTemplate, "template", "t", "", "Only parse the named template")
	parseCmd.Flags().BoolVar(&parseMarkup, "markup", false, "Include the template skeleton")
}

type partOutput struct {
	Kind       string   `json:"kind" yaml:"kind"`
	Node       int      `json:"node" yaml:"node"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	ValueIndex int      `json:"value_index" yaml:"value_index"`
	Values     int      `json:"values" yaml:"values"`
	Strings    []string `json:"strings,omitempty" yaml:"strings,omitempty"`
}

type templateOutput struct {
	Name   string       `json:"name" yaml:"name"`
	Parts  []partOutput `json:"parts,omitempty" yaml:"parts,omitempty"`
	Sinks  []string     `json:"static_sinks,omitempty" yaml:"static_sinks,omitempty"`
	Markup string       `json:"markup,omitempty" yaml:"markup,omitempty"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
	Code   string       `json:"code,omitempty" yaml:"code,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	if err := parseFlags.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	names := s.TemplateNames()
	if parseTemplate != "" {
		if _, ok := s.Template(parseTemplate); !ok {
			return fmt.Errorf("unknown template %q (declared: %s)", parseTemplate, strings.Join(names, ", "))
		}
		names = []string{parseTemplate}
	}

	templates, failed := describeTemplates(s, names, parseMarkup)
	if err := writeTemplates(cmd.OutOrStdout(), parseFlags.Format, parseFlags.Quiet, templates); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d template(s) failed to parse", failed)
	}
	return nil
}

func describeTemplates(s *scenario.Scenario, names []string, withMarkup bool) ([]templateOutput, int) {
	cache := lit.NewTemplateCache()
	title := cases.Title(language.English)

	out := make([]templateOutput, 0, len(names))
	failed := 0
	for _, name := range names {
		strs, _ := s.Template(name)
		to := templateOutput{Name: name}

		tmpl, err := cache.Get(strs)
		if err != nil {
			to.Error = err.Error()
			to.Code = lit.ErrorCode(err)
			failed++
			out = append(out, to)
			continue
		}

		for _, p := range tmpl.Parts() {
			po := partOutput{
				Kind:       title.String(p.Kind.String()),
				Node:       p.Index,
				Name:       p.Name,
				ValueIndex: p.ValueIndex,
				Values:     p.NumValues(),
			}
			if p.Kind == lit.AttributeKind && !singleAttributeValue(p.Strings) {
				po.Strings = p.Strings
			}
			to.Parts = append(to.Parts, po)
		}
		for _, sink := range tmpl.StaticSinks() {
			to.Sinks = append(to.Sinks, fmt.Sprintf("%d %s", sink.Index, sink.Name))
		}
		if withMarkup {
			to.Markup = tmpl.Markup()
		}
		out = append(out, to)
	}
	return out, failed
}

func singleAttributeValue(statics []string) bool {
	return len(statics) == 2 && statics[0] == "" && statics[1] == ""
}

func writeTemplates(w io.Writer, format string, quiet bool, templates []templateOutput) error {
	if quiet {
		parts := 0
		for _, t := range templates {
			parts += len(t.Parts)
		}
		_, err := fmt.Fprintf(w, "%d template(s), %d part(s)\n", len(templates), parts)
		return err
	}

	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(templates)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(templates)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TEMPLATE\tVALUE\tKIND\tNODE\tNAME\tSTRINGS")
		for _, t := range templates {
			if t.Error != "" {
				fmt.Fprintf(tw, "%s\t-\tERROR %s\t-\t-\t%s\n", t.Name, t.Code, t.Error)
				continue
			}
			for _, p := range t.Parts {
				values := fmt.Sprintf("%d", p.ValueIndex)
				if p.Values > 1 {
					values = fmt.Sprintf("%d-%d", p.ValueIndex, p.ValueIndex+p.Values-1)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", t.Name, values, p.Kind, p.Node, p.Name, formatStrings(p.Strings))
			}
			for _, sink := range t.Sinks {
				fmt.Fprintf(tw, "%s\t-\tStatic Sink\t%s\t\n", t.Name, strings.Replace(sink, " ", "\t", 1))
			}
			if t.Markup != "" {
				fmt.Fprintf(tw, "%s\t-\tMarkup\t-\t-\t%s\n", t.Name, t.Markup)
			}
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func formatStrings(statics []string) string {
	if len(statics) == 0 {
		return ""
	}
	quoted := make([]string, len(statics))
	for i, s := range statics {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, " ${} ")
}
