package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/glit/internal/scenario"
)

type resultOutput struct {
	Scenario string        `json:"scenario" yaml:"scenario"`
	Passed   bool          `json:"passed" yaml:"passed"`
	Frames   []frameOutput `json:"frames" yaml:"frames"`
}

type frameOutput struct {
	ID        string   `json:"id" yaml:"id"`
	Step      int      `json:"step" yaml:"step"`
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Target    string   `json:"target" yaml:"target"`
	Markup    string   `json:"markup" yaml:"markup"`
	Mutations []string `json:"mutations" yaml:"mutations"`
	Refs      []string `json:"refs,omitempty" yaml:"refs,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Code      string   `json:"code,omitempty" yaml:"code,omitempty"`
	Passed    bool     `json:"passed" yaml:"passed"`
	Duration  string   `json:"duration" yaml:"duration"`
}

func toOutput(results []*scenario.Result) []resultOutput {
	out := make([]resultOutput, 0, len(results))
	for _, r := range results {
		ro := resultOutput{Scenario: r.Scenario, Passed: r.Passed(), Frames: make([]frameOutput, 0, len(r.Frames))}
		for _, f := range r.Frames {
			muts := make([]string, 0, len(f.Mutations))
			for _, m := range f.Mutations {
				muts = append(muts, describeMutation(m))
			}
			ro.Frames = append(ro.Frames, frameOutput{
				ID:        f.ID,
				Step:      f.Step,
				Name:      f.Name,
				Target:    f.Target,
				Markup:    f.Markup,
				Mutations: muts,
				Refs:      f.Refs,
				Error:     f.Error,
				Code:      f.Code,
				Passed:    f.Passed,
				Duration:  f.Duration.String(),
			})
		}
		out = append(out, ro)
	}
	return out
}

func describeMutation(m scenario.Mutation) string {
	s := m.Type + " " + m.Target
	if m.Name != "" {
		s += " " + m.Name
	}
	return s
}

// writeResults prints results in format. Quiet output keeps only the
// summary line.
func writeResults(w io.Writer, format string, quiet bool, results []*scenario.Result) error {
	if quiet {
		return writeSummary(w, results)
	}
	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(toOutput(results))
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(toOutput(results))
	case "table", "":
		if err := writeTable(w, results); err != nil {
			return err
		}
		return writeSummary(w, results)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeTable(w io.Writer, results []*scenario.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tSTEP\tTARGET\tRESULT\tMUTATIONS\tMARKUP")
	for _, r := range results {
		for _, f := range r.Frames {
			step := fmt.Sprintf("%d", f.Step)
			if f.Name != "" {
				step += " " + f.Name
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.Scenario, step, f.Target, frameResult(f), len(f.Mutations), f.Markup)
		}
	}
	return tw.Flush()
}

func frameResult(f scenario.Frame) string {
	switch {
	case f.Error == "" && f.Passed:
		return "ok"
	case f.Passed:
		return f.Code + " (expected)"
	case f.Code != "":
		return "FAIL " + f.Code
	default:
		return "FAIL"
	}
}

func writeSummary(w io.Writer, results []*scenario.Result) error {
	steps, failed := 0, 0
	for _, r := range results {
		for _, f := range r.Frames {
			steps++
			if !f.Passed {
				failed++
			}
		}
	}
	_, err := fmt.Fprintf(w, "%d scenario(s), %d step(s), %d failed\n", len(results), steps, failed)
	return err
}

func failedSteps(results []*scenario.Result) int {
	n := 0
	for _, r := range results {
		for _, f := range r.Frames {
			if !f.Passed {
				n++
			}
		}
	}
	return n
}
