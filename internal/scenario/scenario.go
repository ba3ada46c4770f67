// Package scenario loads render scenarios from YAML and plays them against
// an in-memory document.
//
// A scenario names a set of templates, an optional Content-Security-Policy
// and the Trusted Types policies the page registers, then lists render
// steps. Each step renders one template with concrete values into a
// container and may state the markup or the error code it expects. The
// runner turns every step into a Frame describing what changed.
//
//	name: greeting
//	csp: "require-trusted-types-for 'script'; trusted-types app"
//	policies:
//	  - name: app
//	    kind: sanitize
//	templates:
//	  hello:
//	    markup: "<p>Hello, ${}!</p>"
//	steps:
//	  - template: hello
//	    values: [world]
//	    expect: "<p>Hello, world!</p>"
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	glerrors "github.com/conneroisu/glit/internal/errors"
	"github.com/conneroisu/glit/pkg/lit"
	"github.com/conneroisu/glit/pkg/trusted"
)

// Placeholder separates static fragments in a template's markup form.
const Placeholder = "${}"

// DefaultTarget is the container steps render into when they name none.
const DefaultTarget = "main"

// Policy kinds a scenario may register.
const (
	PolicyPassthrough = "passthrough"
	PolicySanitize    = "sanitize"
	PolicyReject      = "reject"
)

// File is the YAML form of a scenario.
type File struct {
	Name      string                  `yaml:"name"`
	CSP       string                  `yaml:"csp,omitempty"`
	Policies  []PolicySpec            `yaml:"policies,omitempty"`
	Templates map[string]TemplateSpec `yaml:"templates"`
	Steps     []Step                  `yaml:"steps"`
}

// PolicySpec declares a Trusted Types policy created before the first step.
type PolicySpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// TemplateSpec is a template given either as markup with ${} placeholders
// or as its literal list of static fragments.
type TemplateSpec struct {
	Markup  string   `yaml:"markup,omitempty"`
	Strings []string `yaml:"strings,omitempty"`
}

// Fragments returns the static fragments of the template.
func (t TemplateSpec) Fragments() []string {
	if len(t.Strings) > 0 {
		return t.Strings
	}
	return strings.Split(t.Markup, Placeholder)
}

// Step is one render, or one clear when Clear is set.
type Step struct {
	Name        string  `yaml:"name,omitempty"`
	Target      string  `yaml:"target,omitempty"`
	Template    string  `yaml:"template,omitempty"`
	Values      []Value `yaml:"values,omitempty"`
	Clear       bool    `yaml:"clear,omitempty"`
	Expect      *string `yaml:"expect,omitempty"`
	ExpectError string  `yaml:"expect_error,omitempty"`
}

// Scenario is a validated scenario whose templates have been tagged. Each
// template name maps to one *lit.Strings for the life of the Scenario, so
// repeated steps of a template share a cache entry like a call site does.
type Scenario struct {
	File
	Path    string
	strings map[string]*lit.Strings
}

// Template returns the tagged strings of the named template.
func (s *Scenario) Template(name string) (*lit.Strings, bool) {
	strs, ok := s.strings[name]
	return strs, ok
}

// TemplateNames returns the template names in sorted order.
func (s *Scenario) TemplateNames() []string {
	names := make([]string, 0, len(s.strings))
	for name := range s.strings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads and validates the scenario at path.
func Load(path string) (*Scenario, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, glerrors.NewIOError(glerrors.ErrCodeFileNotFound, "failed to read scenario", err).
			WithContext("path", cleanPath)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cleanPath, err)
	}
	s.Path = cleanPath
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(cleanPath), filepath.Ext(cleanPath))
	}
	return s, nil
}

// Parse decodes and validates scenario YAML. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, glerrors.NewConfigError(glerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse scenario YAML: %v", err))
	}
	if err := f.validate(); err != nil {
		return nil, err
	}

	s := &Scenario{File: f, strings: make(map[string]*lit.Strings, len(f.Templates))}
	for name, spec := range f.Templates {
		s.strings[name] = lit.Tag(spec.Fragments()...)
	}
	return s, nil
}

func (f *File) validate() error {
	invalid := func(format string, args ...any) error {
		return glerrors.NewConfigError(glerrors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...))
	}

	if f.CSP != "" {
		if _, err := trusted.FromCSP(f.CSP); err != nil {
			return invalid("csp: %v", err)
		}
	}

	policies := make(map[string]bool, len(f.Policies))
	for i, p := range f.Policies {
		if p.Name == "" {
			return invalid("policies[%d]: name is required", i)
		}
		switch p.Kind {
		case PolicyPassthrough, PolicySanitize, PolicyReject:
		default:
			return invalid("policies[%d]: unknown kind %q", i, p.Kind)
		}
		policies[p.Name] = true
	}

	for name, t := range f.Templates {
		if t.Markup != "" && len(t.Strings) > 0 {
			return invalid("templates.%s: markup and strings are mutually exclusive", name)
		}
		if t.Markup == "" && len(t.Strings) == 0 {
			return invalid("templates.%s: markup or strings is required", name)
		}
	}

	if len(f.Steps) == 0 {
		return invalid("scenario has no steps")
	}
	for i, step := range f.Steps {
		if step.Clear {
			if step.Template != "" || len(step.Values) > 0 {
				return invalid("steps[%d]: a clear step takes no template or values", i)
			}
			continue
		}
		if _, ok := f.Templates[step.Template]; !ok {
			return invalid("steps[%d]: unknown template %q", i, step.Template)
		}
		for _, v := range step.Values {
			if err := v.check(f.Templates, policies); err != nil {
				return invalid("steps[%d]: %v", i, err)
			}
		}
	}
	return nil
}

func (s Step) target() string {
	if s.Target == "" {
		return DefaultTarget
	}
	return s.Target
}
