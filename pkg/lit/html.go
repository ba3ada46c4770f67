// Package lit renders template literals into a dom.Document and keeps them
// up to date.
//
// A template is a sequence of static fragments with a dynamic value between
// each pair. The fragments are declared once per call site with Tag and
// identified by pointer, so every render of the same call site reuses one
// parsed Template:
//
//	var greeting = lit.Tag("<p>Hello, ", "!</p>")
//
//	func view(name string) lit.TemplateResult {
//		return greeting.With(name)
//	}
//
// Renderer.Render clones the parsed Template into a container the first time
// and afterwards only pushes changed values through the Parts bound to each
// dynamic position.
//
// Writes to injection sinks (innerHTML, iframe srcdoc, event handler
// attributes) go through a single guard that hands the caller's value to the
// document untouched. When the document enforces Trusted Types, only values
// minted by a policy get through.
package lit

import "strings"

// Strings is the static fragment sequence of one template call site.
// Identity, not content, decides whether two results share a Template.
type Strings struct {
	fragments []string
}

// Tag declares a template call site. Keep the result in a package-level
// variable: two calls with equal fragments are two distinct templates.
func Tag(fragments ...string) *Strings {
	if len(fragments) == 0 {
		fragments = []string{""}
	}
	s := &Strings{fragments: make([]string, len(fragments))}
	copy(s.fragments, fragments)
	return s
}

// Fragments returns a copy of the static fragments.
func (s *Strings) Fragments() []string {
	out := make([]string, len(s.fragments))
	copy(out, s.fragments)
	return out
}

// NumValues returns how many dynamic values the template expects.
func (s *Strings) NumValues() int {
	return len(s.fragments) - 1
}

// String shows the template with ${} in place of each value.
func (s *Strings) String() string {
	return strings.Join(s.fragments, "${}")
}

// With builds a TemplateResult for this call site.
func (s *Strings) With(values ...any) TemplateResult {
	return HTML(s, values...)
}

// TemplateResult pairs a call site with the values of one evaluation. It is
// inert: nothing is parsed until it is rendered.
type TemplateResult struct {
	strings *Strings
	values  []any
}

// HTML is the tagged template entry point.
func HTML(s *Strings, values ...any) TemplateResult {
	v := make([]any, len(values))
	copy(v, values)
	return TemplateResult{strings: s, values: v}
}

// Strings returns the call site of the result.
func (r TemplateResult) Strings() *Strings { return r.strings }

// Values returns a copy of the dynamic values.
func (r TemplateResult) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

type sentinel struct{ name string }

func (s *sentinel) String() string { return s.name }

var (
	// NoChange tells a part to keep whatever it currently shows.
	NoChange any = &sentinel{"noChange"}
	// Nothing clears a child part and removes an attribute.
	Nothing any = &sentinel{"nothing"}
)
