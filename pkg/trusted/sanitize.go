package trusted

import (
	"github.com/microcosm-cc/bluemonday"
)

// SanitizingPolicy registers a policy whose CreateHTML runs input through a
// bluemonday sanitizer. A nil sanitizer uses bluemonday.UGCPolicy.
//
// This is host-side tooling. Nothing in the rendering engine sanitizes; the
// host decides what it is willing to approve.
func SanitizingPolicy(f *Factory, name string, sanitizer *bluemonday.Policy) (*Policy, error) {
	if sanitizer == nil {
		sanitizer = bluemonday.UGCPolicy()
	}
	return f.CreatePolicy(name, PolicyOptions{
		CreateHTML: func(input string, _ ...any) (string, error) {
			return sanitizer.Sanitize(input), nil
		},
	})
}

// PassthroughPolicy registers a policy that approves every input unchanged,
// the shape most test suites install.
func PassthroughPolicy(f *Factory, name string) (*Policy, error) {
	identity := func(input string, _ ...any) (string, error) { return input, nil }
	return f.CreatePolicy(name, PolicyOptions{
		CreateHTML:      identity,
		CreateScript:    identity,
		CreateScriptURL: identity,
	})
}
