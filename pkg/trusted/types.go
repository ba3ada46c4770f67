// Package trusted emulates the host side of Trusted Types.
//
// A Factory plays the role of the browser's trustedTypes object: it mints
// policies, and only those policies can produce HTML, Script and ScriptURL
// values. When the factory is enforced, writes to injection sinks accept
// nothing else. Coerce is the native check a DOM implementation runs at the
// moment of assignment.
package trusted

import (
	"errors"
	"fmt"
)

// Kind names the trusted type a sink requires.
type Kind int

const (
	KindHTML Kind = iota
	KindScript
	KindScriptURL
)

// String returns the Trusted Types interface name for the kind.
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "TrustedHTML"
	case KindScript:
		return "TrustedScript"
	case KindScriptURL:
		return "TrustedScriptURL"
	default:
		return "unknown"
	}
}

var (
	// ErrPolicyViolation is returned when an enforced sink receives a value
	// that no policy approved.
	ErrPolicyViolation = errors.New("trusted types: policy violation")
	// ErrPolicyNotAllowed is returned when the policy name is not in the
	// allow-list.
	ErrPolicyNotAllowed = errors.New("trusted types: policy name not allowed")
	// ErrPolicyExists is returned when a policy name is reused without
	// 'allow-duplicates'.
	ErrPolicyExists = errors.New("trusted types: policy already exists")
	// ErrNoPolicyFunc is returned when a policy lacks the callback for the
	// requested kind.
	ErrNoPolicyFunc = errors.New("trusted types: policy does not implement this kind")
)

// HTML is markup approved by a policy. The zero value was not produced by a
// policy and is never accepted by an enforced sink.
type HTML struct {
	value   string
	factory *Factory
}

// String returns the approved markup.
func (h HTML) String() string { return h.value }

// Script is script text approved by a policy.
type Script struct {
	value   string
	factory *Factory
}

// String returns the approved script text.
func (s Script) String() string { return s.value }

// ScriptURL is a script URL approved by a policy.
type ScriptURL struct {
	value   string
	factory *Factory
}

// String returns the approved URL.
func (u ScriptURL) String() string { return u.value }

// Stringify converts any sink value to the string the DOM would store.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case HTML:
		return t.value
	case Script:
		return t.value
	case ScriptURL:
		return t.value
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
