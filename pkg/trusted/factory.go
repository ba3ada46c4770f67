package trusted

import (
	"fmt"
	"sync"
)

// DefaultPolicyName is the policy consulted when a plain string reaches an
// enforced sink.
const DefaultPolicyName = "default"

// PolicyFunc converts input into an approved string. args carries the
// trusted type name and sink name when a default policy is invoked.
type PolicyFunc func(input string, args ...any) (string, error)

// PolicyOptions holds the per-kind callbacks of a policy. A nil callback
// makes the policy refuse that kind.
type PolicyOptions struct {
	CreateHTML      PolicyFunc
	CreateScript    PolicyFunc
	CreateScriptURL PolicyFunc
}

// Policy mints trusted values for its Factory.
type Policy struct {
	name    string
	options PolicyOptions
	factory *Factory
}

// Name returns the policy name.
func (p *Policy) Name() string { return p.name }

// CreateHTML runs the policy's HTML callback.
func (p *Policy) CreateHTML(input string, args ...any) (HTML, error) {
	s, err := p.run(p.options.CreateHTML, KindHTML, input, args)
	if err != nil {
		return HTML{}, err
	}
	return HTML{value: s, factory: p.factory}, nil
}

// CreateScript runs the policy's script callback.
func (p *Policy) CreateScript(input string, args ...any) (Script, error) {
	s, err := p.run(p.options.CreateScript, KindScript, input, args)
	if err != nil {
		return Script{}, err
	}
	return Script{value: s, factory: p.factory}, nil
}

// CreateScriptURL runs the policy's script URL callback.
func (p *Policy) CreateScriptURL(input string, args ...any) (ScriptURL, error) {
	s, err := p.run(p.options.CreateScriptURL, KindScriptURL, input, args)
	if err != nil {
		return ScriptURL{}, err
	}
	return ScriptURL{value: s, factory: p.factory}, nil
}

// MustCreateHTML is CreateHTML for policies known to implement HTML, such as
// test fixtures.
func (p *Policy) MustCreateHTML(input string) HTML {
	h, err := p.CreateHTML(input)
	if err != nil {
		panic(err)
	}
	return h
}

func (p *Policy) run(fn PolicyFunc, kind Kind, input string, args []any) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("%w: %q cannot create %s", ErrNoPolicyFunc, p.name, kind)
	}
	return fn(input, args...)
}

// Factory is the host's trustedTypes object.
type Factory struct {
	enforced        bool
	restricted      bool
	allowed         map[string]bool
	allowDuplicates bool

	mu            sync.Mutex
	policies      map[string]*Policy
	defaultPolicy *Policy
}

// Option configures a Factory.
type Option func(*Factory)

// Enforce makes injection sinks require trusted values, like
// require-trusted-types-for 'script'.
func Enforce() Option {
	return func(f *Factory) { f.enforced = true }
}

// AllowPolicies restricts policy creation to the given names, like the
// trusted-types CSP directive. Calling it with no names forbids all policies.
func AllowPolicies(names ...string) Option {
	return func(f *Factory) {
		f.restricted = true
		for _, n := range names {
			f.allowed[n] = true
		}
	}
}

// AllowDuplicates permits creating several policies with the same name.
func AllowDuplicates() Option {
	return func(f *Factory) { f.allowDuplicates = true }
}

// NewFactory creates a factory. Without options it neither enforces nor
// restricts policy names.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		allowed:  make(map[string]bool),
		policies: make(map[string]*Policy),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enforced reports whether sinks require trusted values.
func (f *Factory) Enforced() bool {
	return f != nil && f.enforced
}

// CreatePolicy registers a named policy.
func (f *Factory) CreatePolicy(name string, options PolicyOptions) (*Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.restricted && !f.allowed[name] {
		return nil, fmt.Errorf("%w: %q", ErrPolicyNotAllowed, name)
	}
	if _, exists := f.policies[name]; exists && !f.allowDuplicates {
		return nil, fmt.Errorf("%w: %q", ErrPolicyExists, name)
	}
	if name == DefaultPolicyName && f.defaultPolicy != nil {
		return nil, fmt.Errorf("%w: %q", ErrPolicyExists, name)
	}

	p := &Policy{name: name, options: options, factory: f}
	f.policies[name] = p
	if name == DefaultPolicyName {
		f.defaultPolicy = p
	}
	return p, nil
}

// DefaultPolicy returns the policy named "default", or nil.
func (f *Factory) DefaultPolicy() *Policy {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaultPolicy
}

// EmptyHTML returns an approved empty string.
func (f *Factory) EmptyHTML() HTML {
	return HTML{factory: f}
}

// IsHTML reports whether v is HTML minted by one of this factory's policies.
func (f *Factory) IsHTML(v any) bool {
	h, ok := v.(HTML)
	return ok && f != nil && h.factory == f
}

// IsScript reports whether v is Script minted by this factory.
func (f *Factory) IsScript(v any) bool {
	s, ok := v.(Script)
	return ok && f != nil && s.factory == f
}

// IsScriptURL reports whether v is ScriptURL minted by this factory.
func (f *Factory) IsScriptURL(v any) bool {
	u, ok := v.(ScriptURL)
	return ok && f != nil && u.factory == f
}

func (f *Factory) is(kind Kind, v any) bool {
	switch kind {
	case KindHTML:
		return f.IsHTML(v)
	case KindScript:
		return f.IsScript(v)
	case KindScriptURL:
		return f.IsScriptURL(v)
	}
	return false
}

// Coerce is the native check performed when value is assigned to sink,
// which requires kind. It returns the string to store.
//
// Without enforcement every value is stringified. With enforcement, a
// trusted value of the right kind passes, anything else is stringified and
// handed to the default policy, and without a default policy the write fails
// with ErrPolicyViolation.
func (f *Factory) Coerce(kind Kind, value any, sink string) (string, error) {
	if !f.Enforced() || f.is(kind, value) {
		return Stringify(value), nil
	}

	dp := f.DefaultPolicy()
	if dp == nil {
		return "", fmt.Errorf("%w: %s requires %s", ErrPolicyViolation, sink, kind)
	}

	input := Stringify(value)
	var (
		out any
		err error
	)
	switch kind {
	case KindHTML:
		out, err = dp.CreateHTML(input, kind.String(), sink)
	case KindScript:
		out, err = dp.CreateScript(input, kind.String(), sink)
	case KindScriptURL:
		out, err = dp.CreateScriptURL(input, kind.String(), sink)
	}
	if err != nil {
		return "", fmt.Errorf("%w: default policy refused %s: %v", ErrPolicyViolation, sink, err)
	}
	return Stringify(out), nil
}
