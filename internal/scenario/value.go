package scenario

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/glit/pkg/lit"
	"github.com/conneroisu/glit/pkg/trusted"
)

type valueKind int

const (
	kindScalar valueKind = iota
	kindList
	kindNothing
	kindNoChange
	kindTrusted
	kindUnsafeHTML
	kindPass
	kindTemplate
	kindRef
)

// Value is one binding value of a step. Scalars and sequences stand for
// themselves; single-purpose mappings select the engine's special values:
//
//	{nothing: true}                         lit.Nothing
//	{no_change: true}                       lit.NoChange
//	{trusted: "<b>x</b>", policy: app}      trusted.HTML minted by a policy
//	{unsafe_html: <value>}                  lit.UnsafeHTML
//	{pass: <value>}                         lit.Pass
//	{template: name, values: [...]}         a nested template result
//	{ref: true}                             a *lit.Ref for element bindings
type Value struct {
	kind   valueKind
	scalar any
	items  []Value
	inner  *Value
	name   string
	markup string
	line   int
}

var mappingKeys = map[string][]string{
	"nothing":     nil,
	"no_change":   nil,
	"trusted":     {"policy"},
	"unsafe_html": nil,
	"pass":        nil,
	"template":    {"values"},
	"ref":         nil,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	v.line = n.Line
	switch n.Kind {
	case yaml.AliasNode:
		return v.UnmarshalYAML(n.Alias)
	case yaml.ScalarNode:
		v.kind = kindScalar
		if n.Tag == "!!null" {
			return nil
		}
		return n.Decode(&v.scalar)
	case yaml.SequenceNode:
		v.kind = kindList
		v.items = make([]Value, len(n.Content))
		for i, c := range n.Content {
			if err := v.items[i].UnmarshalYAML(c); err != nil {
				return err
			}
		}
		return nil
	case yaml.MappingNode:
		return v.unmarshalMapping(n)
	default:
		return fmt.Errorf("line %d: unsupported value", n.Line)
	}
}

func (v *Value) unmarshalMapping(n *yaml.Node) error {
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		fields[n.Content[i].Value] = n.Content[i+1]
	}

	form := ""
	for key := range fields {
		if _, ok := mappingKeys[key]; ok {
			if form != "" {
				return fmt.Errorf("line %d: value mixes %q and %q", n.Line, form, key)
			}
			form = key
		}
	}
	if form == "" {
		return fmt.Errorf("line %d: mapping value needs one of %s", n.Line, formNames())
	}
	for key := range fields {
		if key != form && !contains(mappingKeys[form], key) {
			return fmt.Errorf("line %d: unexpected key %q in %s value", n.Line, key, form)
		}
	}

	node := fields[form]
	switch form {
	case "nothing", "no_change", "ref":
		var on bool
		if err := node.Decode(&on); err != nil || !on {
			return fmt.Errorf("line %d: %s must be true", node.Line, form)
		}
	}
	switch form {
	case "nothing":
		v.kind = kindNothing
	case "no_change":
		v.kind = kindNoChange
	case "ref":
		v.kind = kindRef
	case "trusted":
		v.kind = kindTrusted
		v.markup = node.Value
		v.name = trusted.DefaultPolicyName
		if p, ok := fields["policy"]; ok {
			v.name = p.Value
		}
	case "unsafe_html", "pass":
		v.kind = kindUnsafeHTML
		if form == "pass" {
			v.kind = kindPass
		}
		v.inner = &Value{}
		if err := v.inner.UnmarshalYAML(node); err != nil {
			return err
		}
	case "template":
		v.kind = kindTemplate
		v.name = node.Value
		if values, ok := fields["values"]; ok {
			if values.Kind != yaml.SequenceNode {
				return fmt.Errorf("line %d: template values must be a sequence", values.Line)
			}
			v.items = make([]Value, len(values.Content))
			for i, c := range values.Content {
				if err := v.items[i].UnmarshalYAML(c); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func formNames() string {
	names := make([]string, 0, len(mappingKeys))
	for k := range mappingKeys {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// check verifies that the templates and policies v refers to exist.
func (v Value) check(templates map[string]TemplateSpec, policies map[string]bool) error {
	switch v.kind {
	case kindTrusted:
		if !policies[v.name] {
			return fmt.Errorf("line %d: undeclared policy %q", v.line, v.name)
		}
	case kindUnsafeHTML, kindPass:
		return v.inner.check(templates, policies)
	case kindTemplate:
		if _, ok := templates[v.name]; !ok {
			return fmt.Errorf("line %d: unknown template %q", v.line, v.name)
		}
		fallthrough
	case kindList:
		for _, item := range v.items {
			if err := item.check(templates, policies); err != nil {
				return err
			}
		}
	}
	return nil
}

// env is what value resolution needs from a run.
type env struct {
	scenario *Scenario
	policies map[string]*trusted.Policy
	refs     []*lit.Ref
}

func (e *env) resolveAll(values []Value) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		r, err := e.resolve(v)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// resolve builds the Go value a binding receives. Directive values are
// created fresh on every call.
func (e *env) resolve(v Value) (any, error) {
	switch v.kind {
	case kindScalar:
		return v.scalar, nil
	case kindList:
		return e.resolveAll(v.items)
	case kindNothing:
		return lit.Nothing, nil
	case kindNoChange:
		return lit.NoChange, nil
	case kindRef:
		ref := &lit.Ref{}
		e.refs = append(e.refs, ref)
		return ref, nil
	case kindTrusted:
		p, ok := e.policies[v.name]
		if !ok {
			return nil, fmt.Errorf("line %d: policy %q was not created", v.line, v.name)
		}
		return p.CreateHTML(v.markup)
	case kindUnsafeHTML, kindPass:
		inner, err := e.resolve(*v.inner)
		if err != nil {
			return nil, err
		}
		if v.kind == kindPass {
			return lit.Pass(inner), nil
		}
		return lit.UnsafeHTML(inner), nil
	case kindTemplate:
		strs, _ := e.scenario.Template(v.name)
		values, err := e.resolveAll(v.items)
		if err != nil {
			return nil, err
		}
		return strs.With(values...), nil
	default:
		return nil, fmt.Errorf("line %d: unknown value kind", v.line)
	}
}
