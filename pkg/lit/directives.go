package lit

import (
	"fmt"

	"golang.org/x/net/html"

	glerrors "github.com/conneroisu/glit/internal/errors"
	"github.com/conneroisu/glit/pkg/trusted"
)

// Directive is a value that controls how its part commits it. The set is
// closed: Pass, UnsafeHTML and *Ref. Every part's commit switches over all
// of them.
type Directive interface {
	isDirective()
}

type passDirective struct {
	value any
}

// Pass wraps a value that is evaluated at commit time and then committed
// through the normal dispatch, directives included. A func() any is called
// to produce the value.
func Pass(value any) Directive {
	return &passDirective{value: value}
}

func (*passDirective) isDirective() {}

func (d *passDirective) resolve() any {
	if fn, ok := d.value.(func() any); ok {
		return fn()
	}
	return d.value
}

type unsafeHTMLDirective struct {
	value any
}

// UnsafeHTML renders value as markup instead of text. value must be a
// string, a trusted.HTML, nil or Nothing. It binds to child positions and
// to markup sinks (.innerHTML, iframe srcdoc). The value reaches the sink
// exactly as given, so under an enforced policy only trusted.HTML gets
// through.
func UnsafeHTML(value any) Directive {
	return &unsafeHTMLDirective{value: value}
}

func (*unsafeHTMLDirective) isDirective() {}

// check rejects values that are not markup.
func (d *unsafeHTMLDirective) check() error {
	switch v := d.value.(type) {
	case nil, string, trusted.HTML:
		return nil
	default:
		if v == Nothing || v == NoChange {
			return nil
		}
		return misuse(glerrors.ErrCodeMisuse,
			fmt.Sprintf("UnsafeHTML takes a string or trusted.HTML, got %T", d.value))
	}
}

func (d *unsafeHTMLDirective) empty() bool {
	return d.value == nil || d.value == Nothing
}

// unsafeHTMLState is the per-part memory of the last raw value written.
type unsafeHTMLState struct {
	value any
}

// Ref captures the element an element binding sits on:
//
//	var input lit.Ref
//	tpl.With(&input) // <input ${&input}>
type Ref struct {
	Element *html.Node
}

func (*Ref) isDirective() {}

func unsupported(d Directive, kind PartKind) error {
	var name string
	switch d.(type) {
	case *unsafeHTMLDirective:
		name = "UnsafeHTML"
	case *Ref:
		name = "Ref"
	default:
		name = fmt.Sprintf("%T", d)
	}
	return misuse(glerrors.ErrCodeMisuse, fmt.Sprintf("%s cannot be used in a %s binding", name, kind))
}
