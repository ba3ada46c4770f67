package lit

import (
	"fmt"

	"golang.org/x/net/html"

	glerrors "github.com/conneroisu/glit/internal/errors"
)

// TemplateInstance is a live clone of a Template with its parts bound.
type TemplateInstance struct {
	template *Template
	fragment *html.Node
	parts    []Part
}

// newInstance clones t and binds one part per descriptor. Static sink
// attributes are written through the guard before any value is committed;
// if that fails the clone is discarded.
func newInstance(r *Renderer, t *Template) (*TemplateInstance, error) {
	fragment := r.doc.ImportNode(t.fragment, true)

	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			nodes = append(nodes, c)
			walk(c)
		}
	}
	walk(fragment)

	inst := &TemplateInstance{
		template: t,
		fragment: fragment,
		parts:    make([]Part, 0, len(t.parts)),
	}
	for _, d := range t.parts {
		if d.Index >= len(nodes) {
			return nil, glerrors.NewInternalError(glerrors.ErrCodeInternalError,
				fmt.Sprintf("descriptor points at node %d of %d", d.Index, len(nodes)), nil)
		}
		n := nodes[d.Index]
		switch d.Kind {
		case ChildKind:
			inst.parts = append(inst.parts, newChildPart(r, n, childEnd(r, fragment, n)))
		case AttributeKind:
			inst.parts = append(inst.parts, newAttributePart(r, n, d.Name, d.Strings))
		case BooleanAttributeKind:
			inst.parts = append(inst.parts, &BooleanAttributePart{partBase: partBase{r: r}, el: n, name: d.Name})
		case PropertyKind:
			inst.parts = append(inst.parts, newPropertyPart(r, n, d.Name))
		case ElementKind:
			inst.parts = append(inst.parts, &ElementPart{partBase: partBase{r: r}, el: n})
		}
	}

	for _, s := range t.sinks {
		if err := r.guard.write(sink{typ: attributeSink, el: nodes[s.Index], name: s.Name}, s.Value); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// childEnd returns the node that bounds the child part starting at marker.
// A marker that closes the fragment gets its own end comment, so the part
// stays bounded after the fragment is inserted into another part.
func childEnd(r *Renderer, fragment, marker *html.Node) *html.Node {
	if marker.NextSibling != nil || marker.Parent != fragment {
		return marker.NextSibling
	}
	end := r.doc.CreateComment("")
	fragment.AppendChild(end)
	return end
}

// Template returns the template the instance was cloned from.
func (i *TemplateInstance) Template() *Template { return i.template }

// Parts returns the bound parts in commit order.
func (i *TemplateInstance) Parts() []Part {
	out := make([]Part, len(i.parts))
	copy(out, i.parts)
	return out
}

// update commits values in descriptor order. The first failure stops the
// update; parts committed before it keep their new values.
func (i *TemplateInstance) update(values []any) error {
	if want := i.template.strings.NumValues(); len(values) != want {
		return misuse(glerrors.ErrCodeValueCount,
			fmt.Sprintf("template takes %d values, got %d", want, len(values))).
			WithTemplate(i.template.strings.String())
	}
	for k, d := range i.template.parts {
		var v any
		if d.interpolated() {
			v = append([]any(nil), values[d.ValueIndex:d.ValueIndex+d.NumValues()]...)
		} else {
			v = values[d.ValueIndex]
		}
		if err := i.parts[k].Commit(v); err != nil {
			return atPart(err, k)
		}
	}
	return nil
}
