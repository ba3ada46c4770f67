package dom

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/glit/pkg/trusted"
)

// MutationType classifies a MutationRecord.
type MutationType string

const (
	MutationChildList     MutationType = "childList"
	MutationCharacterData MutationType = "characterData"
	MutationAttributes    MutationType = "attributes"
	MutationProperty      MutationType = "property"
)

// MutationRecord describes one change to the tree.
type MutationRecord struct {
	Type     MutationType
	Target   *html.Node
	Name     string
	OldValue string
}

func (d *Document) record(t MutationType, target *html.Node, name, old string) {
	if !d.recordAll && !d.Contains(target) {
		return
	}
	d.records = append(d.records, MutationRecord{Type: t, Target: target, Name: name, OldValue: old})
}

// Records returns the mutation log without clearing it.
func (d *Document) Records() []MutationRecord {
	out := make([]MutationRecord, len(d.records))
	copy(out, d.records)
	return out
}

// TakeRecords returns and clears the mutation log.
func (d *Document) TakeRecords() []MutationRecord {
	out := d.records
	d.records = nil
	return out
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// InsertBefore inserts node into parent before ref. A nil ref appends.
// Fragments move their children. An attached node is moved.
func (d *Document) InsertBefore(parent, node, ref *html.Node) {
	if IsFragment(node) {
		for c := node.FirstChild; c != nil; {
			next := c.NextSibling
			node.RemoveChild(c)
			parent.InsertBefore(c, ref)
			c = next
		}
		d.record(MutationChildList, parent, "", "")
		return
	}
	detach(node)
	parent.InsertBefore(node, ref)
	d.record(MutationChildList, parent, "", "")
}

// AppendChild appends node to parent.
func (d *Document) AppendChild(parent, node *html.Node) {
	d.InsertBefore(parent, node, nil)
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) {
	d.record(MutationChildList, parent, "", "")
	parent.RemoveChild(child)
}

// RemoveBetween removes the siblings strictly between start and end. A nil
// end removes everything after start.
func (d *Document) RemoveBetween(start, end *html.Node) {
	parent := start.Parent
	if parent == nil || start.NextSibling == end {
		return
	}
	d.record(MutationChildList, parent, "", "")
	for c := start.NextSibling; c != nil && c != end; {
		next := c.NextSibling
		parent.RemoveChild(c)
		c = next
	}
}

// RemoveChildren empties n.
func (d *Document) RemoveChildren(n *html.Node) {
	if n.FirstChild == nil {
		return
	}
	d.record(MutationChildList, n, "", "")
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// SetData replaces the data of a text or comment node.
func (d *Document) SetData(n *html.Node, data string) {
	if n.Data == data {
		return
	}
	old := n.Data
	n.Data = data
	d.record(MutationCharacterData, n, "", old)
}

// GetAttribute returns the attribute value and whether it is present.
func GetAttribute(el *html.Node, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute assigns an attribute. Injection sinks (see
// trusted.SinkFor) run the host's native Trusted Types check on value
// before anything is stored; other attributes store the stringified value.
func (d *Document) SetAttribute(el *html.Node, name string, value any) error {
	var s string
	if kind, ok := trusted.SinkFor(el.Data, name); ok {
		var err error
		s, err = d.trustedTypes.Coerce(kind, value, trusted.SinkName(el.Data, name))
		if err != nil {
			return &TypeError{Sink: trusted.SinkName(el.Data, name), Err: err}
		}
	} else {
		s = trusted.Stringify(value)
	}
	d.setAttr(el, name, s)
	return nil
}

func (d *Document) setAttr(el *html.Node, name, value string) {
	for i, a := range el.Attr {
		if a.Namespace == "" && a.Key == name {
			el.Attr[i].Val = value
			d.record(MutationAttributes, el, name, a.Val)
			return
		}
	}
	el.Attr = append(el.Attr, html.Attribute{Key: name, Val: value})
	d.record(MutationAttributes, el, name, "")
}

// RemoveAttribute deletes an attribute if present.
func (d *Document) RemoveAttribute(el *html.Node, name string) {
	for i, a := range el.Attr {
		if a.Namespace == "" && a.Key == name {
			el.Attr = append(el.Attr[:i], el.Attr[i+1:]...)
			d.record(MutationAttributes, el, name, a.Val)
			return
		}
	}
}

// SetProperty assigns a DOM property. innerHTML, textContent and srcdoc
// act on the tree; any other name is stored as an expando property.
// Injection sinks (see trusted.PropertySinkFor) run the native Trusted
// Types check first, so an unapproved value never touches the tree.
func (d *Document) SetProperty(el *html.Node, name string, value any) error {
	if kind, ok := trusted.PropertySinkFor(el.Data, name); ok {
		sink := trusted.SinkName(el.Data, name)
		s, err := d.trustedTypes.Coerce(kind, value, sink)
		if err != nil {
			return &TypeError{Sink: sink, Err: err}
		}
		value = s
	}

	switch name {
	case "innerHTML":
		nodes, err := d.ParseFragment(el, trusted.Stringify(value))
		if err != nil {
			return fmt.Errorf("dom: parsing innerHTML: %w", err)
		}
		d.RemoveChildren(el)
		for _, n := range nodes {
			el.AppendChild(n)
		}
		d.record(MutationChildList, el, "", "")
	case "textContent":
		d.RemoveChildren(el)
		if s := trusted.Stringify(value); s != "" {
			el.AppendChild(d.CreateTextNode(s))
			d.record(MutationChildList, el, "", "")
		}
	case "srcdoc":
		d.setAttr(el, "srcdoc", trusted.Stringify(value))
	default:
		if d.props[el] == nil {
			d.props[el] = make(map[string]any)
		}
		d.props[el][name] = value
		d.record(MutationProperty, el, name, "")
	}
	return nil
}

// Property reads a DOM property previously set with SetProperty, or the
// live value for innerHTML, textContent and srcdoc.
func (d *Document) Property(el *html.Node, name string) (any, bool) {
	switch name {
	case "innerHTML":
		return d.InnerHTML(el), true
	case "textContent":
		return TextContent(el), true
	case "srcdoc":
		v, ok := GetAttribute(el, "srcdoc")
		return v, ok
	}
	v, ok := d.props[el][name]
	return v, ok
}

// TypeError is the failure of a native sink assignment, mirroring the
// TypeError a browser throws under an enforced Trusted Types policy.
type TypeError struct {
	Sink string
	Err  error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("TypeError: failed to set %s: %v", e.Sink, e.Err)
}

func (e *TypeError) Unwrap() error { return e.Err }
