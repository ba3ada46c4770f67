// Package dom is a small in-memory DOM over golang.org/x/net/html nodes.
//
// It stands in for the browser: it creates and clones nodes, moves them
// around, serializes markup, keeps a mutation log and, when configured with
// an enforced trusted.Factory, refuses unapproved values at injection sinks
// the way a browser with Trusted Types does. All writes to the tree must go
// through Document methods for the log and the sink checks to hold.
//
// A Document is not safe for concurrent use.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/glit/pkg/trusted"
)

// Document owns a node tree and the host policy applied to its sinks.
type Document struct {
	trustedTypes *trusted.Factory
	root         *html.Node
	body         *html.Node
	props        map[*html.Node]map[string]any
	records      []MutationRecord
	recordAll    bool
}

// Option configures a Document.
type Option func(*Document)

// WithTrustedTypes installs the host's Trusted Types factory. Sink writes are
// checked against it on every assignment.
func WithTrustedTypes(f *trusted.Factory) Option {
	return func(d *Document) { d.trustedTypes = f }
}

// WithDetachedRecords logs mutations on nodes that are not connected to the
// document as well. By default only connected nodes are logged, like a
// MutationObserver on the document.
func WithDetachedRecords() Option {
	return func(d *Document) { d.recordAll = true }
}

// NewDocument creates an empty <html><head></head><body></body></html> tree.
func NewDocument(opts ...Option) *Document {
	d := &Document{
		root:  &html.Node{Type: html.DocumentNode},
		props: make(map[*html.Node]map[string]any),
	}
	for _, opt := range opts {
		opt(d)
	}

	htmlEl := d.CreateElement("html")
	d.root.AppendChild(htmlEl)
	htmlEl.AppendChild(d.CreateElement("head"))
	d.body = d.CreateElement("body")
	htmlEl.AppendChild(d.body)
	return d
}

// TrustedTypes returns the installed factory, or nil.
func (d *Document) TrustedTypes() *trusted.Factory {
	return d.trustedTypes
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the <body> element.
func (d *Document) Body() *html.Node { return d.body }

// CreateElement creates a detached element.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// CreateTextNode creates a detached text node.
func (d *Document) CreateTextNode(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}

// CreateComment creates a detached comment node.
func (d *Document) CreateComment(data string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: data}
}

// CreateFragment creates an empty document fragment. Inserting a fragment
// moves its children and leaves it empty.
func (d *Document) CreateFragment() *html.Node {
	return &html.Node{Type: html.DocumentNode}
}

// IsFragment reports whether n is a fragment created by CreateFragment or
// ImportNode of one.
func IsFragment(n *html.Node) bool {
	return n != nil && n.Type == html.DocumentNode
}

// ImportNode clones n. Expando properties are not copied.
func (d *Document) ImportNode(n *html.Node, deep bool) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		clone.Attr = make([]html.Attribute, len(n.Attr))
		copy(clone.Attr, n.Attr)
	}
	if deep {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			clone.AppendChild(d.ImportNode(c, true))
		}
	}
	return clone
}

// Contains reports whether n is the document or connected to it.
func (d *Document) Contains(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

// InnerHTML serializes the children of n.
func (d *Document) InnerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

// OuterHTML serializes n itself.
func (d *Document) OuterHTML(n *html.Node) string {
	var b strings.Builder
	_ = html.Render(&b, n)
	return b.String()
}

// TextContent concatenates the text of all descendant text nodes.
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			} else {
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

// ParseFragment parses markup in the context of the given element and
// returns the detached nodes. It is an inert parse: no sink is involved, and
// it must only be fed markup the caller built itself.
func (d *Document) ParseFragment(context *html.Node, markup string) ([]*html.Node, error) {
	if context == nil || context.Type != html.ElementNode {
		context = d.CreateElement("template")
	}
	return html.ParseFragment(strings.NewReader(markup), context)
}
