package lit

import (
	"regexp"

	"golang.org/x/net/html"

	glerrors "github.com/conneroisu/glit/internal/errors"
	"github.com/conneroisu/glit/pkg/dom"
)

// Renderer renders template results into containers of one Document. It
// remembers the root part of every container it has rendered into.
//
// A Renderer is not safe for concurrent use; its cache may be shared.
type Renderer struct {
	doc   *dom.Document
	cache *TemplateCache
	equal EqualFunc
	guard sinkGuard
	roots map[*html.Node]*ChildPart
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCache uses c instead of DefaultCache.
func WithCache(c *TemplateCache) Option {
	return func(r *Renderer) { r.cache = c }
}

// WithEqual replaces the rule parts use to skip unchanged values.
func WithEqual(eq EqualFunc) Option {
	return func(r *Renderer) { r.equal = eq }
}

// NewRenderer returns a renderer writing into doc.
func NewRenderer(doc *dom.Document, opts ...Option) *Renderer {
	r := &Renderer{
		doc:   doc,
		cache: DefaultCache,
		equal: DefaultEqual,
		guard: sinkGuard{doc: doc},
		roots: make(map[*html.Node]*ChildPart),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Document returns the document the renderer writes into.
func (r *Renderer) Document() *dom.Document { return r.doc }

// Cache returns the template cache in use.
func (r *Renderer) Cache() *TemplateCache { return r.cache }

// Render shows result in container. The first render replaces the
// container's children; later renders of the same call site only commit
// the values that changed, and a different call site replaces the previous
// subtree.
//
// Errors are returned as they happen. Parts committed before the failing
// one keep their new values.
func (r *Renderer) Render(result TemplateResult, container *html.Node) error {
	if container == nil {
		return glerrors.NewDirectiveError(glerrors.ErrCodeMisuse, "render into a nil container")
	}
	root, ok := r.roots[container]
	if !ok {
		r.doc.RemoveChildren(container)
		marker := r.doc.CreateComment("")
		r.doc.AppendChild(container, marker)
		root = newChildPart(r, marker, nil)
		r.roots[container] = root
	}
	return root.Commit(result)
}

// Instance returns the template instance currently shown in container, or
// nil.
func (r *Renderer) Instance(container *html.Node) *TemplateInstance {
	root, ok := r.roots[container]
	if !ok || root.mode != modeTemplate {
		return nil
	}
	return root.instance
}

// Clear removes everything the renderer put into container and forgets it.
func (r *Renderer) Clear(container *html.Node) {
	root, ok := r.roots[container]
	if !ok {
		return
	}
	root.clear()
	r.doc.RemoveChild(container, root.start)
	delete(r.roots, container)
}

var partMarkers = regexp.MustCompile(`<!--(glit\$\d+\$)?-->`)

// StripMarkers removes the empty comments child parts use as anchors from
// serialized markup, leaving what a reader of the page would see.
func StripMarkers(markup string) string {
	return partMarkers.ReplaceAllString(markup, "")
}
