package lit

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/net/html"

	glerrors "github.com/conneroisu/glit/internal/errors"
	"github.com/conneroisu/glit/pkg/trusted"
)

// Part is one bound dynamic position of a rendered template.
type Part interface {
	Kind() PartKind
	// Commit pushes value into the DOM unless it equals the last committed
	// value. On error the last committed value is left as it was.
	Commit(value any) error
	// Committed returns the last successfully committed value.
	Committed() (any, bool)
}

type partBase struct {
	r         *Renderer
	committed any
	hasValue  bool
	state     any
}

func (b *partBase) Committed() (any, bool) {
	return b.committed, b.hasValue
}

func (b *partBase) unchanged(value any) bool {
	if value == NoChange {
		return true
	}
	return b.hasValue && b.r.equal(b.committed, value)
}

func (b *partBase) settle(value any) {
	b.committed = value
	b.hasValue = true
}

// sameHTML reports whether d would write what the part already shows.
func (b *partBase) sameHTML(d *unsafeHTMLDirective) bool {
	st, ok := b.state.(*unsafeHTMLState)
	return ok && b.r.equal(st.value, d.value)
}

type childMode int

const (
	modeEmpty childMode = iota
	modeText
	modeNode
	modeTemplate
	modeList
	modeHTML
)

// ChildPart owns the nodes between start and end. A nil end means the end
// of the parent.
type ChildPart struct {
	partBase
	start, end *html.Node

	mode     childMode
	text     *html.Node
	node     *html.Node
	instance *TemplateInstance
	items    []*ChildPart
}

func newChildPart(r *Renderer, start, end *html.Node) *ChildPart {
	return &ChildPart{partBase: partBase{r: r}, start: start, end: end}
}

// Kind returns ChildKind.
func (p *ChildPart) Kind() PartKind { return ChildKind }

// Commit implements Part.
func (p *ChildPart) Commit(value any) error {
	if p.unchanged(value) {
		return nil
	}
	if err := p.apply(value); err != nil {
		return err
	}
	p.settle(value)
	return nil
}

func (p *ChildPart) parent() *html.Node { return p.start.Parent }

func (p *ChildPart) apply(value any) error {
	switch v := value.(type) {
	case *passDirective:
		inner := v.resolve()
		if inner == NoChange {
			return nil
		}
		return p.apply(inner)
	case *unsafeHTMLDirective:
		return p.applyUnsafeHTML(v)
	case *Ref:
		return unsupported(v, ChildKind)
	}

	p.state = nil
	switch v := value.(type) {
	case nil:
		p.clear()
	case TemplateResult:
		return p.applyTemplate(v)
	case *html.Node:
		p.applyNode(v)
	case []byte:
		p.applyText(string(v))
	default:
		if value == Nothing {
			p.clear()
			return nil
		}
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return p.applyList(rv)
		}
		p.applyText(trusted.Stringify(value))
	}
	return nil
}

// clear removes everything between the markers.
func (p *ChildPart) clear() {
	p.r.doc.RemoveBetween(p.start, p.end)
	p.mode = modeEmpty
	p.text = nil
	p.node = nil
	p.instance = nil
	p.items = nil
}

func (p *ChildPart) insert(n *html.Node) {
	p.r.doc.InsertBefore(p.parent(), n, p.end)
}

func (p *ChildPart) applyText(s string) {
	if p.mode == modeText && p.text.Parent == p.parent() {
		p.r.doc.SetData(p.text, s)
		return
	}
	p.clear()
	p.text = p.r.doc.CreateTextNode(s)
	p.insert(p.text)
	p.mode = modeText
}

func (p *ChildPart) applyNode(n *html.Node) {
	if p.mode == modeNode && p.node == n && n.Parent == p.parent() {
		return
	}
	p.clear()
	p.insert(n)
	p.node = n
	p.mode = modeNode
}

func (p *ChildPart) applyTemplate(res TemplateResult) error {
	if res.strings == nil {
		return misuse(glerrors.ErrCodeMisuse, "zero TemplateResult; build one with Tag(...).With(...)")
	}
	t, err := p.r.cache.Get(res.strings)
	if err != nil {
		return err
	}
	if p.mode == modeTemplate && p.instance.template == t {
		return p.instance.update(res.values)
	}

	inst, err := newInstance(p.r, t)
	if err != nil {
		return err
	}
	if err := inst.update(res.values); err != nil {
		return err
	}
	p.clear()
	p.insert(inst.fragment)
	p.instance = inst
	p.mode = modeTemplate
	return nil
}

// applyList keeps one child part per item, each between its own pair of
// markers, and reuses them positionally.
func (p *ChildPart) applyList(items reflect.Value) error {
	if p.mode != modeList {
		p.clear()
		p.mode = modeList
	}

	n := items.Len()
	for i := 0; i < n; i++ {
		if i == len(p.items) {
			start := p.r.doc.CreateComment("")
			end := p.r.doc.CreateComment("")
			p.insert(start)
			p.insert(end)
			p.items = append(p.items, newChildPart(p.r, start, end))
		}
		if err := p.items[i].Commit(items.Index(i).Interface()); err != nil {
			return err
		}
	}

	if n < len(p.items) {
		from := p.start
		if n > 0 {
			from = p.items[n-1].end
		}
		p.r.doc.RemoveBetween(from, p.end)
		p.items = p.items[:n]
	}
	return nil
}

// applyUnsafeHTML parses the raw value through the innerHTML sink of a
// scratch <template> and moves the result into the part.
func (p *ChildPart) applyUnsafeHTML(d *unsafeHTMLDirective) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.value == NoChange || (p.mode == modeHTML && p.sameHTML(d)) {
		return nil
	}
	if d.empty() {
		p.clear()
		p.state = &unsafeHTMLState{value: d.value}
		return nil
	}

	scratch := p.r.doc.CreateElement("template")
	if err := p.r.guard.write(sink{typ: propertySink, el: scratch, name: "innerHTML"}, d.value); err != nil {
		return err
	}
	p.clear()
	for c := scratch.FirstChild; c != nil; {
		next := c.NextSibling
		p.insert(c)
		c = next
	}
	p.mode = modeHTML
	p.state = &unsafeHTMLState{value: d.value}
	return nil
}

// AttributePart binds the value of one attribute. An attribute with static
// text around its values, or several values, commits them together as a
// []any and writes the attribute once.
type AttributePart struct {
	partBase
	el      *html.Node
	name    string
	strings []string
	sink    bool
	sinkFor trusted.Kind
}

func newAttributePart(r *Renderer, el *html.Node, name string, strs []string) *AttributePart {
	kind, sink := trusted.SinkFor(el.Data, name)
	return &AttributePart{
		partBase: partBase{r: r},
		el:       el,
		name:     name,
		strings:  strs,
		sink:     sink,
		sinkFor:  kind,
	}
}

// Kind returns AttributeKind.
func (p *AttributePart) Kind() PartKind { return AttributeKind }

// Name returns the attribute name.
func (p *AttributePart) Name() string { return p.name }

func (p *AttributePart) single() bool {
	return singleValue(p.strings)
}

// Commit implements Part. Interpolated attributes take a []any with one
// entry per value.
func (p *AttributePart) Commit(value any) error {
	if !p.single() {
		values, ok := value.([]any)
		if !ok || len(values) != len(p.strings)-1 {
			return misuse(glerrors.ErrCodeValueCount,
				fmt.Sprintf("attribute %s needs %d values", p.name, len(p.strings)-1))
		}
		return p.commitInterpolated(values)
	}
	if p.unchanged(value) {
		return nil
	}
	if err := p.apply(value); err != nil {
		return err
	}
	p.settle(value)
	return nil
}

func (p *AttributePart) apply(value any) error {
	switch v := value.(type) {
	case *passDirective:
		inner := v.resolve()
		if inner == NoChange {
			return nil
		}
		return p.apply(inner)
	case *unsafeHTMLDirective:
		if !p.sink || p.sinkFor != trusted.KindHTML {
			return unsupported(v, AttributeKind)
		}
		if err := v.check(); err != nil {
			return err
		}
		if v.value == NoChange || p.sameHTML(v) {
			return nil
		}
		if v.empty() {
			p.r.doc.RemoveAttribute(p.el, p.name)
		} else if err := p.write(v.value); err != nil {
			return err
		}
		p.state = &unsafeHTMLState{value: v.value}
		return nil
	case *Ref:
		return unsupported(v, AttributeKind)
	}

	p.state = nil
	if value == nil || value == Nothing {
		p.r.doc.RemoveAttribute(p.el, p.name)
		return nil
	}
	return p.write(value)
}

// write hands sink values to the guard untouched.
func (p *AttributePart) write(value any) error {
	if p.sink {
		return p.r.guard.write(sink{typ: attributeSink, el: p.el, name: p.name}, value)
	}
	return p.r.doc.SetAttribute(p.el, p.name, trusted.Stringify(value))
}

func (p *AttributePart) commitInterpolated(values []any) error {
	prev, _ := p.committed.([]any)
	resolved := make([]any, len(values))
	changed := !p.hasValue
	for i, v := range values {
		if pd, ok := v.(*passDirective); ok {
			v = pd.resolve()
		}
		if v == NoChange {
			if prev != nil {
				v = prev[i]
			} else {
				v = ""
			}
		}
		if d, ok := v.(Directive); ok {
			return unsupported(d, AttributeKind)
		}
		if !changed && !p.r.equal(prev[i], v) {
			changed = true
		}
		resolved[i] = v
	}
	if !changed {
		return nil
	}

	var b strings.Builder
	b.WriteString(p.strings[0])
	for i, v := range resolved {
		if v == Nothing {
			p.r.doc.RemoveAttribute(p.el, p.name)
			p.settle(resolved)
			return nil
		}
		b.WriteString(trusted.Stringify(v))
		b.WriteString(p.strings[i+1])
	}
	if err := p.r.doc.SetAttribute(p.el, p.name, b.String()); err != nil {
		return err
	}
	p.settle(resolved)
	return nil
}

// BooleanAttributePart adds the attribute with an empty value when its
// value is truthy and removes it otherwise.
type BooleanAttributePart struct {
	partBase
	el   *html.Node
	name string
}

// Kind returns BooleanAttributeKind.
func (p *BooleanAttributePart) Kind() PartKind { return BooleanAttributeKind }

// Commit implements Part.
func (p *BooleanAttributePart) Commit(value any) error {
	if p.unchanged(value) {
		return nil
	}
	if err := p.apply(value); err != nil {
		return err
	}
	p.settle(value)
	return nil
}

func (p *BooleanAttributePart) apply(value any) error {
	switch v := value.(type) {
	case *passDirective:
		inner := v.resolve()
		if inner == NoChange {
			return nil
		}
		return p.apply(inner)
	case Directive:
		return unsupported(v, BooleanAttributeKind)
	}
	if !truthy(value) {
		p.r.doc.RemoveAttribute(p.el, p.name)
		return nil
	}
	if _, ok := trusted.SinkFor(p.el.Data, p.name); ok {
		return p.r.guard.write(sink{typ: attributeSink, el: p.el, name: p.name}, "")
	}
	return p.r.doc.SetAttribute(p.el, p.name, "")
}

func truthy(v any) bool {
	if v == nil || v == Nothing {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Struct {
		return true
	}
	return !rv.IsZero()
}

// PropertyPart assigns a DOM property. On markup sinks such as innerHTML
// it is the raw-element position: only UnsafeHTML may target it.
type PropertyPart struct {
	partBase
	el      *html.Node
	name    string
	sink    bool
	sinkFor trusted.Kind
}

func newPropertyPart(r *Renderer, el *html.Node, name string) *PropertyPart {
	kind, sink := trusted.PropertySinkFor(el.Data, name)
	return &PropertyPart{partBase: partBase{r: r}, el: el, name: name, sink: sink, sinkFor: kind}
}

// Kind returns PropertyKind.
func (p *PropertyPart) Kind() PartKind { return PropertyKind }

// Name returns the property name.
func (p *PropertyPart) Name() string { return p.name }

// Commit implements Part.
func (p *PropertyPart) Commit(value any) error {
	if p.unchanged(value) {
		return nil
	}
	if err := p.apply(value); err != nil {
		return err
	}
	p.settle(value)
	return nil
}

func (p *PropertyPart) apply(value any) error {
	switch v := value.(type) {
	case *passDirective:
		inner := v.resolve()
		if inner == NoChange {
			return nil
		}
		return p.apply(inner)
	case *unsafeHTMLDirective:
		if !p.sink || p.sinkFor != trusted.KindHTML {
			return unsupported(v, PropertyKind)
		}
		if err := v.check(); err != nil {
			return err
		}
		if v.value == NoChange || p.sameHTML(v) {
			return nil
		}
		raw := v.value
		if v.empty() {
			raw = p.r.doc.TrustedTypes().EmptyHTML()
		}
		if err := p.r.guard.write(sink{typ: propertySink, el: p.el, name: p.name}, raw); err != nil {
			return err
		}
		p.state = &unsafeHTMLState{value: v.value}
		return nil
	case *Ref:
		return unsupported(v, PropertyKind)
	}

	p.state = nil
	if p.sink {
		return misuse(glerrors.ErrCodeBareSinkValue,
			fmt.Sprintf(".%s on <%s> is a markup sink; wrap the value in UnsafeHTML", p.name, p.el.Data))
	}
	if value == Nothing {
		value = nil
	}
	return p.r.doc.SetProperty(p.el, p.name, value)
}

// ElementPart sits between the attributes of an element. Only directives
// act on it.
type ElementPart struct {
	partBase
	el *html.Node
}

// Kind returns ElementKind.
func (p *ElementPart) Kind() PartKind { return ElementKind }

// Element returns the bound element.
func (p *ElementPart) Element() *html.Node { return p.el }

// Commit implements Part.
func (p *ElementPart) Commit(value any) error {
	if p.unchanged(value) {
		return nil
	}
	if err := p.apply(value); err != nil {
		return err
	}
	p.settle(value)
	return nil
}

func (p *ElementPart) apply(value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case *passDirective:
		inner := v.resolve()
		if inner == NoChange {
			return nil
		}
		return p.apply(inner)
	case *Ref:
		v.Element = p.el
		return nil
	case *unsafeHTMLDirective:
		return unsupported(v, ElementKind)
	}
	if value == Nothing {
		return nil
	}
	return misuse(glerrors.ErrCodeMisuse,
		fmt.Sprintf("element binding on <%s> takes a directive, got %T", p.el.Data, value))
}
