package lit

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	glerrors "github.com/conneroisu/glit/internal/errors"
	"github.com/conneroisu/glit/pkg/trusted"
)

// PartKind classifies a dynamic position.
type PartKind int

const (
	// ChildKind sits between nodes; it holds text, nodes, nested templates
	// or raw markup.
	ChildKind PartKind = iota
	// AttributeKind is one or more values inside an attribute value.
	AttributeKind
	// BooleanAttributeKind is a ?name=${v} binding.
	BooleanAttributeKind
	// PropertyKind is a .name=${v} binding. On markup sinks such as
	// .innerHTML it only accepts directives.
	PropertyKind
	// ElementKind is a bare ${v} between the attributes of a tag.
	ElementKind
)

// String returns the lowercase name of the kind.
func (k PartKind) String() string {
	switch k {
	case ChildKind:
		return "child"
	case AttributeKind:
		return "attribute"
	case BooleanAttributeKind:
		return "boolean attribute"
	case PropertyKind:
		return "property"
	case ElementKind:
		return "element"
	default:
		return "unknown"
	}
}

// PartDescriptor locates one binding inside a Template.
type PartDescriptor struct {
	Kind PartKind
	// Index is the pre-order position of the bound node in the fragment.
	Index int
	// Name is the attribute or property name. Property names keep their case.
	Name string
	// Strings are the static pieces around the values of an attribute
	// binding; always two empty strings for single-value bindings.
	Strings []string
	// ValueIndex is the first template value the binding consumes.
	ValueIndex int
}

// NumValues returns how many template values the binding consumes.
func (d PartDescriptor) NumValues() int {
	if d.Kind == AttributeKind {
		return len(d.Strings) - 1
	}
	return 1
}

// interpolated reports whether the binding is an attribute value with
// static text around its values or more than one value.
func (d PartDescriptor) interpolated() bool {
	return d.Kind == AttributeKind && !singleValue(d.Strings)
}

func singleValue(statics []string) bool {
	return len(statics) == 2 && statics[0] == "" && statics[1] == ""
}

// StaticSink is a literal sink attribute lifted out of the skeleton so it
// is written through the guard on every instantiation. The skeleton keeps
// the attribute in place with an empty value.
type StaticSink struct {
	Index int
	Name  string
	Value string
}

// Template is the parsed, immutable form of one call site.
type Template struct {
	strings  *Strings
	fragment *html.Node
	parts    []PartDescriptor
	sinks    []StaticSink
}

// Strings returns the call site the template was parsed from.
func (t *Template) Strings() *Strings { return t.strings }

// Parts returns the binding descriptors in value order.
func (t *Template) Parts() []PartDescriptor {
	out := make([]PartDescriptor, len(t.parts))
	copy(out, t.parts)
	return out
}

// StaticSinks returns the sink attributes lifted from the skeleton.
func (t *Template) StaticSinks() []StaticSink {
	out := make([]StaticSink, len(t.sinks))
	copy(out, t.sinks)
	return out
}

// Markup serializes the skeleton with its anchors.
func (t *Template) Markup() string {
	var b strings.Builder
	for c := t.fragment.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

const (
	boundAttrSuffix = "$glit$"
	elementPrefix   = "glit$el$"
)

var markerPattern = regexp.MustCompile(`glit\$(\d+)\$`)

func valueMarker(n int) string { return "glit$" + strconv.Itoa(n) + "$" }

var rawTextElements = map[string]bool{
	"script": true, "style": true, "textarea": true, "title": true,
	"iframe": true, "noembed": true, "noframes": true, "xmp": true,
}

type scanState int

const (
	stText scanState = iota
	stTagOpen
	stEndTagOpen
	stTagName
	stInTag
	stAttrName
	stAfterAttrName
	stBeforeAttrValue
	stAttrValueUnquoted
	stAttrValueSingle
	stAttrValueDouble
	stComment
	stBogusComment
	stRawText
)

// scanner tracks just enough of the HTML tokenizer state to classify the
// position of each expression and emit the marked-up source.
type scanner struct {
	out         []byte
	state       scanState
	tag         string
	endTag      bool
	rawTag      string
	attr        string
	attrNameEnd int
	attrBound   bool
	attrNames   map[int]string
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func (s *scanner) endOfTag() {
	if !s.endTag && rawTextElements[s.tag] {
		s.state = stRawText
		s.rawTag = s.tag
		return
	}
	s.state = stText
}

func (s *scanner) startAttr(c byte) {
	s.attr = string(c)
	s.attrBound = false
	s.state = stAttrName
}

func (s *scanner) fragment(frag string) {
	for i := 0; i < len(frag); i++ {
		c := frag[i]
		switch s.state {
		case stText:
			if c == '<' {
				s.state = stTagOpen
			}
		case stTagOpen:
			switch {
			case isLetter(c):
				s.state = stTagName
				s.tag = string(lower(c))
				s.endTag = false
			case c == '/':
				s.state = stEndTagOpen
			case c == '!' && strings.HasPrefix(frag[i+1:], "--"):
				s.out = append(s.out, "!--"...)
				i += 2
				s.state = stComment
				continue
			case c == '!' || c == '?':
				s.state = stBogusComment
			case c != '<':
				s.state = stText
			}
		case stEndTagOpen:
			switch {
			case isLetter(c):
				s.state = stTagName
				s.tag = string(lower(c))
				s.endTag = true
			case c == '>':
				s.state = stText
			default:
				s.state = stBogusComment
			}
		case stTagName:
			switch {
			case isSpace(c) || c == '/':
				s.state = stInTag
			case c == '>':
				s.endOfTag()
			default:
				s.tag += string(lower(c))
			}
		case stInTag, stAfterAttrName:
			switch {
			case isSpace(c) || c == '/':
				if c == '/' {
					s.state = stInTag
				}
			case c == '=' && s.state == stAfterAttrName:
				s.state = stBeforeAttrValue
			case c == '>':
				s.endOfTag()
			default:
				s.startAttr(c)
			}
		case stAttrName:
			switch {
			case isSpace(c):
				s.state = stAfterAttrName
			case c == '=':
				s.state = stBeforeAttrValue
			case c == '/':
				s.state = stInTag
			case c == '>':
				s.endOfTag()
			default:
				s.attr += string(c)
			}
		case stBeforeAttrValue:
			switch {
			case isSpace(c):
			case c == '"':
				s.state = stAttrValueDouble
			case c == '\'':
				s.state = stAttrValueSingle
			case c == '>':
				s.endOfTag()
			default:
				s.state = stAttrValueUnquoted
			}
		case stAttrValueUnquoted:
			switch {
			case isSpace(c):
				s.state = stInTag
			case c == '>':
				s.endOfTag()
			}
		case stAttrValueDouble:
			if c == '"' {
				s.state = stInTag
			}
		case stAttrValueSingle:
			if c == '\'' {
				s.state = stInTag
			}
		case stComment:
			if strings.HasPrefix(frag[i:], "-->") {
				s.out = append(s.out, "-->"...)
				i += 2
				s.state = stText
				continue
			}
		case stBogusComment:
			if c == '>' {
				s.state = stText
			}
		case stRawText:
			closing := "</" + s.rawTag
			if c == '<' && len(frag)-i >= len(closing) && strings.EqualFold(frag[i:i+len(closing)], closing) {
				next := i + len(closing)
				if next == len(frag) || !isLetter(frag[next]) {
					s.out = append(s.out, frag[i:next]...)
					i = next - 1
					s.state = stTagName
					s.tag = s.rawTag
					s.endTag = true
					continue
				}
			}
		}
		s.out = append(s.out, c)
		if s.state == stAttrName {
			s.attrNameEnd = len(s.out)
		}
	}
}

func (s *scanner) expression(n int) error {
	switch s.state {
	case stText:
		s.out = append(s.out, "<!--"+valueMarker(n)+"-->"...)
	case stTagOpen, stEndTagOpen, stTagName:
		return glerrors.NewParseError(glerrors.ErrCodeTagName, "expression in a tag name")
	case stAttrName:
		return glerrors.NewParseError(glerrors.ErrCodeAttrName, "expression in an attribute name")
	case stInTag, stAfterAttrName:
		s.out = append(s.out, " "+elementPrefix+strconv.Itoa(n)+" "...)
		s.state = stInTag
	case stBeforeAttrValue, stAttrValueUnquoted, stAttrValueSingle, stAttrValueDouble:
		if !s.attrBound {
			rest := append([]byte(boundAttrSuffix), s.out[s.attrNameEnd:]...)
			s.out = append(s.out[:s.attrNameEnd], rest...)
			s.attrBound = true
			s.attrNames[n] = s.attr
		}
		if s.state == stBeforeAttrValue {
			s.state = stAttrValueUnquoted
		}
		s.out = append(s.out, valueMarker(n)...)
	case stComment, stBogusComment:
		return glerrors.NewParseError(glerrors.ErrCodeComment, "expression inside a comment")
	case stRawText:
		return glerrors.NewParseError(glerrors.ErrCodeRawText,
			fmt.Sprintf("expression inside <%s>, whose content is raw text", s.rawTag))
	}
	return nil
}

func (s *scanner) finish() error {
	switch s.state {
	case stEndTagOpen, stTagName, stInTag, stAttrName, stAfterAttrName,
		stBeforeAttrValue, stAttrValueUnquoted, stAttrValueSingle, stAttrValueDouble:
		return glerrors.NewParseError(glerrors.ErrCodeUnterminated,
			fmt.Sprintf("unterminated <%s> tag at end of template", s.tag))
	}
	return nil
}

// parseTemplate turns a call site into a Template. It looks only at the
// static fragments, never at values.
func parseTemplate(strs *Strings) (*Template, error) {
	t, err := parseFragments(strs)
	if err != nil {
		var ge *glerrors.GlitError
		if errors.As(err, &ge) && ge.Template == "" {
			ge.WithTemplate(strs.String())
		}
		return nil, err
	}
	return t, nil
}

func parseFragments(strs *Strings) (*Template, error) {
	sc := &scanner{attrNames: make(map[int]string)}
	for i, frag := range strs.fragments {
		sc.fragment(frag)
		if i < len(strs.fragments)-1 {
			if err := sc.expression(i); err != nil {
				return nil, err
			}
		}
	}
	if err := sc.finish(); err != nil {
		return nil, err
	}

	context := &html.Node{Type: html.ElementNode, Data: "template", DataAtom: atom.Template}
	nodes, err := html.ParseFragment(strings.NewReader(string(sc.out)), context)
	if err != nil {
		return nil, glerrors.NewInternalError(glerrors.ErrCodeInternalError, "parsing template markup", err)
	}
	fragment := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		fragment.AppendChild(n)
	}

	b := &binder{
		attrNames: sc.attrNames,
		seen:      make([]bool, strs.NumValues()),
	}
	index := -1
	var walk func(*html.Node) error
	walk = func(n *html.Node) error {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			index++
			if err := b.node(c, index); err != nil {
				return err
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(fragment); err != nil {
		return nil, err
	}
	for v, ok := range b.seen {
		if !ok {
			return nil, glerrors.NewParseError(glerrors.ErrCodeMarkerCount,
				fmt.Sprintf("value %d has no binding in the parsed markup", v))
		}
	}

	sort.SliceStable(b.parts, func(i, j int) bool {
		return b.parts[i].ValueIndex < b.parts[j].ValueIndex
	})
	return &Template{
		strings:  strs,
		fragment: fragment,
		parts:    b.parts,
		sinks:    b.sinks,
	}, nil
}

// binder turns markers found in the parsed fragment into descriptors and
// strips them from the skeleton.
type binder struct {
	attrNames map[int]string
	seen      []bool
	parts     []PartDescriptor
	sinks     []StaticSink
}

func (b *binder) markSeen(v int) error {
	if v < 0 || v >= len(b.seen) || b.seen[v] {
		return glerrors.NewParseError(glerrors.ErrCodeMarkerCount,
			fmt.Sprintf("value %d is bound more than once", v))
	}
	b.seen[v] = true
	return nil
}

func (b *binder) node(n *html.Node, index int) error {
	switch n.Type {
	case html.CommentNode:
		m := markerPattern.FindStringSubmatch(n.Data)
		if m == nil || m[0] != n.Data {
			return nil
		}
		v, _ := strconv.Atoi(m[1])
		if err := b.markSeen(v); err != nil {
			return err
		}
		n.Data = ""
		b.parts = append(b.parts, PartDescriptor{
			Kind:       ChildKind,
			Index:      index,
			Strings:    []string{"", ""},
			ValueIndex: v,
		})
	case html.ElementNode:
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			switch {
			case strings.HasSuffix(a.Key, boundAttrSuffix):
				d, err := b.attribute(n, index, a)
				if err != nil {
					return err
				}
				b.parts = append(b.parts, d)
			case strings.HasPrefix(a.Key, elementPrefix):
				v, err := strconv.Atoi(a.Key[len(elementPrefix):])
				if err != nil {
					return glerrors.NewParseError(glerrors.ErrCodeMarkerCount, "malformed element marker "+a.Key)
				}
				if err := b.markSeen(v); err != nil {
					return err
				}
				b.parts = append(b.parts, PartDescriptor{
					Kind:       ElementKind,
					Index:      index,
					Strings:    []string{"", ""},
					ValueIndex: v,
				})
			default:
				if _, ok := trusted.SinkFor(n.Data, a.Key); ok && a.Namespace == "" {
					b.sinks = append(b.sinks, StaticSink{Index: index, Name: a.Key, Value: a.Val})
					a.Val = ""
				}
				kept = append(kept, a)
			}
		}
		n.Attr = kept
	}
	return nil
}

func (b *binder) attribute(el *html.Node, index int, a html.Attribute) (PartDescriptor, error) {
	locs := markerPattern.FindAllStringSubmatchIndex(a.Val, -1)
	if len(locs) == 0 {
		return PartDescriptor{}, glerrors.NewParseError(glerrors.ErrCodeMarkerCount,
			"bound attribute "+strings.TrimSuffix(a.Key, boundAttrSuffix)+" lost its values")
	}

	first, _ := strconv.Atoi(a.Val[locs[0][2]:locs[0][3]])
	name, ok := b.attrNames[first]
	if !ok {
		return PartDescriptor{}, glerrors.NewParseError(glerrors.ErrCodeMarkerCount,
			fmt.Sprintf("value %d has no attribute name", first))
	}

	statics := make([]string, 0, len(locs)+1)
	prev := 0
	for k, loc := range locs {
		v, _ := strconv.Atoi(a.Val[loc[2]:loc[3]])
		if v != first+k {
			return PartDescriptor{}, glerrors.NewParseError(glerrors.ErrCodeMarkerCount,
				fmt.Sprintf("attribute %s values out of order", name))
		}
		if err := b.markSeen(v); err != nil {
			return PartDescriptor{}, err
		}
		statics = append(statics, a.Val[prev:loc[0]])
		prev = loc[1]
	}
	statics = append(statics, a.Val[prev:])

	single := singleValue(statics)
	d := PartDescriptor{Index: index, Strings: statics, ValueIndex: first}
	switch name[0] {
	case '.':
		d.Kind, d.Name = PropertyKind, name[1:]
	case '?':
		d.Kind, d.Name = BooleanAttributeKind, strings.ToLower(name[1:])
	case '@':
		return PartDescriptor{}, glerrors.NewParseError(glerrors.ErrCodeBinding,
			"event listener bindings are not supported: "+name)
	default:
		d.Kind, d.Name = AttributeKind, strings.ToLower(name)
	}

	if d.Name == "" {
		return PartDescriptor{}, glerrors.NewParseError(glerrors.ErrCodeAttrName, "binding without a name: "+name)
	}
	if d.Kind != AttributeKind && !single {
		return PartDescriptor{}, glerrors.NewParseError(glerrors.ErrCodeBinding,
			fmt.Sprintf("%s binding %s must be a single value with no surrounding text", d.Kind, name))
	}
	if _, sink := trusted.SinkFor(el.Data, d.Name); sink && d.Kind == AttributeKind && !single {
		return PartDescriptor{}, glerrors.NewParseError(glerrors.ErrCodeSinkConcat,
			fmt.Sprintf("<%s %s> is an injection sink; its value must be a single binding", el.Data, d.Name))
	}
	return d, nil
}
