package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	glerrors "github.com/conneroisu/glit/internal/errors"
	"github.com/conneroisu/glit/internal/testutils"
	"github.com/conneroisu/glit/pkg/lit"
	"github.com/conneroisu/glit/pkg/trusted"
)

const greeting = `
name: greeting
templates:
  hello:
    markup: "<p>Hello, ${}!</p>"
  pair:
    strings: ["<b>", "</b><i>", "</i>"]
steps:
  - template: hello
    values: [world]
    expect: "<p>Hello, world!</p>"
  - template: pair
    values: [1, true]
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(greeting))
	require.NoError(t, err)

	assert.Equal(t, "greeting", s.Name)
	assert.Equal(t, []string{"hello", "pair"}, s.TemplateNames())
	require.Len(t, s.Steps, 2)
	require.NotNil(t, s.Steps[0].Expect)
	assert.Equal(t, "<p>Hello, world!</p>", *s.Steps[0].Expect)
	assert.Equal(t, DefaultTarget, s.Steps[0].target())

	hello, ok := s.Template("hello")
	require.True(t, ok)
	assert.Equal(t, []string{"<p>Hello, ", "!</p>"}, hello.Fragments())

	pair, _ := s.Template("pair")
	assert.Equal(t, 2, pair.NumValues())

	again, _ := s.Template("hello")
	assert.Same(t, hello, again, "a template name is one call site")
}

func TestLoad(t *testing.T) {
	path := testutils.WriteScenario(t, "named-by-file.yml", `
templates:
  t:
    markup: "<p>${}</p>"
steps:
  - template: t
    values: [x]
`)
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "named-by-file", s.Name)
	assert.Equal(t, path, s.Path)

	_, err = Load(path + ".missing")
	require.Error(t, err)
	var ge *glerrors.GlitError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, glerrors.ErrCodeFileNotFound, ge.Code)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{
			name:    "unknown key",
			yaml:    "templates: {t: {markup: x}}\nsteps: [{template: t}]\nextra: 1\n",
			message: "extra",
		},
		{
			name:    "no steps",
			yaml:    "templates: {t: {markup: x}}\n",
			message: "no steps",
		},
		{
			name:    "unknown template",
			yaml:    "templates: {t: {markup: x}}\nsteps: [{template: u}]\n",
			message: `unknown template "u"`,
		},
		{
			name:    "markup and strings",
			yaml:    "templates: {t: {markup: x, strings: [a]}}\nsteps: [{template: t}]\n",
			message: "mutually exclusive",
		},
		{
			name:    "empty template",
			yaml:    "templates: {t: {}}\nsteps: [{template: t}]\n",
			message: "markup or strings",
		},
		{
			name:    "bad policy kind",
			yaml:    "policies: [{name: a, kind: magic}]\ntemplates: {t: {markup: x}}\nsteps: [{template: t}]\n",
			message: `unknown kind "magic"`,
		},
		{
			name:    "undeclared policy",
			yaml:    "templates: {t: {markup: x}}\nsteps: [{template: t, values: [{trusted: '<b>', policy: app}]}]\n",
			message: `undeclared policy "app"`,
		},
		{
			name:    "nested unknown template",
			yaml:    "templates: {t: {markup: x}}\nsteps: [{template: t, values: [{template: nope}]}]\n",
			message: `unknown template "nope"`,
		},
		{
			name:    "mixed value forms",
			yaml:    "templates: {t: {markup: x}}\nsteps: [{template: t, values: [{nothing: true, ref: true}]}]\n",
			message: "value mixes",
		},
		{
			name:    "unexpected value key",
			yaml:    "templates: {t: {markup: x}}\nsteps: [{template: t, values: [{pass: 1, policy: a}]}]\n",
			message: `unexpected key "policy"`,
		},
		{
			name:    "nothing set to false",
			yaml:    "templates: {t: {markup: x}}\nsteps: [{template: t, values: [{nothing: false}]}]\n",
			message: "nothing must be true",
		},
		{
			name:    "ref with a non-boolean",
			yaml:    "templates: {t: {markup: x}}\nsteps: [{template: t, values: [{ref: form}]}]\n",
			message: "ref must be true",
		},
		{
			name:    "clear with template",
			yaml:    "templates: {t: {markup: x}}\nsteps: [{clear: true, template: t}]\n",
			message: "clear step",
		},
		{
			name:    "bad csp",
			yaml:    "csp: \"require-trusted-types-for 'style'\"\ntemplates: {t: {markup: x}}\nsteps: [{template: t}]\n",
			message: "csp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)

			var ge *glerrors.GlitError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, glerrors.ErrorTypeConfig, ge.Type)
		})
	}
}

func TestValueResolution(t *testing.T) {
	s, err := Parse([]byte(`
policies:
  - name: app
    kind: passthrough
templates:
  t:
    markup: "<p>${}</p>"
steps:
  - template: t
    values:
      - plain
      - 42
      - null
      - [a, b]
      - {nothing: true}
      - {no_change: true}
      - {trusted: "<b>x</b>", policy: app}
      - {unsafe_html: "<i>y</i>"}
      - {pass: 7}
      - {template: t, values: [inner]}
      - {ref: true}
`))
	require.NoError(t, err)

	f := trusted.NewFactory()
	app, err := trusted.PassthroughPolicy(f, "app")
	require.NoError(t, err)
	e := &env{scenario: s, policies: map[string]*trusted.Policy{"app": app}}

	values, err := e.resolveAll(s.Steps[0].Values)
	require.NoError(t, err)
	require.Len(t, values, 11)

	assert.Equal(t, "plain", values[0])
	assert.Equal(t, 42, values[1])
	assert.Nil(t, values[2])
	assert.Equal(t, []any{"a", "b"}, values[3])
	assert.Equal(t, lit.Nothing, values[4])
	assert.Equal(t, lit.NoChange, values[5])

	h, ok := values[6].(trusted.HTML)
	require.True(t, ok)
	assert.Equal(t, "<b>x</b>", h.String())
	assert.True(t, f.IsHTML(h))

	assert.Implements(t, (*lit.Directive)(nil), values[7])
	assert.Implements(t, (*lit.Directive)(nil), values[8])

	nested, ok := values[9].(lit.TemplateResult)
	require.True(t, ok)
	tmpl, _ := s.Template("t")
	assert.Same(t, tmpl, nested.Strings())
	assert.Equal(t, []any{"inner"}, nested.Values())

	_, ok = values[10].(*lit.Ref)
	assert.True(t, ok)
	assert.Len(t, e.refs, 1)
}

func TestDirectiveValuesAreFresh(t *testing.T) {
	s, err := Parse([]byte(`
templates: {t: {markup: "<p>${}</p>"}}
steps: [{template: t, values: [{unsafe_html: "<b>"}]}]
`))
	require.NoError(t, err)
	e := &env{scenario: s}

	first, err := e.resolve(s.Steps[0].Values[0])
	require.NoError(t, err)
	second, err := e.resolve(s.Steps[0].Values[0])
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
