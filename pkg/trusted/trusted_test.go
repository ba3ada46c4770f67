package trusted

import (
	"errors"
	"strings"
	"testing"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyMintsValuesForItsFactory(t *testing.T) {
	f := NewFactory(Enforce())
	p, err := PassthroughPolicy(f, "test-policy")
	require.NoError(t, err)

	h, err := p.CreateHTML("<span>val</span>")
	require.NoError(t, err)
	assert.Equal(t, "<span>val</span>", h.String())
	assert.True(t, f.IsHTML(h))
	assert.False(t, f.IsScript(h))

	other := NewFactory()
	assert.False(t, other.IsHTML(h), "values are bound to the factory that minted them")
	assert.False(t, f.IsHTML(HTML{}), "zero value is never trusted")
	assert.False(t, f.IsHTML("<span>val</span>"))
}

func TestCoerceEnforced(t *testing.T) {
	f := NewFactory(Enforce())
	p, err := PassthroughPolicy(f, "test-policy")
	require.NoError(t, err)

	_, err = f.Coerce(KindHTML, "<span>val</span>", "div innerHTML")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPolicyViolation))
	assert.Contains(t, err.Error(), "div innerHTML requires TrustedHTML")

	s, err := f.Coerce(KindHTML, p.MustCreateHTML("<span>val</span>"), "div innerHTML")
	require.NoError(t, err)
	assert.Equal(t, "<span>val</span>", s)

	script, err := p.CreateScript("alert(1)")
	require.NoError(t, err)
	_, err = f.Coerce(KindHTML, script, "div innerHTML")
	assert.ErrorIs(t, err, ErrPolicyViolation, "wrong kind is treated as a plain string")
}

func TestCoerceNotEnforcedStringifies(t *testing.T) {
	f := NewFactory()

	s, err := f.Coerce(KindHTML, "<b>x</b>", "div innerHTML")
	require.NoError(t, err)
	assert.Equal(t, "<b>x</b>", s)

	s, err = f.Coerce(KindHTML, 42, "div innerHTML")
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	var nilFactory *Factory
	s, err = nilFactory.Coerce(KindScript, nil, "div onclick")
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestDefaultPolicyConvertsPlainStrings(t *testing.T) {
	f := NewFactory(Enforce())
	var gotArgs []any
	_, err := f.CreatePolicy(DefaultPolicyName, PolicyOptions{
		CreateHTML: func(input string, args ...any) (string, error) {
			gotArgs = args
			if strings.Contains(input, "<script") {
				return "", errors.New("script not allowed")
			}
			return strings.ToUpper(input), nil
		},
	})
	require.NoError(t, err)

	s, err := f.Coerce(KindHTML, "<b>x</b>", "div innerHTML")
	require.NoError(t, err)
	assert.Equal(t, "<B>X</B>", s)
	assert.Equal(t, []any{"TrustedHTML", "div innerHTML"}, gotArgs)

	_, err = f.Coerce(KindHTML, "<script>x</script>", "div innerHTML")
	assert.ErrorIs(t, err, ErrPolicyViolation)

	_, err = f.Coerce(KindScript, "alert(1)", "div onclick")
	assert.ErrorIs(t, err, ErrPolicyViolation, "default policy lacks CreateScript")
}

func TestCreatePolicyRestrictions(t *testing.T) {
	f := NewFactory(AllowPolicies("a", DefaultPolicyName))

	_, err := f.CreatePolicy("a", PolicyOptions{})
	require.NoError(t, err)

	_, err = f.CreatePolicy("a", PolicyOptions{})
	assert.ErrorIs(t, err, ErrPolicyExists)

	_, err = f.CreatePolicy("b", PolicyOptions{})
	assert.ErrorIs(t, err, ErrPolicyNotAllowed)

	dp, err := f.CreatePolicy(DefaultPolicyName, PolicyOptions{})
	require.NoError(t, err)
	assert.Same(t, dp, f.DefaultPolicy())

	dup := NewFactory(AllowDuplicates())
	_, err = dup.CreatePolicy("x", PolicyOptions{})
	require.NoError(t, err)
	_, err = dup.CreatePolicy("x", PolicyOptions{})
	require.NoError(t, err)
	_, err = dup.CreatePolicy(DefaultPolicyName, PolicyOptions{})
	require.NoError(t, err)
	_, err = dup.CreatePolicy(DefaultPolicyName, PolicyOptions{})
	assert.ErrorIs(t, err, ErrPolicyExists, "only one default policy")
}

func TestPolicyWithoutCallback(t *testing.T) {
	f := NewFactory()
	p, err := f.CreatePolicy("html-only", PolicyOptions{
		CreateHTML: func(input string, _ ...any) (string, error) { return input, nil },
	})
	require.NoError(t, err)

	_, err = p.CreateScriptURL("https://example.com/x.js")
	assert.ErrorIs(t, err, ErrNoPolicyFunc)
	assert.Panics(t, func() {
		q, _ := f.CreatePolicy("empty", PolicyOptions{})
		q.MustCreateHTML("x")
	})
}

func TestFromCSP(t *testing.T) {
	testCases := []struct {
		name       string
		header     string
		enforced   bool
		allowed    []string
		disallowed []string
		wantErr    bool
	}{
		{
			name:       "enforce with names",
			header:     "default-src 'self'; require-trusted-types-for 'script'; trusted-types test-policy default",
			enforced:   true,
			allowed:    []string{"test-policy", DefaultPolicyName},
			disallowed: []string{"other"},
		},
		{
			name:    "wildcard",
			header:  "trusted-types *",
			allowed: []string{"anything"},
		},
		{
			name:       "none",
			header:     "require-trusted-types-for 'script'; trusted-types 'none'",
			enforced:   true,
			disallowed: []string{"test-policy"},
		},
		{
			name:    "empty header",
			header:  "",
			allowed: []string{"anything"},
		},
		{name: "bad require value", header: "require-trusted-types-for 'style'", wantErr: true},
		{name: "unknown keyword", header: "trusted-types 'bogus'", wantErr: true},
		{name: "none with names", header: "trusted-types 'none' a", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := FromCSP(tc.header)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.enforced, f.Enforced())
			for _, n := range tc.allowed {
				_, err := f.CreatePolicy(n, PolicyOptions{})
				assert.NoError(t, err, n)
			}
			for _, n := range tc.disallowed {
				_, err := f.CreatePolicy(n, PolicyOptions{})
				assert.ErrorIs(t, err, ErrPolicyNotAllowed, n)
			}
		})
	}
}

func TestSinkTables(t *testing.T) {
	testCases := []struct {
		tag, name string
		property  bool
		kind      Kind
		sink      bool
	}{
		{"iframe", "srcdoc", false, KindHTML, true},
		{"IFRAME", "SRCDOC", false, KindHTML, true},
		{"div", "srcdoc", false, 0, false},
		{"button", "onclick", false, KindScript, true},
		{"script", "src", false, KindScriptURL, true},
		{"img", "src", false, 0, false},
		{"div", "class", false, 0, false},
		{"div", "innerHTML", true, KindHTML, true},
		{"template", "innerHTML", true, KindHTML, true},
		{"iframe", "srcdoc", true, KindHTML, true},
		{"script", "textContent", true, KindScript, true},
		{"div", "textContent", true, 0, false},
		{"div", "innerhtml", true, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.tag+"."+tc.name, func(t *testing.T) {
			var (
				kind Kind
				ok   bool
			)
			if tc.property {
				kind, ok = PropertySinkFor(tc.tag, tc.name)
			} else {
				kind, ok = SinkFor(tc.tag, tc.name)
			}
			assert.Equal(t, tc.sink, ok)
			if ok {
				assert.Equal(t, tc.kind, kind)
			}
		})
	}
}

func TestSanitizingPolicy(t *testing.T) {
	f := NewFactory(Enforce())

	p, err := SanitizingPolicy(f, "ugc", nil)
	require.NoError(t, err)
	h, err := p.CreateHTML(`<b onclick="x()">bold</b><script>alert(1)</script>`)
	require.NoError(t, err)
	assert.Equal(t, "<b>bold</b>", h.String())
	assert.True(t, f.IsHTML(h))

	strict, err := SanitizingPolicy(f, "strict", bluemonday.StrictPolicy())
	require.NoError(t, err)
	h, err = strict.CreateHTML("<b>bold</b>")
	require.NoError(t, err)
	assert.Equal(t, "bold", h.String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "TrustedHTML", KindHTML.String())
	assert.Equal(t, "TrustedScript", KindScript.String())
	assert.Equal(t, "TrustedScriptURL", KindScriptURL.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
