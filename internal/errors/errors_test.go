package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlitErrorError(t *testing.T) {
	testCases := []struct {
		name     string
		err      *GlitError
		contains []string
	}{
		{
			name:     "parse error with template",
			err:      NewParseError(ErrCodeTagName, "expression in tag name").WithTemplate("<${x}>"),
			contains: []string{"[PARSE_TAG_NAME]", "expression in tag name", `"<${x}>"`},
		},
		{
			name:     "directive error with part",
			err:      NewDirectiveError(ErrCodeMisuse, "raw markup at attribute").WithPart(2),
			contains: []string{"[DIRECTIVE_MISUSE]", "part:2"},
		},
		{
			name:     "security error with cause",
			err:      NewSecurityError(ErrCodePolicyRejected, "sink write rejected", errors.New("TypeError")),
			contains: []string{"[POLICY_REJECTED]", "sink write rejected: TypeError"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := tc.err.Error()
			for _, s := range tc.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestGlitErrorWithoutPartOmitsIndex(t *testing.T) {
	err := NewParseError(ErrCodeComment, "expression inside comment")
	assert.NotContains(t, err.Error(), "part:")
}

func TestGlitErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("render: %w", NewSecurityError(ErrCodePolicyRejected, "rejected", nil))

	assert.True(t, errors.Is(wrapped, Kind(ErrorTypeSecurity)))
	assert.True(t, errors.Is(wrapped, &GlitError{Type: ErrorTypeSecurity, Code: ErrCodePolicyRejected}))
	assert.False(t, errors.Is(wrapped, &GlitError{Type: ErrorTypeSecurity, Code: ErrCodeMisuse}))
	assert.False(t, errors.Is(wrapped, Kind(ErrorTypeParse)))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("native failure")
	err := NewSecurityError(ErrCodePolicyRejected, "rejected", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsParseError(NewParseError(ErrCodeBinding, "x")))
	assert.True(t, IsDirectiveError(fmt.Errorf("wrap: %w", NewDirectiveError(ErrCodeMisuse, "x"))))
	assert.True(t, IsSecurityError(NewSecurityError(ErrCodePolicyRejected, "x", nil)))
	assert.False(t, IsSecurityError(errors.New("plain")))
	assert.False(t, IsParseError(nil))
}

func TestWithTemplateTruncates(t *testing.T) {
	long := "<div>" + string(make([]byte, 100)) + "</div>"
	err := NewParseError(ErrCodeUnterminated, "x").WithTemplate(long)
	assert.Len(t, err.Template, 63)
}

func TestWithContext(t *testing.T) {
	err := NewDirectiveError(ErrCodeMisuse, "x").
		WithContext("attribute", "class").
		WithContext("directive", "unsafeHTML")

	require.NotNil(t, err.Context)
	assert.Equal(t, "class", err.Context["attribute"])
	assert.Equal(t, "unsafeHTML", err.Context["directive"])
}

func TestErrorCollector(t *testing.T) {
	collector := NewErrorCollector()
	assert.False(t, collector.HasErrors())

	collector.Add(NewStepFailure("demo", 0, NewSecurityError(ErrCodePolicyRejected, "rejected", nil), true))
	assert.False(t, collector.HasErrors(), "expected failures do not count")

	collector.Add(NewStepFailure("demo", 1, NewParseError(ErrCodeTagName, "bad"), false))
	collector.Add(NewStepFailure("other", 0, errors.New("boom"), false))
	assert.True(t, collector.HasErrors())

	failures := collector.ByScenario("demo")
	require.Len(t, failures, 2)
	assert.Equal(t, ErrorSeverityInfo, failures[0].Severity)
	assert.Equal(t, ErrCodePolicyRejected, failures[0].Code)
	assert.Equal(t, ErrorSeverityWarning, failures[1].Severity)
	assert.False(t, failures[1].Timestamp.IsZero())

	all := collector.Failures()
	assert.Len(t, all, 3)
	assert.Equal(t, ErrorSeverityError, all[2].Severity)

	collector.Clear()
	assert.Empty(t, collector.Failures())
}

func TestErrorSeverityString(t *testing.T) {
	testCases := []struct {
		severity ErrorSeverity
		expected string
	}{
		{ErrorSeverityInfo, "info"},
		{ErrorSeverityWarning, "warning"},
		{ErrorSeverityError, "error"},
		{ErrorSeverity(999), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.severity.String())
		})
	}
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.warns = append(l.warns, msg)
}

func TestErrorHandlerRoutesByType(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)
	ctx := context.Background()

	h.Handle(ctx, nil)
	h.Handle(ctx, NewParseError(ErrCodeTagName, "bad"))
	h.Handle(ctx, NewSecurityError(ErrCodePolicyRejected, "rejected", nil))
	h.Handle(ctx, errors.New("plain"))

	assert.Equal(t, []string{"Template error"}, logger.warns)
	assert.Equal(t, []string{"Content policy rejected a sink write", "Unhandled error occurred"}, logger.errors)
}
