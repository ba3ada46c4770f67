// Package errors defines the structured error type shared by the glit engine
// and its tooling.
//
// Every failure the engine can surface is a *GlitError carrying an ErrorType
// and a stable code. Callers classify failures with the Is* predicates or with
// errors.Is against a sentinel built by Kind.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeParse     ErrorType = "parse"
	ErrorTypeDirective ErrorType = "directive"
	ErrorTypeSecurity  ErrorType = "security"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeInternal  ErrorType = "internal"
)

// Engine error codes.
const (
	ErrCodeTagName        = "PARSE_TAG_NAME"
	ErrCodeAttrName       = "PARSE_ATTR_NAME"
	ErrCodeComment        = "PARSE_COMMENT"
	ErrCodeRawText        = "PARSE_RAW_TEXT"
	ErrCodeBinding        = "PARSE_BINDING"
	ErrCodeSinkConcat     = "PARSE_SINK_CONCAT"
	ErrCodeUnterminated   = "PARSE_UNTERMINATED"
	ErrCodeMarkerCount    = "PARSE_MARKER_COUNT"
	ErrCodeMisuse         = "DIRECTIVE_MISUSE"
	ErrCodeBareSinkValue  = "BARE_VALUE_AT_SINK_BINDING"
	ErrCodeValueCount     = "VALUE_COUNT"
	ErrCodePolicyRejected = "POLICY_REJECTED"
	ErrCodeConfigInvalid  = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound   = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError  = "ERR_INTERNAL"
)

// GlitError is a structured error type with context.
type GlitError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	// Template is a short excerpt of the template the error relates to.
	Template string
	// PartIndex is the descriptor index of the failing part, or -1.
	PartIndex int
}

// Error implements the error interface.
func (e *GlitError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.PartIndex >= 0 {
		parts = append(parts, fmt.Sprintf("part:%d", e.PartIndex))
	}

	parts = append(parts, e.Message)

	if e.Template != "" {
		parts = append(parts, fmt.Sprintf("in %q", e.Template))
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *GlitError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison. A target with an empty Code matches every
// error of the same Type.
func (e *GlitError) Is(target error) bool {
	var t *GlitError
	if errors.As(target, &t) {
		if e.Type != t.Type {
			return false
		}
		return t.Code == "" || e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *GlitError) WithContext(key string, value interface{}) *GlitError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPart records which part failed.
func (e *GlitError) WithPart(index int) *GlitError {
	e.PartIndex = index

	return e
}

// WithTemplate attaches a template excerpt, truncated to keep messages short.
func (e *GlitError) WithTemplate(excerpt string) *GlitError {
	const max = 60
	if len(excerpt) > max {
		excerpt = excerpt[:max] + "..."
	}
	e.Template = excerpt

	return e
}

// Kind returns a sentinel matching every error of the given type.
func Kind(t ErrorType) error {
	return &GlitError{Type: t, PartIndex: -1}
}

// Error creation functions

// NewParseError creates a template parse error.
func NewParseError(code, message string) *GlitError {
	return &GlitError{
		Type:      ErrorTypeParse,
		Code:      code,
		Message:   message,
		PartIndex: -1,
	}
}

// NewDirectiveError creates a directive misuse error.
func NewDirectiveError(code, message string) *GlitError {
	return &GlitError{
		Type:      ErrorTypeDirective,
		Code:      code,
		Message:   message,
		PartIndex: -1,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string, cause error) *GlitError {
	return &GlitError{
		Type:      ErrorTypeSecurity,
		Code:      code,
		Message:   message,
		Cause:     cause,
		PartIndex: -1,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *GlitError {
	return &GlitError{
		Type:      ErrorTypeConfig,
		Code:      code,
		Message:   message,
		PartIndex: -1,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *GlitError {
	return &GlitError{
		Type:      ErrorTypeIO,
		Code:      code,
		Message:   message,
		Cause:     cause,
		PartIndex: -1,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *GlitError {
	return &GlitError{
		Type:      ErrorTypeInternal,
		Code:      code,
		Message:   message,
		Cause:     cause,
		PartIndex: -1,
	}
}

// IsParseError checks if an error came from the template parser.
func IsParseError(err error) bool {
	return isType(err, ErrorTypeParse)
}

// IsDirectiveError checks if an error is a directive misuse.
func IsDirectiveError(err error) bool {
	return isType(err, ErrorTypeDirective)
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	return isType(err, ErrorTypeSecurity)
}

func isType(err error, t ErrorType) bool {
	var ge *GlitError
	if errors.As(err, &ge) {
		return ge.Type == t
	}

	return false
}

// ErrorHandler provides centralized error reporting for the CLI layers.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level chosen by its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var ge *GlitError
	if !errors.As(err, &ge) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch ge.Type {
	case ErrorTypeSecurity:
		h.logger.Error(ctx, ge, "Content policy rejected a sink write",
			"type", ge.Type,
			"code", ge.Code,
			"part", ge.PartIndex)
	case ErrorTypeParse, ErrorTypeDirective:
		h.logger.Warn(ctx, ge, "Template error",
			"type", ge.Type,
			"code", ge.Code,
			"template", ge.Template)
	default:
		h.logger.Error(ctx, ge, "Error occurred",
			"type", ge.Type,
			"code", ge.Code)
	}
}
