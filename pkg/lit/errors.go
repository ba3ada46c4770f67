package lit

import (
	"errors"

	glerrors "github.com/conneroisu/glit/internal/errors"
)

// Sentinels for errors.Is.
var (
	ErrParse           = glerrors.Kind(glerrors.ErrorTypeParse)
	ErrDirectiveMisuse = glerrors.Kind(glerrors.ErrorTypeDirective)
	ErrPolicyRejection = error(&glerrors.GlitError{
		Type:      glerrors.ErrorTypeSecurity,
		Code:      glerrors.ErrCodePolicyRejected,
		PartIndex: -1,
	})
)

// IsParseError reports whether err is a template parse failure.
func IsParseError(err error) bool { return glerrors.IsParseError(err) }

// IsDirectiveMisuse reports whether err is a value or directive bound where
// its part kind does not accept it.
func IsDirectiveMisuse(err error) bool { return glerrors.IsDirectiveError(err) }

// IsPolicyRejection reports whether err is a sink write refused by the
// host's content policy.
func IsPolicyRejection(err error) bool { return errors.Is(err, ErrPolicyRejection) }

// ErrorCode returns the stable code of an engine error, or "".
func ErrorCode(err error) string {
	var ge *glerrors.GlitError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

func misuse(code, message string) *glerrors.GlitError {
	return glerrors.NewDirectiveError(code, message)
}

// atPart attributes err to a part unless a nested part already claimed it.
func atPart(err error, index int) error {
	var ge *glerrors.GlitError
	if errors.As(err, &ge) && ge.PartIndex < 0 {
		ge.WithPart(index)
	}
	return err
}
