package lit

import (
	"errors"

	"golang.org/x/net/html"

	glerrors "github.com/conneroisu/glit/internal/errors"
	"github.com/conneroisu/glit/pkg/dom"
	"github.com/conneroisu/glit/pkg/trusted"
)

type sinkType int

const (
	attributeSink sinkType = iota
	propertySink
)

// sink names one restricted write target.
type sink struct {
	typ  sinkType
	el   *html.Node
	name string
}

func (s sink) String() string {
	return trusted.SinkName(s.el.Data, s.name)
}

// sinkGuard is the only path from engine values to markup, script and
// script URL sinks. It hands value to the native assignment unchanged: no
// stringification, no concatenation. The document's own Trusted Types check
// is the enforcement point.
type sinkGuard struct {
	doc *dom.Document
}

func (g sinkGuard) write(s sink, value any) error {
	var err error
	switch s.typ {
	case attributeSink:
		err = g.doc.SetAttribute(s.el, s.name, value)
	case propertySink:
		err = g.doc.SetProperty(s.el, s.name, value)
	}
	if err == nil {
		return nil
	}

	var typeErr *dom.TypeError
	if errors.As(err, &typeErr) {
		return glerrors.NewSecurityError(glerrors.ErrCodePolicyRejected,
			"content policy rejected the write to "+s.String(), err).
			WithContext("sink", s.String())
	}
	return glerrors.NewInternalError(glerrors.ErrCodeInternalError, "writing "+s.String(), err)
}
