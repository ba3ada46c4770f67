package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	glerrors "github.com/conneroisu/glit/internal/errors"
	"github.com/conneroisu/glit/internal/logging"
	"github.com/conneroisu/glit/pkg/dom"
	"github.com/conneroisu/glit/pkg/lit"
	"github.com/conneroisu/glit/pkg/trusted"
)

// Mutation is a serializable dom.MutationRecord.
type Mutation struct {
	Type     string `json:"type"`
	Target   string `json:"target"`
	Name     string `json:"name,omitempty"`
	OldValue string `json:"old_value,omitempty"`
}

// Frame is the outcome of one step.
type Frame struct {
	ID        string        `json:"id"`
	Scenario  string        `json:"scenario"`
	Step      int           `json:"step"`
	Name      string        `json:"name,omitempty"`
	Target    string        `json:"target"`
	Markup    string        `json:"markup"`
	Raw       string        `json:"raw"`
	Mutations []Mutation    `json:"mutations"`
	Refs      []string      `json:"refs,omitempty"`
	Error     string        `json:"error,omitempty"`
	Code      string        `json:"code,omitempty"`
	Passed    bool          `json:"passed"`
	Duration  time.Duration `json:"duration"`
}

// Result collects the frames of one run.
type Result struct {
	Scenario string
	Frames   []Frame
}

// Passed reports whether every step met its expectations.
func (r *Result) Passed() bool {
	for _, f := range r.Frames {
		if !f.Passed {
			return false
		}
	}
	return true
}

// FrameHandler receives frames as they are produced.
type FrameHandler func(Frame)

// Runner plays scenarios. Each run gets a fresh document, renderer and
// template cache; a Runner may run several scenarios concurrently.
type Runner struct {
	logger     logging.Logger
	collector  *glerrors.ErrorCollector
	defaultCSP string
	handlers   []FrameHandler
}

// Option configures a Runner.
type Option func(*Runner)

// WithDefaultCSP sets the CSP used by scenarios that declare none.
func WithDefaultCSP(csp string) Option {
	return func(r *Runner) { r.defaultCSP = csp }
}

// WithFrameHandler registers a handler called after every step.
func WithFrameHandler(h FrameHandler) Option {
	return func(r *Runner) { r.handlers = append(r.handlers, h) }
}

// WithErrorCollector records step failures into c instead of a private
// collector.
func WithErrorCollector(c *glerrors.ErrorCollector) Option {
	return func(r *Runner) { r.collector = c }
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(logger logging.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &Runner{
		logger:    logger.WithComponent("scenario"),
		collector: glerrors.NewErrorCollector(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Errors returns the collector step failures are recorded in.
func (r *Runner) Errors() *glerrors.ErrorCollector { return r.collector }

// Run plays every step of s. Step failures are reported in the frames and
// the error collector; the returned error covers setup failures and
// cancellation only.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	p, err := r.prepare(s)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With("scenario", s.Name)
	logger.Info(ctx, "Running scenario", "steps", len(s.Steps), "enforced", p.doc.TrustedTypes().Enforced())

	result := &Result{Scenario: s.Name}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		frame, err := p.step(i, step)
		r.report(ctx, logger, s, frame, err)
		result.Frames = append(result.Frames, frame)
		for _, h := range r.handlers {
			h(frame)
		}
	}

	logger.Info(ctx, "Scenario finished", "passed", result.Passed())
	return result, nil
}

func (r *Runner) report(ctx context.Context, logger logging.Logger, s *Scenario, frame Frame, err error) {
	fields := []interface{}{"step", frame.Step, "frame", frame.ID, "mutations", len(frame.Mutations)}
	switch {
	case err == nil:
		logger.Debug(ctx, "Step rendered", fields...)
		return
	case frame.Passed:
		logger.Debug(ctx, "Step failed as expected", append(fields, "code", frame.Code)...)
	default:
		logger.Warn(ctx, err, "Step failed", append(fields, "code", frame.Code)...)
	}
	r.collector.Add(glerrors.NewStepFailure(s.Name, frame.Step, err, frame.Passed))
}

// playback is the per-run state.
type playback struct {
	scenario   *Scenario
	doc        *dom.Document
	renderer   *lit.Renderer
	env        *env
	containers map[string]*html.Node
}

func (r *Runner) prepare(s *Scenario) (*playback, error) {
	csp := s.CSP
	if csp == "" {
		csp = r.defaultCSP
	}
	factory := trusted.NewFactory()
	if csp != "" {
		f, err := trusted.FromCSP(csp)
		if err != nil {
			return nil, glerrors.NewConfigError(glerrors.ErrCodeConfigInvalid, err.Error()).
				WithContext("scenario", s.Name)
		}
		factory = f
	}

	policies := make(map[string]*trusted.Policy, len(s.Policies))
	for _, spec := range s.Policies {
		var (
			p   *trusted.Policy
			err error
		)
		switch spec.Kind {
		case PolicyPassthrough:
			p, err = trusted.PassthroughPolicy(factory, spec.Name)
		case PolicySanitize:
			p, err = trusted.SanitizingPolicy(factory, spec.Name, nil)
		case PolicyReject:
			p, err = factory.CreatePolicy(spec.Name, trusted.PolicyOptions{})
		}
		if err != nil {
			return nil, glerrors.NewConfigError(glerrors.ErrCodeConfigInvalid, err.Error()).
				WithContext("scenario", s.Name).
				WithContext("policy", spec.Name)
		}
		policies[spec.Name] = p
	}

	doc := dom.NewDocument(dom.WithTrustedTypes(factory))
	return &playback{
		scenario:   s,
		doc:        doc,
		renderer:   lit.NewRenderer(doc, lit.WithCache(lit.NewTemplateCache())),
		env:        &env{scenario: s, policies: policies},
		containers: make(map[string]*html.Node),
	}, nil
}

func (p *playback) container(name string) *html.Node {
	if c, ok := p.containers[name]; ok {
		return c
	}
	c := p.doc.CreateElement("div")
	_ = p.doc.SetAttribute(c, "id", name)
	p.doc.AppendChild(p.doc.Body(), c)
	p.containers[name] = c
	return c
}

// step renders one step. The returned error is the step's failure, or the
// engine error it expected, or nil.
func (p *playback) step(index int, step Step) (Frame, error) {
	start := time.Now()
	container := p.container(step.target())
	p.doc.TakeRecords()
	p.env.refs = nil

	err := p.apply(step, container)

	raw := p.doc.InnerHTML(container)
	frame := Frame{
		ID:        uuid.NewString(),
		Scenario:  p.scenario.Name,
		Step:      index,
		Name:      step.Name,
		Target:    step.target(),
		Markup:    lit.StripMarkers(raw),
		Raw:       raw,
		Mutations: mutations(p.doc.TakeRecords()),
		Duration:  time.Since(start),
	}
	for _, ref := range p.env.refs {
		if ref.Element != nil {
			frame.Refs = append(frame.Refs, ref.Element.Data)
		}
	}
	if err != nil {
		frame.Code = lit.ErrorCode(err)
	}
	failure := evaluate(step, frame, err)
	frame.Passed = failure == nil || failure == err && step.ExpectError != ""
	if failure != nil {
		frame.Error = failure.Error()
	}
	return frame, failure
}

func (p *playback) apply(step Step, container *html.Node) error {
	if step.Clear {
		p.renderer.Clear(container)
		return nil
	}
	values, err := p.env.resolveAll(step.Values)
	if err != nil {
		return err
	}
	strs, _ := p.scenario.Template(step.Template)
	return p.renderer.Render(strs.With(values...), container)
}

// evaluate checks a frame against the step's expectations. It returns err
// itself when the step expected it.
func evaluate(step Step, frame Frame, err error) error {
	if step.ExpectError != "" {
		switch {
		case err == nil:
			return fmt.Errorf("expected error %s, step succeeded", step.ExpectError)
		case frame.Code != step.ExpectError:
			return fmt.Errorf("expected error %s, got %s: %w", step.ExpectError, frame.Code, err)
		}
		return err
	}
	if err != nil {
		return err
	}
	if step.Expect != nil && frame.Markup != *step.Expect {
		return fmt.Errorf("markup mismatch: got %q, want %q", frame.Markup, *step.Expect)
	}
	return nil
}

func mutations(records []dom.MutationRecord) []Mutation {
	out := make([]Mutation, len(records))
	for i, rec := range records {
		out[i] = Mutation{
			Type:     string(rec.Type),
			Target:   describeNode(rec.Target),
			Name:     rec.Name,
			OldValue: rec.OldValue,
		}
	}
	return out
}

func describeNode(n *html.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case html.ElementNode:
		return "<" + n.Data + ">"
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document-fragment"
	default:
		return "#node"
	}
}
