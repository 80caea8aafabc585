package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/taskops/resilience"
)

// Attribute keys shared by spans, metrics and log lines.
const (
	AttrComponent  = "resilience.component"
	AttrOp         = "resilience.op"
	AttrIdentifier = "resilience.identifier"
	AttrCallID     = "resilience.call_id"
	AttrErrorKind  = "resilience.error_kind"
	AttrError      = "resilience.error"
)

// OpMeta describes an instrumented operation.
type OpMeta struct {
	Component  string // Resilience pattern: retry, timeout, batch, ratelimit, debounce, ... (default "op")
	Name       string // Operation name (required)
	Identifier string // Rate-limit identifier or tenant (optional)
	Tags       []string
}

func (m OpMeta) component() string {
	if m.Component == "" {
		return "op"
	}
	return m.Component
}

// SpanName returns the deterministic span name for this operation.
// Format: resilience.<component>.<name>
func (m OpMeta) SpanName() string {
	return "resilience." + m.component() + "." + m.Name
}

// OpID returns <component>.<name>.
func (m OpMeta) OpID() string {
	return m.component() + "." + m.Name
}

// Validate checks that the operation is named.
func (m OpMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingOpName
	}
	return nil
}

func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrComponent, m.component()),
		attribute.String(AttrOp, m.Name),
	}
	if m.Identifier != "" {
		attrs = append(attrs, attribute.String(AttrIdentifier, m.Identifier))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with operation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an operation.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error and its kind.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool(AttrError, false))
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("resilience.tags", meta.Tags))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	kind := resilience.KindOf(err)
	span.SetAttributes(attribute.String(AttrErrorKind, kind.String()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool(AttrError, true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
