package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// FuncMeta describes a memoized function for telemetry purposes.
type FuncMeta struct {
	Scope string // declaring package import path (may be empty)
	Name  string // function name (required)
}

// ID returns the fully qualified function identifier: scope.name or name.
func (m FuncMeta) ID() string {
	if m.Scope != "" {
		return m.Scope + "." + m.Name
	}
	return m.Name
}

// SpanName returns the deterministic span name for this function.
// Format: memo.call.<scope>.<name> or memo.call.<name>
func (m FuncMeta) SpanName() string {
	return "memo.call." + m.ID()
}

// Outcome classifies one memoized call.
type Outcome string

const (
	// OutcomeHit means a fresh entry was served without calling the function.
	OutcomeHit Outcome = "hit"
	// OutcomeMiss means the function ran because no fresh entry existed.
	OutcomeMiss Outcome = "miss"
	// OutcomeError means the call failed before the function could run.
	OutcomeError Outcome = "error"
)

// Tracer wraps OpenTelemetry tracing with memoized-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one memoized call.
	StartSpan(ctx context.Context, meta FuncMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome and any error.
	EndSpan(span trace.Span, outcome Outcome, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with function metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta FuncMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("memo.func", meta.ID()),
		attribute.String("memo.name", meta.Name),
	}
	if meta.Scope != "" {
		attrs = append(attrs, attribute.String("memo.scope", meta.Scope))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the outcome and error status.
func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(
		attribute.String("memo.outcome", string(outcome)),
		attribute.Bool("memo.error", err != nil),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return NewTracer(tracenoop.NewTracerProvider().Tracer("noop"))
}
