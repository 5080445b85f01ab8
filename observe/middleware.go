package observe

import (
	"context"
	"time"
)

// CallFunc performs one memoized call and reports how it was served.
type CallFunc func(ctx context.Context) (Outcome, error)

// Middleware wraps memoized calls with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Observe is safe for concurrent use.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped call are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced by no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the logger used for call records.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Metrics returns the metrics sink.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Observe runs fn inside a span and records its outcome.
func (m *Middleware) Observe(ctx context.Context, meta FuncMeta, fn CallFunc) error {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	outcome, err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, outcome, err)
	m.metrics.RecordCall(ctx, meta, outcome, duration, err)

	logger := m.logger.WithFunc(meta)
	fields := []Field{
		{Key: "outcome", Value: string(outcome)},
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Error(ctx, "memoized call failed", fields...)
	} else {
		logger.Debug(ctx, "memoized call completed", fields...)
	}

	return err
}
