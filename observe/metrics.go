package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records memoized-call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records one memoized call with its outcome and duration.
	RecordCall(ctx context.Context, meta FuncMeta, outcome Outcome, duration time.Duration, err error)

	// RecordWriteError records a computed result that could not be stored.
	RecordWriteError(ctx context.Context, meta FuncMeta)
}

type metricsImpl struct {
	callCount    metric.Int64Counter
	errorCount   metric.Int64Counter
	writeErrors  metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with instruments from meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	callCount, err := meter.Int64Counter(
		"memo.call.total",
		metric.WithDescription("Total number of memoized calls by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"memo.call.errors",
		metric.WithDescription("Total number of memoized calls that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	writeErrors, err := meter.Int64Counter(
		"memo.write.errors",
		metric.WithDescription("Total number of results that could not be cached"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"memo.call.duration_ms",
		metric.WithDescription("Memoized call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		callCount:    callCount,
		errorCount:   errorCount,
		writeErrors:  writeErrors,
		durationHist: durationHist,
	}, nil
}

func funcAttrs(meta FuncMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("memo.func", meta.ID()),
	}
	if meta.Scope != "" {
		attrs = append(attrs, attribute.String("memo.scope", meta.Scope))
	}
	return attrs
}

// RecordCall records metrics for one memoized call.
func (m *metricsImpl) RecordCall(ctx context.Context, meta FuncMeta, outcome Outcome, duration time.Duration, err error) {
	attrs := funcAttrs(meta)
	opt := metric.WithAttributes(attrs...)

	m.callCount.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("memo.outcome", string(outcome)))...))
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

// RecordWriteError records a failed cache write.
func (m *metricsImpl) RecordWriteError(ctx context.Context, meta FuncMeta) {
	m.writeErrors.Add(ctx, 1, metric.WithAttributes(funcAttrs(meta)...))
}

// NopMetrics returns metrics backed by the no-op meter.
func NopMetrics() Metrics {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	if err != nil {
		// The no-op meter never fails to create instruments.
		panic(err)
	}
	return m
}
