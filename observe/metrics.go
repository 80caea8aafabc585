package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/taskops/resilience"
)

// Metric instrument names.
const (
	MetricOpTotal           = "resilience.op.total"
	MetricOpErrors          = "resilience.op.errors"
	MetricOpDuration        = "resilience.op.duration_ms"
	MetricRetryAttempts     = "resilience.retry.attempts"
	MetricTimeouts          = "resilience.timeouts"
	MetricRateLimitDecision = "resilience.ratelimit.decisions"
	MetricBatchItems        = "resilience.batch.items"
)

// Metrics records resilience metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOp records one completed operation with duration and error kind.
	RecordOp(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordRetry records a retry about to happen after a failed attempt.
	RecordRetry(ctx context.Context, meta OpMeta, attempt int)

	// RecordTimeout records a timeout firing.
	RecordTimeout(ctx context.Context, meta OpMeta)

	// RecordDecision records a rate limiter admission decision.
	RecordDecision(ctx context.Context, meta OpMeta, allowed bool)

	// RecordBatchItem records a settled batch item.
	RecordBatchItem(ctx context.Context, meta OpMeta, err error)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	retries      metric.Int64Counter
	timeouts     metric.Int64Counter
	decisions    metric.Int64Counter
	batchItems   metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.totalCount, MetricOpTotal, "Total number of resilient operations", "{call}"},
		{&m.errorCount, MetricOpErrors, "Total number of failed resilient operations", "{error}"},
		{&m.retries, MetricRetryAttempts, "Retries scheduled after a failed attempt", "{attempt}"},
		{&m.timeouts, MetricTimeouts, "Operations abandoned by a timeout", "{timeout}"},
		{&m.decisions, MetricRateLimitDecision, "Rate limiter admission decisions", "{decision}"},
		{&m.batchItems, MetricBatchItems, "Settled batch items", "{item}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
	}

	m.durationHist, err = meter.Float64Histogram(
		MetricOpDuration,
		metric.WithDescription("Resilient operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordOp(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(
			append(meta.attributes(), attribute.String(AttrErrorKind, resilience.KindOf(err).String()))...,
		))
	}

	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta OpMeta, attempt int) {
	m.retries.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

func (m *metricsImpl) RecordTimeout(ctx context.Context, meta OpMeta) {
	m.timeouts.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

func (m *metricsImpl) RecordDecision(ctx context.Context, meta OpMeta, allowed bool) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOp, meta.Name),
		attribute.Bool("allowed", allowed),
	))
}

func (m *metricsImpl) RecordBatchItem(ctx context.Context, meta OpMeta, err error) {
	m.batchItems.Add(ctx, 1, metric.WithAttributes(
		append(meta.attributes(), attribute.String("kind", resilience.KindOf(err).String()))...,
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordOp(context.Context, OpMeta, time.Duration, error) {}
func (m *noopMetrics) RecordRetry(context.Context, OpMeta, int)               {}
func (m *noopMetrics) RecordTimeout(context.Context, OpMeta)                  {}
func (m *noopMetrics) RecordDecision(context.Context, OpMeta, bool)           {}
func (m *noopMetrics) RecordBatchItem(context.Context, OpMeta, error)         {}
