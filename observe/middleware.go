package observe

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/taskops/resilience"
)

// Middleware wraps resilient operations with observability (tracing,
// metrics, logging).
//
// Contract:
//   - Concurrency: Wrap returns an operation safe for concurrent use.
//   - Context: the span context is propagated into the wrapped operation's token.
//   - Errors: errors from the wrapped operation are recorded and propagated unchanged.
//   - Ownership: values are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability
// components. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}
	if logger == nil {
		logger = &noopLogger{}
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

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Wrap instruments op. Each call gets its own span, a call id, one
// operation metric sample and one log line.
//
// The wrapped operation runs under a child of the caller's token that
// carries the span context, so cancelling the caller still reaches it.
func Wrap[O any](m *Middleware, meta OpMeta, op resilience.Operation[O]) resilience.Operation[O] {
	return func(tok *resilience.Token) (O, error) {
		callID := uuid.NewString()

		spanCtx, span := m.tracer.StartSpan(tok, meta)
		span.SetAttributes(attribute.String(AttrCallID, callID))

		child := resilience.NewToken(spanCtx)
		defer child.Cancel(nil)

		start := time.Now()
		v, err := op(child)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordOp(spanCtx, meta, duration, err)

		fields := []Field{
			{Key: AttrCallID, Value: callID},
			{Key: "duration_ms", Value: float64(duration) / float64(time.Millisecond)},
		}
		log := m.logger.WithOp(meta)
		if err != nil {
			fields = append(fields,
				Field{Key: AttrErrorKind, Value: resilience.KindOf(err).String()},
				Field{Key: "error", Value: err.Error()},
			)
			log.Error(spanCtx, "operation failed", fields...)
		} else {
			log.Info(spanCtx, "operation completed", fields...)
		}

		return v, err
	}
}

// RetryHook returns a RetryConfig.OnRetry callback that counts and logs
// retries of meta.
func (m *Middleware) RetryHook(meta OpMeta) func(attempt int, err error, delay time.Duration) {
	log := m.logger.WithOp(meta)
	return func(attempt int, err error, delay time.Duration) {
		ctx := context.Background()
		m.metrics.RecordRetry(ctx, meta, attempt)
		log.Warn(ctx, "retrying operation",
			Field{Key: "attempt", Value: attempt},
			Field{Key: "delay_ms", Value: delay.Milliseconds()},
			Field{Key: "error", Value: err.Error()},
		)
	}
}

// TimeoutHook returns a TimeoutConfig.OnTimeout callback.
func (m *Middleware) TimeoutHook(meta OpMeta) func(timeout time.Duration) {
	log := m.logger.WithOp(meta)
	return func(timeout time.Duration) {
		ctx := context.Background()
		m.metrics.RecordTimeout(ctx, meta)
		log.Warn(ctx, "operation timed out", Field{Key: "timeout_ms", Value: timeout.Milliseconds()})
	}
}

// DecisionHook returns a RateLimiterConfig.OnDecision callback. The
// identifier is recorded on the log line only, so metric cardinality stays
// bounded by operation names.
func (m *Middleware) DecisionHook(meta OpMeta) func(id string, allowed bool) {
	return func(id string, allowed bool) {
		ctx := context.Background()
		m.metrics.RecordDecision(ctx, meta, allowed)
		if !allowed {
			scoped := meta
			scoped.Identifier = id
			m.logger.WithOp(scoped).Debug(ctx, "rate limit exceeded")
		}
	}
}

// StateChangeHook returns a CircuitBreakerConfig.OnStateChange callback.
// Opening is logged as a warning, every other transition as info.
func (m *Middleware) StateChangeHook(meta OpMeta) func(from, to resilience.State) {
	log := m.logger.WithOp(meta)
	return func(from, to resilience.State) {
		ctx := context.Background()
		fields := []Field{
			{Key: "from", Value: from.String()},
			{Key: "to", Value: to.String()},
		}
		if to == resilience.StateOpen {
			log.Warn(ctx, "circuit opened", fields...)
			return
		}
		log.Info(ctx, "circuit state changed", fields...)
	}
}

// BatchItemHook returns a BatchConfig.OnItem callback.
func (m *Middleware) BatchItemHook(meta OpMeta) func(index int, err error, elapsed time.Duration) {
	log := m.logger.WithOp(meta)
	return func(index int, err error, elapsed time.Duration) {
		ctx := context.Background()
		m.metrics.RecordBatchItem(ctx, meta, err)
		if err != nil {
			log.Debug(ctx, "batch item failed",
				Field{Key: "index", Value: index},
				Field{Key: AttrErrorKind, Value: resilience.KindOf(err).String()},
				Field{Key: "elapsed_ms", Value: elapsed.Milliseconds()},
			)
		}
	}
}
