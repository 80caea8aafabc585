package resilience

import "context"

// Executor composes the single-call patterns around an operation.
type Executor struct {
	rateLimiter *RateLimiter
	identifier  string
	bulkhead    *Bulkhead
	breaker     *CircuitBreaker
	retry       *Retry
	timeout     *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UseRateLimiter gates every call on rl's window for identifier.
func UseRateLimiter(rl *RateLimiter, identifier string) ExecutorOption {
	return func(e *Executor) {
		e.rateLimiter = rl
		e.identifier = identifier
	}
}

// UseBulkhead holds a slot of b for the whole call, retries included.
func UseBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// UseCircuitBreaker fails calls fast while cb is open. The breaker sees the
// result of the whole retry sequence, not each attempt.
func UseCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.breaker = cb
	}
}

// UseRetry adds retry logic to the executor.
func UseRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// UseTimeout bounds each attempt with t.
func UseTimeout(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.timeout = t
	}
}

// Apply wraps op with every configured pattern.
//
// The execution order is:
// 1. Rate Limiter (if configured) - one admission per call, not per attempt
// 2. Bulkhead (if configured) - limits concurrent calls
// 3. Circuit Breaker (if configured) - fails fast while the dependency is down
// 4. Retry (if configured) - retries on failure
// 5. Timeout (if configured) - limits each attempt
func Apply[O any](e *Executor, op Operation[O]) Operation[O] {
	wrapped := op

	// Wrap with timeout (innermost)
	if e.timeout != nil {
		wrapped = Deadlined(e.timeout, wrapped)
	}

	// Wrap with retry
	if e.retry != nil {
		wrapped = Retrying(e.retry, wrapped)
	}

	if e.breaker != nil {
		inner := wrapped
		cb := e.breaker
		wrapped = func(tok *Token) (O, error) {
			return guardedRun(tok, cb, inner).Get()
		}
	}

	if e.bulkhead != nil {
		inner := wrapped
		b := e.bulkhead
		wrapped = func(tok *Token) (O, error) {
			return boundedRun(tok, b, inner).Get()
		}
	}

	// Wrap with rate limiter (outermost)
	if e.rateLimiter != nil {
		inner := wrapped
		rl, id := e.rateLimiter, e.identifier
		wrapped = func(tok *Token) (O, error) {
			return admitRun(tok, rl, id, inner).Get()
		}
	}

	return wrapped
}

// Execute runs op through all configured patterns.
func Execute[O any](ctx context.Context, e *Executor, op Operation[O]) Outcome[O] {
	return Run(ctx, Apply(e, op))
}

// Execute runs an error-only operation through all configured patterns.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	return Execute(ctx, e, func(tok *Token) (struct{}, error) {
		return struct{}{}, op(tok)
	}).Err
}
