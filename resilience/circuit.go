package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed lets every call through and counts failures.
	StateClosed State = iota
	// StateOpen rejects every call with ErrCircuitOpen.
	StateOpen
	// StateHalfOpen lets a few trial calls through to test recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before letting a trial
	// call through.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of trial calls allowed at once while
	// half-open.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called after every transition, outside the breaker's
	// lock.
	OnStateChange func(from, to State)

	// IsFailure decides whether an error counts against the circuit.
	// Default: operation failures and timeouts. Cancellations and admission
	// rejections count neither way.
	IsFailure func(err error) bool

	// Clock supplies the time used for ResetTimeout.
	// Default: the system clock
	Clock Clock
}

// Validate checks the configuration. Zero values select defaults.
func (c CircuitBreakerConfig) Validate() error {
	if c.MaxFailures < 0 {
		return invalidConfig("circuit max failures must be >= 0, got %d", c.MaxFailures)
	}
	if c.ResetTimeout < 0 {
		return invalidConfig("circuit reset timeout must be >= 0, got %v", c.ResetTimeout)
	}
	if c.HalfOpenMaxRequests < 0 {
		return invalidConfig("circuit half-open max requests must be >= 0, got %d", c.HalfOpenMaxRequests)
	}
	return nil
}

// CountsAsFailure is the default IsFailure: operation failures and
// timeouts trip the circuit.
func CountsAsFailure(err error) bool {
	switch KindOf(err) {
	case KindOperationFailed, KindTimeout:
		return true
	default:
		return false
	}
}

// CircuitBreaker stops calling a dependency after repeated failures and
// tries it again once ResetTimeout has passed. Unlike Retry it remembers
// outcomes across calls, so it is meant to be shared.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	clock  Clock

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCount int
	rejected      int64
}

type transition struct{ from, to State }

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests == 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = CountsAsFailure
	}

	return &CircuitBreaker{
		config: config,
		clock:  clockOrSystem(config.Clock),
		state:  StateClosed,
	}, nil
}

// Guarded runs op through the circuit breaker. An open circuit fails fast
// with ErrCircuitOpen and never calls op.
func Guarded[O any](ctx context.Context, cb *CircuitBreaker, op Operation[O]) Outcome[O] {
	tok, release := acquireToken(ctx)
	defer release()
	return guardedRun(tok, cb, op)
}

func guardedRun[O any](tok *Token, cb *CircuitBreaker, op Operation[O]) Outcome[O] {
	if err := tok.Check(); err != nil {
		return Fail[O](err)
	}
	if err := cb.beforeRequest(); err != nil {
		return Fail[O](err)
	}

	out := protect(tok, op)
	cb.afterRequest(out.Err)
	return out
}

// Execute runs an error-only operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	return Guarded(ctx, cb, func(tok *Token) (struct{}, error) {
		return struct{}{}, op(tok)
	}).Err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	state, changes := cb.currentStateLocked()
	cb.mu.Unlock()

	cb.notify(changes)
	return state
}

// Reset closes the circuit and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var changes []transition
	if cb.state != StateClosed {
		changes = append(changes, transition{cb.state, StateClosed})
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCount = 0
	cb.mu.Unlock()

	cb.notify(changes)
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	state, changes := cb.currentStateLocked()

	var err error
	switch state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			err = ErrCircuitOpen
		} else {
			cb.halfOpenCount++
		}
	}
	if err != nil {
		cb.rejected++
	}
	cb.mu.Unlock()

	cb.notify(changes)
	return err
}

func (cb *CircuitBreaker) afterRequest(err error) {
	failed := err != nil && cb.config.IsFailure(err)

	cb.mu.Lock()
	from := cb.state

	switch cb.state {
	case StateClosed:
		switch {
		case failed:
			cb.failures++
			cb.lastFailure = cb.clock.Now()
			if cb.failures >= cb.config.MaxFailures {
				cb.state = StateOpen
			}
		case err == nil:
			cb.failures = 0
		}

	case StateHalfOpen:
		switch {
		case failed:
			cb.lastFailure = cb.clock.Now()
			cb.state = StateOpen
		case err == nil:
			cb.state = StateClosed
			cb.failures = 0
		default:
			// The trial told us nothing; give its slot back.
			if cb.halfOpenCount > 0 {
				cb.halfOpenCount--
			}
		}
	}

	var changes []transition
	if from != cb.state {
		changes = append(changes, transition{from, cb.state})
	}
	cb.mu.Unlock()

	cb.notify(changes)
}

// currentStateLocked moves an open circuit to half-open once ResetTimeout
// has passed since the last failure.
func (cb *CircuitBreaker) currentStateLocked() (State, []transition) {
	if cb.state == StateOpen && cb.clock.Now().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.state = StateHalfOpen
		cb.halfOpenCount = 0
		return cb.state, []transition{{StateOpen, StateHalfOpen}}
	}
	return cb.state, nil
}

func (cb *CircuitBreaker) notify(changes []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		cb.config.OnStateChange(c.from, c.to)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	state, changes := cb.currentStateLocked()
	m := CircuitBreakerMetrics{
		State:       state,
		Failures:    cb.failures,
		Rejected:    cb.rejected,
		LastFailure: cb.lastFailure,
	}
	cb.mu.Unlock()

	cb.notify(changes)
	return m
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	Rejected    int64
	LastFailure time.Time
}
