package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for the operation. Must be > 0.
	Timeout time.Duration

	// OnTimeout is called when the timer wins the race.
	OnTimeout func(timeout time.Duration)

	// Clock provides the timer. Nil means the system clock.
	Clock Clock
}

// Validate checks the configuration.
func (c TimeoutConfig) Validate() error {
	if c.Timeout <= 0 {
		return invalidConfig("timeout must be > 0, got %v", c.Timeout)
	}
	return nil
}

// Timeout races operations against a timer.
type Timeout struct {
	config TimeoutConfig
	clock  Clock
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) (*Timeout, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Timeout{config: config, clock: clockOrSystem(config.Clock)}, nil
}

// WithTimeout runs op on a child token and returns whichever settles first:
// the operation's outcome or ErrTimeout. On timeout the child token is
// cancelled with ErrTimeout as its cause and the operation is left to notice
// it at its next suspension point; its late result is discarded.
func WithTimeout[O any](ctx context.Context, t *Timeout, op Operation[O]) Outcome[O] {
	tok, release := acquireToken(ctx)
	defer release()
	return timeoutRace(tok, t, op)
}

// Deadlined decorates op with t so it can be composed with other wrappers.
func Deadlined[O any](t *Timeout, op Operation[O]) Operation[O] {
	return func(tok *Token) (O, error) {
		return timeoutRace(tok, t, op).Get()
	}
}

func timeoutRace[O any](parent *Token, t *Timeout, op Operation[O]) Outcome[O] {
	if err := parent.Check(); err != nil {
		return Fail[O](err)
	}

	child := parent.Child()
	defer child.release()

	timer := t.clock.NewTimer(t.config.Timeout)
	defer timer.Stop()

	// Buffered so the operation goroutine never blocks after losing.
	done := make(chan Outcome[O], 1)
	go func() {
		done <- protect(child, op)
	}()

	select {
	case out := <-done:
		return out
	case <-timer.C():
		child.Cancel(ErrTimeout)
		if t.config.OnTimeout != nil {
			t.config.OnTimeout(t.config.Timeout)
		}
		return Fail[O](ErrTimeout)
	case <-parent.Done():
		return Fail[O](cancelledError(parent))
	}
}

// Execute runs an error-only operation with a timeout.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	return WithTimeout(ctx, t, func(tok *Token) (struct{}, error) {
		return struct{}{}, op(tok)
	}).Err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// ExecuteWithTimeout is a convenience function to run an operation with timeout.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	t, err := NewTimeout(TimeoutConfig{Timeout: timeout})
	if err != nil {
		return err
	}
	return t.Execute(ctx, op)
}

// protect runs op and converts a panic into an ErrPanic outcome. Operations
// run on goroutines the caller does not own, so a panic there could not be
// recovered by the caller.
func protect[O any](tok *Token, op Operation[O]) (out Outcome[O]) {
	defer func() {
		if r := recover(); r != nil {
			out = Fail[O](fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()
	return From(op(tok))
}
