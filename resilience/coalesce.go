package resilience

import (
	"context"
	"sync"
	"time"
)

// Func is a fallible call taking one argument.
type Func[A, R any] func(tok *Token, arg A) (R, error)

// DebounceConfig configures a Debouncer.
type DebounceConfig struct {
	// Delay is the quiet period after the last call before fn runs. Must be > 0.
	Delay time.Duration

	// Clock schedules the trailing timer. Nil means the system clock.
	Clock Clock
}

// Validate checks the configuration.
func (c DebounceConfig) Validate() error {
	if c.Delay <= 0 {
		return invalidConfig("debounce delay must be > 0, got %v", c.Delay)
	}
	return nil
}

// coalesceState is everything a Debouncer mutates, guarded by its mutex.
// At most one timer is pending at a time.
type coalesceState[A, R any] struct {
	timer      Timer
	generation uint64
	pending    *pendingCall[A, R]
	lastRunAt  time.Time
	closed     bool
}

// pendingCall is the burst being collected: the latest argument and every
// caller waiting for the burst's single execution.
type pendingCall[A, R any] struct {
	arg     A
	waiters []chan Outcome[R]
}

// Debouncer collapses a burst of calls into one execution of fn with the
// last call's argument, once no call has arrived for Delay.
//
// Every caller of a burst receives the result of that one execution. A
// caller whose context ends stops waiting without cancelling the execution.
// Close settles any waiting callers with ErrCancelled.
type Debouncer[A, R any] struct {
	fn     Func[A, R]
	config DebounceConfig
	clock  Clock
	tok    *Token

	mu    sync.Mutex
	state coalesceState[A, R]
}

// NewDebouncer creates a debouncer around fn.
func NewDebouncer[A, R any](fn Func[A, R], config DebounceConfig) (*Debouncer[A, R], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Debouncer[A, R]{
		fn:     fn,
		config: config,
		clock:  clockOrSystem(config.Clock),
		tok:    NewToken(context.Background()),
	}, nil
}

// Call schedules fn(arg), replacing the argument of any pending call, and
// waits for the burst's execution. A ctx that is already done returns a
// cancelled error without touching the pending call.
func (d *Debouncer[A, R]) Call(ctx context.Context, arg A) (R, error) {
	var zero R
	// A caller that already gave up must not reshape the burst.
	if ctx.Err() != nil {
		return zero, cancelledError(ctx)
	}
	ch := make(chan Outcome[R], 1)

	d.mu.Lock()
	if d.state.closed {
		d.mu.Unlock()
		return zero, ErrCancelled
	}
	if d.state.timer != nil {
		d.state.timer.Stop()
	}
	if d.state.pending == nil {
		d.state.pending = &pendingCall[A, R]{}
	}
	d.state.pending.arg = arg
	d.state.pending.waiters = append(d.state.pending.waiters, ch)
	d.state.generation++
	gen := d.state.generation
	d.state.timer = d.clock.AfterFunc(d.config.Delay, func() { d.fire(gen) })
	d.mu.Unlock()

	select {
	case out := <-ch:
		return out.Get()
	case <-ctx.Done():
		return zero, cancelledError(ctx)
	}
}

// fire runs the pending call if gen still identifies the latest schedule.
// A timer that fired while being replaced sees a newer generation and does
// nothing.
func (d *Debouncer[A, R]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.state.generation || d.state.pending == nil {
		d.mu.Unlock()
		return
	}
	call := d.takeLocked()
	d.mu.Unlock()

	d.run(call)
}

// Flush runs the pending call now instead of waiting for the quiet period.
// It reports whether there was a pending call.
func (d *Debouncer[A, R]) Flush() bool {
	d.mu.Lock()
	if d.state.pending == nil {
		d.mu.Unlock()
		return false
	}
	if d.state.timer != nil {
		d.state.timer.Stop()
	}
	d.state.generation++
	call := d.takeLocked()
	d.mu.Unlock()

	d.run(call)
	return true
}

// Close stops the pending timer, settles waiting callers with ErrCancelled
// and cancels the token of a running execution. Later calls fail with
// ErrCancelled.
func (d *Debouncer[A, R]) Close() {
	d.mu.Lock()
	if d.state.closed {
		d.mu.Unlock()
		return
	}
	d.state.closed = true
	if d.state.timer != nil {
		d.state.timer.Stop()
		d.state.timer = nil
	}
	d.state.generation++
	call := d.state.pending
	d.state.pending = nil
	d.mu.Unlock()

	d.tok.release()
	if call != nil {
		settle(call.waiters, Fail[R](ErrCancelled))
	}
}

// Pending returns the number of callers waiting on the current burst.
func (d *Debouncer[A, R]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.pending == nil {
		return 0
	}
	return len(d.state.pending.waiters)
}

// LastRunAt returns when fn last started, or the zero time.
func (d *Debouncer[A, R]) LastRunAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.lastRunAt
}

// takeLocked detaches the pending call. d.mu must be held.
func (d *Debouncer[A, R]) takeLocked() *pendingCall[A, R] {
	call := d.state.pending
	d.state.pending = nil
	d.state.timer = nil
	d.state.lastRunAt = d.clock.Now()
	return call
}

func (d *Debouncer[A, R]) run(call *pendingCall[A, R]) {
	arg := call.arg
	out := protect(d.tok, func(tok *Token) (R, error) {
		return d.fn(tok, arg)
	})
	settle(call.waiters, out)
}

// settle delivers out to every waiter. Waiter channels are buffered, so a
// caller that stopped waiting never blocks delivery.
func settle[R any](waiters []chan Outcome[R], out Outcome[R]) {
	for _, w := range waiters {
		w <- out
	}
}

// ThrottleMode decides what happens to calls arriving inside the window.
type ThrottleMode int

const (
	// ThrottleReject fails calls inside the window with ErrThrottled.
	ThrottleReject ThrottleMode = iota

	// ThrottleQueue delays calls until their own window opens.
	ThrottleQueue
)

// ThrottleConfig configures a Throttler.
type ThrottleConfig struct {
	// Delay is the minimum time between two executions. Must be > 0.
	Delay time.Duration

	// Mode selects rejecting or queueing.
	// Default: ThrottleReject
	Mode ThrottleMode

	// Clock provides the time. Nil means the system clock.
	Clock Clock
}

// Validate checks the configuration.
func (c ThrottleConfig) Validate() error {
	if c.Delay <= 0 {
		return invalidConfig("throttle delay must be > 0, got %v", c.Delay)
	}
	if c.Mode != ThrottleReject && c.Mode != ThrottleQueue {
		return invalidConfig("unknown throttle mode %d", int(c.Mode))
	}
	return nil
}

// Throttler runs fn at most once per Delay. The first call runs
// immediately; the window restarts at every execution.
//
// In ThrottleQueue mode each queued call reserves the next free slot, so a
// queued caller that gives up leaves its slot unused.
type Throttler[A, R any] struct {
	fn     Func[A, R]
	config ThrottleConfig
	clock  Clock

	mu        sync.Mutex
	lastRunAt time.Time
	ran       bool
}

// NewThrottler creates a throttler around fn.
func NewThrottler[A, R any](fn Func[A, R], config ThrottleConfig) (*Throttler[A, R], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Throttler[A, R]{
		fn:     fn,
		config: config,
		clock:  clockOrSystem(config.Clock),
	}, nil
}

// Call runs fn(arg) if the window allows it.
func (t *Throttler[A, R]) Call(ctx context.Context, arg A) (R, error) {
	var zero R

	tok, release := acquireToken(ctx)
	defer release()

	if err := tok.Check(); err != nil {
		return zero, err
	}

	t.mu.Lock()
	now := t.clock.Now()
	slot := now
	if t.ran {
		if next := t.lastRunAt.Add(t.config.Delay); now.Before(next) {
			if t.config.Mode == ThrottleReject {
				t.mu.Unlock()
				return zero, ErrThrottled
			}
			slot = next
		}
	}
	t.lastRunAt = slot
	t.ran = true
	t.mu.Unlock()

	if err := sleep(tok, t.clock, slot.Sub(now)); err != nil {
		return zero, err
	}

	return protect(tok, func(tok *Token) (R, error) {
		return t.fn(tok, arg)
	}).Get()
}

// LastRunAt returns the start of the current window, or the zero time.
func (t *Throttler[A, R]) LastRunAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRunAt
}
