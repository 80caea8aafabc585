package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Operation is a fallible producer of O. It receives the Token of the call
// it runs under and should check it at its own suspension points.
type Operation[O any] func(tok *Token) (O, error)

// Token is a shared, monotonic cancellation signal with an optional
// deadline. It is passed by reference into operations and everything they
// call.
//
// Token implements context.Context, so it can be handed to any context-aware
// API. Cancellation is cooperative: it is only observed where code checks
// the token (Check, Sleep, Done). A computation that never checks it runs to
// completion.
//
// Once cancelled a token stays cancelled. Reaching the deadline cancels it.
type Token struct {
	context.Context
	cancel func(cause error)
}

// NewToken returns a token that is cancelled when parent is done or when
// Cancel is called.
func NewToken(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &Token{Context: ctx, cancel: cancel}
}

// NewTokenWithDeadline returns a token that is also cancelled at deadline.
func NewTokenWithDeadline(parent context.Context, deadline time.Time) *Token {
	if parent == nil {
		parent = context.Background()
	}
	dctx, stop := context.WithDeadline(parent, deadline)
	ctx, cancel := context.WithCancelCause(dctx)
	return &Token{
		Context: ctx,
		cancel: func(cause error) {
			cancel(cause)
			stop()
		},
	}
}

// Child returns a token that observes t's cancellation. Cancelling the child
// does not cancel t.
func (t *Token) Child() *Token {
	return NewToken(t)
}

// Cancel requests cancellation. A nil cause is recorded as ErrCancelled.
// Only the first call has an effect.
func (t *Token) Cancel(cause error) {
	if cause == nil {
		cause = ErrCancelled
	}
	t.cancel(cause)
}

// Cancelled reports whether cancellation has been requested.
func (t *Token) Cancelled() bool {
	return t.Err() != nil
}

// Cause returns the reason the token was cancelled, or nil.
func (t *Token) Cause() error {
	return context.Cause(t.Context)
}

// Check returns a cancellation error if the token is cancelled.
func (t *Token) Check() error {
	if t.Err() == nil {
		return nil
	}
	return cancelledError(t)
}

// Sleep suspends for d unless the token is cancelled first.
func (t *Token) Sleep(d time.Duration) error {
	return sleep(t, systemClock{}, d)
}

// release cancels the token once the call that created it returns.
func (t *Token) release() {
	t.cancel(ErrCancelled)
}

// cancelledError converts a done context into an ErrCancelled-kind error,
// keeping the cause reachable.
func cancelledError(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, ErrCancelled) {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// sleep is the suspension point shared by retry and queued throttling. It
// checks the token before and after waiting and always stops its timer.
func sleep(tok *Token, clock Clock, d time.Duration) error {
	if err := tok.Check(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return cancelledError(tok)
	case <-timer.C():
	}
	return tok.Check()
}

// acquireToken returns the token to run under. A *Token passed as ctx is
// shared; anything else gets a fresh token released by the returned func.
func acquireToken(ctx context.Context) (*Token, func()) {
	if tok, ok := ctx.(*Token); ok {
		return tok, func() {}
	}
	tok := NewToken(ctx)
	return tok, tok.release
}

// Run executes op under a token derived from ctx and returns its outcome.
// An already-cancelled ctx yields a cancelled outcome without calling op.
func Run[O any](ctx context.Context, op Operation[O]) Outcome[O] {
	tok, release := acquireToken(ctx)
	defer release()

	if err := tok.Check(); err != nil {
		return Fail[O](err)
	}
	return From(op(tok))
}
