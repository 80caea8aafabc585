package resilience

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for resilience operations.
var (
	// ErrTimeout is returned when an operation does not finish within its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrCancelled is returned when an operation observes a cancelled token.
	ErrCancelled = errors.New("resilience: operation cancelled")

	// ErrRateLimitExceeded is returned when an admission gate denies a call.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrInvalidConfig is returned synchronously for invalid parameters.
	ErrInvalidConfig = errors.New("resilience: invalid configuration")

	// ErrPanic is returned when a batch worker panics.
	ErrPanic = errors.New("resilience: worker panicked")
)

// Derived errors. They match their parent sentinel with errors.Is.
var (
	// ErrSkipped marks batch items never dispatched because the batch stopped.
	ErrSkipped = fmt.Errorf("%w: item skipped", ErrCancelled)

	// ErrThrottled is returned by a Throttler rejecting a call inside its window.
	ErrThrottled = fmt.Errorf("%w: call throttled", ErrRateLimitExceeded)

	// ErrBulkheadFull is returned when a Bulkhead has no free slot in time.
	ErrBulkheadFull = fmt.Errorf("%w: bulkhead full", ErrRateLimitExceeded)

	// ErrCircuitOpen is returned when a CircuitBreaker rejects a call.
	ErrCircuitOpen = fmt.Errorf("%w: circuit breaker is open", ErrRateLimitExceeded)
)

// ErrorKind classifies the error carried by an Outcome.
type ErrorKind int

const (
	// KindNone means no error.
	KindNone ErrorKind = iota
	// KindOperationFailed is the wrapped operation's own error.
	KindOperationFailed
	// KindTimeout means the operation did not finish in time.
	KindTimeout
	// KindCancelled means the operation observed cancellation.
	KindCancelled
	// KindRateLimitExceeded means an admission gate denied the call.
	KindRateLimitExceeded
	// KindConfiguration means the call was rejected before any work started.
	KindConfiguration
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindOperationFailed:
		return "operation_failed"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindRateLimitExceeded:
		return "rate_limit_exceeded"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Anything that is not one of the package's
// sentinels (or a context error) is an operation failure.
//
// Cancellation is checked before timeout: an operation stopped by a
// DeadlineGuard observes ErrCancelled with ErrTimeout as its cause.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidConfig):
		return KindConfiguration
	case errors.Is(err, ErrRateLimitExceeded):
		return KindRateLimitExceeded
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindOperationFailed
	}
}

// permanentError marks an error as not retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() error   { return e.err }
func (e *permanentError) Retryable() bool { return false }

// Permanent wraps err so that Retry stops on it. The original error stays
// reachable through errors.Is and errors.As.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether err should be retried.
//
// An error may decide for itself by implementing Retryable() bool anywhere
// in its chain. Otherwise only operation failures are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return KindOf(err) == KindOperationFailed
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
