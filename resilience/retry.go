package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry behavior. There are no implicit
// defaults: NewRetry rejects invalid values. DefaultRetryConfig provides a
// starting point.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Must be >= 1; 1 disables retrying.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Must be >= 0.
	BaseDelay time.Duration

	// Multiplier scales the delay after each failed attempt. Must be >= 1.
	Multiplier float64

	// MaxDelay caps the delay between attempts. Zero means uncapped.
	MaxDelay time.Duration

	// Jitter randomizes each delay by up to +/- Jitter*delay. Must be in
	// [0, 1]. Zero keeps delays deterministic.
	Jitter float64

	// RetryIf decides whether an error is retried.
	// Default: IsRetryable.
	RetryIf func(err error) bool

	// OnRetry is called before sleeping ahead of each retry.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Clock drives the inter-attempt sleeps. Nil means the system clock.
	Clock Clock
}

// DefaultRetryConfig returns 3 attempts starting at 100ms, doubling, capped
// at 30s, without jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
	}
}

// Validate checks the configuration.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return invalidConfig("max attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.BaseDelay < 0 {
		return invalidConfig("base delay must be >= 0, got %v", c.BaseDelay)
	}
	if c.Multiplier < 1 || math.IsNaN(c.Multiplier) || math.IsInf(c.Multiplier, 0) {
		return invalidConfig("multiplier must be a finite value >= 1, got %v", c.Multiplier)
	}
	if c.MaxDelay < 0 {
		return invalidConfig("max delay must be >= 0, got %v", c.MaxDelay)
	}
	if c.Jitter < 0 || c.Jitter > 1 || math.IsNaN(c.Jitter) {
		return invalidConfig("jitter must be between 0 and 1, got %v", c.Jitter)
	}
	return nil
}

// Retry re-invokes a failing operation with exponential backoff. Attempts of
// one call are strictly sequential.
type Retry struct {
	config RetryConfig
	clock  Clock
}

// NewRetry creates a retry policy.
func NewRetry(config RetryConfig) (*Retry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RetryIf == nil {
		config.RetryIf = IsRetryable
	}
	return &Retry{config: config, clock: clockOrSystem(config.Clock)}, nil
}

// WithRetry runs op until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx is cancelled. The final failure is returned
// as is, without a trailing delay.
func WithRetry[O any](ctx context.Context, r *Retry, op Operation[O]) Outcome[O] {
	tok, release := acquireToken(ctx)
	defer release()
	return retryLoop(tok, r, op)
}

// Retrying decorates op with r so it can be composed with other wrappers.
func Retrying[O any](r *Retry, op Operation[O]) Operation[O] {
	return func(tok *Token) (O, error) {
		return retryLoop(tok, r, op).Get()
	}
}

func retryLoop[O any](tok *Token, r *Retry, op Operation[O]) Outcome[O] {
	for attempt := 1; ; attempt++ {
		if err := tok.Check(); err != nil {
			return Fail[O](err)
		}

		v, err := op(tok)
		if err == nil {
			return Ok(v)
		}

		if attempt >= r.config.MaxAttempts || !r.config.RetryIf(err) {
			return Fail[O](err)
		}

		delay := r.jitter(r.Delay(attempt))
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		if serr := sleep(tok, r.clock, delay); serr != nil {
			return Fail[O](serr)
		}
	}
}

// Execute runs an error-only operation with retry logic.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	return WithRetry(ctx, r, func(tok *Token) (struct{}, error) {
		return struct{}{}, op(tok)
	}).Err
}

// Delay returns the backoff after the given failed attempt (1-indexed),
// before jitter: min(BaseDelay * Multiplier^(attempt-1), MaxDelay).
func (r *Retry) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	f := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))

	delay := time.Duration(math.MaxInt64)
	if f < float64(math.MaxInt64) {
		delay = time.Duration(f)
	}
	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

func (r *Retry) jitter(delay time.Duration) time.Duration {
	if r.config.Jitter == 0 || delay <= 0 {
		return delay
	}
	// #nosec G404 -- jitter is non-cryptographic timing variance.
	offset := (rand.Float64()*2 - 1) * r.config.Jitter * float64(delay)
	delay += time.Duration(offset)
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
