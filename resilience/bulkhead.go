package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of operations in flight across all
	// callers. Must be >= 1.
	MaxConcurrent int

	// MaxWait is the maximum time to wait for a slot.
	// Default: 0 (no waiting, fail immediately)
	MaxWait time.Duration
}

// Validate checks the configuration.
func (c BulkheadConfig) Validate() error {
	if c.MaxConcurrent < 1 {
		return invalidConfig("bulkhead max concurrent must be >= 1, got %d", c.MaxConcurrent)
	}
	if c.MaxWait < 0 {
		return invalidConfig("bulkhead max wait must be >= 0, got %v", c.MaxWait)
	}
	return nil
}

// Bulkhead caps concurrent operations across independent calls. RunBatch
// bounds one batch; a Bulkhead bounds everything sharing it.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted

	mu        sync.Mutex
	active    int
	maxActive int
	rejected  int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) (*Bulkhead, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}, nil
}

// Acquire takes a slot, waiting up to MaxWait. It returns ErrBulkheadFull
// when no slot frees up in time, or a cancellation error if ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		b.acquired()
		return nil
	}

	if b.config.MaxWait <= 0 {
		b.reject()
		return ErrBulkheadFull
	}

	wctx, cancel := context.WithTimeoutCause(ctx, b.config.MaxWait, ErrBulkheadFull)
	defer cancel()

	if err := b.sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return cancelledError(ctx)
		}
		b.reject()
		return ErrBulkheadFull
	}
	b.acquired()
	return nil
}

func (b *Bulkhead) acquired() {
	b.mu.Lock()
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.mu.Unlock()
}

func (b *Bulkhead) reject() {
	b.mu.Lock()
	b.rejected++
	b.mu.Unlock()
}

// Release returns a slot taken by Acquire.
func (b *Bulkhead) Release() {
	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	b.sem.Release(1)
}

// Bounded runs op inside the bulkhead.
func Bounded[O any](ctx context.Context, b *Bulkhead, op Operation[O]) Outcome[O] {
	tok, release := acquireToken(ctx)
	defer release()
	return boundedRun(tok, b, op)
}

func boundedRun[O any](tok *Token, b *Bulkhead, op Operation[O]) Outcome[O] {
	if err := tok.Check(); err != nil {
		return Fail[O](err)
	}
	if err := b.Acquire(tok); err != nil {
		return Fail[O](err)
	}
	defer b.Release()

	return From(op(tok))
}

// Execute runs an error-only operation within the bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	return Bounded(ctx, b, func(tok *Token) (struct{}, error) {
		return struct{}{}, op(tok)
	}).Err
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Active:        b.active,
		MaxActive:     b.maxActive,
		Available:     b.config.MaxConcurrent - b.active,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}
