package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// FailurePolicy decides how a batch reacts to a failed item.
type FailurePolicy int

const (
	// FailFast stops claiming new items after the first operation failure or
	// timeout and cancels the batch token. In-flight items finish on their own.
	FailFast FailurePolicy = iota

	// IsolateFailures runs every item and reports a per-item outcome.
	IsolateFailures
)

// String returns the string representation of the policy.
func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case IsolateFailures:
		return "isolate_failures"
	default:
		return "unknown"
	}
}

// Worker processes one batch item.
type Worker[I, O any] func(tok *Token, item I) (O, error)

// BatchConfig configures RunBatch.
type BatchConfig struct {
	// Concurrency is the maximum number of items in flight. Must be >= 1.
	// It is clamped to the number of items.
	Concurrency int

	// Policy selects fail-fast or isolated failures.
	// Default: FailFast
	Policy FailurePolicy

	// Pacer, when set, is waited on before each dispatch.
	Pacer *rate.Limiter

	// OnItem is called after each item settles, from the worker goroutine.
	OnItem func(index int, err error, elapsed time.Duration)
}

// Validate checks the configuration.
func (c BatchConfig) Validate() error {
	if c.Concurrency <= 0 {
		return invalidConfig("concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.Policy != FailFast && c.Policy != IsolateFailures {
		return invalidConfig("unknown failure policy %d", int(c.Policy))
	}
	return nil
}

// RunBatch runs worker over items with at most cfg.Concurrency items in
// flight. The returned slice always has len(items) entries and entry i is the
// outcome of items[i], whatever the completion order.
//
// Workers claim indices from a shared atomic cursor and write only their own
// slot, so the results slice needs no lock.
//
// The error is ErrInvalidConfig for a bad configuration (raised before any
// work), the terminal item error under FailFast, or a cancellation error if
// ctx ended and at least one item was skipped or observed the cancellation.
// Items that were never dispatched carry ErrSkipped. A batch whose items all
// settled on their own returns nil even if ctx ended afterwards.
func RunBatch[I, O any](ctx context.Context, items []I, worker Worker[I, O], cfg BatchConfig) ([]Outcome[O], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	results := make([]Outcome[O], len(items))
	if len(items) == 0 {
		return results, nil
	}

	tok, release := acquireToken(ctx)
	defer release()

	// Fail-fast cancellation stays local to the batch: the group's context
	// is a child of tok, and errgroup cancels it with the first item error.
	g, gctx := errgroup.WithContext(tok)
	batchTok := NewToken(gctx)
	defer batchTok.release()

	workers := min(cfg.Concurrency, len(items))

	var cursor atomic.Int64
	for range workers {
		g.Go(func() error {
			for {
				if batchTok.Cancelled() {
					return nil
				}

				i := int(cursor.Add(1) - 1)
				if i >= len(items) {
					return nil
				}

				start := time.Now()
				out := runItem(batchTok, cfg.Pacer, worker, items[i])
				results[i] = out

				if cfg.OnItem != nil {
					cfg.OnItem(i, out.Err, time.Since(start))
				}

				if cfg.Policy == FailFast {
					switch out.Kind() {
					case KindOperationFailed, KindTimeout:
						return out.Err
					}
				}
			}
		})
	}
	terminal := g.Wait()

	claimed := min(int(cursor.Load()), len(items))
	for i := claimed; i < len(items); i++ {
		results[i] = Fail[O](ErrSkipped)
	}

	if terminal != nil {
		return results, terminal
	}
	if err := tok.Check(); err != nil && anyCancelled(results) {
		return results, err
	}
	return results, nil
}

func anyCancelled[O any](results []Outcome[O]) bool {
	for _, out := range results {
		if out.Kind() == KindCancelled {
			return true
		}
	}
	return false
}

func runItem[I, O any](tok *Token, pacer *rate.Limiter, worker Worker[I, O], item I) Outcome[O] {
	if pacer != nil {
		if err := pacer.Wait(tok); err != nil {
			if tok.Cancelled() {
				return Fail[O](cancelledError(tok))
			}
			return Fail[O](err)
		}
	}
	return protect(tok, func(tok *Token) (O, error) {
		return worker(tok, item)
	})
}
