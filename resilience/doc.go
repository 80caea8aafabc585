// Package resilience provides composable primitives for running fallible
// operations: bounded-concurrency batches, retry with exponential backoff,
// timeouts with cooperative cancellation, fixed-window rate limiting, and
// debounce/throttle coalescing.
//
// # Operations and tokens
//
// An Operation is a function of a *Token returning a value or an error. The
// Token is the call's cancellation signal; it implements context.Context and
// is shared by reference with everything the operation calls. Cancellation
// is cooperative: it is only observed where code checks the token (Check,
// Sleep, Done, or any context-aware API it is passed to). A computation that
// never checks cannot be stopped early.
//
// Results are reported as an Outcome, which carries either a value or an
// error. KindOf classifies errors into operation failures, timeouts,
// cancellations, rate-limit denials and configuration errors. Invalid
// configuration is always rejected before any work starts.
//
// # Patterns
//
//   - Retry: re-invokes a failed operation up to MaxAttempts times, waiting
//     min(BaseDelay*Multiplier^(attempt-1), MaxDelay) between attempts.
//
//   - Timeout: races an operation against a timer and cancels it on expiry.
//
//   - RunBatch: runs a worker over items with at most N in flight, keeping
//     results in input order. Fail-fast or isolated failures.
//
//   - RateLimiter: per-identifier fixed-window admission. Windows are not
//     evicted automatically; sweep the store or bound the identifiers.
//
//   - Debouncer and Throttler: collapse bursts of calls.
//
//   - Bulkhead: caps concurrent calls across independent callers.
//
//   - CircuitBreaker: fails calls fast after repeated failures, then lets a
//     trial call through once ResetTimeout has passed.
//
//   - First: runs alternatives concurrently and keeps the first success.
//
// Executor composes the single-call patterns in a fixed order: rate limiter,
// bulkhead, circuit breaker, retry, then a per-attempt timeout.
//
// # Usage
//
//	retry, _ := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts: 3,
//	    BaseDelay:   100 * time.Millisecond,
//	    Multiplier:  2.0,
//	})
//	timeout, _ := resilience.NewTimeout(resilience.TimeoutConfig{
//	    Timeout: 2 * time.Second,
//	})
//
//	exec := resilience.NewExecutor(
//	    resilience.UseRetry(retry),
//	    resilience.UseTimeout(timeout),
//	)
//
//	results, err := resilience.RunBatch(ctx, urls,
//	    func(tok *resilience.Token, url string) (Page, error) {
//	        return resilience.Execute(tok, exec, func(tok *resilience.Token) (Page, error) {
//	            return fetch(tok, url)
//	        }).Get()
//	    },
//	    resilience.BatchConfig{Concurrency: 8, Policy: resilience.IsolateFailures},
//	)
package resilience
