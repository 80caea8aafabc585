package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/taskops/resilience"
)

func ExampleRunBatch() {
	names := []string{"alpha", "beta", "gamma", "delta"}

	results, err := resilience.RunBatch(context.Background(), names,
		func(tok *resilience.Token, name string) (string, error) {
			if name == "gamma" {
				return "", errors.New("gamma unavailable")
			}
			return strings.ToUpper(name), nil
		},
		resilience.BatchConfig{Concurrency: 2, Policy: resilience.IsolateFailures},
	)

	fmt.Println("batch error:", err)
	for i, out := range results {
		if out.OK() {
			fmt.Printf("%d: %s\n", i, out.Value)
		} else {
			fmt.Printf("%d: failed (%s)\n", i, out.Err)
		}
	}
	// Output:
	// batch error: <nil>
	// 0: ALPHA
	// 1: BETA
	// 2: failed (gamma unavailable)
	// 3: DELTA
}

func ExampleRunBatch_failFast() {
	results, err := resilience.RunBatch(context.Background(), []int{1, 2, 3, 4},
		func(tok *resilience.Token, n int) (int, error) {
			if n == 2 {
				return 0, errors.New("bad item")
			}
			return n * n, nil
		},
		resilience.BatchConfig{Concurrency: 1},
	)

	fmt.Println("batch error:", err)
	for i, out := range results {
		fmt.Printf("%d: %s\n", i, out.Kind())
	}
	// Output:
	// batch error: bad item
	// 0: none
	// 1: operation_failed
	// 2: cancelled
	// 3: cancelled
}

func ExampleNewRetry() {
	retry, err := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    100 * time.Millisecond,
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	attempts := 0
	out := resilience.WithRetry(context.Background(), retry, func(tok *resilience.Token) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("temporary failure")
		}
		return "ok", nil
	})

	fmt.Printf("%s after %d attempts\n", out.Value, attempts)
	// Output:
	// ok after 3 attempts
}

func ExampleNewRetry_withCallback() {
	retry, _ := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			fmt.Printf("Attempt %d failed, retrying in %v\n", attempt, delay)
		},
	})

	_ = retry.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("temporary")
	})

	fmt.Println("Gave up")
	// Output:
	// Attempt 1 failed, retrying in 1ms
	// Attempt 2 failed, retrying in 2ms
	// Gave up
}

func ExampleNewRetry_invalidConfig() {
	_, err := resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 0, Multiplier: 2})

	fmt.Println(errors.Is(err, resilience.ErrInvalidConfig))
	fmt.Println(resilience.KindOf(err))
	// Output:
	// true
	// configuration
}

func ExamplePermanent() {
	retry, _ := resilience.NewRetry(resilience.DefaultRetryConfig())

	attempts := 0
	err := retry.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return resilience.Permanent(errors.New("invalid input"))
	})

	fmt.Println(err, "after", attempts, "attempt")
	// Output:
	// invalid input after 1 attempt
}

func ExampleNewTimeout() {
	timeout, _ := resilience.NewTimeout(resilience.TimeoutConfig{
		Timeout: 50 * time.Millisecond,
	})

	ctx := context.Background()

	out := resilience.WithTimeout(ctx, timeout, func(tok *resilience.Token) (string, error) {
		return "fast", nil
	})
	fmt.Println("fast:", out.Value, out.Err)

	out = resilience.WithTimeout(ctx, timeout, func(tok *resilience.Token) (string, error) {
		if err := tok.Sleep(time.Second); err != nil {
			return "", err
		}
		return "slow", nil
	})
	fmt.Println("slow:", out.Kind())
	// Output:
	// fast: fast <nil>
	// slow: timeout
}

func ExampleExecuteWithTimeout() {
	err := resilience.ExecuteWithTimeout(context.Background(), 50*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	})

	fmt.Println("Completed without timeout:", err == nil)
	// Output:
	// Completed without timeout: true
}

func ExampleNewRateLimiter() {
	rl, _ := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Limit:  3,
		Window: time.Minute,
	})

	for i := 1; i <= 4; i++ {
		fmt.Printf("request %d allowed: %v\n", i, rl.IsAllowed("client-42"))
	}
	fmt.Println("other client allowed:", rl.IsAllowed("client-7"))
	// Output:
	// request 1 allowed: true
	// request 2 allowed: true
	// request 3 allowed: true
	// request 4 allowed: false
	// other client allowed: true
}

func ExampleRateLimiter_Execute() {
	rl, _ := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Limit:  2,
		Window: time.Minute,
	})

	ctx := context.Background()
	successCount := 0
	for i := 0; i < 3; i++ {
		err := rl.Execute(ctx, "client", func(ctx context.Context) error {
			return nil
		})
		if err == nil {
			successCount++
		}
	}

	fmt.Printf("Successful executions: %d\n", successCount)
	// Output:
	// Successful executions: 2
}

func ExampleNewDebouncer() {
	runs := 0
	search, _ := resilience.NewDebouncer(func(tok *resilience.Token, query string) (string, error) {
		runs++
		return "results for " + query, nil
	}, resilience.DebounceConfig{Delay: 20 * time.Millisecond})
	defer search.Close()

	ctx := context.Background()
	done := make(chan string, 2)
	go func() {
		v, _ := search.Call(ctx, "go")
		done <- v
	}()
	time.Sleep(5 * time.Millisecond)
	go func() {
		v, _ := search.Call(ctx, "golang")
		done <- v
	}()

	fmt.Println(<-done)
	fmt.Println(<-done)
	fmt.Println("runs:", runs)
	// Output:
	// results for golang
	// results for golang
	// runs: 1
}

func ExampleNewThrottler() {
	save, _ := resilience.NewThrottler(func(tok *resilience.Token, doc string) (string, error) {
		return "saved " + doc, nil
	}, resilience.ThrottleConfig{Delay: time.Minute})

	ctx := context.Background()

	v, err := save.Call(ctx, "draft-1")
	fmt.Println(v, err)

	_, err = save.Call(ctx, "draft-2")
	fmt.Println(errors.Is(err, resilience.ErrThrottled))
	// Output:
	// saved draft-1 <nil>
	// true
}

func ExampleNewBulkhead() {
	bh, _ := resilience.NewBulkhead(resilience.BulkheadConfig{
		MaxConcurrent: 2,
	})

	ctx := context.Background()

	err1 := bh.Acquire(ctx)
	err2 := bh.Acquire(ctx)
	err3 := bh.Acquire(ctx)

	fmt.Println("Slot 1:", err1 == nil)
	fmt.Println("Slot 2:", err2 == nil)
	fmt.Println("Slot 3:", errors.Is(err3, resilience.ErrBulkheadFull))

	bh.Release()

	metrics := bh.Metrics()
	fmt.Printf("Active: %d, Available: %d, Rejected: %d\n",
		metrics.Active, metrics.Available, metrics.Rejected)
	// Output:
	// Slot 1: true
	// Slot 2: true
	// Slot 3: true
	// Active: 1, Available: 1, Rejected: 1
}

func ExampleNewExecutor() {
	retry, _ := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
	})
	timeout, _ := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: time.Second})
	rl, _ := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Limit:  100,
		Window: time.Second,
	})

	executor := resilience.NewExecutor(
		resilience.UseRateLimiter(rl, "reports"),
		resilience.UseRetry(retry),
		resilience.UseTimeout(timeout),
	)

	attempts := 0
	out := resilience.Execute(context.Background(), executor, func(tok *resilience.Token) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	})

	fmt.Println(out.Value, out.Err, attempts)
	// Output:
	// 42 <nil> 2
}

func ExampleToken() {
	tok := resilience.NewToken(context.Background())
	child := tok.Child()

	fmt.Println("before:", child.Check())
	tok.Cancel(errors.New("shutting down"))

	<-child.Done()
	fmt.Println("after:", child.Check())
	// Output:
	// before: <nil>
	// after: resilience: operation cancelled: shutting down
}

func ExampleFirst() {
	out := resilience.First(context.Background(),
		func(tok *resilience.Token) (string, error) {
			return "", errors.New("primary unavailable")
		},
		func(tok *resilience.Token) (string, error) {
			if err := tok.Sleep(10 * time.Millisecond); err != nil {
				return "", err
			}
			return "served by replica", nil
		},
	)
	fmt.Println(out.Value, out.Err)
	// Output: served by replica <nil>
}
