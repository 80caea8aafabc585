package health_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/taskops/health"
	"github.com/jonwraymond/taskops/resilience"
)

func ExampleNewCheckerFunc() {
	store := health.NewCheckerFunc("store", func(ctx context.Context) health.Result {
		return health.Healthy("store reachable")
	})

	result := store.Check(context.Background())
	fmt.Println(store.Name(), result.Status, result.Message)
	// Output:
	// store healthy store reachable
}

func ExampleNewBulkheadChecker() {
	ctx := context.Background()
	bh, _ := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 2})
	checker := health.NewBulkheadChecker("downstream", bh, 0.5)

	fmt.Println(checker.Check(ctx).Status)

	_ = bh.Acquire(ctx)
	fmt.Println(checker.Check(ctx).Status)

	_ = bh.Acquire(ctx)
	_ = bh.Acquire(ctx) // rejected
	fmt.Println(checker.Check(ctx).Status)
	// Output:
	// healthy
	// degraded
	// unhealthy
}

func ExampleAggregator_CheckAll() {
	agg := health.NewAggregator(health.AggregatorConfig{Timeout: time.Second})
	agg.Register("windows", health.NewWindowStoreChecker("windows", resilience.NewMemoryStore(), 1000))
	agg.Register("redis", health.NewCheckerFunc("redis", func(context.Context) health.Result {
		return health.Unhealthy("ping failed", errors.New("connection refused"))
	}))

	results := agg.CheckAll(context.Background())
	for _, name := range agg.CheckerNames() {
		fmt.Printf("%s: %s\n", name, results[name].Status)
	}
	fmt.Println("overall:", agg.OverallStatus(results))
	// Output:
	// windows: healthy
	// redis: unhealthy
	// overall: unhealthy
}
