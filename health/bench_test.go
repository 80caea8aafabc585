package health

import (
	"context"
	"fmt"
	"testing"

	"github.com/jonwraymond/taskops/resilience"
)

// BenchmarkChecker_Check measures single check performance.
func BenchmarkChecker_Check(b *testing.B) {
	checker := NewCheckerFunc("bench", func(ctx context.Context) Result {
		return Healthy("ok")
	})
	ctx := context.Background()

	for b.Loop() {
		_ = checker.Check(ctx)
	}
}

// BenchmarkBulkheadChecker_Check measures reading bulkhead state.
func BenchmarkBulkheadChecker_Check(b *testing.B) {
	bh, err := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 10})
	if err != nil {
		b.Fatal(err)
	}
	checker := NewBulkheadChecker("bench", bh, 0)
	ctx := context.Background()

	for b.Loop() {
		_ = checker.Check(ctx)
	}
}

// BenchmarkAggregator_CheckAll measures aggregation at several sizes.
func BenchmarkAggregator_CheckAll(b *testing.B) {
	for _, n := range []int{1, 10, 50} {
		for _, concurrency := range []int{1, 0} {
			b.Run(fmt.Sprintf("checks=%d/concurrency=%d", n, concurrency), func(b *testing.B) {
				agg := NewAggregator(AggregatorConfig{Concurrency: concurrency})
				for i := range n {
					name := fmt.Sprintf("check_%d", i)
					agg.Register(name, NewCheckerFunc(name, func(context.Context) Result {
						return Healthy("ok")
					}))
				}
				ctx := context.Background()

				for b.Loop() {
					_ = agg.CheckAll(ctx)
				}
			})
		}
	}
}

// BenchmarkAggregator_OverallStatus measures status folding.
func BenchmarkAggregator_OverallStatus(b *testing.B) {
	agg := NewAggregator()
	results := map[string]Result{
		"a": Healthy("ok"),
		"b": Degraded("slow"),
		"c": Healthy("ok"),
	}

	for b.Loop() {
		_ = agg.OverallStatus(results)
	}
}
