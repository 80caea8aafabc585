// Package health reports whether the shared resilience infrastructure can
// still serve calls.
//
// A Checker reports Healthy, Degraded or Unhealthy. The package ships
// checkers for a reachable rate-limit backend (NewPingChecker, which fits
// redisstore.Store), a shared bulkhead (NewBulkheadChecker), a circuit
// breaker (NewCircuitChecker) and an in-process window store that is not
// being swept (NewWindowStoreChecker).
//
// An Aggregator runs its checkers as one isolated batch with a per-check
// timeout:
//
//	agg := health.NewAggregator(health.AggregatorConfig{Timeout: 2 * time.Second})
//	agg.Register("redis", health.NewPingChecker("redis", store))
//	agg.Register("bulkhead", health.NewBulkheadChecker("bulkhead", bh, 0.9))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
package health
