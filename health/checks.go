package health

import (
	"context"
	"sync/atomic"

	"github.com/jonwraymond/taskops/resilience"
)

// DefaultDegradedUtilization is the bulkhead utilization at which a
// BulkheadChecker reports degraded.
const DefaultDegradedUtilization = 0.8

// Pinger is anything that can prove it is reachable, such as
// redisstore.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type pingChecker struct {
	name string
	p    Pinger
}

// NewPingChecker reports unhealthy when Ping fails.
func NewPingChecker(name string, p Pinger) Checker {
	return &pingChecker{name: name, p: p}
}

func (c *pingChecker) Name() string { return c.name }

func (c *pingChecker) Check(ctx context.Context) Result {
	if err := c.p.Ping(ctx); err != nil {
		return Unhealthy("ping failed", err)
	}
	return Healthy("reachable")
}

type bulkheadChecker struct {
	name         string
	b            *resilience.Bulkhead
	degradedAt   float64
	lastRejected atomic.Int64
}

// NewBulkheadChecker watches a shared bulkhead. It reports degraded once
// utilization reaches degradedAt (0 means DefaultDegradedUtilization) and
// unhealthy while the bulkhead is full and has rejected calls since the
// previous check.
func NewBulkheadChecker(name string, b *resilience.Bulkhead, degradedAt float64) Checker {
	if degradedAt <= 0 || degradedAt > 1 {
		degradedAt = DefaultDegradedUtilization
	}
	return &bulkheadChecker{name: name, b: b, degradedAt: degradedAt}
}

func (c *bulkheadChecker) Name() string { return c.name }

func (c *bulkheadChecker) Check(context.Context) Result {
	m := c.b.Metrics()
	newRejections := m.Rejected - c.lastRejected.Swap(m.Rejected)
	utilization := float64(m.Active) / float64(m.MaxConcurrent)

	details := map[string]any{
		"active":         m.Active,
		"max_concurrent": m.MaxConcurrent,
		"utilization":    utilization,
		"rejected":       m.Rejected,
	}

	switch {
	case m.Available == 0 && newRejections > 0:
		return Unhealthy("bulkhead full and rejecting", resilience.ErrBulkheadFull).WithDetails(details)
	case utilization >= c.degradedAt:
		return Degraded("bulkhead near capacity").WithDetails(details)
	default:
		return Healthy("bulkhead has capacity").WithDetails(details)
	}
}

type circuitChecker struct {
	name string
	cb   *resilience.CircuitBreaker
}

// NewCircuitChecker reports degraded while cb is open or half-open. An open
// circuit is the breaker doing its job, so it never reports unhealthy.
func NewCircuitChecker(name string, cb *resilience.CircuitBreaker) Checker {
	return &circuitChecker{name: name, cb: cb}
}

func (c *circuitChecker) Name() string { return c.name }

func (c *circuitChecker) Check(context.Context) Result {
	m := c.cb.Metrics()
	details := map[string]any{
		"state":    m.State.String(),
		"failures": m.Failures,
		"rejected": m.Rejected,
	}

	switch m.State {
	case resilience.StateOpen:
		return Degraded("circuit open").WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit half-open").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}

type windowStoreChecker struct {
	name       string
	store      *resilience.MemoryStore
	maxWindows int
}

// NewWindowStoreChecker reports degraded when a MemoryStore tracks more than
// maxWindows identifiers. The store never evicts on its own, so growth past
// the expected identifier count means the sweeper is missing or too slow.
func NewWindowStoreChecker(name string, store *resilience.MemoryStore, maxWindows int) Checker {
	return &windowStoreChecker{name: name, store: store, maxWindows: maxWindows}
}

func (c *windowStoreChecker) Name() string { return c.name }

func (c *windowStoreChecker) Check(context.Context) Result {
	n := c.store.Len()
	details := map[string]any{"windows": n, "max_windows": c.maxWindows}
	if c.maxWindows > 0 && n > c.maxWindows {
		return Degraded("rate limit windows above limit").WithDetails(details)
	}
	return Healthy("rate limit windows within limit").WithDetails(details)
}
