package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/taskops/resilience"
)

// DefaultCheckTimeout bounds a single check when AggregatorConfig.Timeout is
// not set.
const DefaultCheckTimeout = 10 * time.Second

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds each check.
	// Default: 10 seconds
	Timeout time.Duration

	// Concurrency is the number of checks run at once.
	// Default: all registered checks
	Concurrency int
}

// Aggregator runs a set of named checkers and combines their results.
type Aggregator struct {
	config  AggregatorConfig
	timeout *resilience.Timeout

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCheckTimeout
	}

	// A positive timeout always validates.
	timeout, _ := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: cfg.Timeout})

	return &Aggregator{
		config:   cfg,
		timeout:  timeout,
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker. Registering a name again replaces the checker
// but keeps its position.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Unregister removes a checker.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	a.order = slices.DeleteFunc(a.order, func(n string) bool { return n == name })
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Check runs a single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}
	return a.runCheck(ctx, checker), nil
}

// CheckAll runs every registered check and returns results by name. Checks
// run as one isolated batch, so a failing or slow check never hides the
// others. If ctx ends first, checks that never started report unhealthy.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	names := slices.Clone(a.order)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = a.checkers[name]
	}
	a.mu.RUnlock()

	results := make(map[string]Result, len(names))
	if len(names) == 0 {
		return results
	}

	concurrency := a.config.Concurrency
	if concurrency <= 0 {
		concurrency = len(checkers)
	}

	outs, _ := resilience.RunBatch(ctx, checkers,
		func(tok *resilience.Token, c Checker) (Result, error) {
			return a.runCheck(tok, c), nil
		},
		resilience.BatchConfig{
			Concurrency: concurrency,
			Policy:      resilience.IsolateFailures,
		},
	)

	for i, out := range outs {
		if out.Err != nil {
			results[names[i]] = Unhealthy("check not run", out.Err)
			continue
		}
		results[names[i]] = out.Value
	}
	return results
}

// OverallStatus returns the worst status in results. No results is healthy.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		overall = max(overall, r.Status)
	}
	return overall
}

func (a *Aggregator) runCheck(ctx context.Context, c Checker) Result {
	start := time.Now()

	out := resilience.WithTimeout(ctx, a.timeout, func(tok *resilience.Token) (Result, error) {
		return c.Check(tok), nil
	})

	r := out.Value
	switch resilience.KindOf(out.Err) {
	case resilience.KindNone:
	case resilience.KindTimeout:
		r = Unhealthy("check timed out", ErrCheckTimeout)
	default:
		r = Unhealthy("check interrupted", out.Err)
	}
	r.Duration = time.Since(start)
	return r
}

// Checker returns the aggregator as a single Checker.
func (a *Aggregator) Checker() Checker {
	return &aggregatorChecker{agg: a}
}

type aggregatorChecker struct {
	agg *Aggregator
}

func (c *aggregatorChecker) Name() string {
	return "aggregate"
}

func (c *aggregatorChecker) Check(ctx context.Context) Result {
	results := c.agg.CheckAll(ctx)
	status := c.agg.OverallStatus(results)

	details := make(map[string]any, len(results))
	for name, r := range results {
		details[name] = map[string]any{
			"status":   r.Status.String(),
			"message":  r.Message,
			"duration": r.Duration.String(),
		}
	}

	var message string
	switch status {
	case StatusHealthy:
		message = "all checks passed"
	case StatusDegraded:
		message = "some checks degraded"
	default:
		message = "some checks failed"
	}

	return Result{Status: status, Message: message, Details: details}
}
