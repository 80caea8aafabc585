package resilience

import (
	"context"
	"sync"
	"time"
)

// WindowStore holds fixed-window counters by identifier.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Admit must evaluate and update one identifier's window in a single
//     critical section: two callers must never both pass a full window.
//   - A denied request must not change the window.
type WindowStore interface {
	Admit(ctx context.Context, id string, limit int, window time.Duration, now time.Time) (bool, error)
}

// RateLimiterConfig configures the fixed-window rate limiter.
type RateLimiterConfig struct {
	// Limit is the number of requests admitted per identifier per window.
	// Must be >= 1.
	Limit int

	// Window is the fixed window length. Must be > 0.
	Window time.Duration

	// Store holds the windows.
	// Default: a new MemoryStore
	Store WindowStore

	// OnDecision is called with every admission decision.
	OnDecision func(id string, allowed bool)

	// Clock provides the current time. Nil means the system clock.
	Clock Clock
}

// Validate checks the configuration.
func (c RateLimiterConfig) Validate() error {
	if c.Limit < 1 {
		return invalidConfig("rate limit must be >= 1, got %d", c.Limit)
	}
	if c.Window <= 0 {
		return invalidConfig("rate limit window must be > 0, got %v", c.Window)
	}
	return nil
}

// RateLimiter admits at most Limit requests per identifier in each fixed
// window. A window opens on an identifier's first request and resets on the
// first request at or after its end.
//
// The limiter never evicts windows on its own. Callers must bound the
// identifier space or sweep the store (see MemoryStore.Sweep and
// MemoryStore.StartSweeper).
type RateLimiter struct {
	config RateLimiterConfig
	store  WindowStore
	clock  Clock
}

// NewRateLimiter creates a new fixed-window rate limiter.
func NewRateLimiter(config RateLimiterConfig) (*RateLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	store := config.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return &RateLimiter{
		config: config,
		store:  store,
		clock:  clockOrSystem(config.Clock),
	}, nil
}

// Allow decides whether a request for id is admitted now.
func (rl *RateLimiter) Allow(ctx context.Context, id string) (bool, error) {
	allowed, err := rl.store.Admit(ctx, id, rl.config.Limit, rl.config.Window, rl.clock.Now())
	if err != nil {
		return false, err
	}
	if rl.config.OnDecision != nil {
		rl.config.OnDecision(id, allowed)
	}
	return allowed, nil
}

// IsAllowed is Allow without a context. A store error denies the request.
func (rl *RateLimiter) IsAllowed(id string) bool {
	allowed, err := rl.Allow(context.Background(), id)
	return err == nil && allowed
}

// Execute runs op if id is admitted, otherwise returns ErrRateLimitExceeded.
func (rl *RateLimiter) Execute(ctx context.Context, id string, op func(context.Context) error) error {
	return Admit(ctx, rl, id, func(tok *Token) (struct{}, error) {
		return struct{}{}, op(tok)
	}).Err
}

// Config returns the rate limiter configuration.
func (rl *RateLimiter) Config() RateLimiterConfig {
	return rl.config
}

// Admit runs op if id is admitted by rl, otherwise fails with
// ErrRateLimitExceeded.
func Admit[O any](ctx context.Context, rl *RateLimiter, id string, op Operation[O]) Outcome[O] {
	tok, release := acquireToken(ctx)
	defer release()
	return admitRun(tok, rl, id, op)
}

func admitRun[O any](tok *Token, rl *RateLimiter, id string, op Operation[O]) Outcome[O] {
	allowed, err := rl.Allow(tok, id)
	if err != nil {
		return Fail[O](err)
	}
	if !allowed {
		return Fail[O](ErrRateLimitExceeded)
	}
	return From(op(tok))
}

// WindowState is a snapshot of one identifier's window.
type WindowState struct {
	Count int
	Start time.Time
}

type window struct {
	mu    sync.Mutex
	count int
	start time.Time
	swept bool
}

// MemoryStore is an in-process WindowStore.
//
// The map lock only guards lookup and insertion; each window has its own
// lock, so different identifiers are evaluated concurrently.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]*window
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

// Admit implements WindowStore.
func (s *MemoryStore) Admit(_ context.Context, id string, limit int, size time.Duration, now time.Time) (bool, error) {
	for {
		w := s.window(id, now)
		w.mu.Lock()
		if w.swept {
			// Removed by Sweep after lookup; retry against the live window.
			w.mu.Unlock()
			continue
		}
		allowed := w.admit(limit, size, now)
		w.mu.Unlock()
		return allowed, nil
	}
}

// admit must be called with w.mu held.
func (w *window) admit(limit int, size time.Duration, now time.Time) bool {
	switch {
	case w.count == 0 || !now.Before(w.start.Add(size)):
		w.count = 1
		w.start = now
		return true
	case w.count < limit:
		w.count++
		return true
	default:
		return false
	}
}

func (s *MemoryStore) window(id string, now time.Time) *window {
	s.mu.RLock()
	w, ok := s.windows[id]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.windows[id]; ok {
		return w
	}
	w = &window{start: now}
	s.windows[id] = w
	return w
}

// State returns the current window for id.
func (s *MemoryStore) State(id string) (WindowState, bool) {
	s.mu.RLock()
	w, ok := s.windows[id]
	s.mu.RUnlock()
	if !ok {
		return WindowState{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return WindowState{Count: w.count, Start: w.start}, true
}

// Len returns the number of tracked identifiers.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

// Sweep removes windows that ended before now for the given window size and
// returns how many were removed.
func (s *MemoryStore) Sweep(size time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, w := range s.windows {
		w.mu.Lock()
		if !now.Before(w.start.Add(size)) {
			w.swept = true
			delete(s.windows, id)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// StartSweeper sweeps the store every interval until ctx is done. It is the
// caller's maintenance task; the store never sweeps by itself.
func (s *MemoryStore) StartSweeper(ctx context.Context, size, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				s.Sweep(size, now)
			}
		}
	}()
}

// Ensure MemoryStore implements WindowStore
var _ WindowStore = (*MemoryStore)(nil)
