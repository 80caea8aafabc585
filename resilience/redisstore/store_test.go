package redisstore

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/taskops/resilience"
)

// newTestStore connects to TASKOPS_REDIS_ADDR or skips the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("TASKOPS_REDIS_ADDR")
	if addr == "" {
		t.Skip("TASKOPS_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	s := New(rdb, WithPrefix("taskops:test:"+uuid.NewString()))
	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	return s
}

func TestNew_Defaults(t *testing.T) {
	s := New(nil)
	if s.Key("x") != "taskops:ratelimit:x" {
		t.Errorf("Key() = %q, want %q", s.Key("x"), "taskops:ratelimit:x")
	}

	s = New(nil, WithPrefix(":custom:"))
	if s.Key("x") != "custom:x" {
		t.Errorf("Key() = %q, want %q", s.Key("x"), "custom:x")
	}
}

func TestStore_FixedWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rl, err := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Limit:  5,
		Window: 500 * time.Millisecond,
		Store:  s,
	})
	if err != nil {
		t.Fatalf("NewRateLimiter() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if !rl.IsAllowed("x") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	if rl.IsAllowed("x") {
		t.Error("sixth request allowed, want denied")
	}
	if !rl.IsAllowed("y") {
		t.Error("identifier y affected by x's window")
	}

	count, err := s.Count(ctx, "x")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 5 {
		t.Errorf("Count() = %d, want 5 (denials must not mutate)", count)
	}

	time.Sleep(600 * time.Millisecond)
	if !rl.IsAllowed("x") {
		t.Error("request after window elapsed denied, want allowed")
	}
}

func TestStore_ConcurrentAdmissions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const limit = 10
	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Admit(ctx, "burst", limit, time.Minute, time.Now())
			if err != nil {
				t.Errorf("Admit() error = %v", err)
				return
			}
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != limit {
		t.Errorf("admitted = %d, want %d", got, limit)
	}

	if err := s.Reset(ctx, "burst"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if n, _ := s.Count(ctx, "burst"); n != 0 {
		t.Errorf("Count() after Reset = %d, want 0", n)
	}
}
