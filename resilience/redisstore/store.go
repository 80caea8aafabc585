// Package redisstore provides a Redis-backed WindowStore so that several
// processes can share fixed-window rate limits.
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/taskops/resilience"
)

// admitScript is the fixed-window check-and-increment. The key holds the
// window count and expires when the window ends, so an absent key is a
// fresh window. A denied request leaves the key untouched.
var admitScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  redis.call('SET', KEYS[1], 1, 'PX', ARGV[2])
  return 1
end
if tonumber(current) < tonumber(ARGV[1]) then
  redis.call('INCR', KEYS[1])
  return 1
end
return 0
`)

// Store implements resilience.WindowStore on Redis.
//
// Window boundaries follow the Redis server clock through key expiry; the
// caller's now is not used. Expired windows are removed by Redis itself.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
// Default: "taskops:ratelimit"
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

// New creates a Store on rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:    rdb,
		prefix: "taskops:ratelimit",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit implements resilience.WindowStore.
func (s *Store) Admit(ctx context.Context, id string, limit int, window time.Duration, _ time.Time) (bool, error) {
	ms := window.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	n, err := admitScript.Run(ctx, s.rdb, []string{s.Key(id)}, limit, ms).Int()
	if err != nil {
		return false, fmt.Errorf("redisstore: admit %q: %w", id, err)
	}
	return n == 1, nil
}

// Count returns the number of requests admitted in id's current window.
func (s *Store) Count(ctx context.Context, id string) (int, error) {
	n, err := s.rdb.Get(ctx, s.Key(id)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redisstore: count %q: %w", id, err)
	}
	return n, nil
}

// Reset deletes id's window.
func (s *Store) Reset(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.Key(id)).Err()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Key returns the Redis key holding id's window.
func (s *Store) Key(id string) string {
	return s.prefix + ":" + id
}

// Ensure Store implements resilience.WindowStore
var _ resilience.WindowStore = (*Store)(nil)
