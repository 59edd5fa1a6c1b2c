// Package cache holds Redis-backed adapters.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AminElhag/Liyaqa-sub035/internal/ratelimit"
)

// RedisRateLimitStore implements ratelimit.Store on Redis. Each window is one
// key incremented atomically; Redis expiry replaces the sweep, so
// DeleteWindowsBefore is a no-op.
type RedisRateLimitStore struct {
	client redis.UniversalClient
	window time.Duration
}

var _ ratelimit.Store = (*RedisRateLimitStore)(nil)

// NewRedisRateLimitStore constructs a Redis-backed counting store. window is
// used to size key expiry.
func NewRedisRateLimitStore(client redis.UniversalClient, window time.Duration) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, window: window}
}

// checkAndIncrScript increments the window counter only while it is below the
// limit, returning {count, allowed}. Running as a script keeps the
// read-compare-increment atomic.
var checkAndIncrScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
    return {current, 0}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {current, 1}
`)

func (s *RedisRateLimitStore) CheckAndIncrement(ctx context.Context, clientKey, tier string, windowStart time.Time, limit int) (int, bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s:%d", tier, clientKey, windowStart.Unix())
	// Keys expire two windows after creation so a denied window still reads
	// back for response headers.
	expiry := 2 * s.window

	values, err := checkAndIncrScript.Run(ctx, s.client, []string{key},
		strconv.Itoa(limit), strconv.FormatInt(expiry.Milliseconds(), 10)).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("rate limit script: %w", err)
	}
	if len(values) != 2 {
		return 0, false, fmt.Errorf("rate limit script: unexpected reply")
	}
	return int(values[0]), values[1] == 1, nil
}

// DeleteWindowsBefore is satisfied by key expiry.
func (s *RedisRateLimitStore) DeleteWindowsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
