package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type windowKey struct {
	clientKey   string
	tier        string
	windowStart int64
}

// memoryStore mirrors the storage contract: one atomic conditional increment
// per (key, tier, window).
type memoryStore struct {
	mu     sync.Mutex
	counts map[windowKey]int
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{counts: make(map[windowKey]int)}
}

func (s *memoryStore) CheckAndIncrement(ctx context.Context, clientKey, tier string, windowStart time.Time, limit int) (int, bool, error) {
	if s.err != nil {
		return 0, false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := windowKey{clientKey, tier, windowStart.Unix()}
	current := s.counts[key]
	if current >= limit {
		return current, false, nil
	}
	current++
	s.counts[key] = current
	return current, true, nil
}

func (s *memoryStore) DeleteWindowsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key := range s.counts {
		if key.windowStart < cutoff.Unix() {
			delete(s.counts, key)
			removed++
		}
	}
	return removed, nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestAllowCountsUpToLimit(t *testing.T) {
	limiter := New(newMemoryStore(), time.Minute, map[Tier]int{TierAuth: 3})
	limiter.now = fixedClock(time.Date(2026, 8, 28, 10, 30, 15, 0, time.UTC))

	for i := 1; i <= 3; i++ {
		result, err := limiter.Allow(context.Background(), "ip:10.0.0.1", TierAuth)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Equal(t, i, result.CurrentCount)
		require.Equal(t, 3-i, result.Remaining)
	}

	result, err := limiter.Allow(context.Background(), "ip:10.0.0.1", TierAuth)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Equal(t, 3, result.CurrentCount)
	require.Equal(t, 0, result.Remaining)
}

func TestDeniedRequestDoesNotConsumeBudget(t *testing.T) {
	store := newMemoryStore()
	limiter := New(store, time.Minute, map[Tier]int{TierAuth: 1})
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	limiter.now = fixedClock(now)

	_, err := limiter.Allow(context.Background(), "ip:10.0.0.1", TierAuth)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(context.Background(), "ip:10.0.0.1", TierAuth)
		require.NoError(t, err)
		require.False(t, result.Allowed)
	}

	key := windowKey{"ip:10.0.0.1", string(TierAuth), now.Truncate(time.Minute).Unix()}
	require.Equal(t, 1, store.counts[key])
}

func TestWindowBoundaryResetsBudget(t *testing.T) {
	limiter := New(newMemoryStore(), time.Minute, map[Tier]int{TierAPIWrite: 2})
	base := time.Date(2026, 8, 28, 10, 30, 59, 0, time.UTC)
	limiter.now = fixedClock(base)

	for i := 0; i < 2; i++ {
		result, err := limiter.Allow(context.Background(), "user:u1", TierAPIWrite)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	result, err := limiter.Allow(context.Background(), "user:u1", TierAPIWrite)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	// One second later a new window starts and the full budget is available
	// again. Up to twice the limit can land across the boundary.
	limiter.now = fixedClock(base.Add(time.Second))
	for i := 1; i <= 2; i++ {
		result, err := limiter.Allow(context.Background(), "user:u1", TierAPIWrite)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Equal(t, i, result.CurrentCount)
	}
}

func TestTiersAndClientsAreIndependent(t *testing.T) {
	limiter := New(newMemoryStore(), time.Minute, map[Tier]int{TierAuth: 1, TierAPIRead: 1})
	limiter.now = fixedClock(time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC))

	result, err := limiter.Allow(context.Background(), "ip:10.0.0.1", TierAuth)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	// Same client, different tier: untouched budget.
	result, err = limiter.Allow(context.Background(), "ip:10.0.0.1", TierAPIRead)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	// Different client, exhausted tier: untouched budget.
	result, err = limiter.Allow(context.Background(), "ip:10.0.0.2", TierAuth)
	require.NoError(t, err)
	require.True(t, result.Allowed)
}

func TestUnconfiguredTierIsUnlimited(t *testing.T) {
	limiter := New(newMemoryStore(), time.Minute, map[Tier]int{TierAuth: 1})
	limiter.now = fixedClock(time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC))

	for i := 0; i < 100; i++ {
		result, err := limiter.Allow(context.Background(), "ip:10.0.0.1", TierAPIRead)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Zero(t, result.Limit)
	}
}

func TestStoreErrorPropagates(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection reset")
	limiter := New(store, time.Minute, map[Tier]int{TierAuth: 5})

	_, err := limiter.Allow(context.Background(), "ip:10.0.0.1", TierAuth)
	require.ErrorIs(t, err, store.err)
}

func TestSweepDropsOnlyDeadWindows(t *testing.T) {
	store := newMemoryStore()
	limiter := New(store, time.Minute, map[Tier]int{TierAuth: 5})
	base := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)

	limiter.now = fixedClock(base.Add(-10 * time.Minute))
	_, err := limiter.Allow(context.Background(), "ip:old", TierAuth)
	require.NoError(t, err)

	limiter.now = fixedClock(base)
	_, err = limiter.Allow(context.Background(), "ip:current", TierAuth)
	require.NoError(t, err)

	removed, err := limiter.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	result, err := limiter.Allow(context.Background(), "ip:current", TierAuth)
	require.NoError(t, err)
	require.Equal(t, 2, result.CurrentCount)
}
