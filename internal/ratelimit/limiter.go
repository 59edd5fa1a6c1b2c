// Package ratelimit implements a coarse fixed-window request limiter keyed by
// (client key, tier). Precision is traded for simplicity on purpose: counts
// reset on window boundaries, so up to twice the limit can land across a
// boundary. The store increment is atomic, so concurrent requests can never
// push a window past its budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Tier separates independent budgets for one client.
type Tier string

const (
	TierAuth     Tier = "AUTH"
	TierAPIRead  Tier = "API_READ"
	TierAPIWrite Tier = "API_WRITE"
)

// Store is the counting backend. Implementations must make CheckAndIncrement
// atomic with respect to concurrent calls for the same key, tier, and window.
type Store interface {
	CheckAndIncrement(ctx context.Context, clientKey, tier string, windowStart time.Time, limit int) (count int, allowed bool, err error)
	DeleteWindowsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result describes the outcome of one rate-limit check.
type Result struct {
	Allowed      bool
	CurrentCount int
	Limit        int
	Remaining    int
	WindowStart  time.Time
	ResetAt      time.Time
}

// Limiter counts requests per (client key, tier) in fixed windows.
type Limiter struct {
	store  Store
	window time.Duration
	limits map[Tier]int
	now    func() time.Time
}

// New constructs a limiter. limits maps each tier to its per-window budget;
// a tier with no entry (or a non-positive budget) is unlimited.
func New(store Store, window time.Duration, limits map[Tier]int) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{store: store, window: window, limits: limits, now: time.Now}
}

// Window returns the configured window size.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow checks the configured budget for the tier. Tiers without a budget
// always pass.
func (l *Limiter) Allow(ctx context.Context, clientKey string, tier Tier) (Result, error) {
	limit, ok := l.limits[tier]
	if !ok || limit <= 0 {
		return Result{Allowed: true, Limit: 0}, nil
	}
	return l.CheckAndIncrement(ctx, clientKey, tier, limit)
}

// CheckAndIncrement counts one request against the window covering now and
// reports whether it fits within limit.
func (l *Limiter) CheckAndIncrement(ctx context.Context, clientKey string, tier Tier, limit int) (Result, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)

	count, allowed, err := l.store.CheckAndIncrement(ctx, clientKey, string(tier), windowStart, limit)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:      allowed,
		CurrentCount: count,
		Limit:        limit,
		Remaining:    remaining,
		WindowStart:  windowStart,
		ResetAt:      windowStart.Add(l.window),
	}, nil
}

// Sweep removes windows that can no longer affect any decision.
func (l *Limiter) Sweep(ctx context.Context) (int64, error) {
	cutoff := l.now().Add(-l.window).Truncate(l.window)
	return l.store.DeleteWindowsBefore(ctx, cutoff)
}
