// Package jobs runs background maintenance loops.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AminElhag/Liyaqa-sub035/internal/ratelimit"
	"github.com/AminElhag/Liyaqa-sub035/internal/repository"
)

// Sweeper periodically deletes expired refresh tokens and stale rate-limit
// windows. Each sweep runs on its own ticker so a slow or failing store for
// one cannot stall the other, and a failed pass only logs; the next tick
// retries.
type Sweeper struct {
	tokens   repository.RefreshTokenRepository
	limiter  *ratelimit.Limiter
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper constructs the sweeper. A non-positive interval falls back to
// five minutes.
func NewSweeper(tokens repository.RefreshTokenRepository, limiter *ratelimit.Limiter, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Sweeper{
		tokens:   tokens,
		limiter:  limiter,
		interval: interval,
		logger:   logger,
	}
}

// Start launches both sweep loops.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{}, 2)

	go s.loop(ctx, "refresh_tokens", s.sweepTokens)
	go s.loop(ctx, "rate_limits", s.sweepRateLimits)
}

// Stop signals both loops and waits for them to exit or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	for i := 0; i < 2; i++ {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Sweeper) loop(ctx context.Context, name string, sweep func(context.Context) (int64, error)) {
	defer func() { s.done <- struct{}{} }()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, s.interval)
			removed, err := sweep(runCtx)
			cancel()
			if err != nil {
				s.logger.Warn("sweep failed", zap.String("sweep", name), zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("sweep completed", zap.String("sweep", name), zap.Int64("removed", removed))
			}
		}
	}
}

func (s *Sweeper) sweepTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpiredBefore(ctx, time.Now())
}

func (s *Sweeper) sweepRateLimits(ctx context.Context) (int64, error) {
	return s.limiter.Sweep(ctx)
}
