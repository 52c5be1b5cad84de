package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"MarketScout/internal/metrics"
	"MarketScout/internal/model"
)

// RateLimiter caps calls within a window that restarts once a full window has
// elapsed since the last reset. At the limit, Acquire blocks until the window
// ends instead of rejecting the call. Calls are serialized through the limiter.
type RateLimiter struct {
	acquireMu sync.Mutex // serializes callers
	mu        sync.Mutex // guards the fields below
	limit     int
	warnAt    int
	window    time.Duration
	count     int
	resetAt   time.Time

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter allows limit calls per window and warns once warnAt calls
// have been made in the current window.
func NewRateLimiter(limit, warnAt int, window time.Duration, logger *zap.Logger, m *metrics.Metrics) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		limit:   limit,
		warnAt:  warnAt,
		window:  window,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		sleep:   sleepCtx,
	}
	rl.resetAt = rl.now()
	return rl
}

// SetClock replaces the time source and sleeper. Used in tests.
func (l *RateLimiter) SetClock(now func() time.Time, sleep func(context.Context, time.Duration) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	l.sleep = sleep
	l.resetAt = now()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Acquire records one call, blocking first if the window is exhausted. It
// only fails if ctx ends while waiting. Status stays available while a caller
// is blocked here.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.acquireMu.Lock()
	defer l.acquireMu.Unlock()

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.resetAt) >= l.window {
		l.count = 0
		l.resetAt = now
	}
	if l.count >= l.warnAt {
		l.logger.Warn("approaching rate limit",
			zap.Int("calls", l.count), zap.Int("limit", l.limit))
	}
	var wait time.Duration
	blocked := l.count >= l.limit
	if blocked {
		wait = l.window - now.Sub(l.resetAt)
	}
	sleep := l.sleep
	l.mu.Unlock()

	if blocked {
		l.logger.Warn("rate limit hit, waiting", zap.Duration("wait", wait))
		l.metrics.RateLimitWaited()
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if blocked {
		l.count = 0
		l.resetAt = l.now()
	}
	l.count++
	l.metrics.SetRateLimitUsed(l.count)
	return nil
}

// Status reports usage of the current window.
func (l *RateLimiter) Status() model.APIStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	count, resetAt := l.count, l.resetAt
	if now := l.now(); now.Sub(resetAt) >= l.window {
		count = 0
		resetAt = now
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return model.APIStatus{
		CallCount:      count,
		RateLimit:      l.limit,
		NextReset:      resetAt.Add(l.window),
		CallsRemaining: remaining,
	}
}

// limitedProvider gates every call of the wrapped provider through a limiter.
type limitedProvider struct {
	Provider
	limiter *RateLimiter
}

func (p *limitedProvider) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	return p.Provider.Quote(ctx, symbol)
}

func (p *limitedProvider) Candles(ctx context.Context, symbol string, lookbackDays int) ([]model.OHLCV, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	return p.Provider.Candles(ctx, symbol, lookbackDays)
}
