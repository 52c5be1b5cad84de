package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"MarketScout/internal/logger"
	"MarketScout/internal/metrics"
	"MarketScout/internal/model"
)

// Gateway fetches market data from an ordered provider chain, falling back to
// the next provider on any failure. The first provider is rate limited.
// Gateway methods never return errors; total failure yields nil.
type Gateway struct {
	providers []Provider
	limiter   *RateLimiter
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewGateway builds a gateway over providers. If limiter is non-nil it gates
// the first provider.
func NewGateway(providers []Provider, limiter *RateLimiter, logger *zap.Logger, m *metrics.Metrics) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	chain := make([]Provider, len(providers))
	copy(chain, providers)
	if limiter != nil && len(chain) > 0 {
		chain[0] = &limitedProvider{Provider: chain[0], limiter: limiter}
	}
	return &Gateway{providers: chain, limiter: limiter, logger: logger, metrics: m}
}

// Providers returns the provider names in fallback order.
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}

// APIStatus reports rate limiter usage for the primary provider.
func (g *Gateway) APIStatus() model.APIStatus {
	if g.limiter == nil {
		return model.APIStatus{}
	}
	return g.limiter.Status()
}

// try runs op against each provider in order and returns the first success.
func try[T any](ctx context.Context, g *Gateway, op, symbol string, call func(context.Context, Provider) (T, error)) (T, string, error) {
	var zero T
	var errs []error
	for _, p := range g.providers {
		name := p.Name()
		spanCtx, span := logger.StartSpan(ctx, "provider."+op,
			attribute.String("provider", name), attribute.String("symbol", symbol))

		start := time.Now()
		v, err := call(spanCtx, p)
		g.metrics.ObserveProvider(name, op, err == nil, time.Since(start))
		logger.EndSpan(span, err)

		if err == nil {
			return v, name, nil
		}
		if !errors.Is(err, ErrUnsupported) {
			logger.WithTrace(spanCtx, g.logger).Warn("provider failed, trying next",
				zap.String("provider", name), zap.String("op", op),
				zap.String("symbol", symbol), zap.Error(err))
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return zero, "", fmt.Errorf("%s %s: %w: %w", op, symbol, ErrAllProvidersFailed, errors.Join(errs...))
}

// Quote returns the first quote any provider can supply, tagged with its source.
func (g *Gateway) Quote(ctx context.Context, symbol string) *model.Quote {
	q, source, err := try(ctx, g, "quote", symbol, func(ctx context.Context, p Provider) (*model.Quote, error) {
		q, err := p.Quote(ctx, symbol)
		if err == nil && q == nil {
			err = ErrNoData
		}
		return q, err
	})
	if err != nil {
		g.logger.Error("all sources failed", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	q.Source = source
	return q
}

// Candles returns the first non-empty candle series any provider can supply.
func (g *Gateway) Candles(ctx context.Context, symbol string, lookbackDays int) []model.OHLCV {
	bars, source, err := try(ctx, g, "candles", symbol, func(ctx context.Context, p Provider) ([]model.OHLCV, error) {
		bars, err := p.Candles(ctx, symbol, lookbackDays)
		if err == nil && len(bars) == 0 {
			err = ErrNoData
		}
		return bars, err
	})
	if err != nil {
		g.logger.Error("all sources failed for candles", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	g.logger.Debug("candles fetched", zap.String("symbol", symbol),
		zap.String("source", source), zap.Int("count", len(bars)))
	return bars
}

// VolatilityIndex returns the classified volatility index reading.
func (g *Gateway) VolatilityIndex(ctx context.Context) *model.VolIndexReading {
	r := NewVolIndexReading(g.Quote(ctx, VolIndexSymbol))
	if r == nil {
		g.logger.Warn("volatility index unavailable")
		return nil
	}
	g.metrics.SetVolIndex(r.Value)
	g.logger.Info("volatility index",
		zap.Float64("value", r.Value), zap.Float64("change_pct", r.ChangePercent),
		zap.String("regime", string(r.Regime)))
	return r
}
