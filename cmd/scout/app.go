package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"MarketScout/internal/cache"
	"MarketScout/internal/collector"
	"MarketScout/internal/config"
	"MarketScout/internal/metrics"
	"MarketScout/internal/recorder"
	"MarketScout/internal/scheduler"
	"MarketScout/internal/store"
	"MarketScout/internal/watchlist"
)

// stores holds one Store per namespace.
type stores struct {
	cache     store.Store
	watchlist store.Store
	status    store.Store
	closeFn   func() error
}

func (s *stores) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

func openStores(cfg *config.Config) (*stores, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case config.BackendMemory:
		return &stores{
			cache:     store.NewMemoryStore(),
			watchlist: store.NewMemoryStore(),
			status:    store.NewMemoryStore(),
		}, nil

	case config.BackendFile:
		var fs [3]*store.FileStore
		for i, ns := range []string{"cache", "watchlist", "status"} {
			f, err := store.NewFileStore(filepath.Join(cfg.Storage.DataDir, ns))
			if err != nil {
				return nil, err
			}
			fs[i] = f
		}
		return &stores{cache: fs[0], watchlist: fs[1], status: fs[2]}, nil

	case config.BackendRedis:
		rc := cfg.Storage.Redis
		client, err := store.NewRedisClient(store.RedisConfig{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		if err != nil {
			return nil, err
		}
		ns := func(name string) *store.RedisStore {
			return store.NewRedisStoreWithClient(client, rc.Prefix+":"+name)
		}
		return &stores{
			cache:     ns("cache"),
			watchlist: ns("watchlist"),
			status:    ns("status"),
			closeFn:   client.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func openRecorder(cfg *config.Config, logger *zap.Logger) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	r, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
	if err != nil {
		logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		return recorder.NewNoopRecorder()
	}
	return r
}

// newGateway builds the provider chain: Finnhub first and rate limited, then
// the Yahoo chart API, then the Yahoo quote page.
func newGateway(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *collector.Gateway {
	timeout := cfg.HTTPTimeout()
	providers := []collector.Provider{
		collector.NewFinnhubProvider(cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey, cfg.HTTP.Proxy, timeout),
		collector.NewYahooProvider(cfg.Yahoo.ChartURL, cfg.HTTP.Proxy, timeout),
		collector.NewYahooPageProvider(cfg.Yahoo.PageURL, cfg.HTTP.Proxy, timeout),
	}
	limiter := collector.NewRateLimiter(cfg.RateLimit.Calls, cfg.RateLimit.WarnThreshold,
		cfg.RateWindow(), logger.Named("ratelimit"), m)
	gw := collector.NewGateway(providers, limiter, logger.Named("gateway"), m)
	logger.Info("data sources", zap.Strings("providers", gw.Providers()))
	return gw
}

// app is the wired collector. The scheduler and recorder are only built for
// commands that collect.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	stores    *stores
	registry  *watchlist.Registry
	cache     *cache.Cache
	metrics   *metrics.Metrics
	recorder  recorder.Recorder
	scheduler *scheduler.Scheduler
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	st, err := openStores(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	reg, err := watchlist.NewRegistry(st.watchlist, cfg.Watchlist.Protected, logger.Named("watchlist"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		stores:   st,
		registry: reg,
		cache:    cache.New(st.cache, cfg.CacheTTL(), logger.Named("cache")),
	}, nil
}

// withScheduler wires the collection side: metrics, providers, recorder and
// the scheduler itself.
func (a *app) withScheduler(reg prometheus.Registerer) error {
	a.metrics = metrics.New(reg)
	a.recorder = openRecorder(a.cfg, a.logger.Named("recorder"))

	sched, err := scheduler.New(scheduler.Config{
		Interval:       a.cfg.UpdateInterval(),
		FaultBackoff:   a.cfg.FaultBackoff(),
		StopTimeout:    a.cfg.StopTimeout(),
		LookbackDays:   a.cfg.Collector.LookbackDays,
		VolatilityCron: a.cfg.Collector.VolatilityCron,
	}, scheduler.Deps{
		Source:    newGateway(a.cfg, a.logger, a.metrics),
		Watchlist: a.registry,
		Cache:     a.cache,
		Status:    a.stores.status,
		Recorder:  a.recorder,
		Logger:    a.logger.Named("scheduler"),
		Metrics:   a.metrics,
	})
	if err != nil {
		return err
	}
	a.scheduler = sched
	return nil
}

func (a *app) Close() {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Warn("close recorder", zap.Error(err))
		}
	}
	if err := a.stores.Close(); err != nil {
		a.logger.Warn("close storage", zap.Error(err))
	}
}

// run collects until ctx is done.
func (a *app) run(ctx context.Context) error {
	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := metrics.NewServer(addr, prometheus.DefaultGatherer,
			func() any { return a.scheduler.Status() }, a.logger.Named("metrics"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	a.scheduler.Start()
	a.logger.Info("MarketScout is running. Press Ctrl+C to stop.",
		zap.Strings("watchlist", a.registry.List()))
	<-ctx.Done()

	a.logger.Info("shutdown signal received, stopping...")
	a.scheduler.Stop()
	return nil
}

// once runs a single cycle and the volatility job, then reports the outcome.
func (a *app) once(ctx context.Context) error {
	if err := a.scheduler.RunOnce(ctx); err != nil {
		return err
	}
	if r := a.scheduler.RunVolatilityNow(ctx); r != nil {
		a.logger.Info("volatility", zap.Float64("value", r.Value), zap.String("regime", string(r.Regime)))
	}
	st := a.cache.Status()
	a.logger.Info("cache", zap.Int("entries", st.Entries), zap.Int64("bytes", st.TotalSizeBytes))
	return nil
}
