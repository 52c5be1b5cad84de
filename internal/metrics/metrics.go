// Package metrics exposes collector metrics to Prometheus.
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics for the collector. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec // labels: result=ok|error
	CycleDur         prometheus.Histogram
	TickersTotal     *prometheus.CounterVec // labels: result=ok|error
	ProviderCalls    *prometheus.CounterVec // labels: provider, op, result
	ProviderDur      *prometheus.HistogramVec
	RateLimitWaits   prometheus.Counter
	RateLimitUsed    prometheus.Gauge
	CacheEntries     prometheus.Gauge
	TickersTracked   prometheus.Gauge
	CollectorRunning prometheus.Gauge // 0=stopped, 1=running
	VolIndex         prometheus.Gauge
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_cycles_total",
			Help: "Collection cycles by result",
		}, []string{"result"}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_cycle_duration_seconds",
			Help:    "Wall time of one collection cycle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		TickersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_tickers_processed_total",
			Help: "Per-ticker fetch/compute/cache results",
		}, []string{"result"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_provider_calls_total",
			Help: "Provider calls by provider, operation and result",
		}, []string{"provider", "op", "result"}),
		ProviderDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_provider_call_duration_seconds",
			Help:    "Provider call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		RateLimitWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scout_rate_limit_waits_total",
			Help: "Times a primary provider call blocked on the rate limit",
		}),
		RateLimitUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scout_rate_limit_calls_in_window",
			Help: "Primary provider calls made in the current window",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scout_cache_entries",
			Help: "Entries present in the cache",
		}),
		TickersTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scout_tickers_tracked",
			Help: "Tickers on the watchlist",
		}),
		CollectorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scout_collector_running",
			Help: "Collector state (0=stopped, 1=running)",
		}),
		VolIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scout_volatility_index",
			Help: "Last observed volatility index value",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDur,
		m.TickersTotal,
		m.ProviderCalls,
		m.ProviderDur,
		m.RateLimitWaits,
		m.RateLimitUsed,
		m.CacheEntries,
		m.TickersTracked,
		m.CollectorRunning,
		m.VolIndex,
	)
	return m
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result(ok)).Inc()
	m.CycleDur.Observe(d.Seconds())
}

// ObserveTicker records one ticker's outcome within a cycle.
func (m *Metrics) ObserveTicker(ok bool) {
	if m == nil {
		return
	}
	m.TickersTotal.WithLabelValues(result(ok)).Inc()
}

// ObserveProvider records one provider call.
func (m *Metrics) ObserveProvider(provider, op string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(provider, op, result(ok)).Inc()
	m.ProviderDur.WithLabelValues(provider).Observe(d.Seconds())
}

// RateLimitWaited counts a blocking wait on the rate limiter.
func (m *Metrics) RateLimitWaited() {
	if m == nil {
		return
	}
	m.RateLimitWaits.Inc()
}

// SetRateLimitUsed sets the calls made in the current window.
func (m *Metrics) SetRateLimitUsed(n int) {
	if m == nil {
		return
	}
	m.RateLimitUsed.Set(float64(n))
}

// SetCollectorState publishes the gauges derived from a status snapshot.
func (m *Metrics) SetCollectorState(running bool, tracked, cacheEntries int) {
	if m == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	m.CollectorRunning.Set(v)
	m.TickersTracked.Set(float64(tracked))
	m.CacheEntries.Set(float64(cacheEntries))
}

// SetVolIndex records the latest volatility index value.
func (m *Metrics) SetVolIndex(v float64) {
	if m == nil {
		return
	}
	m.VolIndex.Set(v)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a metrics server. health, if non-nil, is encoded as JSON
// on /healthz.
func NewServer(addr string, gatherer prometheus.Gatherer, health func() any, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body any = map[string]string{"status": "ok"}
		if health != nil {
			body = health()
		}
		json.NewEncoder(w).Encode(body)
	})

	return &Server{
		addr:   addr,
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
