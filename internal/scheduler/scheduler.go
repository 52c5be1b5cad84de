// Package scheduler runs the background collection loop: every interval it
// walks the watchlist, fetches each ticker, computes indicators and writes the
// result to the cache.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"MarketScout/internal/calculator"
	"MarketScout/internal/logger"
	"MarketScout/internal/metrics"
	"MarketScout/internal/model"
	"MarketScout/internal/recorder"
	"MarketScout/internal/store"
)

// Source supplies market data. Implementations return nil when no provider
// could serve the request.
type Source interface {
	Quote(ctx context.Context, symbol string) *model.Quote
	Candles(ctx context.Context, symbol string, lookbackDays int) []model.OHLCV
	VolatilityIndex(ctx context.Context) *model.VolIndexReading
	APIStatus() model.APIStatus
}

// Watchlist lists the tickers to collect.
type Watchlist interface {
	List() []string
}

// Reloader is implemented by watchlists that can be edited by another
// process. Reload runs at the start of every cycle.
type Reloader interface {
	Reload() error
}

// Cache receives computed payloads.
type Cache interface {
	Save(ticker string, data *model.Payload) bool
	Tickers() []string
}

// Config holds scheduler timings.
type Config struct {
	Interval       time.Duration
	FaultBackoff   time.Duration
	StopTimeout    time.Duration
	LookbackDays   int
	VolatilityCron string // six-field cron spec; empty disables the job
}

// Deps are the collaborators the scheduler drives.
type Deps struct {
	Source    Source
	Watchlist Watchlist
	Cache     Cache
	Status    store.Store // receives the status snapshot; may be nil
	Recorder  recorder.Recorder
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Scheduler owns one background collection loop. It starts stopped.
type Scheduler struct {
	cfg      Config
	source   Source
	list     Watchlist
	cache    Cache
	status   store.Store
	recorder recorder.Recorder
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cron     *cron.Cron
	now      func() time.Time

	cycleMu sync.Mutex // one cycle at a time

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	done         chan struct{}
	lastRun      *time.Time
	nextRun      *time.Time
	successCount int
	errorCount   int
}

// New creates a stopped scheduler.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Source == nil || deps.Watchlist == nil || deps.Cache == nil {
		return nil, fmt.Errorf("scheduler: source, watchlist and cache are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 300 * time.Second
	}
	if cfg.FaultBackoff <= 0 {
		cfg.FaultBackoff = 5 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 300
	}
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Scheduler{
		cfg:      cfg,
		source:   deps.Source,
		list:     deps.Watchlist,
		cache:    deps.Cache,
		status:   deps.Status,
		recorder: deps.Recorder,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		cron:     cron.New(cron.WithSeconds()),
		now:      time.Now,
	}
	if cfg.VolatilityCron != "" {
		if _, err := s.cron.AddFunc(cfg.VolatilityCron, s.volatilityJob); err != nil {
			return nil, fmt.Errorf("register volatility job: %w", err)
		}
	}
	return s, nil
}

// Start launches the collection loop. It returns false if already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("collector already running")
		return false
	}
	s.running = true
	stop, done := make(chan struct{}), make(chan struct{})
	s.stopCh, s.done = stop, done
	s.mu.Unlock()

	s.writeStatus()
	go s.loop(stop, done)
	s.cron.Start()
	s.logger.Info("collector started", zap.Duration("interval", s.cfg.Interval))
	return true
}

// Stop signals the loop to exit and waits up to the stop timeout for it. A
// cycle in progress is not interrupted; if it outlasts the timeout Stop
// returns anyway. It returns false if not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn("collector not running")
		return false
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	s.cron.Stop()

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn("collector loop did not finish in time", zap.Duration("timeout", s.cfg.StopTimeout))
	}

	s.logger.Info("collector stopped")
	s.writeStatus()
	return true
}

// IsRunning reports whether the loop has been started and not stopped.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.logger.Info("collection loop started")
	defer s.logger.Info("collection loop ended")

	for {
		select {
		case <-stop:
			return
		default:
		}

		wait := s.cfg.Interval
		if err := s.iterate(); err != nil {
			wait = s.cfg.FaultBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// iterate runs one loop cycle. A panic escaping RunOnce counts as a failed
// cycle.
func (s *Scheduler) iterate() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collector fault: %v", r)
			s.logger.Error("collection loop fault", zap.Error(err), zap.Duration("backoff", s.cfg.FaultBackoff))
			s.countFault()
		}
	}()
	return s.RunOnce(context.Background())
}

// countFault records a failed cycle and schedules the retry after the backoff.
func (s *Scheduler) countFault() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
	next := s.now().Add(s.cfg.FaultBackoff)
	s.nextRun = &next
}

// RunOnce runs a single collection cycle synchronously and updates the
// counters and status snapshot. A returned error means the cycle itself or
// the status write faulted; per-ticker failures are logged and counted, not
// returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := s.now()
	rec, err := s.runCycle(ctx)
	elapsed := s.now().Sub(start)

	if err != nil {
		s.countFault()
	} else {
		s.mu.Lock()
		s.successCount++
		next := s.now().Add(s.cfg.Interval)
		s.nextRun = &next
		s.mu.Unlock()
	}

	s.metrics.ObserveCycle(err == nil, elapsed)
	rec.StartedAt, rec.Duration = start, elapsed
	if err != nil {
		s.logger.Error("collection cycle failed", zap.Error(err), zap.Duration("backoff", s.cfg.FaultBackoff))
		rec.Err = err.Error()
	} else {
		s.logger.Info("collection complete",
			zap.Int("tickers", rec.Tickers), zap.Int("succeeded", rec.Succeeded),
			zap.Int("failed", rec.Failed), zap.Duration("took", elapsed))
	}
	if rerr := s.recorder.RecordCycle(&rec); rerr != nil {
		s.logger.Error("record cycle", zap.Error(rerr))
	}
	if serr := s.writeStatus(); serr != nil {
		s.countFault()
		if err == nil {
			err = serr
		}
	}
	return err
}

// runCycle processes every ticker. Panics outside the per-ticker work are
// turned into an error.
func (s *Scheduler) runCycle(ctx context.Context) (rec recorder.CycleRecord, err error) {
	ctx, span := logger.StartSpan(ctx, "collector.cycle")
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
		logger.EndSpan(span, err)
	}()

	now := s.now()
	s.mu.Lock()
	s.lastRun = &now
	s.mu.Unlock()

	if r, ok := s.list.(Reloader); ok {
		if rerr := r.Reload(); rerr != nil {
			s.logger.Warn("reload watchlist, using last known list", zap.Error(rerr))
		}
	}
	tickers := s.list.List()
	rec.Tickers = len(tickers)
	span.SetAttributes(attribute.Int("tickers", len(tickers)))
	logger.WithTrace(ctx, s.logger).Info("processing tickers", zap.Int("count", len(tickers)))

	for _, t := range tickers {
		if s.processTicker(ctx, t) {
			rec.Succeeded++
		} else {
			rec.Failed++
		}
	}
	return rec, nil
}

// processTicker fetches, computes and caches one ticker. Any failure,
// including a panic, is logged and reported as false.
func (s *Scheduler) processTicker(ctx context.Context, ticker string) (ok bool) {
	ctx, span := logger.StartSpan(ctx, "collector.ticker", attribute.String("ticker", ticker))
	log := logger.WithTrace(ctx, s.logger).With(zap.String("ticker", ticker))
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			ok = false
		}
		if err != nil {
			log.Error("error processing ticker", zap.Error(err))
		}
		s.metrics.ObserveTicker(ok)
		logger.EndSpan(span, err)
	}()

	quote := s.source.Quote(ctx, ticker)
	if quote == nil {
		err = fmt.Errorf("no quote")
		return false
	}
	bars := s.source.Candles(ctx, ticker, s.cfg.LookbackDays)
	if len(bars) == 0 {
		err = fmt.Errorf("no candles")
		return false
	}

	ind, levels := calculator.Compute(bars)
	payload := &model.Payload{
		Quote:       quote,
		Indicators:  ind,
		Levels:      levels,
		CandleCount: len(bars),
	}
	if !s.cache.Save(ticker, payload) {
		err = fmt.Errorf("cache save failed")
		return false
	}
	log.Info("cached data", zap.String("source", quote.Source), zap.Int("candles", len(bars)))

	if rerr := s.recorder.RecordSnapshot(ticker, s.now(), payload); rerr != nil {
		log.Warn("record snapshot", zap.Error(rerr))
	}
	return true
}

// RunVolatilityNow fetches and records the volatility index immediately.
func (s *Scheduler) RunVolatilityNow(ctx context.Context) *model.VolIndexReading {
	r := s.source.VolatilityIndex(ctx)
	if r == nil {
		return nil
	}
	if err := s.recorder.RecordVolatility(r); err != nil {
		s.logger.Error("record volatility", zap.Error(err))
	}
	return r
}

func (s *Scheduler) volatilityJob() {
	ctx, span := logger.StartSpan(context.Background(), "collector.volatility")
	r := s.RunVolatilityNow(ctx)
	var err error
	if r == nil {
		err = fmt.Errorf("volatility index unavailable")
	}
	logger.EndSpan(span, err)
}
