package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketScout/internal/cache"
	"MarketScout/internal/collector"
	"MarketScout/internal/model"
	"MarketScout/internal/recorder"
	"MarketScout/internal/store"
	"MarketScout/internal/watchlist"
)

// fakeSource serves generated bars for every ticker except those configured
// to fail, panic or block.
type fakeSource struct {
	mu      sync.Mutex
	fail    map[string]bool
	panics  map[string]bool
	block   chan struct{} // when set, Quote waits on it
	quotes  int
	vol     *model.VolIndexReading
	apiCall int
}

func (f *fakeSource) Quote(_ context.Context, symbol string) *model.Quote {
	f.mu.Lock()
	f.quotes++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.panics[symbol] {
		panic("provider exploded")
	}
	if f.fail[symbol] {
		return nil
	}
	return &model.Quote{Ticker: symbol, Price: 100, Source: "fake"}
}

func (f *fakeSource) Candles(_ context.Context, _ string, days int) []model.OHLCV {
	return collector.GenerateMockBars(100, days)
}

func (f *fakeSource) VolatilityIndex(context.Context) *model.VolIndexReading { return f.vol }

func (f *fakeSource) APIStatus() model.APIStatus {
	return model.APIStatus{CallCount: f.apiCall, RateLimit: 60, CallsRemaining: 60 - f.apiCall}
}

type staticList []string

func (l staticList) List() []string { return append([]string(nil), l...) }

// flakyList panics on its first n calls.
type flakyList struct {
	mu      sync.Mutex
	n       int
	tickers []string
}

func (l *flakyList) List() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.n > 0 {
		l.n--
		panic("watchlist unavailable")
	}
	return l.tickers
}

type brokenList struct{}

func (brokenList) List() []string { panic("watchlist unavailable") }

type panickyRecorder struct {
	recorder.NoopRecorder
}

func (*panickyRecorder) RecordCycle(*recorder.CycleRecord) error { panic("disk gone") }

func counts(s *Scheduler) (success, errs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successCount, s.errorCount
}

type memRecorder struct {
	recorder.NoopRecorder
	mu     sync.Mutex
	cycles []recorder.CycleRecord
	snaps  []string
	vols   int
}

func (m *memRecorder) RecordCycle(rec *recorder.CycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, *rec)
	return nil
}

func (m *memRecorder) RecordSnapshot(ticker string, _ time.Time, _ *model.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, ticker)
	return nil
}

func (m *memRecorder) RecordVolatility(*model.VolIndexReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vols++
	return nil
}

func newTestScheduler(t *testing.T, cfg Config, src Source, list Watchlist) (*Scheduler, *cache.Cache, store.Store, *memRecorder) {
	t.Helper()
	c := cache.New(store.NewMemoryStore(), time.Hour, nil)
	statusStore := store.NewMemoryStore()
	rec := &memRecorder{}
	s, err := New(cfg, Deps{
		Source:    src,
		Watchlist: list,
		Cache:     c,
		Status:    statusStore,
		Recorder:  rec,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s, c, statusStore, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRunOnce_FaultIsolation(t *testing.T) {
	src := &fakeSource{
		panics: map[string]bool{"BBB": true},
		fail:   map[string]bool{"DDD": true},
	}
	s, c, _, rec := newTestScheduler(t, Config{LookbackDays: 60}, src, staticList{"AAA", "BBB", "CCC", "DDD", "EEE"})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("per-ticker failures must not fail the cycle: %v", err)
	}
	for _, tk := range []string{"AAA", "CCC", "EEE"} {
		p, ok := c.Get(tk)
		if !ok {
			t.Errorf("%s should be cached after an earlier ticker failed", tk)
			continue
		}
		if p.CandleCount != 60 || p.Indicators.RSI == nil || p.Quote.Source != "fake" {
			t.Errorf("%s: unexpected payload %+v", tk, p)
		}
	}
	for _, tk := range []string{"BBB", "DDD"} {
		if _, ok := c.Get(tk); ok {
			t.Errorf("%s should not be cached", tk)
		}
	}

	if len(rec.cycles) != 1 || rec.cycles[0].Succeeded != 3 || rec.cycles[0].Failed != 2 {
		t.Errorf("unexpected cycle record %+v", rec.cycles)
	}
	if len(rec.snaps) != 3 {
		t.Errorf("expected 3 snapshots, got %v", rec.snaps)
	}
	st := s.Status()
	if st.SuccessCount != 1 || st.ErrorCount != 0 || st.LastRun == nil || st.NextRun == nil {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestRunOnce_CycleFaultCounted(t *testing.T) {
	list := &flakyList{n: 1, tickers: []string{"AAA"}}
	s, _, statusStore, rec := newTestScheduler(t, Config{FaultBackoff: 7 * time.Second}, &fakeSource{}, list)
	now := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected cycle error")
	}
	st, err := ReadStatus(statusStore)
	if err != nil {
		t.Fatal(err)
	}
	if st.ErrorCount != 1 || st.SuccessCount != 0 {
		t.Errorf("unexpected persisted status %+v", st)
	}
	if st.NextRun == nil || !st.NextRun.Equal(now.Add(7*time.Second)) {
		t.Errorf("next run should follow the fault backoff, got %v", st.NextRun)
	}
	if len(rec.cycles) != 1 || rec.cycles[0].Err == "" {
		t.Errorf("expected faulted cycle recorded, got %+v", rec.cycles)
	}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("second cycle should succeed: %v", err)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s, c, statusStore, _ := newTestScheduler(t, Config{Interval: time.Hour}, &fakeSource{}, staticList{"SPY", "QQQ"})

	if s.Stop() {
		t.Error("stop on a stopped scheduler should fail")
	}
	if !s.Start() {
		t.Fatal("start failed")
	}
	if s.Start() {
		t.Error("second start should fail")
	}
	var st *model.CollectorStatus
	waitFor(t, func() bool {
		var err error
		st, err = ReadStatus(statusStore)
		return err == nil && st.SuccessCount == 1
	})
	if !st.Running || st.TickersTracked != 2 || st.CacheEntries != 2 || st.UpdateInterval != 3600 {
		t.Errorf("unexpected running status %+v", st)
	}
	if st.APIStatus.RateLimit != 60 {
		t.Errorf("api status not included: %+v", st.APIStatus)
	}

	start := time.Now()
	if !s.Stop() {
		t.Fatal("stop failed")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("stop should wake the sleeping loop promptly")
	}
	if s.IsRunning() {
		t.Error("expected stopped")
	}
	st, _ = ReadStatus(statusStore)
	if st.Running {
		t.Error("persisted status should show stopped")
	}
	if len(c.Tickers()) != 2 {
		t.Errorf("expected 2 cache entries, got %v", c.Tickers())
	}
}

func TestScheduler_StopBoundedWait(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	s, _, _, _ := newTestScheduler(t, Config{StopTimeout: 50 * time.Millisecond}, src, staticList{"AAA"})

	s.Start()
	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.quotes > 0
	})

	start := time.Now()
	if !s.Stop() {
		t.Fatal("stop failed")
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("stop waited %v on a blocked cycle", d)
	}
	if st := s.Status(); st.Running {
		t.Error("status should report stopped while the cycle is still finishing")
	}
	close(src.block)
}

func TestScheduler_VolatilityJob(t *testing.T) {
	src := &fakeSource{vol: &model.VolIndexReading{Value: 17.3, Regime: model.VolNormal}}
	s, _, _, rec := newTestScheduler(t, Config{}, src, staticList{})

	if r := s.RunVolatilityNow(context.Background()); r == nil || r.Value != 17.3 {
		t.Fatalf("unexpected reading %+v", r)
	}
	if rec.vols != 1 {
		t.Errorf("expected reading recorded, got %d", rec.vols)
	}

	src.vol = nil
	if r := s.RunVolatilityNow(context.Background()); r != nil {
		t.Errorf("expected nil reading, got %+v", r)
	}
	if rec.vols != 1 {
		t.Errorf("absent reading should not be recorded")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Error("expected error for missing deps")
	}
	_, err := New(Config{VolatilityCron: "not a cron"}, Deps{
		Source: &fakeSource{}, Watchlist: staticList{}, Cache: cache.New(store.NewMemoryStore(), 0, nil),
	})
	if err == nil {
		t.Error("expected error for bad cron spec")
	}
}

func TestScheduler_WithGatewayAndRegistry(t *testing.T) {
	reg, err := watchlist.NewRegistry(store.NewMemoryStore(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg.Add("NVDA")

	gw := collector.NewGateway([]collector.Provider{
		&collector.MockProvider{ProviderName: "finnhub", Err: collector.ErrNoData},
		&collector.MockProvider{ProviderName: "yahoo", Price: 450},
	}, collector.NewRateLimiter(60, 55, time.Minute, nil, nil), nil, nil)

	s, c, _, _ := newTestScheduler(t, Config{LookbackDays: 250}, gw, reg)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	all := c.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected NVDA, QQQ and SPY cached, got %d", len(all))
	}
	p := all["NVDA"]
	if p.Quote.Source != "yahoo" || p.Indicators.EMA200 == nil || p.Indicators.Trend != model.TrendUp {
		t.Errorf("unexpected payload %+v", p.Indicators)
	}
	if st := s.Status(); st.APIStatus.CallCount != 6 {
		t.Errorf("expected 6 rate-limited primary calls, got %d", st.APIStatus.CallCount)
	}
}

func TestScheduler_StatusFaultDoesNotEscape(t *testing.T) {
	s, _, statusStore, _ := newTestScheduler(t, Config{FaultBackoff: 10 * time.Millisecond}, &fakeSource{}, brokenList{})

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, errs := counts(s); errs != 2 {
		t.Errorf("cycle and status faults should both count, got %d", errs)
	}
	if _, err := ReadStatus(statusStore); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("no snapshot should be written, got %v", err)
	}

	if !s.Start() {
		t.Fatal("start failed")
	}
	waitFor(t, func() bool {
		_, errs := counts(s)
		return errs >= 4
	})
	if !s.Stop() {
		t.Fatal("stop failed")
	}
}

func TestScheduler_LoopRecoversEscapedPanic(t *testing.T) {
	src := &fakeSource{}
	s, err := New(Config{Interval: time.Hour, FaultBackoff: 10 * time.Millisecond}, Deps{
		Source:    src,
		Watchlist: staticList{"AAA"},
		Cache:     cache.New(store.NewMemoryStore(), time.Hour, nil),
		Recorder:  &panickyRecorder{},
	})
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop()
	// Each cycle succeeds, then recording panics; the loop must retry after the
	// backoff rather than the hour-long interval.
	waitFor(t, func() bool {
		success, errs := counts(s)
		return success >= 2 && errs >= 2
	})
}

func TestScheduler_LoopBacksOffThenRecovers(t *testing.T) {
	// Faults on: the status write in Start, the first cycle's list read and
	// that cycle's status write. The second cycle succeeds.
	list := &flakyList{n: 3, tickers: []string{"AAA"}}
	s, c, statusStore, _ := newTestScheduler(t,
		Config{Interval: time.Hour, FaultBackoff: 20 * time.Millisecond}, &fakeSource{}, list)

	if !s.Start() {
		t.Fatal("start failed")
	}
	var st *model.CollectorStatus
	waitFor(t, func() bool {
		var err error
		st, err = ReadStatus(statusStore)
		return err == nil && st.SuccessCount == 1
	})
	if st.ErrorCount != 2 {
		t.Errorf("error count = %d, want 2", st.ErrorCount)
	}
	if _, ok := c.Get("AAA"); !ok {
		t.Error("AAA should be cached after the retry")
	}
	s.Stop()
}

func TestRunOnce_ReloadsWatchlist(t *testing.T) {
	shared := store.NewMemoryStore()
	running, err := watchlist.NewRegistry(shared, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	editor, err := watchlist.NewRegistry(shared, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	s, c, _, _ := newTestScheduler(t, Config{LookbackDays: 30}, &fakeSource{}, running)
	if !editor.Add("NVDA") {
		t.Fatal("add failed")
	}
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("NVDA"); !ok {
		t.Error("ticker added through another registry was not collected")
	}
	if got := s.Status().TickersTracked; got != 3 {
		t.Errorf("tickers tracked = %d, want 3", got)
	}
}
