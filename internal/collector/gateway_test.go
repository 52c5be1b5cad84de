package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketScout/internal/model"
)

type stubProvider struct {
	name    string
	quote   func(symbol string) (*model.Quote, error)
	candles func(symbol string) ([]model.OHLCV, error)
	calls   int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Quote(_ context.Context, symbol string) (*model.Quote, error) {
	s.calls++
	if s.quote == nil {
		return nil, ErrUnsupported
	}
	return s.quote(symbol)
}

func (s *stubProvider) Candles(_ context.Context, symbol string, _ int) ([]model.OHLCV, error) {
	s.calls++
	if s.candles == nil {
		return nil, ErrUnsupported
	}
	return s.candles(symbol)
}

var errDown = errors.New("connection refused")

func TestGateway_QuoteFallback(t *testing.T) {
	primary := &MockProvider{ProviderName: "primary", Err: errDown}
	secondary := &MockProvider{ProviderName: "secondary", Price: 101.5}
	g := NewGateway([]Provider{primary, secondary}, nil, nil, nil)

	for i := 0; i < 3; i++ {
		q := g.Quote(context.Background(), "AAPL")
		if q == nil {
			t.Fatal("expected quote from secondary")
		}
		if q.Price != 101.5 || q.Source != "secondary" || q.Ticker != "AAPL" {
			t.Errorf("unexpected quote %+v", q)
		}
	}
}

func TestGateway_PrimaryWins(t *testing.T) {
	primary := &MockProvider{ProviderName: "primary", Price: 50}
	secondary := &stubProvider{name: "secondary"}
	g := NewGateway([]Provider{primary, secondary}, nil, nil, nil)

	q := g.Quote(context.Background(), "MSFT")
	if q == nil || q.Source != "primary" {
		t.Fatalf("expected primary quote, got %+v", q)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary should not be called, got %d calls", secondary.calls)
	}
}

func TestGateway_AllFail(t *testing.T) {
	g := NewGateway([]Provider{
		&MockProvider{ProviderName: "a", Err: errDown},
		&stubProvider{name: "b"},
	}, nil, nil, nil)

	if q := g.Quote(context.Background(), "AAPL"); q != nil {
		t.Errorf("expected nil quote, got %+v", q)
	}
	if bars := g.Candles(context.Background(), "AAPL", 100); bars != nil {
		t.Errorf("expected nil candles, got %d", len(bars))
	}
	if r := g.VolatilityIndex(context.Background()); r != nil {
		t.Errorf("expected nil reading, got %+v", r)
	}
}

func TestGateway_EmptyCandlesFallBack(t *testing.T) {
	primary := &MockProvider{ProviderName: "primary", Bars: []model.OHLCV{}}
	secondary := &MockProvider{ProviderName: "secondary", Price: 10}
	g := NewGateway([]Provider{primary, secondary}, nil, nil, nil)

	bars := g.Candles(context.Background(), "SPY", 30)
	if len(bars) != 30 {
		t.Errorf("expected 30 bars from secondary, got %d", len(bars))
	}
}

func TestGateway_RateLimitsPrimaryOnly(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	rl := NewRateLimiter(60, 55, time.Minute, nil, nil)
	rl.SetClock(clk.Now, func(context.Context, time.Duration) error { return nil })

	primary := &MockProvider{ProviderName: "primary", Err: errDown}
	secondary := &MockProvider{ProviderName: "secondary", Price: 1}
	g := NewGateway([]Provider{primary, secondary}, rl, nil, nil)

	g.Quote(context.Background(), "AAPL")
	g.Candles(context.Background(), "AAPL", 20)

	st := g.APIStatus()
	if st.CallCount != 2 || st.CallsRemaining != 58 {
		t.Errorf("expected only primary calls counted, got %+v", st)
	}
	if names := g.Providers(); len(names) != 2 || names[0] != "primary" {
		t.Errorf("unexpected provider order %v", names)
	}
}

func TestGateway_VolatilityIndex(t *testing.T) {
	vix := &stubProvider{name: "yahoo", quote: func(symbol string) (*model.Quote, error) {
		if symbol != VolIndexSymbol {
			t.Errorf("unexpected symbol %q", symbol)
		}
		return &model.Quote{Ticker: symbol, Price: 22.456, Change: -1.234, ChangePercent: -5.217}, nil
	}}
	g := NewGateway([]Provider{&MockProvider{Err: errDown}, vix}, nil, nil, nil)

	r := g.VolatilityIndex(context.Background())
	if r == nil {
		t.Fatal("expected reading")
	}
	if r.Value != 22.46 || r.Change != -1.23 || r.ChangePercent != -5.22 {
		t.Errorf("unexpected rounding %+v", r)
	}
	if r.Regime != model.VolElevated || r.Classification != "Elevated Risk" || r.Source != "yahoo" {
		t.Errorf("unexpected classification %+v", r)
	}
}
