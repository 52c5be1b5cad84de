package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"MarketScout/internal/model"
)

// DefaultFinnhubURL is the Finnhub REST API root.
const DefaultFinnhubURL = "https://finnhub.io/api/v1"

// FinnhubProvider implements Provider using the Finnhub REST API.
type FinnhubProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	now     func() time.Time
}

// NewFinnhubProvider creates a provider with optional proxy support.
func NewFinnhubProvider(baseURL, apiKey, proxyURL string, timeout time.Duration) *FinnhubProvider {
	if baseURL == "" {
		baseURL = DefaultFinnhubURL
	}
	return &FinnhubProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
		now:     time.Now,
	}
}

func (f *FinnhubProvider) Name() string { return "finnhub" }

// finnhubQuote is the /quote response. Fields are pointers because Finnhub
// sends null for values it does not have.
type finnhubQuote struct {
	C     *float64 `json:"c"`
	D     *float64 `json:"d"`
	DP    *float64 `json:"dp"`
	H     *float64 `json:"h"`
	L     *float64 `json:"l"`
	O     *float64 `json:"o"`
	V     *float64 `json:"v"`
	Bid   *float64 `json:"bid"`
	Ask   *float64 `json:"ask"`
	Error string   `json:"error"`
}

// finnhubCandles is the /stock/candle response.
type finnhubCandles struct {
	S     string    `json:"s"`
	C     []float64 `json:"c"`
	H     []float64 `json:"h"`
	L     []float64 `json:"l"`
	O     []float64 `json:"o"`
	V     []float64 `json:"v"`
	T     []int64   `json:"t"`
	Error string    `json:"error"`
}

func (f *FinnhubProvider) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("token", f.APIKey)
	u := fmt.Sprintf("%s/%s?%s", f.BaseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("finnhub %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("finnhub read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("finnhub %s: status %d", endpoint, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("finnhub decode %s: %w", endpoint, err)
	}
	return nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func (f *FinnhubProvider) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	var q finnhubQuote
	if err := f.get(ctx, "quote", url.Values{"symbol": {symbol}}, &q); err != nil {
		return nil, err
	}
	if q.Error != "" {
		return nil, fmt.Errorf("finnhub api error: %s", q.Error)
	}
	// Unknown symbols come back as all zeros.
	if q.C == nil || *q.C == 0 {
		return nil, fmt.Errorf("finnhub quote %s: %w", symbol, ErrNoData)
	}
	return &model.Quote{
		Ticker:        symbol,
		Price:         *q.C,
		Change:        deref(q.D),
		ChangePercent: deref(q.DP),
		High:          deref(q.H),
		Low:           deref(q.L),
		Open:          deref(q.O),
		Volume:        deref(q.V),
		Bid:           q.Bid,
		Ask:           q.Ask,
		Timestamp:     f.now().UTC(),
	}, nil
}

func (f *FinnhubProvider) Candles(ctx context.Context, symbol string, lookbackDays int) ([]model.OHLCV, error) {
	to := f.now()
	from := to.AddDate(0, 0, -lookbackDays)
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
	}

	var c finnhubCandles
	if err := f.get(ctx, "stock/candle", params, &c); err != nil {
		return nil, err
	}
	if c.Error != "" {
		return nil, fmt.Errorf("finnhub api error: %s", c.Error)
	}
	if c.S != "ok" || len(c.C) == 0 {
		return nil, fmt.Errorf("finnhub candles %s: %w", symbol, ErrNoData)
	}
	n := len(c.C)
	if len(c.O) != n || len(c.H) != n || len(c.L) != n || len(c.V) != n || len(c.T) != n {
		return nil, fmt.Errorf("finnhub candles %s: mismatched array lengths", symbol)
	}

	bars := make([]model.OHLCV, n)
	for i := range c.C {
		bars[i] = model.OHLCV{
			Time:   time.Unix(c.T[i], 0).UTC(),
			Open:   c.O[i],
			High:   c.H[i],
			Low:    c.L[i],
			Close:  c.C[i],
			Volume: c.V[i],
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
