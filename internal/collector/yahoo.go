package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"MarketScout/internal/model"
)

// DefaultYahooChartURL is the Yahoo Finance chart API root.
const DefaultYahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// DefaultYahooSymbols maps internal symbols to Yahoo tickers.
var DefaultYahooSymbols = map[string]string{
	"VIX":    "^VIX",
	"SPX":    "^GSPC",
	"SPX500": "^GSPC",
	"NDX":    "^NDX",
}

// YahooProvider implements Provider using the Yahoo Finance chart API.
// Quotes are read from the chart metadata.
type YahooProvider struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string
	now       func() time.Time
}

// NewYahooProvider creates a Yahoo chart provider.
func NewYahooProvider(baseURL, proxyURL string, timeout time.Duration) *YahooProvider {
	if baseURL == "" {
		baseURL = DefaultYahooChartURL
	}
	return &YahooProvider{
		BaseURL:   baseURL,
		Client:    newHTTPClient(proxyURL, timeout),
		SymbolMap: DefaultYahooSymbols,
		now:       time.Now,
	}
}

func (f *YahooProvider) Name() string { return "yahoo" }

func yahooSymbol(m map[string]string, symbol string) string {
	if mapped, ok := m[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice   *float64 `json:"regularMarketPrice"`
				ChartPreviousClose   *float64 `json:"chartPreviousClose"`
				PreviousClose        *float64 `json:"previousClose"`
				RegularMarketDayHigh *float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  *float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  *float64 `json:"regularMarketVolume"`
				RegularMarketTime    int64    `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(vals []interface{}, i int) float64 {
	if i >= len(vals) {
		return 0
	}
	return toFloat(vals[i])
}

func (f *YahooProvider) fetchChart(ctx context.Context, symbol, interval, rng string) (*yahooChart, error) {
	u := fmt.Sprintf("%s/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(yahooSymbol(f.SymbolMap, symbol)), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d", resp.StatusCode)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}
	return &chart, nil
}

func (f *YahooProvider) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	chart, err := f.fetchChart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}
	result := chart.Chart.Result[0]
	meta := result.Meta
	if meta.RegularMarketPrice == nil || *meta.RegularMarketPrice == 0 {
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, ErrNoData)
	}

	price := *meta.RegularMarketPrice
	q := &model.Quote{
		Ticker:    symbol,
		Price:     price,
		High:      deref(meta.RegularMarketDayHigh),
		Low:       deref(meta.RegularMarketDayLow),
		Volume:    deref(meta.RegularMarketVolume),
		Timestamp: f.now().UTC(),
	}

	prev := meta.ChartPreviousClose
	if prev == nil {
		prev = meta.PreviousClose
	}
	if prev != nil && *prev != 0 {
		q.Change = round2(price - *prev)
		q.ChangePercent = round2((price - *prev) / *prev * 100)
	}
	if len(result.Indicators.Quote) > 0 {
		if opens := result.Indicators.Quote[0].Open; len(opens) > 0 {
			q.Open = toFloat(opens[len(opens)-1])
		}
	}
	return q, nil
}

// rangeFor picks the smallest chart range covering days calendar days.
func rangeFor(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	default:
		return "2y"
	}
}

func (f *YahooProvider) Candles(ctx context.Context, symbol string, lookbackDays int) ([]model.OHLCV, error) {
	chart, err := f.fetchChart(ctx, symbol, "1d", rangeFor(lookbackDays))
	if err != nil {
		return nil, err
	}
	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo candles %s: %w", symbol, ErrNoData)
	}

	quote := result.Indicators.Quote[0]
	cutoff := f.now().AddDate(0, 0, -lookbackDays)
	bars := make([]model.OHLCV, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		t := time.Unix(ts, 0).UTC()
		if t.Before(cutoff) {
			continue
		}
		o := at(quote.Open, i)
		h := at(quote.High, i)
		l := at(quote.Low, i)
		c := at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bars on holidays
		}
		bars = append(bars, model.OHLCV{
			Time:   t,
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo candles %s: %w", symbol, ErrNoData)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
