package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MarketScout/internal/model"
)

// DefaultYahooPageURL is the Yahoo Finance quote page root.
const DefaultYahooPageURL = "https://finance.yahoo.com/quote"

// YahooPageProvider scrapes the price from the Yahoo Finance quote page. It
// serves quotes only.
type YahooPageProvider struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string
	now       func() time.Time
}

// NewYahooPageProvider creates a quote page scraper.
func NewYahooPageProvider(baseURL, proxyURL string, timeout time.Duration) *YahooPageProvider {
	if baseURL == "" {
		baseURL = DefaultYahooPageURL
	}
	return &YahooPageProvider{
		BaseURL:   baseURL,
		Client:    newHTTPClient(proxyURL, timeout),
		SymbolMap: DefaultYahooSymbols,
		now:       time.Now,
	}
}

func (f *YahooPageProvider) Name() string { return "yahoo_scrape" }

// parseNumber reads values such as "1,234.56", "+1.20" or "(-0.85%)".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "()%")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// field reads a fin-streamer value for sym, preferring its raw value attribute.
func field(doc *goquery.Document, sym, name string) (float64, bool) {
	sel := doc.Find(fmt.Sprintf(`fin-streamer[data-symbol=%q][data-field=%q]`, sym, name)).First()
	if sel.Length() == 0 {
		return 0, false
	}
	if raw, ok := sel.Attr("data-value"); ok {
		if v, ok := parseNumber(raw); ok {
			return v, true
		}
	}
	if raw, ok := sel.Attr("value"); ok {
		if v, ok := parseNumber(raw); ok {
			return v, true
		}
	}
	return parseNumber(sel.Text())
}

func (f *YahooPageProvider) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	sym := yahooSymbol(f.SymbolMap, symbol)
	u := fmt.Sprintf("%s/%s", f.BaseURL, url.PathEscape(sym))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo page fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo page parse: %w", err)
	}

	price, ok := field(doc, sym, "regularMarketPrice")
	if !ok {
		// Older page layout.
		span := doc.Find(fmt.Sprintf(`span[data-symbol=%q]`, sym)).First()
		price, ok = parseNumber(span.Text())
	}
	if !ok || price == 0 {
		return nil, fmt.Errorf("yahoo page %s: price element: %w", symbol, ErrNoData)
	}

	q := &model.Quote{
		Ticker:    symbol,
		Price:     price,
		Timestamp: f.now().UTC(),
	}
	if v, ok := field(doc, sym, "regularMarketChange"); ok {
		q.Change = v
	}
	if v, ok := field(doc, sym, "regularMarketChangePercent"); ok {
		q.ChangePercent = v
	}
	if v, ok := field(doc, sym, "regularMarketVolume"); ok {
		q.Volume = v
	}
	return q, nil
}

func (f *YahooPageProvider) Candles(context.Context, string, int) ([]model.OHLCV, error) {
	return nil, ErrUnsupported
}
