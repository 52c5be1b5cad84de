// Package collector fetches quotes and candles through an ordered chain of
// market data providers.
package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"MarketScout/internal/model"
)

var (
	// ErrUnsupported is returned by a provider that cannot serve an operation.
	ErrUnsupported = errors.New("operation not supported by provider")
	// ErrNoData is returned when a provider answers without usable data.
	ErrNoData = errors.New("no data returned")
	// ErrAllProvidersFailed is returned when every provider in the chain failed.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// DefaultHTTPTimeout bounds every provider HTTP call.
const DefaultHTTPTimeout = 10 * time.Second

// Provider is one upstream source of market data.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	Candles(ctx context.Context, symbol string, lookbackDays int) ([]model.OHLCV, error)
}

// newHTTPClient returns a client with the given timeout, routed through
// proxyURL when set.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
