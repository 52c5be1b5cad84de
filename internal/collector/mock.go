package collector

import (
	"context"
	"time"

	"MarketScout/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
// Err, when set, fails every call.
type MockProvider struct {
	ProviderName string
	Price        float64
	Bars         []model.OHLCV
	Err          error
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockProvider) Quote(_ context.Context, symbol string) (*model.Quote, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &model.Quote{
		Ticker:    symbol,
		Price:     m.Price,
		High:      m.Price * 1.005,
		Low:       m.Price * 0.995,
		Open:      m.Price * 0.999,
		Volume:    1000000,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (m *MockProvider) Candles(_ context.Context, _ string, lookbackDays int) ([]model.OHLCV, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	return GenerateMockBars(m.Price, lookbackDays), nil
}

// GenerateMockBars builds count daily bars drifting upward around basePrice.
func GenerateMockBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   time.Now().AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
