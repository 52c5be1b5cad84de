package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes extracts the close prices of bars in order.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Quote is a point-in-time price snapshot for one ticker.
type Quote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	Volume        float64   `json:"volume"`
	Bid           *float64  `json:"bid,omitempty"`
	Ask           *float64  `json:"ask,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"` // provider that satisfied the call
}

// VolRegime is the coarse bucket of a volatility index reading.
type VolRegime string

const (
	VolLow      VolRegime = "low"
	VolNormal   VolRegime = "normal"
	VolElevated VolRegime = "elevated"
	VolHigh     VolRegime = "high"
)

// VolIndexReading is a classified volatility index quote.
type VolIndexReading struct {
	Value          float64   `json:"vix_current"`
	Change         float64   `json:"vix_change"`
	ChangePercent  float64   `json:"vix_change_pct"`
	Regime         VolRegime `json:"vol_regime"`
	Classification string    `json:"vol_classification"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
}
