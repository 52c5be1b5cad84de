package model

// Trend is the EMA alignment classification.
type Trend string

const (
	TrendUp   Trend = "UPTREND"
	TrendDown Trend = "DOWNTREND"
)

// IndicatorSet holds the technical indicators computed from a candle series.
// Nil fields are absent: the series was too short for that indicator.
type IndicatorSet struct {
	RSI           *float64 `json:"rsi,omitempty"`
	RSIPeriod     int      `json:"rsi_period,omitempty"`
	MACDLine      *float64 `json:"macd_line,omitempty"`
	MACDSignal    *float64 `json:"macd_signal,omitempty"`
	MACDHistogram *float64 `json:"macd_histogram,omitempty"`
	OBV           *float64 `json:"obv,omitempty"`
	EMA20         *float64 `json:"ema_20,omitempty"`
	EMA50         *float64 `json:"ema_50,omitempty"`
	EMA200        *float64 `json:"ema_200,omitempty"`
	Trend         Trend    `json:"trend,omitempty"`
	Price         *float64 `json:"price,omitempty"`
}

// LevelSet holds detected support and resistance levels.
type LevelSet struct {
	Resistance1  *float64 `json:"resistance_1,omitempty"`
	Resistance2  *float64 `json:"resistance_2,omitempty"`
	Support1     *float64 `json:"support_1,omitempty"`
	Support2     *float64 `json:"support_2,omitempty"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
}

// Payload is the per-ticker result written to the cache each cycle.
type Payload struct {
	Quote       *Quote       `json:"quote"`
	Indicators  IndicatorSet `json:"indicators"`
	Levels      LevelSet     `json:"levels"`
	CandleCount int          `json:"candle_count"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
