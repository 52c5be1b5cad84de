package collector

import (
	"github.com/shopspring/decimal"

	"MarketScout/internal/model"
)

// VolIndexSymbol is the internal symbol of the volatility index.
const VolIndexSymbol = "VIX"

// ClassifyVolatility buckets a volatility index value.
func ClassifyVolatility(v float64) (model.VolRegime, string) {
	switch {
	case v < 15:
		return model.VolLow, "Complacency"
	case v < 20:
		return model.VolNormal, "Balanced"
	case v < 30:
		return model.VolElevated, "Elevated Risk"
	default:
		return model.VolHigh, "High Fear"
	}
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// NewVolIndexReading classifies q. It returns nil for a quote without a value.
func NewVolIndexReading(q *model.Quote) *model.VolIndexReading {
	if q == nil || q.Price == 0 {
		return nil
	}
	regime, label := ClassifyVolatility(q.Price)
	return &model.VolIndexReading{
		Value:          round2(q.Price),
		Change:         round2(q.Change),
		ChangePercent:  round2(q.ChangePercent),
		Regime:         regime,
		Classification: label,
		Source:         q.Source,
		Timestamp:      q.Timestamp,
	}
}
