package calculator

import "MarketScout/internal/model"

const (
	RSIPeriod  = 14
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9

	// MinIndicatorBars is the shortest series for which any indicator is computed.
	MinIndicatorBars = 14
	// MinLevelBars is the shortest series for which levels are detected.
	MinLevelBars = 20
)

// EMAPeriods are the trend moving averages, fastest first.
var EMAPeriods = [3]int{20, 50, 200}

// Compute derives indicators and support/resistance levels from a chronological
// candle series. It has no side effects; absent fields mean the series was too
// short for that computation.
func Compute(bars []model.OHLCV) (model.IndicatorSet, model.LevelSet) {
	ind := ComputeIndicators(bars)
	levels, _ := DetectLevels(bars)
	return ind, levels
}

// ComputeIndicators returns the indicator set, empty below MinIndicatorBars.
func ComputeIndicators(bars []model.OHLCV) model.IndicatorSet {
	var ind model.IndicatorSet
	if len(bars) < MinIndicatorBars {
		return ind
	}

	closes := model.Closes(bars)
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}

	if rsi, err := CalculateRSI(closes, RSIPeriod); err == nil {
		ind.RSI = last(rsi)
		ind.RSIPeriod = RSIPeriod
	}

	if macd, err := CalculateMACD(closes, MACDFast, MACDSlow, MACDSignal); err == nil {
		ind.MACDLine = last(macd.Line)
		ind.MACDSignal = last(macd.Signal)
		ind.MACDHistogram = last(macd.Histogram)
	}

	if obv, err := CalculateOBV(closes, volumes); err == nil {
		ind.OBV = last(obv)
	}

	emas := make([]*float64, len(EMAPeriods))
	for i, p := range EMAPeriods {
		if ema, err := CalculateEMA(closes, p); err == nil {
			emas[i] = last(ema)
		}
	}
	ind.EMA20, ind.EMA50, ind.EMA200 = emas[0], emas[1], emas[2]

	ind.Trend = ClassifyTrend(ind.EMA20, ind.EMA50, ind.EMA200)
	ind.Price = model.Float(closes[len(closes)-1])
	return ind
}

// ClassifyTrend reports UPTREND only when all three averages are present and
// strictly stacked fast > mid > slow.
func ClassifyTrend(fast, mid, slow *float64) model.Trend {
	if fast == nil || mid == nil || slow == nil {
		return model.TrendDown
	}
	if *fast > *mid && *mid > *slow {
		return model.TrendUp
	}
	return model.TrendDown
}
