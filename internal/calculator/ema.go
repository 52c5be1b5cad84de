package calculator

import (
	"errors"
	"fmt"
)

// CalculateEMA returns the exponential moving average series. The first value is
// the seed, the arithmetic mean of the first period closes; each later close i
// contributes ema = close[i]*k + prev*(1-k) with k = 2/(period+1).
func CalculateEMA(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(closes) < period {
		return nil, fmt.Errorf("ema(%d) over %d closes: %w", period, len(closes), ErrInsufficientData)
	}

	k := 2.0 / float64(period+1)
	ema := make([]float64, 0, len(closes)-period+1)
	prev := mean(closes[:period])
	ema = append(ema, prev)
	for i := period; i < len(closes); i++ {
		prev = closes[i]*k + prev*(1-k)
		ema = append(ema, prev)
	}
	return ema, nil
}
