package calculator

import (
	"errors"
	"fmt"
)

const rsiEpsilon = 1e-10

// CalculateRSI computes the RSI series over the given period. Average gain and
// loss are plain moving averages of the per-bar deltas, not Wilder-smoothed.
// Requires at least period closes.
func CalculateRSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(closes) < period || len(closes) < 2 {
		return nil, fmt.Errorf("rsi(%d) over %d closes: %w", period, len(closes), ErrInsufficientData)
	}

	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i-1] = change
		} else if change < 0 {
			losses[i-1] = -change
		}
	}

	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)
	rsi := make([]float64, len(avgGain))
	for i := range avgGain {
		rs := avgGain[i] / (avgLoss[i] + rsiEpsilon)
		rsi[i] = 100.0 - 100.0/(1.0+rs)
	}
	return rsi, nil
}
