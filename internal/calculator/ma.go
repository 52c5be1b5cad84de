package calculator

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a series is shorter than an indicator's window.
var ErrInsufficientData = errors.New("not enough data")

// CalculateSMA computes the simple moving average of the last period values.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, fmt.Errorf("sma(%d) over %d values: %w", period, len(prices), ErrInsufficientData)
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// rollingMean returns the uniform-window moving average of values, one output per
// full window. A series shorter than the window yields a single value: the sum of
// what is there divided by period.
func rollingMean(values []float64, period int) []float64 {
	if len(values) < period {
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return []float64{sum / float64(period)}
	}
	out := make([]float64, 0, len(values)-period+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func last(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := values[len(values)-1]
	return &v
}
