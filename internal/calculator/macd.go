package calculator

import "fmt"

// MACDResult holds the aligned MACD series. Signal and Histogram are empty when
// the MACD line is shorter than the signal window.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// CalculateMACD computes MACD with simple moving averages for the fast and slow
// lines and for the signal line. The fast and slow averages are aligned on their
// overlapping tail before subtracting.
func CalculateMACD(closes []float64, fast, slow, signal int) (*MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, fmt.Errorf("macd periods must be positive, got %d/%d/%d", fast, slow, signal)
	}
	if len(closes) < slow || len(closes) < fast {
		return nil, fmt.Errorf("macd(%d,%d) over %d closes: %w", fast, slow, len(closes), ErrInsufficientData)
	}

	fastMA := rollingMean(closes, fast)
	slowMA := rollingMean(closes, slow)
	n := min(len(fastMA), len(slowMA))
	fastMA = fastMA[len(fastMA)-n:]
	slowMA = slowMA[len(slowMA)-n:]

	line := make([]float64, n)
	for i := range line {
		line[i] = fastMA[i] - slowMA[i]
	}

	res := &MACDResult{Line: line}
	if len(line) < signal {
		return res, nil
	}

	res.Signal = rollingMean(line, signal)
	tail := line[len(line)-len(res.Signal):]
	res.Histogram = make([]float64, len(res.Signal))
	for i := range res.Signal {
		res.Histogram[i] = tail[i] - res.Signal[i]
	}
	return res, nil
}
