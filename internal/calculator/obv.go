package calculator

import "fmt"

// CalculateOBV returns the on-balance volume series seeded at volumes[0].
func CalculateOBV(closes, volumes []float64) ([]float64, error) {
	if len(closes) != len(volumes) {
		return nil, fmt.Errorf("obv: %d closes but %d volumes", len(closes), len(volumes))
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("obv: %w", ErrInsufficientData)
	}

	obv := make([]float64, len(closes))
	obv[0] = volumes[0]
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			obv[i] = obv[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			obv[i] = obv[i-1] - volumes[i]
		default:
			obv[i] = obv[i-1]
		}
	}
	return obv, nil
}
