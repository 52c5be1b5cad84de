package calculator

import (
	"fmt"
	"sort"

	"MarketScout/internal/model"
)

// recentPivots bounds how many of the latest peaks/troughs are ranked.
const recentPivots = 10

// DetectLevels finds local peaks in highs and troughs in lows. Resistance is the
// two highest of the most recent peaks, support the two lowest of the most recent
// troughs.
func DetectLevels(bars []model.OHLCV) (model.LevelSet, error) {
	var levels model.LevelSet
	if len(bars) < MinLevelBars {
		return levels, fmt.Errorf("levels over %d bars: %w", len(bars), ErrInsufficientData)
	}

	var peaks, troughs []float64
	for i := 1; i < len(bars)-1; i++ {
		if bars[i].High > bars[i-1].High && bars[i].High > bars[i+1].High {
			peaks = append(peaks, bars[i].High)
		}
		if bars[i].Low < bars[i-1].Low && bars[i].Low < bars[i+1].Low {
			troughs = append(troughs, bars[i].Low)
		}
	}

	if len(peaks) > 0 {
		top := mostRecent(peaks)
		sort.Sort(sort.Reverse(sort.Float64Slice(top)))
		levels.Resistance1 = model.Float(top[0])
		if len(top) > 1 {
			levels.Resistance2 = model.Float(top[1])
		}
	}
	if len(troughs) > 0 {
		bottom := mostRecent(troughs)
		sort.Float64s(bottom)
		levels.Support1 = model.Float(bottom[0])
		if len(bottom) > 1 {
			levels.Support2 = model.Float(bottom[1])
		}
	}

	levels.CurrentPrice = model.Float(bars[len(bars)-1].Close)
	return levels, nil
}

// mostRecent returns a copy of the last recentPivots values.
func mostRecent(values []float64) []float64 {
	start := len(values) - recentPivots
	if start < 0 {
		start = 0
	}
	out := make([]float64, len(values)-start)
	copy(out, values[start:])
	return out
}
