package recorder

import (
	"time"

	"MarketScout/internal/model"
)

// CycleRecord summarizes one collection cycle.
type CycleRecord struct {
	StartedAt time.Time
	Duration  time.Duration
	Tickers   int
	Succeeded int
	Failed    int
	Err       string // set when the cycle itself faulted
}

// Recorder persists collection history for later analysis.
type Recorder interface {
	RecordCycle(rec *CycleRecord) error
	RecordSnapshot(ticker string, at time.Time, p *model.Payload) error
	RecordVolatility(r *model.VolIndexReading) error
	Close() error
}
