package recorder

import (
	"time"

	"MarketScout/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordCycle(_ *CycleRecord) error                             { return nil }
func (n *NoopRecorder) RecordSnapshot(_ string, _ time.Time, _ *model.Payload) error { return nil }
func (n *NoopRecorder) RecordVolatility(_ *model.VolIndexReading) error              { return nil }
func (n *NoopRecorder) Close() error                                                 { return nil }
