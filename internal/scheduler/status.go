package scheduler

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"MarketScout/internal/model"
	"MarketScout/internal/store"
)

// StatusKey is the store key of the persisted status snapshot.
const StatusKey = "collector_status"

// Status builds a fresh status snapshot. It never waits on a running cycle.
func (s *Scheduler) Status() model.CollectorStatus {
	list := s.list.List()

	s.mu.Lock()
	st := model.CollectorStatus{
		Running:        s.running,
		LastRun:        s.lastRun,
		NextRun:        s.nextRun,
		UpdateInterval: int(s.cfg.Interval.Seconds()),
		SuccessCount:   s.successCount,
		ErrorCount:     s.errorCount,
	}
	s.mu.Unlock()

	st.TickersTracked = len(list)
	st.Watchlist = list
	st.CacheEntries = len(s.cache.Tickers())
	st.APIStatus = s.source.APIStatus()
	st.Timestamp = s.now().UTC()
	return st
}

// writeStatus replaces the persisted snapshot. A panic while building it is
// returned as an error; every failure is logged.
func (s *Scheduler) writeStatus() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("status panic: %v", r)
		}
		if err != nil {
			s.logger.Error("write status", zap.Error(err))
		}
	}()

	st := s.Status()
	s.metrics.SetCollectorState(st.Running, st.TickersTracked, st.CacheEntries)
	if s.status == nil {
		return nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return s.status.Put(StatusKey, data)
}

// ReadStatus loads the last persisted snapshot from st.
func ReadStatus(st store.Store) (*model.CollectorStatus, error) {
	data, err := st.Get(StatusKey)
	if err != nil {
		return nil, err
	}
	var cs model.CollectorStatus
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &cs, nil
}
