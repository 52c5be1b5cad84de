// Package cache stores the latest computed payload per ticker with a
// read-time TTL.
package cache

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"MarketScout/internal/model"
	"MarketScout/internal/store"
)

// DefaultTTL is used when New is given a non-positive TTL.
const DefaultTTL = 300 * time.Second

// Cache maps tickers to their most recent payload. Entries are never evicted;
// staleness is decided when they are read.
type Cache struct {
	store  store.Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// New creates a cache over s.
func New(s store.Store, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: s, ttl: ttl, logger: logger, now: time.Now}
}

// SetClock replaces the time source. Used in tests.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// TTL returns the default time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

func key(ticker string) string { return strings.ToUpper(strings.TrimSpace(ticker)) }

// Save overwrites the entry for ticker. It returns false if the payload cannot
// be encoded or persisted; the previous entry is left as it was.
func (c *Cache) Save(ticker string, data *model.Payload) bool {
	k := key(ticker)
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Error("encode payload", zap.String("ticker", k), zap.Error(err))
		return false
	}
	entry, err := json.Marshal(model.CacheEntry{
		Ticker:    k,
		Timestamp: c.now().UTC(),
		Data:      raw,
	})
	if err != nil {
		c.logger.Error("encode cache entry", zap.String("ticker", k), zap.Error(err))
		return false
	}
	if err := c.store.Put(k, entry); err != nil {
		c.logger.Error("save cache entry", zap.String("ticker", k), zap.Error(err))
		return false
	}
	c.logger.Debug("cached", zap.String("ticker", k))
	return true
}

func (c *Cache) entry(k string) (*model.CacheEntry, int, bool) {
	raw, err := c.store.Get(k)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("read cache entry", zap.String("ticker", k), zap.Error(err))
		}
		return nil, 0, false
	}
	var e model.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("corrupt cache entry", zap.String("ticker", k), zap.Error(err))
		return nil, len(raw), false
	}
	return &e, len(raw), true
}

func (c *Cache) stale(e *model.CacheEntry, ttl time.Duration) bool {
	return c.now().Sub(e.Timestamp) > ttl
}

// Get returns the payload for ticker, or false if it is missing, unreadable
// or older than the default TTL.
func (c *Cache) Get(ticker string) (*model.Payload, bool) {
	k := key(ticker)
	e, _, ok := c.entry(k)
	if !ok || c.stale(e, c.ttl) {
		return nil, false
	}
	var p model.Payload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		c.logger.Warn("corrupt cache payload", zap.String("ticker", k), zap.Error(err))
		return nil, false
	}
	return &p, true
}

// IsStale reports whether ticker's entry is missing or strictly older than ttl.
// A non-positive ttl selects the default.
func (c *Cache) IsStale(ticker string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.ttl
	}
	e, _, ok := c.entry(key(ticker))
	if !ok {
		return true
	}
	return c.stale(e, ttl)
}

// Clear removes one entry. It returns false if nothing was removed.
func (c *Cache) Clear(ticker string) bool {
	k := key(ticker)
	if err := c.store.Delete(k); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Error("clear cache entry", zap.String("ticker", k), zap.Error(err))
		}
		return false
	}
	return true
}

// ClearAll removes every entry.
func (c *Cache) ClearAll() bool {
	keys, err := c.store.Keys()
	if err != nil {
		c.logger.Error("list cache keys", zap.Error(err))
		return false
	}
	ok := true
	for _, k := range keys {
		if err := c.store.Delete(k); err != nil && !errors.Is(err, store.ErrNotFound) {
			c.logger.Error("clear cache entry", zap.String("ticker", k), zap.Error(err))
			ok = false
		}
	}
	return ok
}

// GetAll returns every fresh payload keyed by ticker.
func (c *Cache) GetAll() map[string]*model.Payload {
	out := make(map[string]*model.Payload)
	for _, k := range c.Tickers() {
		if p, ok := c.Get(k); ok {
			out[k] = p
		}
	}
	return out
}

// Tickers lists the keys present, fresh or not.
func (c *Cache) Tickers() []string {
	keys, err := c.store.Keys()
	if err != nil {
		c.logger.Error("list cache keys", zap.Error(err))
		return nil
	}
	return keys
}

// Status summarizes the number, size and age range of stored entries.
func (c *Cache) Status() model.CacheStatus {
	var st model.CacheStatus
	for _, k := range c.Tickers() {
		e, size, ok := c.entry(k)
		st.TotalSizeBytes += int64(size)
		if !ok {
			continue
		}
		st.Entries++
		ts := e.Timestamp
		if st.Oldest == nil || ts.Before(*st.Oldest) {
			st.Oldest = &ts
		}
		if st.Newest == nil || ts.After(*st.Newest) {
			st.Newest = &ts
		}
	}
	return st
}
