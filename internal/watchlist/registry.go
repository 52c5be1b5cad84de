// Package watchlist tracks the set of tickers the collector polls.
package watchlist

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"MarketScout/internal/model"
	"MarketScout/internal/store"
)

const maxTickerLen = 5

// DefaultProtected are tracked when no protected set is configured.
var DefaultProtected = []string{"SPY", "QQQ"}

// Registry owns the watchlist. Protected tickers are fixed at construction,
// always tracked and never removable.
type Registry struct {
	mu        sync.RWMutex
	tickers   map[string]struct{}
	protected map[string]struct{}
	store     store.Store
	logger    *zap.Logger
	now       func() time.Time
}

// ValidateTicker reports whether t is 1-5 ASCII letters or digits, ignoring case.
func ValidateTicker(t string) bool {
	if len(t) < 1 || len(t) > maxTickerLen {
		return false
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// NewRegistry loads the watchlist from s, creating a default list made of
// the protected tickers if none exists or the stored one is unreadable.
func NewRegistry(s store.Store, protected []string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(protected) == 0 {
		protected = DefaultProtected
	}

	r := &Registry{
		tickers:   make(map[string]struct{}),
		protected: make(map[string]struct{}),
		store:     s,
		logger:    logger,
		now:       time.Now,
	}
	for _, p := range protected {
		if !ValidateTicker(p) {
			return nil, fmt.Errorf("invalid protected ticker %q", p)
		}
		r.protected[strings.ToUpper(p)] = struct{}{}
	}

	st, err := loadState(s)
	switch {
	case err == nil:
		for _, t := range st.Watchlist {
			if ValidateTicker(t) {
				r.tickers[strings.ToUpper(t)] = struct{}{}
			}
		}
		r.ensureProtected()
		logger.Info("watchlist loaded", zap.Int("tickers", len(r.tickers)))
		return r, nil
	case errors.Is(err, store.ErrNotFound):
		logger.Info("no watchlist found, creating default")
	default:
		logger.Warn("watchlist unreadable, recreating default", zap.Error(err))
	}

	r.ensureProtected()
	if err := r.save(); err != nil {
		return nil, fmt.Errorf("save default watchlist: %w", err)
	}
	return r, nil
}

func (r *Registry) ensureProtected() {
	for p := range r.protected {
		r.tickers[p] = struct{}{}
	}
}

func normalize(ticker string) string { return strings.ToUpper(strings.TrimSpace(ticker)) }

// Reload replaces the in-memory list with the persisted one so edits made
// through another Registry on the same store become visible. Protected tickers
// are always kept. On error the current list is left unchanged.
func (r *Registry) Reload() error {
	st, err := loadState(r.store)
	if err != nil {
		return fmt.Errorf("reload watchlist: %w", err)
	}
	tickers := make(map[string]struct{}, len(st.Watchlist))
	for _, t := range st.Watchlist {
		if t = normalize(t); ValidateTicker(t) {
			tickers[t] = struct{}{}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickers = tickers
	r.ensureProtected()
	return nil
}

// save persists the current set. Caller holds the write lock or is the constructor.
func (r *Registry) save() error {
	r.ensureProtected()
	return saveState(r.store, &state{
		Watchlist:   sortedKeys(r.tickers),
		Protected:   sortedKeys(r.protected),
		LastUpdated: r.now().UTC(),
	})
}

// Add tracks ticker. It returns false for malformed or already tracked
// tickers, and when the updated list cannot be persisted.
func (r *Registry) Add(ticker string) bool {
	t := normalize(ticker)
	if !ValidateTicker(t) {
		r.logger.Warn("invalid ticker format", zap.String("ticker", ticker))
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickers[t]; ok {
		r.logger.Warn("ticker already tracked", zap.String("ticker", t))
		return false
	}
	r.tickers[t] = struct{}{}
	if err := r.save(); err != nil {
		delete(r.tickers, t)
		r.logger.Error("save watchlist", zap.String("ticker", t), zap.Error(err))
		return false
	}
	r.logger.Info("ticker added", zap.String("ticker", t))
	return true
}

// Remove stops tracking ticker. Protected and unknown tickers are rejected.
func (r *Registry) Remove(ticker string) bool {
	t := normalize(ticker)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.protected[t]; ok {
		r.logger.Warn("cannot remove protected ticker", zap.String("ticker", t))
		return false
	}
	if _, ok := r.tickers[t]; !ok {
		r.logger.Warn("ticker not tracked", zap.String("ticker", t))
		return false
	}
	delete(r.tickers, t)
	if err := r.save(); err != nil {
		r.tickers[t] = struct{}{}
		r.logger.Error("save watchlist", zap.String("ticker", t), zap.Error(err))
		return false
	}
	r.logger.Info("ticker removed", zap.String("ticker", t))
	return true
}

// List returns all tracked tickers, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.tickers)
}

// IsTracked reports whether ticker is on the watchlist.
func (r *Registry) IsTracked(ticker string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tickers[normalize(ticker)]
	return ok
}

// Protected returns the protected tickers, sorted.
func (r *Registry) Protected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.protected)
}

// Custom returns the tracked tickers that are not protected, sorted.
func (r *Registry) Custom() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.custom()
}

func (r *Registry) custom() []string {
	out := []string{}
	for t := range r.tickers {
		if _, ok := r.protected[t]; !ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Status summarizes the watchlist.
func (r *Registry) Status() model.WatchlistStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	custom := r.custom()
	return model.WatchlistStatus{
		TotalTracked:   len(r.tickers),
		ProtectedCount: len(r.protected),
		CustomCount:    len(custom),
		Watchlist:      sortedKeys(r.tickers),
		Protected:      sortedKeys(r.protected),
		Custom:         custom,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
