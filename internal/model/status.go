package model

import (
	"encoding/json"
	"time"
)

// CacheEntry is the stored record for one ticker.
type CacheEntry struct {
	Ticker    string          `json:"ticker"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// CacheStatus summarizes the cache contents.
type CacheStatus struct {
	Entries        int        `json:"entries"`
	TotalSizeBytes int64      `json:"total_size_bytes"`
	Oldest         *time.Time `json:"oldest_entry"`
	Newest         *time.Time `json:"newest_entry"`
}

// APIStatus reports primary-provider rate limiter usage.
type APIStatus struct {
	CallCount      int       `json:"call_count"`
	RateLimit      int       `json:"rate_limit"`
	NextReset      time.Time `json:"next_reset"`
	CallsRemaining int       `json:"calls_remaining"`
}

// CollectorStatus is the snapshot rewritten by the scheduler every cycle.
type CollectorStatus struct {
	Running        bool       `json:"running"`
	LastRun        *time.Time `json:"last_run"`
	NextRun        *time.Time `json:"next_run"`
	UpdateInterval int        `json:"update_interval"` // seconds
	TickersTracked int        `json:"tickers_tracked"`
	CacheEntries   int        `json:"cache_entries"`
	SuccessCount   int        `json:"success_count"`
	ErrorCount     int        `json:"error_count"`
	Watchlist      []string   `json:"watchlist"`
	APIStatus      APIStatus  `json:"api_status"`
	Timestamp      time.Time  `json:"timestamp"`
}

// WatchlistStatus summarizes the registry.
type WatchlistStatus struct {
	TotalTracked   int      `json:"total_tracked"`
	ProtectedCount int      `json:"protected_count"`
	CustomCount    int      `json:"custom_count"`
	Watchlist      []string `json:"watchlist"`
	Protected      []string `json:"protected"`
	Custom         []string `json:"custom"`
}
