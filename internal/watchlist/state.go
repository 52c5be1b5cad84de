package watchlist

import (
	"encoding/json"
	"fmt"
	"time"

	"MarketScout/internal/store"
)

// stateKey is the store key holding the persisted watchlist.
const stateKey = "watchlist"

// state is the persisted watchlist document.
type state struct {
	Watchlist   []string  `json:"watchlist"`
	Protected   []string  `json:"protected"`
	LastUpdated time.Time `json:"last_updated"`
}

// loadState reads the watchlist document. It returns store.ErrNotFound when
// nothing has been saved yet.
func loadState(s store.Store) (*state, error) {
	data, err := s.Get(stateKey)
	if err != nil {
		return nil, err
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode watchlist: %w", err)
	}
	return &st, nil
}

// saveState replaces the watchlist document.
func saveState(s store.Store, st *state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return s.Put(stateKey, data)
}
