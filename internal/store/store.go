// Package store provides the key-value persistence used by the cache, the
// watchlist registry and the collector status snapshot.
package store

import "errors"

// ErrNotFound is returned by Get and Delete for a missing key.
var ErrNotFound = errors.New("key not found")

// Store is a flat key-value namespace. Put replaces the whole value atomically:
// a concurrent Get observes either the old or the new value, never a mix.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}
