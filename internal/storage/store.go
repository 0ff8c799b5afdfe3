// Package storage provides the key-value stores that persist client state (the session keys).
// Every backend applies SetMany and DeleteMany atomically so a group of keys is never half written.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("storage: store is closed")

// Store is a small key-value store.
type Store interface {
	// GetMany returns the values for keys that exist. Missing keys are absent from the map.
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	// SetMany writes all entries or none.
	SetMany(ctx context.Context, entries map[string]string) error
	// DeleteMany removes all keys or none. Missing keys are not an error.
	DeleteMany(ctx context.Context, keys ...string) error
	// Close releases resources. Safe to call more than once.
	Close() error
}
