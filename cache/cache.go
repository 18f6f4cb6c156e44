// Package cache provides the read-side cache for the query API. Room
// listings are the hot path for dashboards polling between WebSocket
// updates; the pipeline invalidates a hotel's entry on every room upsert
// so a cached listing is never older than the last broadcast.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is the swappable caching backend: memory for development and
// single-instance deployments, Redis when the API runs replicated.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ErrCacheMiss indicates the key was not found in the cache.
var ErrCacheMiss = errors.New("cache miss")

// RoomsKey builds the cache key for a hotel's room listing.
func RoomsKey(hotelID string) string {
	return "rooms:" + hotelID
}
