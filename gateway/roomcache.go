package gateway

import (
	"context"
	"time"

	"github.com/coastalgrand/roomstream/cache"
)

// RoomCache wraps the cache backend with room-listing semantics: fixed
// keys per hotel and a TTL as an upper bound on staleness. The pipeline
// invalidates a hotel's entry on every room upsert, so the TTL only
// matters when invalidation is missed (a restarted Redis, a dropped
// write).
type RoomCache struct {
	backend cache.Cache
	ttl     time.Duration
}

// NewRoomCache creates a room-listing cache over the given backend.
func NewRoomCache(backend cache.Cache, ttl time.Duration) *RoomCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RoomCache{backend: backend, ttl: ttl}
}

// Get returns the cached room listing for a hotel, or false on miss.
// Cache errors degrade to a miss; the store remains the source of truth.
func (c *RoomCache) Get(ctx context.Context, hotelID string) ([]byte, bool) {
	value, err := c.backend.Get(ctx, cache.RoomsKey(hotelID))
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set stores a marshaled room listing for a hotel.
func (c *RoomCache) Set(ctx context.Context, hotelID string, value []byte) {
	_ = c.backend.Set(ctx, cache.RoomsKey(hotelID), value, c.ttl)
}

// InvalidateRooms implements engine.RoomCacheInvalidator.
func (c *RoomCache) InvalidateRooms(ctx context.Context, hotelID string) {
	_ = c.backend.Delete(ctx, cache.RoomsKey(hotelID))
}
