package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or its entry has expired.
var ErrMiss = errors.New("cache: miss")

// Cache is the shared cache abstraction used for weather and occupancy
// snapshots. Implementations: Redis-backed, in-process TTL map, and a
// no-op for cache-disabled deployments.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// Nop is a cache that stores nothing. Every Get is a miss.
type Nop struct{}

func (Nop) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (Nop) Get(ctx context.Context, key string, dest interface{}) error {
	return ErrMiss
}

func (Nop) Delete(ctx context.Context, key string) error {
	return nil
}
