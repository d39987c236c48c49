package cachemanager

import (
	"context"
	"time"
)

// CacheManager is the generic cache contract used by the resolve layer.
// Callers pass the TTL per write, so short-lived resolve entries and
// longer-lived lookups can coexist in one cache.
type CacheManager[K comparable, V any] interface {
	// Get returns the cached value for key, if present and unexpired.
	Get(ctx context.Context, key K) (V, bool)

	// GetMultiple returns the values for all keys. The bool is false when
	// any key is missing, so callers can fall back to a full reload.
	GetMultiple(ctx context.Context, keys []K) (map[K]V, bool)

	// GetWithRefresh returns the cached value and, on a hit, re-arms its TTL.
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)

	// Set stores the value under key for the given TTL.
	Set(ctx context.Context, key K, value V, ttl time.Duration)

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...K) error

	// Flush drops every entry.
	Flush(ctx context.Context) error
}
