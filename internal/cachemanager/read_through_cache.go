package cachemanager

import (
	"context"
	"time"
)

// LoaderFunc loads the value for an input when the cache misses.
type LoaderFunc[V any, I any] func(ctx context.Context, input I) (V, error)

// ReadThroughCache wraps a CacheManager with a loader: misses invoke the
// loader and cache its result. With bypass set, every call goes straight to
// the loader, which keeps the call sites identical when caching is disabled
// by configuration.
type ReadThroughCache[K comparable, V any, I any] struct {
	cache  CacheManager[K, V]
	loader LoaderFunc[V, I]
	bypass bool
}

// NewReadThroughCache builds a read-through wrapper over cache and loader.
func NewReadThroughCache[K comparable, V any, I any](
	cache CacheManager[K, V],
	loader LoaderFunc[V, I],
	bypass bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:  cache,
		loader: loader,
		bypass: bypass,
	}
}

// Get returns the cached value for key, loading and caching it on a miss.
// Loader errors are returned unwrapped and nothing is cached.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.bypass {
		return r.loader(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}
	return r.load(ctx, key, input, ttl)
}

// GetWithRefresh behaves like Get but re-arms the entry's TTL on a hit.
func (r *ReadThroughCache[K, V, I]) GetWithRefresh(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.bypass {
		return r.loader(ctx, input)
	}

	if value, ok := r.cache.GetWithRefresh(ctx, key, ttl); ok {
		return value, nil
	}
	return r.load(ctx, key, input, ttl)
}

func (r *ReadThroughCache[K, V, I]) load(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	value, err := r.loader(ctx, input)
	if err != nil {
		return value, err
	}
	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}
