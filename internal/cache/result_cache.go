// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/shopstream/curator/internal/logging"
	"github.com/shopstream/curator/internal/metrics"
)

// Tier identifies where a cached value was found.
type Tier string

const (
	// TierLocal is the in-process LRU.
	TierLocal Tier = "local"
	// TierExternal is the Redis store.
	TierExternal Tier = "external"
	// TierNone means the value was computed.
	TierNone Tier = ""
)

// ComputeFunc produces the value for a key on a cache miss.
type ComputeFunc[T any] func(ctx context.Context) (T, error)

// ResultCache is the two-tier result cache. Lookups check the local
// LRU, then the external store, then fall through to a single-flight
// computation so N concurrent misses on the same key compute once.
//
// The external store is optional (nil disables it) and strictly
// best-effort: a store failure is logged and counted, never surfaced
// to the caller.
type ResultCache[T any] struct {
	local     *LRU[T]
	store     Store
	ttl       time.Duration
	keyPrefix string
	group     singleflight.Group
}

// Options configures a ResultCache.
type Options struct {
	// LocalCapacity is the in-process LRU entry cap.
	LocalCapacity int
	// TTL applies to both tiers (default 24h).
	TTL time.Duration
	// KeyPrefix namespaces keys in the external store.
	KeyPrefix string
}

// New creates a ResultCache. store may be nil for local-only caching.
func New[T any](store Store, opts Options) *ResultCache[T] {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "curator:rec:"
	}
	return &ResultCache[T]{
		local:     NewLRU[T](opts.LocalCapacity, opts.TTL),
		store:     store,
		ttl:       opts.TTL,
		keyPrefix: opts.KeyPrefix,
	}
}

// GetOrCompute returns the cached value for key, computing it at most
// once across concurrent callers on a miss. The returned Tier reports
// where the value came from; TierNone means compute ran.
func (c *ResultCache[T]) GetOrCompute(ctx context.Context, key string, compute ComputeFunc[T]) (T, Tier, error) {
	if v, ok := c.local.Get(key); ok {
		metrics.CacheHits.WithLabelValues(string(TierLocal)).Inc()
		return v, TierLocal, nil
	}
	metrics.CacheMisses.WithLabelValues(string(TierLocal)).Inc()

	if v, ok := c.fromStore(ctx, key); ok {
		c.local.Set(key, v)
		metrics.CacheHits.WithLabelValues(string(TierExternal)).Inc()
		return v, TierExternal, nil
	}

	type flightResult struct {
		value T
		tier  Tier
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		// Double-check under the flight: a concurrent caller may have
		// populated the local tier while this one queued.
		if v, ok := c.local.Get(key); ok {
			return flightResult{value: v, tier: TierLocal}, nil
		}

		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		c.local.Set(key, v)
		c.toStore(ctx, key, v)
		return flightResult{value: v, tier: TierNone}, nil
	})
	if err != nil {
		var zero T
		return zero, TierNone, err
	}

	fr := res.(flightResult)
	return fr.value, fr.tier, nil
}

// Invalidate removes a single key from both tiers.
func (c *ResultCache[T]) Invalidate(ctx context.Context, key string) {
	c.local.Remove(key)
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, c.keyPrefix+key); err != nil {
		metrics.CacheStoreErrors.WithLabelValues("delete").Inc()
		logging.Warn().Err(err).Str("key", key).Msg("cache invalidate failed on external store")
	}
}

// InvalidateAll drops the entire local tier and every prefixed key in
// the external store. Called on catalog reload so no stale results
// survive a catalog version change.
func (c *ResultCache[T]) InvalidateAll(ctx context.Context) error {
	c.local.Clear()
	if c.store == nil {
		return nil
	}
	if err := c.store.DeletePrefix(ctx, c.keyPrefix); err != nil {
		metrics.CacheStoreErrors.WithLabelValues("delete_prefix").Inc()
		return fmt.Errorf("cache: invalidate external store: %w", err)
	}
	return nil
}

// LocalStats exposes the local tier's counters for health reporting.
func (c *ResultCache[T]) LocalStats() (hits, misses int64, size int) {
	return c.local.Stats()
}

// Healthy reports whether the external tier is reachable. Local-only
// caches are always healthy.
func (c *ResultCache[T]) Healthy(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Ping(ctx)
}

func (c *ResultCache[T]) fromStore(ctx context.Context, key string) (T, bool) {
	var zero T
	if c.store == nil {
		return zero, false
	}

	data, err := c.store.Get(ctx, c.keyPrefix+key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.CacheStoreErrors.WithLabelValues("get").Inc()
			logging.Warn().Err(err).Msg("cache external get failed, treating as miss")
		} else {
			metrics.CacheMisses.WithLabelValues(string(TierExternal)).Inc()
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		metrics.CacheStoreErrors.WithLabelValues("decode").Inc()
		logging.Warn().Err(err).Str("key", key).Msg("cache external entry undecodable, treating as miss")
		return zero, false
	}
	return v, true
}

func (c *ResultCache[T]) toStore(ctx context.Context, key string, v T) {
	if c.store == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		metrics.CacheStoreErrors.WithLabelValues("encode").Inc()
		return
	}
	if err := c.store.Set(ctx, c.keyPrefix+key, data, c.ttl); err != nil {
		metrics.CacheStoreErrors.WithLabelValues("set").Inc()
		logging.Warn().Err(err).Msg("cache external set failed")
	}
}
