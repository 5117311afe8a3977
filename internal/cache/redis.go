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

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/shopstream/curator/internal/logging"
	"github.com/shopstream/curator/internal/metrics"
)

// ErrNotFound is returned by Store.Get when the key is absent.
var ErrNotFound = errors.New("cache: key not found")

// Store is the external cache tier. Implementations must be safe for
// concurrent use; a Store outage must surface as an error, never block
// the caller beyond its own operation timeout.
type Store interface {
	// Get returns the raw bytes for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// RedisStore implements Store on a Redis client. All operations run
// through an internal circuit breaker so a Redis outage degrades to
// fast cache misses instead of piling up timeouts on the request path.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
	cb        *gobreaker.CircuitBreaker[[]byte]
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Addr is the host:port of the Redis server.
	Addr string
	// Password authenticates the connection; empty disables auth.
	Password string
	// DB selects the logical database.
	DB int
	// OpTimeout bounds every individual operation (default 250ms).
	OpTimeout time.Duration
}

// NewRedisStore connects to Redis and returns a breaker-guarded store.
// The connection itself is lazy; a down Redis is detected by Ping or
// the first operation.
func NewRedisStore(opts RedisOptions) *RedisStore {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return &RedisStore{
		client:    client,
		opTimeout: opts.OpTimeout,
		cb:        newStoreBreaker(),
	}
}

// NewRedisStoreWithClient wraps an existing client. Used by tests to
// point the store at miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &RedisStore{
		client:    client,
		opTimeout: opTimeout,
		cb:        newStoreBreaker(),
	}
}

func newStoreBreaker() *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache store breaker state change")
			metrics.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.cb.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()

		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// A miss is not a store failure; report it without
			// counting against the breaker.
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("cache: redis get: %w", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return data, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.cb.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()

		if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
			return nil, fmt.Errorf("cache: redis set: %w", err)
		}
		return nil, nil
	})
	return err
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()

		if err := s.client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("cache: redis del: %w", err)
		}
		return nil, nil
	})
	return err
}

// DeletePrefix implements Store. Keys are discovered with SCAN and
// deleted in batches so a large keyspace never blocks the server.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := s.cb.Execute(func() ([]byte, error) {
		// Prefix invalidation walks the keyspace; give it more room
		// than a single-key operation.
		ctx, cancel := context.WithTimeout(ctx, 10*s.opTimeout)
		defer cancel()

		var (
			cursor uint64
			batch  []string
		)
		for {
			keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
			if err != nil {
				return nil, fmt.Errorf("cache: redis scan: %w", err)
			}
			batch = append(batch, keys...)
			if len(batch) >= 500 {
				if err := s.client.Del(ctx, batch...).Err(); err != nil {
					return nil, fmt.Errorf("cache: redis del batch: %w", err)
				}
				batch = batch[:0]
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		if len(batch) > 0 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return nil, fmt.Errorf("cache: redis del batch: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	_, err := s.cb.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
		if err := s.client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("cache: redis ping: %w", err)
		}
		return nil, nil
	})
	return err
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
