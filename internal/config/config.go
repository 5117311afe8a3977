// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

// Package config loads and validates the Curator configuration.
//
// Configuration is merged from three layers, lowest priority first:
// built-in defaults, an optional YAML file, and CURATOR_-prefixed
// environment variables (CURATOR_BREAKER__COOLDOWN=1m maps to
// breaker.cooldown).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Curator service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Remote   RemoteConfig   `koanf:"remote"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Cache    CacheConfig    `koanf:"cache"`
	Merge    MergeConfig    `koanf:"merge"`
	Registry RegistryConfig `koanf:"registry"`
}

// ServerConfig configures the operational HTTP listener.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port" validate:"gte=1,lte=65535"`

	// RequestTimeout bounds a single recommendation request end to end.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RateLimitPerMinute caps recommendation requests per client IP.
	// 0 disables rate limiting.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute" validate:"gte=0"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CatalogConfig configures the product catalog source.
type CatalogConfig struct {
	// Path is the JSON catalog file loaded at startup and on reload.
	Path string `koanf:"path"`
}

// RemoteConfig configures the remote personalization client.
type RemoteConfig struct {
	// Enabled toggles the remote personalization backend. When false the
	// service runs content-only and never reports itself degraded.
	Enabled bool `koanf:"enabled"`

	// URL is the base URL of the personalization service.
	URL string `koanf:"url"`

	// Timeout is the hard per-call timeout. A timed-out call counts as a
	// breaker failure and the request proceeds content-only.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit caps outbound calls per second. 0 disables throttling.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`

	// RateBurst is the token bucket burst size for RateLimit.
	RateBurst int `koanf:"rate_burst" validate:"gte=0"`
}

// BreakerConfig configures the circuit breaker in front of the remote client.
type BreakerConfig struct {
	// WindowCalls bounds the rolling window to the last N calls.
	WindowCalls int `koanf:"window_calls" validate:"gt=0"`

	// WindowDuration bounds the rolling window to the last T seconds.
	// Both bounds apply; the tighter one governs.
	WindowDuration time.Duration `koanf:"window_duration"`

	// FailureThreshold is the failure ratio in (0,1] that trips the breaker.
	FailureThreshold float64 `koanf:"failure_threshold" validate:"gt=0,lte=1"`

	// MinSamples is the minimum number of calls in the window before the
	// ratio is considered statistically meaningful.
	MinSamples int `koanf:"min_samples" validate:"gt=0"`

	// Cooldown is how long the breaker stays open before a half-open probe.
	Cooldown time.Duration `koanf:"cooldown"`

	// MaxCooldown caps the exponential backoff on Cooldown.
	MaxCooldown time.Duration `koanf:"max_cooldown"`

	// Backoff doubles the cool-down after each failed half-open probe,
	// up to MaxCooldown.
	Backoff bool `koanf:"backoff"`
}

// CacheConfig configures the two-tier result cache.
type CacheConfig struct {
	// TTL is the per-entry time to live for computed results.
	TTL time.Duration `koanf:"ttl"`

	// LocalCapacity bounds the in-process LRU tier.
	LocalCapacity int `koanf:"local_capacity" validate:"gt=0"`

	// KeyPrefix namespaces keys in the shared redis tier.
	KeyPrefix string `koanf:"key_prefix"`

	Redis RedisConfig `koanf:"redis"`
}

// RedisConfig configures the shared external cache store.
// The store is best-effort: when unreachable the cache degrades to the
// in-process tier and the request still succeeds.
type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`

	// OpTimeout bounds a single redis operation.
	OpTimeout time.Duration `koanf:"op_timeout"`
}

// MergeConfig configures the hybrid merge and post-merge policy.
type MergeConfig struct {
	// ContentWeight is the content share of the final score, in [0,1].
	// The remote share is 1 - ContentWeight.
	ContentWeight float64 `koanf:"content_weight" validate:"gte=0,lte=1"`

	// DefaultK is the item count when the request does not specify one.
	DefaultK int `koanf:"default_k" validate:"gt=0"`

	// MaxK caps the requested item count.
	MaxK int `koanf:"max_k" validate:"gt=0"`

	// ExcludeSeenProducts honors the request's exclusion set.
	ExcludeSeenProducts bool `koanf:"exclude_seen_products"`

	// ValidateAgainstCatalog drops merged products that are missing from
	// the active snapshot or not available.
	ValidateAgainstCatalog bool `koanf:"validate_against_catalog"`

	// RequireRemote drops products the remote source did not return
	// instead of zero-scoring their remote share.
	RequireRemote bool `koanf:"require_remote"`

	// UseFallbackOnRemoteFailure serves content-only results when the
	// remote backend fails or the breaker is open. When false a remote
	// failure fails the request.
	UseFallbackOnRemoteFailure bool `koanf:"use_fallback_on_remote_failure"`

	// BackfillContentOnly tops results up with next-best content-only
	// items when fewer than K remain after filtering and the remote
	// source was unavailable.
	BackfillContentOnly bool `koanf:"backfill_content_only"`
}

// RegistryConfig configures component lifecycle behavior.
type RegistryConfig struct {
	// ConstructionTimeout bounds component construction; past it the
	// component reports failed instead of hanging health checks.
	ConstructionTimeout time.Duration `koanf:"construction_timeout"`

	// FailureCooldown is how long a failed construction is cached before
	// the next access retries it.
	FailureCooldown time.Duration `koanf:"failure_cooldown"`
}

// defaultConfig returns a Config with all default values.
// These are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8480,
			RequestTimeout:     10 * time.Second,
			RateLimitPerMinute: 600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			Path: "/data/catalog.json",
		},
		Remote: RemoteConfig{
			Enabled:   true,
			URL:       "",
			Timeout:   2 * time.Second,
			RateLimit: 50,
			RateBurst: 10,
		},
		Breaker: BreakerConfig{
			WindowCalls:      20,
			WindowDuration:   30 * time.Second,
			FailureThreshold: 0.5,
			MinSamples:       5,
			Cooldown:         30 * time.Second,
			MaxCooldown:      5 * time.Minute,
			Backoff:          true,
		},
		Cache: CacheConfig{
			TTL:           24 * time.Hour,
			LocalCapacity: 4096,
			KeyPrefix:     "curator:rec:",
			Redis: RedisConfig{
				Enabled:   false,
				Addr:      "127.0.0.1:6379",
				DB:        0,
				OpTimeout: 250 * time.Millisecond,
			},
		},
		Merge: MergeConfig{
			ContentWeight:              0.4,
			DefaultK:                   20,
			MaxK:                       100,
			ExcludeSeenProducts:        true,
			ValidateAgainstCatalog:     true,
			RequireRemote:              false,
			UseFallbackOnRemoteFailure: true,
			BackfillContentOnly:        true,
		},
		Registry: RegistryConfig{
			ConstructionTimeout: 30 * time.Second,
			FailureCooldown:     5 * time.Second,
		},
	}
}

// validate is the shared struct validator for field-level range tags.
var validate = validator.New()

// Validate checks that the configuration is present and consistent.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	return c.validateCache()
}

func (c *Config) validateCatalog() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if !c.Remote.Enabled {
		return nil
	}
	if c.Remote.URL == "" {
		return fmt.Errorf("remote.url is required when remote.enabled=true")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.WindowDuration <= 0 {
		return fmt.Errorf("breaker.window_duration must be positive")
	}
	if c.Breaker.Cooldown <= 0 {
		return fmt.Errorf("breaker.cooldown must be positive")
	}
	if c.Breaker.MaxCooldown < c.Breaker.Cooldown {
		return fmt.Errorf("breaker.max_cooldown must be >= breaker.cooldown")
	}
	if c.Breaker.MinSamples > c.Breaker.WindowCalls {
		return fmt.Errorf("breaker.min_samples cannot exceed breaker.window_calls")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when cache.redis.enabled=true")
	}
	if c.Merge.MaxK < c.Merge.DefaultK {
		return fmt.Errorf("merge.max_k must be >= merge.default_k")
	}
	return nil
}
