// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	// Remote is enabled by default but has no URL; disable for the
	// default-validity check the way a content-only deployment would.
	cfg.Remote.Enabled = false
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.4, cfg.Merge.ContentWeight)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 20, cfg.Breaker.WindowCalls)
	assert.Equal(t, 0.5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Cooldown)
	assert.Equal(t, 5*time.Minute, cfg.Breaker.MaxCooldown)
	assert.True(t, cfg.Merge.UseFallbackOnRemoteFailure)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
catalog:
  path: /tmp/catalog.json
remote:
  enabled: true
  url: http://personalize.internal:9000
merge:
  content_weight: 0.25
breaker:
  cooldown: 10s
  max_cooldown: 1m
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CURATOR_MERGE__DEFAULT_K", "7")
	t.Setenv("CURATOR_CACHE__REDIS__ADDR", "redis.internal:6379")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	// File overrides defaults.
	assert.Equal(t, "/tmp/catalog.json", cfg.Catalog.Path)
	assert.Equal(t, "http://personalize.internal:9000", cfg.Remote.URL)
	assert.Equal(t, 0.25, cfg.Merge.ContentWeight)
	assert.Equal(t, 10*time.Second, cfg.Breaker.Cooldown)

	// Env overrides file and defaults.
	assert.Equal(t, 7, cfg.Merge.DefaultK)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.Redis.Addr)

	// Untouched defaults survive.
	assert.Equal(t, 4096, cfg.Cache.LocalCapacity)
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"content weight above one", func(c *Config) { c.Merge.ContentWeight = 1.5 }},
		{"zero failure threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.Breaker.FailureThreshold = 1.2 }},
		{"negative cooldown", func(c *Config) { c.Breaker.Cooldown = -time.Second }},
		{"max cooldown below cooldown", func(c *Config) { c.Breaker.MaxCooldown = time.Second }},
		{"min samples above window", func(c *Config) { c.Breaker.MinSamples = 100 }},
		{"zero cache ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"empty catalog path", func(c *Config) { c.Catalog.Path = "" }},
		{"remote enabled without url", func(c *Config) { c.Remote.Enabled = true; c.Remote.URL = "" }},
		{"redis enabled without addr", func(c *Config) { c.Cache.Redis.Enabled = true; c.Cache.Redis.Addr = "" }},
		{"max_k below default_k", func(c *Config) { c.Merge.MaxK = 5 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Remote.Enabled = false
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvKeyTransform(t *testing.T) {
	assert.Equal(t, "breaker.cooldown", envKeyTransform("CURATOR_BREAKER__COOLDOWN"))
	assert.Equal(t, "merge.content_weight", envKeyTransform("CURATOR_MERGE__CONTENT_WEIGHT"))
	assert.Equal(t, "cache.redis.addr", envKeyTransform("CURATOR_CACHE__REDIS__ADDR"))
}
