// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

// Package main is the entry point for the Curator server.
//
// Curator recommends products to shoppers by blending local content
// similarity with a remote personalization service, shielding callers
// from the remote service's latency and failures with a circuit
// breaker and a two-tier result cache.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, environment (Koanf v2)
//  2. Logging: zerolog, JSON or console format
//  3. Registry: owns the catalog snapshot, scorers, breaker and cache
//  4. HTTP server: recommendation API plus health and metrics endpoints
//
// The expensive pieces (catalog load, scorer build) are constructed
// lazily on first use; Warm runs the build in the background at
// startup so the first request does not pay for it.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (CURATOR_ prefix, __ as section separator,
//     e.g. CURATOR_CACHE__REDIS__ADDR)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections and waits up to 10s for in-flight requests.
//
// # Example Usage
//
// Content-only mode with a local catalog file:
//
//	export CURATOR_CATALOG__PATH=./catalog.json
//	./curator
//
// With remote personalization and Redis:
//
//	export CURATOR_CATALOG__PATH=./catalog.json
//	export CURATOR_REMOTE__ENABLED=true
//	export CURATOR_REMOTE__URL=http://personalizer:8080
//	export CURATOR_CACHE__REDIS__ENABLED=true
//	export CURATOR_CACHE__REDIS__ADDR=redis:6379
//	./curator
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopstream/curator/internal/api"
	"github.com/shopstream/curator/internal/catalog"
	"github.com/shopstream/curator/internal/config"
	"github.com/shopstream/curator/internal/logging"
	"github.com/shopstream/curator/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use the default logger; config is not available yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("catalog_path", cfg.Catalog.Path).
		Bool("remote_enabled", cfg.Remote.Enabled).
		Bool("redis_enabled", cfg.Cache.Redis.Enabled).
		Msg("Starting Curator")

	reg := registry.New(cfg, &catalog.FileSource{Path: cfg.Catalog.Path})

	// Warm in the background so startup is not gated on the catalog
	// load; a failure here is retried on first request after the
	// cool-down.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Registry.ConstructionTimeout)
		defer cancel()
		if err := reg.Warm(ctx); err != nil {
			logging.Error().Err(err).Msg("Engine warm-up failed, will retry on first request")
		}
	}()

	server := api.NewServer(reg)
	httpServer := &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: server.Router(api.RouterConfig{
			RequestTimeout:     cfg.Server.RequestTimeout,
			RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		logging.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown incomplete")
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}
