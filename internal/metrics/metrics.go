// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

// Package metrics provides Prometheus metrics collection for observability.
//
// Metrics are exposed at the /metrics endpoint in Prometheus text format.
// The package instruments:
//   - Recommendation request throughput and latency, by result source
//   - Result cache tier efficiency (in-process and redis)
//   - Circuit breaker state and transitions
//   - Remote personalization call latency and failures
//   - Catalog snapshot version and size
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation metrics

	// RecommendationRequests counts recommendation requests by result source
	// (cache, hybrid, fallback-content-only) or "error".
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_recommendation_requests_total",
			Help: "Total recommendation requests by result source",
		},
		[]string{"source"},
	)

	// RecommendationDuration tracks end-to-end recommendation latency.
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curator_recommendation_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		},
	)

	// ProductsFiltered counts products dropped by post-merge policy.
	// Reasons: excluded, missing, unavailable, market.
	ProductsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_products_filtered_total",
			Help: "Products dropped by exclusion and catalog validation",
		},
		[]string{"reason"},
	)

	// Cache metrics

	// CacheHits counts result cache hits by tier (local, external).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_cache_hits_total",
			Help: "Result cache hits by tier",
		},
		[]string{"tier"},
	)

	// CacheMisses counts result cache misses by tier.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_cache_misses_total",
			Help: "Result cache misses by tier",
		},
		[]string{"tier"},
	)

	// CacheStoreErrors counts failed operations against the external cache store.
	// These are absorbed (the request degrades to in-process-only), never surfaced.
	CacheStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_cache_store_errors_total",
			Help: "External cache store failures by operation",
		},
		[]string{"operation"},
	)

	// Circuit breaker metrics

	// BreakerState reports the current state per breaker.
	// Values: 0=closed, 1=half-open, 2=open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curator_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// BreakerTransitions counts state transitions per breaker.
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// BreakerRequests counts call outcomes per breaker (success, failure, rejected).
	BreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_circuit_breaker_requests_total",
			Help: "Circuit breaker call outcomes",
		},
		[]string{"name", "result"},
	)

	// Remote personalization metrics

	// RemoteCallDuration tracks remote personalization call latency.
	RemoteCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curator_remote_call_duration_seconds",
			Help:    "Remote personalization call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RemoteCallErrors counts remote call failures by reason
	// (timeout, transport, malformed, status).
	RemoteCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_remote_call_errors_total",
			Help: "Remote personalization call failures by reason",
		},
		[]string{"reason"},
	)

	// Catalog metrics

	// CatalogVersion reports the active catalog snapshot version.
	CatalogVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curator_catalog_version",
			Help: "Active catalog snapshot version",
		},
	)

	// CatalogProducts reports the product count of the active snapshot.
	CatalogProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curator_catalog_products",
			Help: "Product count of the active catalog snapshot",
		},
	)

	// CatalogReloads counts catalog reloads by outcome (success, failure).
	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_catalog_reloads_total",
			Help: "Catalog reload attempts by outcome",
		},
		[]string{"outcome"},
	)
)
