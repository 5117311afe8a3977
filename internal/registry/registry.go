// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

// Package registry owns component lifecycle: exactly-once lazy
// construction under concurrent first use, health reporting, and
// atomic catalog reload.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/shopstream/curator/internal/breaker"
	"github.com/shopstream/curator/internal/cache"
	"github.com/shopstream/curator/internal/catalog"
	"github.com/shopstream/curator/internal/config"
	"github.com/shopstream/curator/internal/logging"
	"github.com/shopstream/curator/internal/metrics"
	"github.com/shopstream/curator/internal/recommend"
)

// Component identifies a managed component in health reports.
type Component string

const (
	ComponentCatalog Component = "catalog"
	ComponentContent Component = "content_recommender"
	ComponentRemote  Component = "remote_personalization"
	ComponentCache   Component = "result_cache"
)

// State is a component's lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	// StateDegraded means the component works in a reduced capacity,
	// e.g. the remote circuit is open and content-only results are
	// served.
	StateDegraded State = "degraded"
	StateFailed   State = "failed"
)

// Status is a component's health entry.
type Status struct {
	State     State     `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Registry constructs and owns the engine and its collaborators. The
// expensive construction (catalog load, scorer build) happens at most
// once per process at a time: concurrent first callers share one
// build, and a failed build is cached for a cool-down before the next
// access retries it.
type Registry struct {
	cfg    *config.Config
	source catalog.Source

	// core guards exactly-once construction.
	core struct {
		mu       sync.Mutex
		building chan struct{} // non-nil while a build is in flight
		engine   *recommend.Engine
		err      error
		failedAt time.Time
	}

	holder        catalog.Holder
	remoteBreaker *breaker.Breaker

	statusMu sync.RWMutex
	status   map[Component]Status

	reloadMu sync.Mutex
	version  int64
}

// New creates a Registry. Nothing is constructed until first use or an
// explicit Warm.
func New(cfg *config.Config, source catalog.Source) *Registry {
	r := &Registry{
		cfg:    cfg,
		source: source,
		status: make(map[Component]Status),
	}
	for _, c := range []Component{ComponentCatalog, ComponentContent, ComponentRemote, ComponentCache} {
		r.setStatus(c, StateNotStarted, "")
	}
	return r
}

// Recommend serves a recommendation request, constructing the engine
// on first call.
func (r *Registry) Recommend(ctx context.Context, req recommend.Request) (recommend.Result, error) {
	engine, err := r.engine(ctx)
	if err != nil {
		return recommend.Result{}, err
	}
	return engine.Recommend(ctx, req)
}

// Warm eagerly constructs the engine. Called at startup so the first
// request does not pay the catalog load.
func (r *Registry) Warm(ctx context.Context) error {
	_, err := r.engine(ctx)
	return err
}

// engine returns the singleton engine, building it on first call.
// Concurrent callers during a build wait for the same build. A failed
// build is remembered for the configured cool-down, then retried.
func (r *Registry) engine(ctx context.Context) (*recommend.Engine, error) {
	for {
		r.core.mu.Lock()
		if r.core.engine != nil {
			e := r.core.engine
			r.core.mu.Unlock()
			return e, nil
		}
		if r.core.err != nil {
			if time.Since(r.core.failedAt) < r.cfg.Registry.FailureCooldown {
				err := r.core.err
				r.core.mu.Unlock()
				return nil, err
			}
			// Cool-down elapsed; clear the cached failure and retry.
			r.core.err = nil
		}
		if r.core.building != nil {
			waitCh := r.core.building
			r.core.mu.Unlock()
			select {
			case <-waitCh:
				continue // re-check the outcome
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		buildCh := make(chan struct{})
		r.core.building = buildCh
		r.core.mu.Unlock()

		engine, err := r.build()

		r.core.mu.Lock()
		r.core.building = nil
		if err != nil {
			r.core.err = err
			r.core.failedAt = time.Now()
		} else {
			r.core.engine = engine
		}
		r.core.mu.Unlock()
		close(buildCh)

		return engine, err
	}
}

// build constructs the engine and its collaborators. Bounded by the
// configured construction timeout so a hung catalog source cannot
// wedge health checks forever.
func (r *Registry) build() (*recommend.Engine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Registry.ConstructionTimeout)
	defer cancel()

	logger := logging.With().Str("component", "registry").Logger()
	logger.Info().Msg("building recommendation engine")

	// Catalog and content scorer are the mandatory path: a failure
	// here is fatal and the service refuses traffic.
	r.setStatus(ComponentCatalog, StateLoading, "loading catalog")
	snap, err := r.loadSnapshot(ctx)
	if err != nil {
		r.setStatus(ComponentCatalog, StateFailed, err.Error())
		r.setStatus(ComponentContent, StateFailed, "catalog unavailable")
		return nil, fmt.Errorf("registry: catalog construction: %w", err)
	}
	r.holder.Publish(snap)
	r.setStatus(ComponentCatalog, StateReady,
		fmt.Sprintf("version %d, %d products", snap.Version(), snap.Len()))

	r.setStatus(ComponentContent, StateLoading, "building content scorer")
	content := recommend.NewContentScorer(snap, recommend.ContentConfig{})
	r.setStatus(ComponentContent, StateReady, "")

	// The remote client is optional: a failure leaves it failed while
	// the rest of the system serves content-only.
	remote := r.buildRemote()

	resultCache := r.buildCache()

	engine := recommend.NewEngine(recommend.EngineConfig{
		DefaultK: r.cfg.Merge.DefaultK,
		MaxK:     r.cfg.Merge.MaxK,
		Policy: recommend.MergePolicy{
			ContentWeight:          r.cfg.Merge.ContentWeight,
			ExcludeSeenProducts:    r.cfg.Merge.ExcludeSeenProducts,
			ValidateAgainstCatalog: r.cfg.Merge.ValidateAgainstCatalog,
			RequireRemote:          r.cfg.Merge.RequireRemote,
		},
		UseFallbackOnRemoteFailure: r.cfg.Merge.UseFallbackOnRemoteFailure,
		BackfillContentOnly:        r.cfg.Merge.BackfillContentOnly,
	}, content, remote, resultCache)

	metrics.CatalogVersion.Set(float64(snap.Version()))
	metrics.CatalogProducts.Set(float64(snap.Len()))

	logger.Info().
		Int64("catalog_version", snap.Version()).
		Int("products", snap.Len()).
		Bool("remote_enabled", remote != nil).
		Msg("recommendation engine ready")
	return engine, nil
}

// buildRemote constructs the breaker-guarded remote scorer, or nil
// when disabled or misconfigured.
func (r *Registry) buildRemote() recommend.Scorer {
	if !r.cfg.Remote.Enabled {
		r.setStatus(ComponentRemote, StateNotStarted, "disabled by configuration")
		return nil
	}

	if _, err := url.ParseRequestURI(r.cfg.Remote.URL); err != nil {
		r.setStatus(ComponentRemote, StateFailed, fmt.Sprintf("invalid url: %v", err))
		logging.Warn().Err(err).Msg("remote personalization misconfigured, serving content-only")
		return nil
	}

	client := recommend.NewRemoteClient(recommend.RemoteConfig{
		URL:       r.cfg.Remote.URL,
		Timeout:   r.cfg.Remote.Timeout,
		RateLimit: r.cfg.Remote.RateLimit,
		RateBurst: r.cfg.Remote.RateBurst,
	})

	r.remoteBreaker = breaker.New(breaker.Config{
		Name:             "remote-personalization",
		WindowCalls:      r.cfg.Breaker.WindowCalls,
		WindowDuration:   r.cfg.Breaker.WindowDuration,
		FailureThreshold: r.cfg.Breaker.FailureThreshold,
		MinSamples:       r.cfg.Breaker.MinSamples,
		Cooldown:         r.cfg.Breaker.Cooldown,
		MaxCooldown:      r.cfg.Breaker.MaxCooldown,
		Backoff:          r.cfg.Breaker.Backoff,
		Probe:            client.Probe,
		OnTransition:     r.onBreakerTransition,
	})

	r.setStatusForBreakerState(breaker.Closed, 0)
	return recommend.NewGuardedScorer(client, r.remoteBreaker)
}

func (r *Registry) buildCache() *cache.ResultCache[recommend.Result] {
	var store cache.Store
	if r.cfg.Cache.Redis.Enabled {
		store = cache.NewRedisStore(cache.RedisOptions{
			Addr:      r.cfg.Cache.Redis.Addr,
			Password:  r.cfg.Cache.Redis.Password,
			DB:        r.cfg.Cache.Redis.DB,
			OpTimeout: r.cfg.Cache.Redis.OpTimeout,
		})
		r.setStatus(ComponentCache, StateReady, "two-tier (local + redis)")
	} else {
		r.setStatus(ComponentCache, StateReady, "local only")
	}

	return cache.New[recommend.Result](store, cache.Options{
		LocalCapacity: r.cfg.Cache.LocalCapacity,
		TTL:           r.cfg.Cache.TTL,
		KeyPrefix:     r.cfg.Cache.KeyPrefix,
	})
}

// onBreakerTransition is the structured event sink for remote breaker
// state changes: log line, metrics, health map.
func (r *Registry) onBreakerTransition(t breaker.Transition) {
	evt := logging.Warn()
	if t.To == breaker.Closed {
		evt = logging.Info()
	}
	evt.
		Str("breaker", t.Name).
		Str("from", t.From.String()).
		Str("to", t.To.String()).
		Str("reason", t.Reason).
		Int("failures", t.Failures).
		Int("calls", t.Calls).
		Msg("remote breaker state change")

	metrics.BreakerTransitions.WithLabelValues(t.Name, t.From.String(), t.To.String()).Inc()
	r.setStatusForBreakerState(t.To, t.Failures)
}

func (r *Registry) setStatusForBreakerState(s breaker.State, failures int) {
	switch s {
	case breaker.Closed:
		metrics.BreakerState.WithLabelValues("remote-personalization").Set(0)
		r.setStatus(ComponentRemote, StateReady, "")
	case breaker.HalfOpen:
		metrics.BreakerState.WithLabelValues("remote-personalization").Set(1)
		r.setStatus(ComponentRemote, StateDegraded, "circuit half-open, probing")
	case breaker.Open:
		metrics.BreakerState.WithLabelValues("remote-personalization").Set(2)
		r.setStatus(ComponentRemote, StateDegraded,
			fmt.Sprintf("circuit open after %d failures, serving content-only", failures))
	}
}

// loadSnapshot loads products from the source and wraps them in a new
// snapshot with the next version.
func (r *Registry) loadSnapshot(ctx context.Context) (*catalog.Snapshot, error) {
	products, err := r.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	r.reloadMu.Lock()
	r.version++
	version := r.version
	r.reloadMu.Unlock()
	return catalog.NewSnapshot(version, products)
}

// Reload builds a new catalog snapshot and content scorer, then
// atomically publishes them. In-flight requests finish on the old
// snapshot; requests started after Reload returns see the new one.
func (r *Registry) Reload(ctx context.Context) error {
	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}

	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Registry.ConstructionTimeout)
	defer cancel()

	products, err := r.source.Load(ctx)
	if err != nil {
		metrics.CatalogReloads.WithLabelValues("failure").Inc()
		logging.Error().Err(err).Msg("catalog reload failed, keeping active snapshot")
		return fmt.Errorf("registry: reload: %w", err)
	}

	r.version++
	snap, err := catalog.NewSnapshot(r.version, products)
	if err != nil {
		metrics.CatalogReloads.WithLabelValues("failure").Inc()
		return fmt.Errorf("registry: reload: %w", err)
	}

	content := recommend.NewContentScorer(snap, recommend.ContentConfig{})

	// Publication is two atomic stores; each reader sees a consistent
	// scorer+snapshot pair because the scorer carries its snapshot.
	r.holder.Publish(snap)
	engine.SwapContent(content)

	r.setStatus(ComponentCatalog, StateReady,
		fmt.Sprintf("version %d, %d products", snap.Version(), snap.Len()))
	r.setStatus(ComponentContent, StateReady, "")
	metrics.CatalogReloads.WithLabelValues("success").Inc()

	logging.Info().
		Int64("catalog_version", snap.Version()).
		Int("products", snap.Len()).
		Msg("catalog reloaded")
	return nil
}

// InvalidateCache drops every cached recommendation in both tiers.
func (r *Registry) InvalidateCache(ctx context.Context) error {
	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}
	return engine.InvalidateCache(ctx)
}

// ResetBreaker manually closes the remote breaker.
func (r *Registry) ResetBreaker() {
	if r.remoteBreaker != nil {
		r.remoteBreaker.Reset()
	}
}

// Health returns the per-component status map. The cache entry is
// refreshed with a live reachability check.
func (r *Registry) Health(ctx context.Context) map[Component]Status {
	r.core.mu.Lock()
	engine := r.core.engine
	r.core.mu.Unlock()

	if engine != nil {
		if err := engine.CacheHealthy(ctx); err != nil {
			r.setStatus(ComponentCache, StateDegraded,
				"external store unreachable, local tier only")
		} else if r.cfg.Cache.Redis.Enabled {
			r.setStatus(ComponentCache, StateReady, "two-tier (local + redis)")
		}
	}

	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	out := make(map[Component]Status, len(r.status))
	for k, v := range r.status {
		out[k] = v
	}
	return out
}

// Healthy reports whether the mandatory path can serve traffic.
func (r *Registry) Healthy(ctx context.Context) bool {
	health := r.Health(ctx)
	for _, c := range []Component{ComponentCatalog, ComponentContent} {
		if s, ok := health[c]; ok && s.State == StateFailed {
			return false
		}
	}
	return true
}

// ActiveSnapshot returns the active catalog snapshot, or nil before
// first construction.
func (r *Registry) ActiveSnapshot() *catalog.Snapshot {
	return r.holder.Active()
}

func (r *Registry) setStatus(c Component, s State, detail string) {
	r.statusMu.Lock()
	r.status[c] = Status{State: s, Detail: detail, UpdatedAt: time.Now().UTC()}
	r.statusMu.Unlock()
}
