// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shopstream/curator/internal/breaker"
	"github.com/shopstream/curator/internal/cache"
	"github.com/shopstream/curator/internal/catalog"
	"github.com/shopstream/curator/internal/logging"
	"github.com/shopstream/curator/internal/metrics"
)

// EngineConfig configures the Engine.
type EngineConfig struct {
	// DefaultK is used when a request does not set K.
	DefaultK int
	// MaxK caps the requested count.
	MaxK int
	// Policy is the merge and filtering policy.
	Policy MergePolicy
	// UseFallbackOnRemoteFailure serves content-only results when the
	// remote source fails. When false a remote failure fails the
	// request.
	UseFallbackOnRemoteFailure bool
	// BackfillContentOnly pads short degraded results with next-best
	// catalog products.
	BackfillContentOnly bool
}

// Engine orchestrates a recommendation request: fingerprint, cache
// lookup, hybrid compute, post-merge ranking. The content scorer is
// swapped atomically on catalog reload; in-flight requests keep the
// scorer (and snapshot) they started with.
type Engine struct {
	cfg     EngineConfig
	content atomic.Pointer[ContentScorer]
	remote  Scorer // nil disables the remote source
	cache   *cache.ResultCache[Result]
}

// NewEngine creates an Engine. remote may be nil; content may be set
// later via SwapContent (the engine reports ErrNoCatalog until then).
func NewEngine(cfg EngineConfig, content *ContentScorer, remote Scorer, resultCache *cache.ResultCache[Result]) *Engine {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 20
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = 100
	}
	e := &Engine{
		cfg:    cfg,
		remote: remote,
		cache:  resultCache,
	}
	if content != nil {
		e.content.Store(content)
	}
	return e
}

// SwapContent atomically publishes a new content scorer (and with it a
// new catalog snapshot). Requests already scoring against the old
// snapshot complete against it.
func (e *Engine) SwapContent(c *ContentScorer) {
	e.content.Store(c)
	snap := c.Snapshot()
	metrics.CatalogVersion.Set(float64(snap.Version()))
	metrics.CatalogProducts.Set(float64(snap.Len()))
}

// ActiveVersion returns the active catalog version, or 0 before the
// first snapshot is published.
func (e *Engine) ActiveVersion() int64 {
	if c := e.content.Load(); c != nil {
		return c.Snapshot().Version()
	}
	return 0
}

// Recommend serves a single request. It always returns either a valid
// result (possibly content-only) or an error; an empty item list is
// only possible when filtering legitimately removed every candidate.
func (e *Engine) Recommend(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecommendationDuration.Observe(time.Since(start).Seconds())
	}()

	if err := e.prepare(&req); err != nil {
		return Result{}, err
	}

	content := e.content.Load()
	if content == nil {
		return Result{}, ErrNoCatalog
	}
	snap := content.Snapshot()
	fp := Fingerprint(req, snap.Version())

	result, tier, err := e.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (Result, error) {
		return e.compute(ctx, req, content, fp)
	})
	if err != nil {
		return Result{}, err
	}

	if tier != cache.TierNone {
		// Cached results are shared between callers; hand out a copy
		// retagged for this request instead of mutating it.
		cached := result
		cached.Source = SourceCache
		cached.RequestID = req.RequestID
		metrics.RecommendationRequests.WithLabelValues(string(SourceCache)).Inc()
		return cached, nil
	}

	metrics.RecommendationRequests.WithLabelValues(string(result.Source)).Inc()
	return result, nil
}

// prepare validates and normalizes the request in place.
func (e *Engine) prepare(req *Request) error {
	if req.UserID == "" && req.SeedProductID == "" {
		return fmt.Errorf("%w: no user or seed product", ErrInvalidRequest)
	}
	if req.K < 0 {
		return fmt.Errorf("%w: negative count", ErrInvalidRequest)
	}
	if req.K == 0 {
		req.K = e.cfg.DefaultK
	}
	if req.K > e.cfg.MaxK {
		req.K = e.cfg.MaxK
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return nil
}

// compute is the cache-miss path: score, merge, rank.
func (e *Engine) compute(ctx context.Context, req Request, content *ContentScorer, fp string) (Result, error) {
	snap := content.Snapshot()
	logger := logging.With().
		Str("request_id", req.RequestID).
		Str("fingerprint", fp).
		Int64("catalog_version", snap.Version()).
		Logger()

	contentScores, err := content.Score(ctx, req)
	if err != nil {
		// Content scoring is local and mandatory; failure here means
		// the request cannot be served at all.
		return Result{}, fmt.Errorf("content scoring: %w", err)
	}

	var (
		remoteScores []RawScore
		degraded     bool
	)
	if e.remote != nil {
		remoteScores, err = e.remote.Score(ctx, req)
		if err != nil {
			if e.cfg.Policy.RequireRemote || !e.cfg.UseFallbackOnRemoteFailure {
				return Result{}, fmt.Errorf("%w: %v", ErrRemoteRequired, err)
			}
			degraded = true
			if errors.Is(err, breaker.ErrOpen) {
				// Expected while the breaker is open; not an incident.
				logger.Debug().Msg("remote source circuit open, serving content-only")
			} else {
				logger.Warn().Err(err).Msg("remote source failed, serving content-only")
			}
		}
	} else {
		degraded = true
	}

	items := merge(contentScores, remoteScores, e.cfg.Policy)
	items = rankItems(items, req, snap, e.cfg.Policy, req.K)

	if degraded && e.cfg.BackfillContentOnly && len(items) < req.K {
		items = e.backfill(items, req, snap)
	}

	source := SourceHybrid
	if degraded {
		source = SourceFallbackContentOnly
	}

	logger.Info().
		Int("items", len(items)).
		Str("source", string(source)).
		Msg("recommendation computed")

	return Result{
		Items:          items,
		Fingerprint:    fp,
		Source:         source,
		ComputedAt:     time.Now().UTC(),
		CatalogVersion: snap.Version(),
		RequestID:      req.RequestID,
	}, nil
}

// backfill pads a short degraded result with catalog products in
// insertion order, applying the same exclusion and validation rules
// as the main path. Backfilled items carry zero scores.
func (e *Engine) backfill(items []ScoredItem, req Request, snap *catalog.Snapshot) []ScoredItem {
	present := make(map[string]struct{}, len(items))
	for _, item := range items {
		present[item.ProductID] = struct{}{}
	}
	excluded := make(map[string]struct{}, len(req.Exclude))
	if e.cfg.Policy.ExcludeSeenProducts {
		for _, id := range req.Exclude {
			excluded[id] = struct{}{}
		}
	}

	products := snap.Products()
	for i := range products {
		if len(items) >= req.K {
			break
		}
		p := &products[i]
		if p.ID == req.SeedProductID {
			continue
		}
		if _, ok := present[p.ID]; ok {
			continue
		}
		if _, ok := excluded[p.ID]; ok {
			continue
		}
		if e.cfg.Policy.ValidateAgainstCatalog && (!p.Available || !p.SoldIn(req.Market)) {
			continue
		}
		items = append(items, ScoredItem{
			ProductID:  p.ID,
			Provenance: ProvenanceContent,
		})
	}
	return items
}

// InvalidateCache drops every cached result in both tiers.
func (e *Engine) InvalidateCache(ctx context.Context) error {
	return e.cache.InvalidateAll(ctx)
}

// CacheHealthy reports whether the external cache tier is reachable.
func (e *Engine) CacheHealthy(ctx context.Context) error {
	return e.cache.Healthy(ctx)
}
