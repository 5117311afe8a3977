// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package recommend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstream/curator/internal/cache"
	"github.com/shopstream/curator/internal/catalog"
)

// mockScorer is a hand mock with an atomic call counter, standing in
// for the remote client.
type mockScorer struct {
	calls  atomic.Int32
	scores []RawScore
	err    error
	delay  time.Duration
}

func (m *mockScorer) Score(ctx context.Context, _ Request) ([]RawScore, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.scores, nil
}

func testEngine(t *testing.T, remote Scorer, cfg EngineConfig) *Engine {
	t.Helper()
	scorer := NewContentScorer(contentSnapshot(t), ContentConfig{})
	resultCache := cache.New[Result](nil, cache.Options{LocalCapacity: 64, TTL: time.Hour})
	return NewEngine(cfg, scorer, remote, resultCache)
}

func defaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultK: 3,
		MaxK:     10,
		Policy: MergePolicy{
			ContentWeight:          0.4,
			ExcludeSeenProducts:    true,
			ValidateAgainstCatalog: true,
		},
		UseFallbackOnRemoteFailure: true,
		BackfillContentOnly:        true,
	}
}

func TestRecommendIdempotentAndCached(t *testing.T) {
	remote := &mockScorer{scores: []RawScore{{ProductID: "knife", Score: 5}}}
	e := testEngine(t, remote, defaultEngineConfig())
	ctx := context.Background()
	req := Request{UserID: "u1", SeedProductID: "skillet", K: 3}

	first, err := e.Recommend(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, SourceHybrid, first.Source)
	require.NotEmpty(t, first.Items)

	second, err := e.Recommend(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, int32(1), remote.calls.Load(), "second call must be served from cache")
}

func TestRecommendSingleFlight(t *testing.T) {
	remote := &mockScorer{
		scores: []RawScore{{ProductID: "knife", Score: 5}},
		delay:  50 * time.Millisecond,
	}
	e := testEngine(t, remote, defaultEngineConfig())
	ctx := context.Background()
	req := Request{UserID: "u1", SeedProductID: "skillet", K: 3, RequestID: "shared"}

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Recommend(ctx, req)
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, int32(1), remote.calls.Load(),
		"concurrent identical requests must trigger exactly one remote call")
}

func TestRecommendDegradedModeReturnsFullCount(t *testing.T) {
	remote := &mockScorer{err: errors.New("remote down")}
	e := testEngine(t, remote, defaultEngineConfig())

	result, err := e.Recommend(context.Background(), Request{UserID: "u1", SeedProductID: "skillet", K: 3})
	require.NoError(t, err, "remote failure must never fail the request in fallback mode")

	assert.Equal(t, SourceFallbackContentOnly, result.Source)
	assert.Len(t, result.Items, 3, "backfill must pad the degraded result to the requested count")
	for _, item := range result.Items {
		assert.NotEqual(t, "skillet", item.ProductID)
	}
}

func TestRecommendRemoteRequiredFails(t *testing.T) {
	remote := &mockScorer{err: errors.New("remote down")}
	cfg := defaultEngineConfig()
	cfg.UseFallbackOnRemoteFailure = false
	e := testEngine(t, remote, cfg)

	_, err := e.Recommend(context.Background(), Request{UserID: "u1", SeedProductID: "skillet", K: 3})
	assert.ErrorIs(t, err, ErrRemoteRequired)
}

func TestRecommendNoRemoteConfigured(t *testing.T) {
	e := testEngine(t, nil, defaultEngineConfig())

	result, err := e.Recommend(context.Background(), Request{SeedProductID: "skillet", K: 2})
	require.NoError(t, err)
	assert.Equal(t, SourceFallbackContentOnly, result.Source)
	assert.Len(t, result.Items, 2)
}

func TestRecommendExclusionNeverAppears(t *testing.T) {
	// Remote insists on the excluded product with a huge score.
	remote := &mockScorer{scores: []RawScore{
		{ProductID: "dutch-oven", Score: 1000},
		{ProductID: "knife", Score: 1},
	}}
	e := testEngine(t, remote, defaultEngineConfig())

	result, err := e.Recommend(context.Background(), Request{
		UserID:        "u1",
		SeedProductID: "skillet",
		K:             3,
		Exclude:       []string{"dutch-oven"},
	})
	require.NoError(t, err)
	for _, item := range result.Items {
		assert.NotEqual(t, "dutch-oven", item.ProductID)
	}
}

func TestRecommendUnknownProductFromRemoteFiltered(t *testing.T) {
	remote := &mockScorer{scores: []RawScore{
		{ProductID: "discontinued", Score: 1000},
		{ProductID: "knife", Score: 1},
	}}
	e := testEngine(t, remote, defaultEngineConfig())

	result, err := e.Recommend(context.Background(), Request{SeedProductID: "skillet", K: 10})
	require.NoError(t, err)
	for _, item := range result.Items {
		assert.NotEqual(t, "discontinued", item.ProductID)
	}
}

func TestRecommendValidatesRequest(t *testing.T) {
	e := testEngine(t, nil, defaultEngineConfig())
	ctx := context.Background()

	_, err := e.Recommend(ctx, Request{K: 3})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.Recommend(ctx, Request{UserID: "u1", K: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRecommendCapsK(t *testing.T) {
	e := testEngine(t, nil, defaultEngineConfig())

	result, err := e.Recommend(context.Background(), Request{SeedProductID: "skillet", K: 500})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Items), 10)
}

func TestRecommendNoCatalog(t *testing.T) {
	resultCache := cache.New[Result](nil, cache.Options{})
	e := NewEngine(defaultEngineConfig(), nil, nil, resultCache)

	_, err := e.Recommend(context.Background(), Request{UserID: "u1", K: 3})
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestSwapContentChangesVersionAndFingerprint(t *testing.T) {
	e := testEngine(t, nil, defaultEngineConfig())
	ctx := context.Background()
	req := Request{SeedProductID: "skillet", K: 2}

	first, err := e.Recommend(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.CatalogVersion)

	snap, err := catalog.NewSnapshot(2, contentSnapshot(t).Products())
	require.NoError(t, err)
	e.SwapContent(NewContentScorer(snap, ContentConfig{}))

	second, err := e.Recommend(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.CatalogVersion)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)
	assert.NotEqual(t, SourceCache, second.Source,
		"a version bump must miss every pre-reload cache entry")
}
