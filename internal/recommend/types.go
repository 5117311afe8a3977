// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

// Package recommend contains the recommendation engine: content and
// remote scorers behind a common interface, the hybrid merger, the
// request fingerprint, and the orchestrating Engine.
package recommend

import (
	"context"
	"time"
)

// Provenance records which scorer(s) produced an item.
type Provenance string

const (
	// ProvenanceContent marks items scored only by the content scorer.
	ProvenanceContent Provenance = "content"
	// ProvenanceRemote marks items scored only by the remote service.
	ProvenanceRemote Provenance = "remote"
	// ProvenanceBoth marks items scored by both sources.
	ProvenanceBoth Provenance = "both"
)

// ResultSource describes how a result was produced.
type ResultSource string

const (
	// SourceCache means the result was served from the result cache.
	SourceCache ResultSource = "cache"
	// SourceHybrid means both scorers contributed.
	SourceHybrid ResultSource = "hybrid"
	// SourceFallbackContentOnly means the remote source was unavailable
	// and the result is content-only.
	SourceFallbackContentOnly ResultSource = "fallback-content-only"
)

// Request is a single recommendation request. Ephemeral, never
// persisted. At least one of UserID and SeedProductID must be set.
type Request struct {
	// UserID identifies the shopper, for personalized scoring.
	UserID string `json:"userId,omitempty"`

	// SeedProductID asks for items similar to this product.
	SeedProductID string `json:"seedProductId,omitempty"`

	// K is the requested item count.
	K int `json:"k"`

	// Exclude lists product IDs to omit, typically already-seen items.
	Exclude []string `json:"exclude,omitempty"`

	// Market restricts results to products sold in this market. Empty
	// means no restriction.
	Market string `json:"market,omitempty"`

	// RequestID correlates logs across the request. Assigned by the
	// engine when empty.
	RequestID string `json:"requestId,omitempty"`
}

// ScoredItem is a single recommended product with its scores.
type ScoredItem struct {
	ProductID string `json:"productId"`

	// Score is the final merged score in [0,1].
	Score float64 `json:"score"`

	// ContentScore and RemoteScore are the normalized per-source
	// scores that went into the merge. Zero when the source did not
	// return the item.
	ContentScore float64 `json:"contentScore"`
	RemoteScore  float64 `json:"remoteScore"`

	Provenance Provenance `json:"provenance"`
}

// Result is an ordered recommendation list. Immutable once produced;
// cached under its fingerprint.
type Result struct {
	Items []ScoredItem `json:"items"`

	// Fingerprint is the cache key this result was computed for.
	Fingerprint string `json:"fingerprint"`

	Source ResultSource `json:"source"`

	ComputedAt time.Time `json:"computedAt"`

	// CatalogVersion is the snapshot version the result was scored
	// against.
	CatalogVersion int64 `json:"catalogVersion"`

	RequestID string `json:"requestId,omitempty"`
}

// RawScore is a scorer's opinion about one product, on the scorer's
// own scale. Scales differ between scorers; the merger normalizes
// before combining.
type RawScore struct {
	ProductID string
	Score     float64
}

// Scorer produces candidate scores for a request. Implementations are
// the content scorer and the remote personalization client; the merger
// treats them uniformly.
type Scorer interface {
	Score(ctx context.Context, req Request) ([]RawScore, error)
}

// HealthProbe is implemented by scorers that can be probed cheaply.
// The breaker uses it as the half-open trial for the remote client.
type HealthProbe interface {
	Probe(ctx context.Context) error
}
