// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package recommend

import (
	"context"
	"errors"

	"github.com/shopstream/curator/internal/breaker"
	"github.com/shopstream/curator/internal/metrics"
)

// GuardedScorer runs a Scorer through a circuit breaker. Only the
// remote client is guarded; the content scorer is purely local and
// never breaker-gated.
type GuardedScorer struct {
	inner Scorer
	cb    *breaker.Breaker
}

// NewGuardedScorer wraps inner with cb.
func NewGuardedScorer(inner Scorer, cb *breaker.Breaker) *GuardedScorer {
	return &GuardedScorer{inner: inner, cb: cb}
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedScorer) Breaker() *breaker.Breaker { return g.cb }

// Score implements Scorer. When the breaker is open the call is
// rejected immediately with breaker.ErrOpen and no network attempt.
func (g *GuardedScorer) Score(ctx context.Context, req Request) ([]RawScore, error) {
	var scores []RawScore
	err := g.cb.Do(ctx, func(ctx context.Context) error {
		var serr error
		scores, serr = g.inner.Score(ctx, req)
		return serr
	})
	if err != nil {
		result := "failure"
		if errors.Is(err, breaker.ErrOpen) {
			result = "rejected"
		}
		metrics.BreakerRequests.WithLabelValues(g.cb.Name(), result).Inc()
		return nil, err
	}
	metrics.BreakerRequests.WithLabelValues(g.cb.Name(), "success").Inc()
	return scores, nil
}
