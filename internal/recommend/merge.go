// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package recommend

import (
	"sort"

	"github.com/shopstream/curator/internal/catalog"
	"github.com/shopstream/curator/internal/metrics"
)

// MergePolicy configures the hybrid merger.
type MergePolicy struct {
	// ContentWeight is the content share of the final score, in [0,1].
	// The remote share is 1 - ContentWeight.
	ContentWeight float64

	// ExcludeSeenProducts drops products in the request's exclusion
	// set.
	ExcludeSeenProducts bool

	// ValidateAgainstCatalog drops products missing from the active
	// snapshot or marked unavailable.
	ValidateAgainstCatalog bool

	// RequireRemote drops items the remote source did not return
	// instead of zero-scoring their remote share.
	RequireRemote bool
}

// normalize rescales scores to [0,1] with min-max normalization.
// A single-valued list maps to all-1 when the value is positive and
// all-0 otherwise, so a flat positive list still counts as signal.
func normalize(scores []RawScore) map[string]float64 {
	if len(scores) == 0 {
		return nil
	}

	lo, hi := scores[0].Score, scores[0].Score
	for _, s := range scores[1:] {
		if s.Score < lo {
			lo = s.Score
		}
		if s.Score > hi {
			hi = s.Score
		}
	}

	out := make(map[string]float64, len(scores))
	if hi == lo {
		v := 0.0
		if hi > 0 {
			v = 1.0
		}
		for _, s := range scores {
			out[s.ProductID] = v
		}
		return out
	}

	span := hi - lo
	for _, s := range scores {
		out[s.ProductID] = (s.Score - lo) / span
	}
	return out
}

// merge combines normalized content and remote scores into a single
// candidate list. Order is unspecified; rankItems sorts.
//
// final = (1-ContentWeight) * remote + ContentWeight * content
//
// A product present in only one list keeps that list's weighted share
// with the other share zero, unless RequireRemote drops content-only
// candidates.
func merge(content, remote []RawScore, policy MergePolicy) []ScoredItem {
	cn := normalize(content)
	rn := normalize(remote)

	w := 1 - policy.ContentWeight // remote share

	items := make([]ScoredItem, 0, len(cn)+len(rn))
	for id, cs := range cn {
		item := ScoredItem{
			ProductID:    id,
			ContentScore: cs,
			Provenance:   ProvenanceContent,
		}
		if rs, ok := rn[id]; ok {
			item.RemoteScore = rs
			item.Provenance = ProvenanceBoth
		} else if policy.RequireRemote && len(rn) > 0 {
			continue
		}
		item.Score = w*item.RemoteScore + (1-w)*item.ContentScore
		items = append(items, item)
	}

	for id, rs := range rn {
		if _, ok := cn[id]; ok {
			continue
		}
		items = append(items, ScoredItem{
			ProductID:   id,
			RemoteScore: rs,
			Score:       w * rs,
			Provenance:  ProvenanceRemote,
		})
	}

	return items
}

// rankItems applies the post-merge policy in order: exclusion,
// catalog validation, market filtering, stable descending sort with
// catalog-insertion-order tie-break, truncation to k.
func rankItems(items []ScoredItem, req Request, snap *catalog.Snapshot, policy MergePolicy, k int) []ScoredItem {
	excluded := make(map[string]struct{}, len(req.Exclude))
	if policy.ExcludeSeenProducts {
		for _, id := range req.Exclude {
			excluded[id] = struct{}{}
		}
	}

	kept := items[:0]
	for _, item := range items {
		if _, drop := excluded[item.ProductID]; drop {
			metrics.ProductsFiltered.WithLabelValues("excluded").Inc()
			continue
		}
		if policy.ValidateAgainstCatalog {
			p, ok := snap.Get(item.ProductID)
			if !ok {
				metrics.ProductsFiltered.WithLabelValues("missing").Inc()
				continue
			}
			if !p.Available {
				metrics.ProductsFiltered.WithLabelValues("unavailable").Inc()
				continue
			}
			if !p.SoldIn(req.Market) {
				metrics.ProductsFiltered.WithLabelValues("market").Inc()
				continue
			}
		}
		kept = append(kept, item)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		ri, iOK := snap.Rank(kept[i].ProductID)
		rj, jOK := snap.Rank(kept[j].ProductID)
		if iOK && jOK {
			return ri < rj
		}
		// Products outside the catalog (validation disabled) sort
		// after catalog products, by ID for determinism.
		if iOK != jOK {
			return iOK
		}
		return kept[i].ProductID < kept[j].ProductID
	})

	if k > 0 && len(kept) > k {
		kept = kept[:k]
	}
	return kept
}
