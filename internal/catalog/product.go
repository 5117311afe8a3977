// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

// Package catalog holds the immutable, versioned view of the product set.
//
// A Snapshot is built once from a Source and never mutated afterwards,
// which makes it safe for unsynchronized concurrent reads. At most one
// snapshot is active at a time; the registry swaps the active reference
// atomically on reload, so a request observes either fully the old or
// fully the new catalog, never a mix.
package catalog

// Product is a single catalog entry. Immutable once published in a
// snapshot.
type Product struct {
	// ID is the unique, stable product identifier.
	ID string `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Description is the free-text product description.
	Description string `json:"description"`

	// Category is the category path, most general first
	// (e.g. ["home", "kitchen", "cookware"]).
	Category []string `json:"category"`

	// Price is the list price in the catalog's base currency.
	Price float64 `json:"price"`

	// Attributes holds free-form product attributes (brand, color, ...).
	Attributes map[string]string `json:"attributes,omitempty"`

	// Available marks whether the product can currently be recommended.
	Available bool `json:"available"`

	// Markets lists the market codes the product is sold in. Empty means
	// all markets.
	Markets []string `json:"markets,omitempty"`
}

// SoldIn reports whether the product is sold in the given market.
// An empty Markets list means the product is sold everywhere; an empty
// market matches any product.
func (p *Product) SoldIn(market string) bool {
	if market == "" || len(p.Markets) == 0 {
		return true
	}
	for _, m := range p.Markets {
		if m == market {
			return true
		}
	}
	return false
}
