// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package catalog

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable, versioned collection of products.
//
// The version is a monotonically increasing integer assigned by the
// caller (the registry bumps it on every reload). Insertion order is
// preserved and exposed through Rank for deterministic tie-breaking.
type Snapshot struct {
	version  int64
	loadedAt time.Time
	products []Product
	index    map[string]int // product ID -> position in products
}

// NewSnapshot builds a snapshot from the given products. Products with
// empty or duplicate IDs are rejected: a catalog source must fail
// loudly rather than publish a partial view.
func NewSnapshot(version int64, products []Product) (*Snapshot, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog: snapshot has no products")
	}

	index := make(map[string]int, len(products))
	for i := range products {
		id := products[i].ID
		if id == "" {
			return nil, fmt.Errorf("catalog: product at position %d has empty id", i)
		}
		if prev, dup := index[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %q (positions %d and %d)", id, prev, i)
		}
		index[id] = i
	}

	// Copy so later mutation of the caller's slice cannot leak in.
	owned := make([]Product, len(products))
	copy(owned, products)

	return &Snapshot{
		version:  version,
		loadedAt: time.Now(),
		products: owned,
		index:    index,
	}, nil
}

// Version returns the snapshot version.
func (s *Snapshot) Version() int64 { return s.version }

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Len returns the product count.
func (s *Snapshot) Len() int { return len(s.products) }

// Get returns the product with the given ID.
func (s *Snapshot) Get(id string) (Product, bool) {
	i, ok := s.index[id]
	if !ok {
		return Product{}, false
	}
	return s.products[i], true
}

// Rank returns the catalog insertion position of a product. Lower ranks
// win score ties during merge, which keeps result order deterministic.
func (s *Snapshot) Rank(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Products returns the snapshot's products in insertion order.
// The returned slice is shared and must be treated as read-only.
func (s *Snapshot) Products() []Product { return s.products }

// Holder is an atomic cell for the active snapshot. Readers load the
// current snapshot without locking; the registry publishes a new one
// with a single atomic store.
type Holder struct {
	ptr atomic.Pointer[Snapshot]
}

// Active returns the currently published snapshot, or nil before the
// first publish.
func (h *Holder) Active() *Snapshot { return h.ptr.Load() }

// Publish makes snap the active snapshot. In-flight requests holding
// the previous snapshot keep using it; the old snapshot is reclaimed by
// the garbage collector once the last reference drops.
func (h *Holder) Publish(snap *Snapshot) { h.ptr.Store(snap) }
