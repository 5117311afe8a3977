// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProducts() []Product {
	return []Product{
		{ID: "p1", Title: "Cast Iron Skillet", Available: true},
		{ID: "p2", Title: "Chef Knife", Available: true, Markets: []string{"us", "de"}},
		{ID: "p3", Title: "Stock Pot", Available: false},
	}
}

func TestNewSnapshot(t *testing.T) {
	snap, err := NewSnapshot(1, testProducts())
	require.NoError(t, err)

	assert.Equal(t, int64(1), snap.Version())
	assert.Equal(t, 3, snap.Len())
	assert.False(t, snap.LoadedAt().IsZero())

	p, ok := snap.Get("p2")
	require.True(t, ok)
	assert.Equal(t, "Chef Knife", p.Title)

	_, ok = snap.Get("missing")
	assert.False(t, ok)
}

func TestNewSnapshotRejectsEmpty(t *testing.T) {
	_, err := NewSnapshot(1, nil)
	assert.Error(t, err)
}

func TestNewSnapshotRejectsEmptyID(t *testing.T) {
	_, err := NewSnapshot(1, []Product{{ID: ""}})
	assert.ErrorContains(t, err, "empty id")
}

func TestNewSnapshotRejectsDuplicateID(t *testing.T) {
	_, err := NewSnapshot(1, []Product{{ID: "p1"}, {ID: "p1"}})
	assert.ErrorContains(t, err, "duplicate product id")
}

func TestRankFollowsInsertionOrder(t *testing.T) {
	snap, err := NewSnapshot(1, testProducts())
	require.NoError(t, err)

	for i, id := range []string{"p1", "p2", "p3"} {
		rank, ok := snap.Rank(id)
		require.True(t, ok)
		assert.Equal(t, i, rank)
	}

	_, ok := snap.Rank("missing")
	assert.False(t, ok)
}

func TestSnapshotCopiesInput(t *testing.T) {
	products := testProducts()
	snap, err := NewSnapshot(1, products)
	require.NoError(t, err)

	products[0].Title = "mutated"

	p, _ := snap.Get("p1")
	assert.Equal(t, "Cast Iron Skillet", p.Title)
}

func TestSoldIn(t *testing.T) {
	everywhere := Product{ID: "a"}
	assert.True(t, everywhere.SoldIn("us"))
	assert.True(t, everywhere.SoldIn(""))

	regional := Product{ID: "b", Markets: []string{"us", "de"}}
	assert.True(t, regional.SoldIn("de"))
	assert.False(t, regional.SoldIn("jp"))
	assert.True(t, regional.SoldIn(""))
}

func TestHolderPublish(t *testing.T) {
	var h Holder
	assert.Nil(t, h.Active())

	s1, err := NewSnapshot(1, testProducts())
	require.NoError(t, err)
	h.Publish(s1)
	assert.Same(t, s1, h.Active())

	s2, err := NewSnapshot(2, testProducts())
	require.NoError(t, err)
	h.Publish(s2)
	assert.Same(t, s2, h.Active())

	// The old snapshot is still usable by holders of the old reference.
	assert.Equal(t, int64(1), s1.Version())
}
