// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	data := []byte(`[
		{"id": "p1", "title": "Skillet", "description": "cast iron", "category": ["kitchen","cookware"], "price": 39.5, "available": true},
		{"id": "p2", "title": "Knife", "attributes": {"brand": "keen"}, "available": true, "markets": ["us"]}
	]`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	src := &FileSource{Path: path}
	products, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, []string{"kitchen", "cookware"}, products[0].Category)
	assert.Equal(t, 39.5, products[0].Price)
	assert.Equal(t, "keen", products[1].Attributes["brand"])
}

func TestFileSourceMissingFile(t *testing.T) {
	src := &FileSource{Path: "/nonexistent/catalog.json"}
	_, err := src.Load(context.Background())
	assert.Error(t, err)
}

func TestFileSourceMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"}`), 0o600))

	src := &FileSource{Path: path}
	_, err := src.Load(context.Background())
	assert.Error(t, err)
}

func TestFileSourceEmptyCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

	src := &FileSource{Path: path}
	_, err := src.Load(context.Background())
	assert.ErrorContains(t, err, "no products")
}

func TestFileSourceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &FileSource{Path: "/irrelevant"}
	_, err := src.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
