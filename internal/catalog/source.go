// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Source loads the full product set. Implementations must fail with an
// error rather than silently return a partial catalog.
type Source interface {
	// Load returns every known product. Called at startup and on
	// explicit reload.
	Load(ctx context.Context) ([]Product, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Product, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context) ([]Product, error) { return f(ctx) }

// FileSource loads the catalog from a JSON file containing an array of
// products. It is the built-in source for standalone operation; the
// catalog import tooling feeds the same format.
type FileSource struct {
	Path string
}

// Load implements Source.
func (f *FileSource) Load(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", f.Path, err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", f.Path, err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog: %s contains no products", f.Path)
	}

	return products, nil
}
