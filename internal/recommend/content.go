// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package recommend

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/shopstream/curator/internal/catalog"
)

// ContentScorer scores products from catalog data alone, with no
// network calls. It is bound to a single immutable snapshot; a catalog
// reload builds a fresh scorer.
//
// Similarity between two products is a weighted combination:
//
//	sim(a, b) = w_text  * jaccard(tokens_a, tokens_b) +
//	            w_cat   * jaccard(category_a, category_b) +
//	            w_attr  * jaccard(attributes_a, attributes_b) +
//	            w_price * price_proximity(a, b)
//
// With a seed product the request is scored item-to-item against the
// seed. Without one, a lightweight preference profile is built from
// the request's already-seen products (the exclusion set); if that
// yields no signal either, the scorer falls back to a deterministic
// rank-decay over catalog order so the engine always has candidates.
type ContentScorer struct {
	snapshot *catalog.Snapshot

	textWeight  float64
	catWeight   float64
	attrWeight  float64
	priceWeight float64

	features []productFeatures // parallel to snapshot.Products()
	index    map[string]int    // product ID -> features position
}

// productFeatures is a product's precomputed feature view.
type productFeatures struct {
	id     string
	tokens map[string]struct{}
	cats   map[string]struct{}
	attrs  map[string]struct{}
	price  float64
}

// ContentConfig weights the feature channels. Zero values take the
// defaults; weights are normalized to sum to 1.
type ContentConfig struct {
	TextWeight      float64
	CategoryWeight  float64
	AttributeWeight float64
	PriceWeight     float64
}

// NewContentScorer builds a scorer over the snapshot, tokenizing every
// product up front so scoring is pure map lookups.
func NewContentScorer(snap *catalog.Snapshot, cfg ContentConfig) *ContentScorer {
	if cfg.TextWeight == 0 {
		cfg.TextWeight = 0.5
	}
	if cfg.CategoryWeight == 0 {
		cfg.CategoryWeight = 0.3
	}
	if cfg.AttributeWeight == 0 {
		cfg.AttributeWeight = 0.1
	}
	if cfg.PriceWeight == 0 {
		cfg.PriceWeight = 0.1
	}
	total := cfg.TextWeight + cfg.CategoryWeight + cfg.AttributeWeight + cfg.PriceWeight
	cfg.TextWeight /= total
	cfg.CategoryWeight /= total
	cfg.AttributeWeight /= total
	cfg.PriceWeight /= total

	products := snap.Products()
	features := make([]productFeatures, len(products))
	index := make(map[string]int, len(products))
	for i := range products {
		features[i] = buildFeatures(&products[i])
		index[products[i].ID] = i
	}

	return &ContentScorer{
		snapshot:    snap,
		textWeight:  cfg.TextWeight,
		catWeight:   cfg.CategoryWeight,
		attrWeight:  cfg.AttributeWeight,
		priceWeight: cfg.PriceWeight,
		features:    features,
		index:       index,
	}
}

// Snapshot returns the snapshot the scorer is bound to.
func (c *ContentScorer) Snapshot() *catalog.Snapshot { return c.snapshot }

// Score implements Scorer. Scores are in [0,1]. Exclusion, market and
// availability filtering are the merger's job; the scorer only omits
// the seed itself.
func (c *ContentScorer) Score(ctx context.Context, req Request) ([]RawScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.SeedProductID != "" {
		if i, ok := c.index[req.SeedProductID]; ok {
			return c.scoreAgainst(&c.features[i], req.SeedProductID), nil
		}
		// Unknown seed: fall through to the profile path rather than
		// return nothing.
	}

	if prof := c.buildProfile(req.Exclude); prof != nil {
		if scores := c.scoreAgainst(prof, ""); len(scores) > 0 {
			return scores, nil
		}
	}

	return c.rankDecay(), nil
}

// scoreAgainst scores every product against the reference features,
// skipping skipID.
func (c *ContentScorer) scoreAgainst(ref *productFeatures, skipID string) []RawScore {
	scores := make([]RawScore, 0, len(c.features))
	for i := range c.features {
		f := &c.features[i]
		if f.id == skipID {
			continue
		}
		if s := c.similarity(ref, f); s > 0 {
			scores = append(scores, RawScore{ProductID: f.id, Score: s})
		}
	}
	return scores
}

// buildProfile merges the features of the request's seen products into
// a single preference profile. Returns nil when none of them are in
// the catalog.
func (c *ContentScorer) buildProfile(seen []string) *productFeatures {
	prof := &productFeatures{
		tokens: make(map[string]struct{}),
		cats:   make(map[string]struct{}),
		attrs:  make(map[string]struct{}),
	}
	matched := 0
	for _, id := range seen {
		i, ok := c.index[id]
		if !ok {
			continue
		}
		f := &c.features[i]
		for t := range f.tokens {
			prof.tokens[t] = struct{}{}
		}
		for t := range f.cats {
			prof.cats[t] = struct{}{}
		}
		for t := range f.attrs {
			prof.attrs[t] = struct{}{}
		}
		prof.price += f.price
		matched++
	}
	if matched == 0 {
		return nil
	}
	prof.price /= float64(matched)
	return prof
}

// rankDecay produces a deterministic cold-start ordering following
// catalog insertion order, with scores decaying smoothly from 1.
func (c *ContentScorer) rankDecay() []RawScore {
	scores := make([]RawScore, len(c.features))
	for i := range c.features {
		scores[i] = RawScore{
			ProductID: c.features[i].id,
			Score:     1.0 / (1.0 + float64(i)),
		}
	}
	return scores
}

func (c *ContentScorer) similarity(a, b *productFeatures) float64 {
	score := c.textWeight * jaccard(a.tokens, b.tokens)
	score += c.catWeight * jaccard(a.cats, b.cats)
	score += c.attrWeight * jaccard(a.attrs, b.attrs)
	score += c.priceWeight * priceProximity(a.price, b.price)
	return score
}

func buildFeatures(p *catalog.Product) productFeatures {
	f := productFeatures{
		id:     p.ID,
		tokens: tokenize(p.Title + " " + p.Description),
		cats:   make(map[string]struct{}, len(p.Category)),
		attrs:  make(map[string]struct{}, len(p.Attributes)),
		price:  p.Price,
	}
	for _, cat := range p.Category {
		f.cats[strings.ToLower(cat)] = struct{}{}
	}
	for k, v := range p.Attributes {
		f.attrs[strings.ToLower(k)+"="+strings.ToLower(v)] = struct{}{}
	}
	return f
}

// tokenize lowercases and splits on non-alphanumeric runs, dropping
// single-character tokens.
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(word) > 1 {
			tokens[word] = struct{}{}
		}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// priceProximity maps the relative price gap to [0,1]; identical
// prices score 1, a 2x or greater gap scores 0.
func priceProximity(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	gap := math.Abs(a-b) / math.Max(a, b)
	return math.Max(0, 1-2*gap)
}
