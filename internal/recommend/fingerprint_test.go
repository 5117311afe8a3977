// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	req := Request{UserID: "u1", K: 10, Exclude: []string{"a", "b"}, Market: "us"}
	assert.Equal(t, Fingerprint(req, 1), Fingerprint(req, 1))
}

func TestFingerprintExclusionOrderIrrelevant(t *testing.T) {
	a := Request{UserID: "u1", K: 10, Exclude: []string{"x", "y", "z"}}
	b := Request{UserID: "u1", K: 10, Exclude: []string{"z", "x", "y"}}
	assert.Equal(t, Fingerprint(a, 1), Fingerprint(b, 1))
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Request{UserID: "u1", SeedProductID: "s1", K: 10, Exclude: []string{"a"}, Market: "us"}
	fp := Fingerprint(base, 1)

	variants := []Request{
		{UserID: "u2", SeedProductID: "s1", K: 10, Exclude: []string{"a"}, Market: "us"},
		{UserID: "u1", SeedProductID: "s2", K: 10, Exclude: []string{"a"}, Market: "us"},
		{UserID: "u1", SeedProductID: "s1", K: 11, Exclude: []string{"a"}, Market: "us"},
		{UserID: "u1", SeedProductID: "s1", K: 10, Exclude: []string{"b"}, Market: "us"},
		{UserID: "u1", SeedProductID: "s1", K: 10, Exclude: []string{"a"}, Market: "de"},
	}
	for _, v := range variants {
		assert.NotEqual(t, fp, Fingerprint(v, 1))
	}

	// A catalog version bump invalidates every prior key.
	assert.NotEqual(t, fp, Fingerprint(base, 2))
}

func TestFingerprintIgnoresRequestID(t *testing.T) {
	a := Request{UserID: "u1", K: 10, RequestID: "req-1"}
	b := Request{UserID: "u1", K: 10, RequestID: "req-2"}
	assert.Equal(t, Fingerprint(a, 1), Fingerprint(b, 1))
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	// Field contents must not bleed into each other.
	a := Request{UserID: "ab", SeedProductID: "c", K: 1}
	b := Request{UserID: "a", SeedProductID: "bc", K: 1}
	assert.NotEqual(t, Fingerprint(a, 1), Fingerprint(b, 1))
}
