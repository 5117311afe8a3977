// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint derives the deterministic cache key for a request
// against a catalog version. The exclusion set is sorted so logically
// identical requests hash identically regardless of input order, and
// the catalog version is part of the hash so a reload implicitly
// invalidates every prior key.
//
// RequestID is deliberately excluded: it varies per call and must not
// fragment the cache.
func Fingerprint(req Request, catalogVersion int64) string {
	excludes := make([]string, len(req.Exclude))
	copy(excludes, req.Exclude)
	sort.Strings(excludes)

	var b strings.Builder
	fmt.Fprintf(&b, "u=%s\x00s=%s\x00k=%d\x00m=%s\x00v=%d\x00x=",
		req.UserID, req.SeedProductID, req.K, req.Market, catalogVersion)
	for _, id := range excludes {
		b.WriteString(id)
		b.WriteByte('\x00')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
