// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package recommend

import "errors"

var (
	// ErrInvalidRequest is returned for requests with no subject or an
	// out-of-range count.
	ErrInvalidRequest = errors.New("recommend: invalid request")

	// ErrNoCatalog is returned when no catalog snapshot has been
	// published yet.
	ErrNoCatalog = errors.New("recommend: no active catalog snapshot")

	// ErrRemoteRequired is returned when configuration demands remote
	// scores and the remote source is unavailable.
	ErrRemoteRequired = errors.New("recommend: remote personalization required but unavailable")
)
