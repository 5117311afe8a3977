// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

package recommend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/shopstream/curator/internal/metrics"
)

// RemoteClient calls the external personalization service. Network
// errors, timeouts and malformed responses are all surfaced as
// *RemoteError so the breaker counts them uniformly.
type RemoteClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// RemoteError wraps a failed remote call with a classification used in
// metrics and logs.
type RemoteError struct {
	// Reason is one of "timeout", "transport", "status", "malformed",
	// "rate-limited".
	Reason string
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote personalization: %s: %v", e.Reason, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// RemoteConfig configures a RemoteClient.
type RemoteConfig struct {
	// URL is the service base URL.
	URL string
	// Timeout is the hard per-call deadline (default 2s).
	Timeout time.Duration
	// RateLimit and RateBurst bound outbound call rate. A zero
	// RateLimit disables limiting.
	RateLimit float64
	RateBurst int
}

// NewRemoteClient builds a client for the personalization service.
func NewRemoteClient(cfg RemoteConfig) *RemoteClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &RemoteClient{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

// remoteRequest is the wire request for POST /v1/personalize.
type remoteRequest struct {
	UserID string `json:"userId,omitempty"`
	SeedID string `json:"seedId,omitempty"`
	Count  int    `json:"count"`
	Market string `json:"market,omitempty"`
}

// remoteResponse is the wire response.
type remoteResponse struct {
	Items []struct {
		ProductID string  `json:"productId"`
		Score     float64 `json:"score"`
	} `json:"items"`
}

// Score implements Scorer. Remote scores are on the service's own
// scale and may be unbounded; the merger normalizes them.
func (r *RemoteClient) Score(ctx context.Context, req Request) ([]RawScore, error) {
	start := time.Now()
	scores, err := r.score(ctx, req)
	metrics.RemoteCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "transport"
		var rerr *RemoteError
		if errors.As(err, &rerr) {
			reason = rerr.Reason
		}
		metrics.RemoteCallErrors.WithLabelValues(reason).Inc()
		return nil, err
	}
	return scores, nil
}

func (r *RemoteClient) score(ctx context.Context, req Request) ([]RawScore, error) {
	if r.limiter != nil {
		if !r.limiter.Allow() {
			return nil, &RemoteError{Reason: "rate-limited", Err: fmt.Errorf("outbound rate limit exceeded")}
		}
	}

	body, err := json.Marshal(remoteRequest{
		UserID: req.UserID,
		SeedID: req.SeedProductID,
		Count:  req.K,
		Market: req.Market,
	})
	if err != nil {
		return nil, &RemoteError{Reason: "malformed", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/personalize", bytes.NewReader(body))
	if err != nil {
		return nil, &RemoteError{Reason: "transport", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		reason := "transport"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
			reason = "timeout"
		}
		return nil, &RemoteError{Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &RemoteError{Reason: "status", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &RemoteError{Reason: "malformed", Err: err}
	}

	scores := make([]RawScore, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if item.ProductID == "" {
			continue
		}
		scores = append(scores, RawScore{ProductID: item.ProductID, Score: item.Score})
	}
	return scores, nil
}

// Probe implements HealthProbe with a cheap GET against the service's
// health endpoint. Used as the breaker's half-open trial.
func (r *RemoteClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/health", nil)
	if err != nil {
		return &RemoteError{Reason: "transport", Err: err}
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return &RemoteError{Reason: "transport", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Reason: "status", Err: fmt.Errorf("health returned %d", resp.StatusCode)}
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
