// Curator - Product Recommendation Orchestration Service
// Copyright 2026 Shopstream Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shopstream/curator

// Package api is the thin HTTP surface over the registry: request
// decoding, routing and response envelopes. All recommendation logic
// lives behind the registry.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopstream/curator/internal/logging"
	"github.com/shopstream/curator/internal/recommend"
	"github.com/shopstream/curator/internal/registry"
)

// Server exposes the registry over HTTP.
type Server struct {
	registry *registry.Registry
}

// NewServer creates a Server backed by reg.
func NewServer(reg *registry.Registry) *Server {
	return &Server{registry: reg}
}

// RouterConfig tunes the HTTP middleware stack.
type RouterConfig struct {
	// RequestTimeout bounds handler execution.
	RequestTimeout time.Duration
	// RateLimitPerMinute caps requests per client IP. Zero disables
	// limiting.
	RateLimitPerMinute int
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	if cfg.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", s.handleRecommend)
		r.Get("/health", s.handleHealth)
		r.Post("/catalog/reload", s.handleReload)
		r.Post("/cache/invalidate", s.handleInvalidateCache)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// apiResponse is the uniform response envelope.
type apiResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleRecommend serves POST /api/v1/recommendations.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = chimiddleware.GetReqID(r.Context())
	}

	result, err := s.registry.Recommend(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, recommend.ErrInvalidRequest):
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid recommendation request", err)
		case errors.Is(err, recommend.ErrRemoteRequired):
			respondError(w, http.StatusServiceUnavailable, "REMOTE_UNAVAILABLE", "Remote personalization required but unavailable", err)
		default:
			respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Recommendation service unavailable", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, &apiResponse{Status: "ok", Data: result})
}

// handleHealth serves GET /api/v1/health. Returns 503 when the
// mandatory content path cannot serve traffic.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.registry.Health(r.Context())

	status := http.StatusOK
	if !s.registry.Healthy(r.Context()) {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, &apiResponse{Status: "ok", Data: health})
}

// handleReload serves POST /api/v1/catalog/reload.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reload(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "RELOAD_FAILED", "Catalog reload failed", err)
		return
	}

	snap := s.registry.ActiveSnapshot()
	respondJSON(w, http.StatusOK, &apiResponse{Status: "ok", Data: map[string]any{
		"catalogVersion": snap.Version(),
		"products":       snap.Len(),
	}})
}

// handleInvalidateCache serves POST /api/v1/cache/invalidate.
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.InvalidateCache(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "INVALIDATE_FAILED", "Cache invalidation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, &apiResponse{Status: "ok"})
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *apiResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API Error")
	}

	respondJSON(w, status, &apiResponse{
		Status: "error",
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	})
}
