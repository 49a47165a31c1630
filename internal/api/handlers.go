// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/suasor/internal/logging"
	"github.com/tomtom215/suasor/internal/models"
	"github.com/tomtom215/suasor/internal/recommend"
)

// Error codes returned in API error payloads.
const (
	errCodeValidation  = "VALIDATION_ERROR"
	errCodeNotFound    = "NOT_FOUND"
	errCodeInternal    = "INTERNAL_ERROR"
	errCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// maxTopN caps how many recommendations one request may ask for.
const maxTopN = 100

// Recommender scores one user within a scope.
type Recommender interface {
	RecommendForUser(ctx context.Context, scope, userID string, topN int) ([]recommend.ScoredItem, *recommend.ScoreStats, error)
}

// ScopeLister reports the published scope bundles.
type ScopeLister interface {
	Status() []recommend.BundleMeta
}

// JobRunner triggers asynchronous training and batch runs. Implementations
// must be safe for concurrent triggers.
type JobRunner interface {
	TriggerTrain(scopes []string) (jobID string, err error)
	TriggerBatch(scopes []string) (jobID string, err error)
}

// Pinger checks database connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BatchStore reads the recommendation lists the batch job persisted.
type BatchStore interface {
	StoredRecommendations(ctx context.Context, scope, userID string) ([]string, error)
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	rec        Recommender
	scopes     ScopeLister
	jobs       JobRunner
	db         Pinger
	store      BatchStore
	scopeNames map[string]bool
	version    string
}

// NewHandler wires the API handlers.
func NewHandler(rec Recommender, scopes ScopeLister, jobs JobRunner, db Pinger, store BatchStore, scopeNames []string, version string) *Handler {
	known := make(map[string]bool, len(scopeNames))
	for _, s := range scopeNames {
		known[s] = true
	}
	return &Handler{
		rec:        rec,
		scopes:     scopes,
		jobs:       jobs,
		db:         db,
		store:      store,
		scopeNames: known,
		version:    version,
	}
}

// GetRecommendations handles GET /api/v1/recommendations/{scope}/users/{userID}.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	scope := chi.URLParam(r, "scope")
	userID := chi.URLParam(r, "userID")

	if !h.scopeNames[scope] {
		respondError(w, http.StatusNotFound, errCodeNotFound, "unknown scope", nil)
		return
	}
	if userID == "" {
		respondError(w, http.StatusBadRequest, errCodeValidation, "user id is required", nil)
		return
	}

	topN, err := getIntParam(r, "limit", 10, 1, maxTopN)
	if err != nil {
		respondError(w, http.StatusBadRequest, errCodeValidation, err.Error(), nil)
		return
	}

	items, stats, err := h.rec.RecommendForUser(r.Context(), scope, userID, topN)
	switch {
	case errors.Is(err, recommend.ErrModelNotFound):
		respondError(w, http.StatusNotFound, errCodeNotFound, "no trained model for scope", err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, errCodeInternal, "scoring failed", err)
		return
	}

	respondSuccess(w, models.RecommendationsResponse{
		Scope:           scope,
		UserID:          userID,
		Recommendations: items,
		Stats:           stats,
	}, start)
}

// GetBatchRecommendations handles
// GET /api/v1/batch/{scope}/users/{userID}: the recommendation list the
// last batch run stored, without rescoring.
func (h *Handler) GetBatchRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	scope := chi.URLParam(r, "scope")
	userID := chi.URLParam(r, "userID")

	if !h.scopeNames[scope] {
		respondError(w, http.StatusNotFound, errCodeNotFound, "unknown scope", nil)
		return
	}
	if userID == "" {
		respondError(w, http.StatusBadRequest, errCodeValidation, "user id is required", nil)
		return
	}

	ids, err := h.store.StoredRecommendations(r.Context(), scope, userID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, errCodeUnavailable, "stored recommendations unavailable", err)
		return
	}
	if ids == nil {
		respondError(w, http.StatusNotFound, errCodeNotFound, "no stored recommendations for user", nil)
		return
	}

	respondSuccess(w, models.BatchRecommendationsResponse{
		Scope:   scope,
		UserID:  userID,
		ItemIDs: ids,
	}, start)
}

// ListScopes handles GET /api/v1/scopes.
func (h *Handler) ListScopes(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	metas := h.scopes.Status()

	out := make([]models.ScopeStatus, 0, len(metas))
	for _, m := range metas {
		out = append(out, models.ScopeStatus{
			Scope:       m.Scope,
			TrainedAt:   m.TrainedAt,
			UserCount:   m.UserCount,
			ItemCount:   m.ItemCount,
			RatingCount: m.RatingCount,
			NumericOnly: m.NumericOnly,
		})
	}
	respondSuccess(w, models.ScopesResponse{Scopes: out}, start)
}

// TriggerTrain handles POST /api/v1/train and POST /api/v1/train/{scope}.
// Training runs asynchronously; the response only acknowledges the trigger.
func (h *Handler) TriggerTrain(w http.ResponseWriter, r *http.Request) {
	scopes, ok := h.jobScopes(w, r)
	if !ok {
		return
	}

	jobID, err := h.jobs.TriggerTrain(scopes)
	if err != nil {
		respondError(w, http.StatusConflict, errCodeUnavailable, err.Error(), err)
		return
	}

	logging.Info().Str("job_id", jobID).Strs("scopes", scopes).Msg("Training triggered")
	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status:   "success",
		Data:     models.JobAccepted{JobID: jobID, Kind: "train", Scopes: joinScopes(scopes)},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// TriggerBatch handles POST /api/v1/batch and POST /api/v1/batch/{scope}.
func (h *Handler) TriggerBatch(w http.ResponseWriter, r *http.Request) {
	scopes, ok := h.jobScopes(w, r)
	if !ok {
		return
	}

	jobID, err := h.jobs.TriggerBatch(scopes)
	if err != nil {
		respondError(w, http.StatusConflict, errCodeUnavailable, err.Error(), err)
		return
	}

	logging.Info().Str("job_id", jobID).Strs("scopes", scopes).Msg("Batch run triggered")
	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status:   "success",
		Data:     models.JobAccepted{JobID: jobID, Kind: "batch", Scopes: joinScopes(scopes)},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// jobScopes resolves the optional {scope} path parameter: absent means all
// configured scopes.
func (h *Handler) jobScopes(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	scope := chi.URLParam(r, "scope")
	if scope == "" {
		all := make([]string, 0, len(h.scopeNames))
		for s := range h.scopeNames {
			all = append(all, s)
		}
		return all, true
	}
	if !h.scopeNames[scope] {
		respondError(w, http.StatusNotFound, errCodeNotFound, "unknown scope", nil)
		return nil, false
	}
	return []string{scope}, true
}

func joinScopes(scopes []string) string {
	if len(scopes) == 0 {
		return ""
	}
	out := scopes[0]
	for _, s := range scopes[1:] {
		out += "," + s
	}
	return out
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "up"
	status := "healthy"
	code := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		dbStatus = "down"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, &models.APIResponse{
		Status: "success",
		Data: models.HealthResponse{
			Status:   status,
			Database: dbStatus,
			Scopes:   len(h.scopes.Status()),
			Version:  h.version,
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// NewJobID returns a fresh identifier for an async job trigger.
func NewJobID() string {
	return uuid.NewString()
}
