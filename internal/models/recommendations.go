// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package models

import (
	"time"

	"github.com/tomtom215/suasor/internal/recommend"
)

// RecommendationsResponse is the payload of a per-user recommendation
// request.
type RecommendationsResponse struct {
	Scope           string                 `json:"scope"`
	UserID          string                 `json:"user_id"`
	Recommendations []recommend.ScoredItem `json:"recommendations"`
	Stats           *recommend.ScoreStats  `json:"stats,omitempty"`
}

// BatchRecommendationsResponse is the payload of a stored batch output
// lookup. ItemIDs preserves the rank order the batch wrote.
type BatchRecommendationsResponse struct {
	Scope   string   `json:"scope"`
	UserID  string   `json:"user_id"`
	ItemIDs []string `json:"item_ids"`
}

// ScopeStatus describes one published scope bundle.
type ScopeStatus struct {
	Scope       string    `json:"scope"`
	TrainedAt   time.Time `json:"trained_at"`
	UserCount   int       `json:"user_count"`
	ItemCount   int       `json:"item_count"`
	RatingCount int64     `json:"rating_count"`
	NumericOnly bool      `json:"numeric_only,omitempty"`
}

// ScopesResponse lists every published scope.
type ScopesResponse struct {
	Scopes []ScopeStatus `json:"scopes"`
}

// JobAccepted acknowledges an asynchronous job trigger.
type JobAccepted struct {
	JobID  string `json:"job_id"`
	Kind   string `json:"kind"`
	Scopes string `json:"scopes,omitempty"`
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Scopes   int    `json:"scopes"`
	Version  string `json:"version,omitempty"`
}
