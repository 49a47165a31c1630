// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

// Package recommend provides the hybrid recommendation engine core: the
// scope registry holding trained bundles and the scorer that blends
// collaborative and content-based signals into ranked recommendations.
//
// Concrete model implementations live in the algorithms subpackage and
// content feature construction in the features subpackage; this package
// depends on neither. Models reach the engine through the Model interface
// so training wiring stays outside the scoring path.
package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/suasor/internal/recommend/features"
)

// Sentinel errors for scope and model resolution.
var (
	// ErrInvalidScope indicates a scope name with no configured tables.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrModelNotFound indicates no trained bundle exists for a scope.
	ErrModelNotFound = errors.New("no model found for scope")

	// ErrEmptyTrainingSet indicates a scope had no qualifying ratings.
	ErrEmptyTrainingSet = errors.New("no qualifying ratings for scope")
)

// Rating is a single user-item rating event.
type Rating struct {
	UserID    string
	ItemID    string
	Value     float64
	Timestamp int64
}

// Model is the collaborative-filtering contract the engine scores with.
//
// Predict must never fail: unknown users or items degrade to bias terms
// and ultimately the global mean, so cold-start lookups still produce a
// usable estimate.
type Model interface {
	// FitChunk folds one chunk of ratings into the model. New users and
	// items are appended; previously seen ones keep their learned state.
	FitChunk(ctx context.Context, ratings []Rating) error

	// Predict estimates the rating of itemID by userID on the rating scale.
	Predict(userID, itemID string) float64

	// UserCount and ItemCount report how many distinct IDs have been fitted.
	UserCount() int
	ItemCount() int

	// RatingsFitted reports the total rows folded in across all chunks.
	RatingsFitted() int64
}

// BundleMeta describes a trained scope bundle.
type BundleMeta struct {
	Scope              string    `json:"scope"`
	TrainedAt          time.Time `json:"trained_at"`
	UserCount          int       `json:"user_count"`
	ItemCount          int       `json:"item_count"`
	RatingCount        int64     `json:"rating_count"`
	FeatureRows        int       `json:"feature_rows"`
	TextDims           int       `json:"text_dims"`
	NumericOnly        bool      `json:"numeric_only"`
	TrainingDurationMS int64     `json:"training_duration_ms"`
}

// Bundle is the immutable per-scope artifact the engine scores against:
// the trained model, the content feature set with its item row index, and
// build metadata. Bundles are swapped whole; readers never observe a
// partially updated scope.
type Bundle struct {
	Scope    string
	Model    Model
	Features *features.FeatureSet
	Meta     BundleMeta
}

// ScoredItem is a ranked recommendation.
type ScoredItem struct {
	ItemID string  `json:"parent_asin"`
	Score  float64 `json:"score"`
}

// Candidate drop reasons reported in ScoreStats.
const (
	DropNotInMatrix = "not_in_matrix"
	DropNonFinite   = "non_finite_score"
)

// ScoreStats counts per-candidate outcomes of one scoring pass. Candidates
// are either scored or dropped for a named reason; nothing is silently
// discarded.
type ScoreStats struct {
	Scored  int            `json:"scored"`
	Dropped map[string]int `json:"dropped,omitempty"`
}

func (s *ScoreStats) drop(reason string) {
	if s.Dropped == nil {
		s.Dropped = make(map[string]int)
	}
	s.Dropped[reason]++
}
