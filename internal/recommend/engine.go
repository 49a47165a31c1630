// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/suasor/internal/metrics"
)

// Blend weights for the two signals. An absent signal contributes zero
// rather than re-weighting the other.
const (
	cfWeight = 0.5
	cbWeight = 0.5
)

// Engine scores candidates against published scope bundles, blending the
// collaborative prediction with the candidate's own content similarity.
type Engine struct {
	scopes *ScopeRegistry
	topN   int
	logger zerolog.Logger
}

// NewEngine wires the engine to its bundle source.
func NewEngine(scopes *ScopeRegistry, topN int, logger zerolog.Logger) *Engine {
	if topN <= 0 {
		topN = 10
	}
	return &Engine{
		scopes: scopes,
		topN:   topN,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// candidate carries one item through the scoring passes.
type candidate struct {
	itemID string
	cf     float64
	hasCF  bool
	cb     float64
	hasCB  bool
	score  float64
}

// RecommendForUser ranks the scope's candidate pool for one user and
// returns the top N along with per-candidate outcome counts. A topN of
// zero or less uses the engine default.
func (e *Engine) RecommendForUser(ctx context.Context, scope, userID string, topN int) ([]ScoredItem, *ScoreStats, error) {
	start := time.Now()
	if topN <= 0 {
		topN = e.topN
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	bundle, err := e.scopes.Get(scope)
	if err != nil {
		return nil, nil, err
	}
	if bundle.Features == nil || bundle.Features.Rows() == 0 {
		return nil, nil, fmt.Errorf("scope %s: empty feature set", scope)
	}

	stats := &ScoreStats{}

	// The candidate pool is exactly the items with a feature row; the
	// builder already bounded it at sample time.
	cands := make([]candidate, 0, len(bundle.Features.ItemOrder))
	for _, itemID := range bundle.Features.ItemOrder {
		c := candidate{itemID: itemID}

		// A failed prediction removes the candidate from the CF signal
		// only; it stays in the pool on its content similarity.
		c.cf = bundle.Model.Predict(userID, itemID)
		if math.IsNaN(c.cf) || math.IsInf(c.cf, 0) {
			c.cf = 0
			metrics.ScoringOutcomes.WithLabelValues(scope, "cf_non_finite").Inc()
		} else {
			c.hasCF = true
		}

		sim, ok := bundle.Features.NumericSimilarity(itemID)
		if !ok {
			// ItemOrder and RowIndex disagree; the bundle is corrupt
			// for this item.
			stats.drop(DropNotInMatrix)
			metrics.ScoringOutcomes.WithLabelValues(scope, DropNotInMatrix).Inc()
			continue
		}
		if math.IsNaN(sim) || math.IsInf(sim, 0) {
			stats.drop(DropNonFinite)
			metrics.ScoringOutcomes.WithLabelValues(scope, DropNonFinite).Inc()
			continue
		}
		c.cb = sim
		c.hasCB = true

		cands = append(cands, c)
	}

	normalizeAndBlend(cands)

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if len(cands) > topN {
		cands = cands[:topN]
	}

	out := make([]ScoredItem, len(cands))
	for i, c := range cands {
		out[i] = ScoredItem{ItemID: c.itemID, Score: c.score}
	}

	stats.Scored = len(out)
	metrics.PredictionsServed.WithLabelValues(scope).Inc()
	metrics.ScoringOutcomes.WithLabelValues(scope, "scored").Add(float64(len(out)))
	metrics.ScoringDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())

	e.logger.Debug().
		Str("scope", scope).
		Str("user_id", userID).
		Int("candidates", len(bundle.Features.ItemOrder)).
		Int("returned", len(out)).
		Msg("Scoring pass complete")
	return out, stats, nil
}

// normalizeAndBlend min-max normalizes each signal independently over the
// candidates that carry it and blends them in place. When a signal is
// constant across candidates its range falls back to 1, flattening it to
// zero contribution instead of dividing by zero. A candidate missing a
// signal takes zero for that half.
func normalizeAndBlend(cands []candidate) {
	if len(cands) == 0 {
		return
	}

	cfMin, cfMax := math.Inf(1), math.Inf(-1)
	cbMin, cbMax := math.Inf(1), math.Inf(-1)
	anyCF, anyCB := false, false
	for _, c := range cands {
		if c.hasCF {
			anyCF = true
			cfMin = math.Min(cfMin, c.cf)
			cfMax = math.Max(cfMax, c.cf)
		}
		if c.hasCB {
			anyCB = true
			cbMin = math.Min(cbMin, c.cb)
			cbMax = math.Max(cbMax, c.cb)
		}
	}

	cfRange := 0.0
	if anyCF {
		cfRange = cfMax - cfMin
		if cfRange == 0 {
			cfRange = 1
		}
	}
	cbRange := 0.0
	if anyCB {
		cbRange = cbMax - cbMin
		if cbRange == 0 {
			cbRange = 1
		}
	}

	for i := range cands {
		normCF := 0.0
		if cands[i].hasCF {
			normCF = (cands[i].cf - cfMin) / cfRange
		}
		normCB := 0.0
		if cands[i].hasCB {
			normCB = (cands[i].cb - cbMin) / cbRange
		}
		cands[i].score = cfWeight*normCF + cbWeight*normCB
	}
}
