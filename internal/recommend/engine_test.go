// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package recommend

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/tomtom215/suasor/internal/logging"
	"github.com/tomtom215/suasor/internal/recommend/features"
)

// stubModel returns canned predictions keyed by "user|item".
type stubModel struct {
	preds    map[string]float64
	fallback float64
}

func (m *stubModel) FitChunk(_ context.Context, _ []Rating) error { return nil }

func (m *stubModel) Predict(userID, itemID string) float64 {
	if v, ok := m.preds[userID+"|"+itemID]; ok {
		return v
	}
	return m.fallback
}

func (m *stubModel) UserCount() int       { return 1 }
func (m *stubModel) ItemCount() int       { return len(m.preds) }
func (m *stubModel) RatingsFitted() int64 { return int64(len(m.preds)) }

func beautyFeatures(t *testing.T) *features.FeatureSet {
	t.Helper()
	b := &features.Builder{MaxTextFeatures: 100, MinDocFreq: 1}
	fs, err := b.Build([]features.Item{
		{ID: "lipstick", Title: "Matte Lipstick Red", AverageRating: 4.5, RatingCount: 200, Price: 12},
		{ID: "mascara", Title: "Volume Mascara Black", AverageRating: 4.2, RatingCount: 150, Price: 9},
		{ID: "cream", Title: "Night Repair Cream", AverageRating: 4.8, RatingCount: 320, Price: 25},
	})
	if err != nil {
		t.Fatalf("Build features: %v", err)
	}
	return fs
}

// numericOnlyFeatures builds a degraded three-item feature set with no text
// dimensions, where every candidate's content similarity is 1.
func numericOnlyFeatures(t *testing.T) *features.FeatureSet {
	t.Helper()
	b := &features.Builder{MaxTextFeatures: 100, MinDocFreq: 5}
	fs, err := b.Build([]features.Item{
		{ID: "p1", AverageRating: 4.0, RatingCount: 10, Price: 5},
		{ID: "p2", AverageRating: 3.0, RatingCount: 20, Price: 15},
		{ID: "p3", AverageRating: 5.0, RatingCount: 30, Price: 25},
	})
	if err != nil {
		t.Fatalf("Build features: %v", err)
	}
	if !fs.NumericOnly {
		t.Fatal("expected degraded numeric-only build")
	}
	return fs
}

func publishBundle(t *testing.T, reg *ScopeRegistry, scope string, m Model, fs *features.FeatureSet) {
	t.Helper()
	err := reg.Publish(&Bundle{
		Scope:    scope,
		Model:    m,
		Features: fs,
		Meta:     BundleMeta{Scope: scope},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestRecommendForUserScoresEveryCandidate(t *testing.T) {
	fs := beautyFeatures(t)
	model := &stubModel{preds: map[string]float64{
		"alice|lipstick": 5.0,
		"alice|mascara":  3.0,
		"alice|cream":    1.0,
	}}
	reg := NewScopeRegistry()
	publishBundle(t, reg, "beauty", model, fs)

	engine := NewEngine(reg, 10, logging.NewTestLogger(io.Discard))

	items, stats, err := engine.RecommendForUser(context.Background(), "beauty", "alice", 10)
	if err != nil {
		t.Fatalf("RecommendForUser: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if stats.Scored != 3 {
		t.Errorf("Scored = %d, want 3", stats.Scored)
	}
	for i, it := range items {
		if it.Score < 0 || it.Score > 1+1e-9 {
			t.Errorf("blended score out of range: %v", it.Score)
		}
		if i > 0 && items[i].Score > items[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, items[i].Score, items[i-1].Score)
		}
	}
}

func TestRecommendForUserTopNTruncates(t *testing.T) {
	fs := beautyFeatures(t)
	reg := NewScopeRegistry()
	publishBundle(t, reg, "beauty", &stubModel{fallback: 3}, fs)

	engine := NewEngine(reg, 10, logging.NewTestLogger(io.Discard))
	items, _, err := engine.RecommendForUser(context.Background(), "beauty", "bob", 2)
	if err != nil {
		t.Fatalf("RecommendForUser: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
}

func TestRecommendForUserUnknownScope(t *testing.T) {
	engine := NewEngine(NewScopeRegistry(), 10, logging.NewTestLogger(io.Discard))
	if _, _, err := engine.RecommendForUser(context.Background(), "ghost", "alice", 5); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestContentSimilarityIsUserIndependent(t *testing.T) {
	// The content half scores each candidate against its own scaled
	// numeric attributes, so two users with identical predictions get
	// identical rankings; a user the model never saw still receives the
	// full list.
	fs := beautyFeatures(t)
	reg := NewScopeRegistry()
	publishBundle(t, reg, "beauty", &stubModel{fallback: 3}, fs)

	engine := NewEngine(reg, 10, logging.NewTestLogger(io.Discard))
	first, _, err := engine.RecommendForUser(context.Background(), "beauty", "alice", 10)
	if err != nil {
		t.Fatalf("RecommendForUser: %v", err)
	}
	second, _, err := engine.RecommendForUser(context.Background(), "beauty", "stranger", 10)
	if err != nil {
		t.Fatalf("RecommendForUser: %v", err)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected full lists, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("position %d differs across users: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestNonFinitePredictionKeepsCandidateViaContent(t *testing.T) {
	// A failed prediction removes the candidate from the collaborative
	// signal only; it stays in the pool and ranks on its content half.
	fs := numericOnlyFeatures(t)
	model := &stubModel{preds: map[string]float64{
		"alice|p1": math.NaN(),
		"alice|p2": 4.0,
		"alice|p3": 3.0,
	}}
	reg := NewScopeRegistry()
	publishBundle(t, reg, "automotive", model, fs)

	engine := NewEngine(reg, 10, logging.NewTestLogger(io.Discard))
	items, stats, err := engine.RecommendForUser(context.Background(), "automotive", "alice", 10)
	if err != nil {
		t.Fatalf("RecommendForUser: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if stats.Dropped[DropNonFinite] != 0 {
		t.Errorf("Dropped[%s] = %d, want 0", DropNonFinite, stats.Dropped[DropNonFinite])
	}

	// Constant content similarity flattens to zero, so p2 leads on its
	// normalized prediction while p1 ties with p3 at zero and keeps
	// feature-row order.
	want := []string{"p2", "p1", "p3"}
	for i, id := range want {
		if items[i].ItemID != id {
			t.Errorf("position %d = %s, want %s", i, items[i].ItemID, id)
		}
	}
	if items[1].Score != 0 || items[2].Score != 0 {
		t.Errorf("candidates without a usable signal should score 0, got %v and %v",
			items[1].Score, items[2].Score)
	}
}

func TestNumericOnlyConstantPredictionsTie(t *testing.T) {
	// On a degraded numeric-only scope the content similarity is the same
	// for every candidate, so with constant predictions all blended
	// scores tie and the stable sort keeps feature-row order.
	fs := numericOnlyFeatures(t)
	reg := NewScopeRegistry()
	publishBundle(t, reg, "automotive", &stubModel{fallback: 3}, fs)

	engine := NewEngine(reg, 10, logging.NewTestLogger(io.Discard))
	items, stats, err := engine.RecommendForUser(context.Background(), "automotive", "erin", 10)
	if err != nil {
		t.Fatalf("RecommendForUser: %v", err)
	}
	if stats.Scored != 3 {
		t.Fatalf("Scored = %d, want 3", stats.Scored)
	}

	for i, want := range []string{"p1", "p2", "p3"} {
		if items[i].ItemID != want {
			t.Errorf("position %d = %s, want %s", i, items[i].ItemID, want)
		}
	}
	for _, it := range items {
		if it.Score != items[0].Score {
			t.Errorf("expected all scores to tie, got %v and %v", items[0].Score, it.Score)
		}
	}
}

func TestNumericOnlyScopeRanksByPrediction(t *testing.T) {
	// When content similarity collapses to a constant the ranking is
	// driven solely by the collaborative predictions.
	fs := numericOnlyFeatures(t)
	model := &stubModel{preds: map[string]float64{
		"erin|p1": 2.0,
		"erin|p2": 5.0,
		"erin|p3": 3.0,
	}}
	reg := NewScopeRegistry()
	publishBundle(t, reg, "automotive", model, fs)

	engine := NewEngine(reg, 10, logging.NewTestLogger(io.Discard))
	items, _, err := engine.RecommendForUser(context.Background(), "automotive", "erin", 10)
	if err != nil {
		t.Fatalf("RecommendForUser: %v", err)
	}
	for i, want := range []string{"p2", "p3", "p1"} {
		if items[i].ItemID != want {
			t.Errorf("position %d = %s, want %s", i, items[i].ItemID, want)
		}
	}
}

func TestScopeIsolation(t *testing.T) {
	fsBeauty := beautyFeatures(t)

	b := &features.Builder{MaxTextFeatures: 100, MinDocFreq: 1}
	fsAuto, err := b.Build([]features.Item{
		{ID: "wiper", Title: "Wiper Blade Set", AverageRating: 4.1, RatingCount: 90, Price: 20},
		{ID: "wax", Title: "Carnauba Wax", AverageRating: 4.6, RatingCount: 60, Price: 15},
	})
	if err != nil {
		t.Fatalf("Build features: %v", err)
	}

	reg := NewScopeRegistry()
	publishBundle(t, reg, "beauty", &stubModel{fallback: 3}, fsBeauty)
	publishBundle(t, reg, "automotive", &stubModel{fallback: 3}, fsAuto)

	engine := NewEngine(reg, 10, logging.NewTestLogger(io.Discard))
	items, _, err := engine.RecommendForUser(context.Background(), "automotive", "dave", 10)
	if err != nil {
		t.Fatalf("RecommendForUser: %v", err)
	}
	for _, it := range items {
		if it.ItemID == "lipstick" || it.ItemID == "mascara" || it.ItemID == "cream" {
			t.Errorf("beauty item %s leaked into automotive scope", it.ItemID)
		}
	}
	if len(items) != 2 {
		t.Errorf("expected 2 automotive items, got %d", len(items))
	}
}

func TestNormalizeAndBlendMapsSignalsToUnitRange(t *testing.T) {
	// Each signal min-max normalizes independently: the minimum maps to 0,
	// the maximum to 1, and the blend is half of each.
	cands := []candidate{
		{itemID: "a", cf: 2, hasCF: true, cb: 0.1, hasCB: true},
		{itemID: "b", cf: 4, hasCF: true, cb: 0.7, hasCB: true},
		{itemID: "c", cf: 8, hasCF: true, cb: 0.4, hasCB: true},
	}
	normalizeAndBlend(cands)

	// a holds both minima; b has cf (4-2)/6 and the cb maximum; c has the
	// cf maximum and cb (0.4-0.1)/0.6.
	want := []float64{
		0,
		0.5*(1.0/3) + 0.5*1,
		0.5*1 + 0.5*0.5,
	}
	for i, c := range cands {
		if math.Abs(c.score-want[i]) > 1e-9 {
			t.Errorf("score[%s] = %v, want %v", c.itemID, c.score, want[i])
		}
	}
}

func TestNormalizeAndBlendMissingSignalContributesZero(t *testing.T) {
	cands := []candidate{
		{itemID: "a", cf: 2, hasCF: true, cb: 0.2, hasCB: true},
		{itemID: "b", hasCF: false, cb: 0.8, hasCB: true},
		{itemID: "c", cf: 6, hasCF: true, hasCB: false},
	}
	normalizeAndBlend(cands)

	// b has no prediction: only its content half counts. c has no content
	// signal: only its prediction half counts.
	want := []float64{0.5*0 + 0.5*0, 0 + 0.5*1, 0.5*1 + 0}
	for i, c := range cands {
		if math.Abs(c.score-want[i]) > 1e-9 {
			t.Errorf("score[%s] = %v, want %v", c.itemID, c.score, want[i])
		}
	}
}

func TestNormalizeAndBlendConstantSignal(t *testing.T) {
	// All predictions equal: the range-1 fallback flattens the
	// collaborative half to a constant instead of dividing by zero, and
	// the content half decides.
	cands := []candidate{
		{itemID: "a", cf: 3, hasCF: true, cb: 0.9, hasCB: true},
		{itemID: "b", cf: 3, hasCF: true, cb: 0.1, hasCB: true},
	}
	normalizeAndBlend(cands)

	for _, c := range cands {
		if math.IsNaN(c.score) || math.IsInf(c.score, 0) {
			t.Fatalf("non-finite score for %s: %v", c.itemID, c.score)
		}
	}
	if cands[0].score <= cands[1].score {
		t.Errorf("content signal should separate constant-prediction candidates: %v <= %v", cands[0].score, cands[1].score)
	}
}

func TestNormalizeAndBlendBothConstant(t *testing.T) {
	cands := []candidate{
		{itemID: "a", cf: 3, hasCF: true, cb: 0.5, hasCB: true},
		{itemID: "b", cf: 3, hasCF: true, cb: 0.5, hasCB: true},
	}
	normalizeAndBlend(cands)
	if cands[0].score != cands[1].score {
		t.Errorf("identical signals should tie: %v != %v", cands[0].score, cands[1].score)
	}
}

func TestScopeRegistryPublishValidation(t *testing.T) {
	reg := NewScopeRegistry()
	if err := reg.Publish(nil); err == nil {
		t.Error("expected error publishing nil bundle")
	}
	if err := reg.Publish(&Bundle{Scope: "beauty"}); err == nil {
		t.Error("expected error publishing bundle without model")
	}
}

func TestScopeRegistryStatus(t *testing.T) {
	reg := NewScopeRegistry()
	publishBundle(t, reg, "beauty", &stubModel{}, nil)
	publishBundle(t, reg, "fashion", &stubModel{}, nil)

	status := reg.Status()
	if len(status) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(status))
	}
}
