// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package features

import (
	"math"
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

func TestFlattenCategories(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"flat list", `["Beauty","Skin Care"]`, []string{"beauty", "skin care"}},
		{"nested list", `[["Beauty","Makeup"],["Lips"]]`, []string{"beauty", "makeup", "lips"}},
		{"deeper nesting", `[[["Beauty"]],"Tools"]`, []string{"beauty", "tools"}},
		{"bare string", `"Automotive"`, []string{"automotive"}},
		{"mixed junk", `["Beauty", 42, null, ["Hair"]]`, []string{"beauty", "hair"}},
		{"empty array", `[]`, nil},
		{"invalid json", `{broken`, nil},
		{"empty input", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenCategories(json.RawMessage(tt.raw))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenCategories(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestStandardScaler(t *testing.T) {
	s := &StandardScaler{}
	rows := [][]float64{
		{1, 10, 100},
		{3, 10, 300},
	}
	if err := s.Fit(rows); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Column 0: mean 2, std 1. Column 1: zero variance, scale forced to 1.
	got := s.Transform([]float64{3, 10, 300})
	if math.Abs(got[0]-1) > 1e-9 {
		t.Errorf("col 0 = %v, want 1", got[0])
	}
	if got[1] != 0 {
		t.Errorf("zero-variance column should center to 0, got %v", got[1])
	}

	if err := s.Fit(nil); err == nil {
		t.Error("expected error fitting empty input")
	}
	if err := s.Fit([][]float64{{1, 2}, {1}}); err == nil {
		t.Error("expected error fitting ragged input")
	}
}

func testItems() []Item {
	return []Item{
		{
			ID:            "B001",
			Title:         "Rose Face Cream",
			AverageRating: 4.5,
			RatingCount:   120,
			Price:         19.99,
			Features:      []string{"organic rose extract", "face cream"},
			Categories:    json.RawMessage(`[["Beauty","Skin Care"]]`),
		},
		{
			ID:            "B002",
			Title:         "Rose Water Toner",
			AverageRating: 4.1,
			RatingCount:   80,
			Price:         9.99,
			Description:   []string{"gentle rose water for the face"},
			Categories:    json.RawMessage(`[["Beauty","Skin Care"]]`),
		},
		{
			ID:            "B003",
			Title:         "Windshield Wiper Blades",
			AverageRating: 4.8,
			RatingCount:   500,
			Price:         24.99,
			Categories:    json.RawMessage(`[["Automotive"]]`),
		},
	}
}

func TestBuildMatrixAndRowIndex(t *testing.T) {
	b := &Builder{MaxTextFeatures: 1000, MinDocFreq: 1}
	fs, err := b.Build(testItems())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if fs.NumericOnly {
		t.Fatal("corpus is non-empty, build should not degrade")
	}
	if fs.Rows() != 3 {
		t.Fatalf("expected 3 rows, got %d", fs.Rows())
	}
	if fs.TextDims == 0 {
		t.Error("expected text dimensions in the matrix")
	}

	// Every row is text dims + 3 numeric columns.
	for i, row := range fs.Matrix {
		if len(row) != fs.TextDims+3 {
			t.Errorf("row %d width = %d, want %d", i, len(row), fs.TextDims+3)
		}
	}

	// The row index is explicit, not positional.
	for i, id := range fs.ItemOrder {
		if fs.RowIndex[id] != i {
			t.Errorf("RowIndex[%s] = %d, want %d", id, fs.RowIndex[id], i)
		}
	}
}

func TestBuildDuplicateItemsKeepFirstRow(t *testing.T) {
	items := testItems()
	dup := items[0]
	dup.Title = "Different Title Same ID"
	items = append(items, dup)

	b := &Builder{MaxTextFeatures: 1000, MinDocFreq: 1}
	fs, err := b.Build(items)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if fs.Rows() != 3 {
		t.Errorf("duplicate IDs should collapse to one row, got %d rows", fs.Rows())
	}
}

func TestBuildEmptyCorpusDegradesToNumericOnly(t *testing.T) {
	items := []Item{
		{ID: "A1", AverageRating: 4.0, RatingCount: 10, Price: 5},
		{ID: "A2", AverageRating: 3.0, RatingCount: 20, Price: 15},
	}
	b := &Builder{MaxTextFeatures: 1000, MinDocFreq: 2}
	fs, err := b.Build(items)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !fs.NumericOnly {
		t.Fatal("expected numeric-only degraded build")
	}
	if fs.TextDims != 0 {
		t.Errorf("expected 0 text dims, got %d", fs.TextDims)
	}
	for i, row := range fs.Matrix {
		if len(row) != 3 {
			t.Errorf("row %d width = %d, want 3", i, len(row))
		}
	}
}

func TestBuildNoItems(t *testing.T) {
	b := &Builder{MaxTextFeatures: 1000, MinDocFreq: 2}
	if _, err := b.Build(nil); err == nil {
		t.Error("expected error building from no items")
	}
}

func TestNumericSimilarity(t *testing.T) {
	b := &Builder{MaxTextFeatures: 1000, MinDocFreq: 1}
	fs, err := b.Build(testItems())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	sim, ok := fs.NumericSimilarity("B002")
	if !ok {
		t.Fatal("B002 has a row")
	}
	if sim < 0 || sim > 1+1e-9 {
		t.Errorf("cosine similarity out of range: %v", sim)
	}

	// The query is the row's own scaled numeric tail zero-padded over the
	// text dimensions, so the similarity reduces to tail norm over row
	// norm.
	row := fs.Matrix[fs.RowIndex["B002"]]
	base := len(row) - 3
	var tailSq, rowSq float64
	for j, v := range row {
		rowSq += v * v
		if j >= base {
			tailSq += v * v
		}
	}
	want := math.Sqrt(tailSq) / math.Sqrt(rowSq)
	if math.Abs(sim-want) > 1e-9 {
		t.Errorf("similarity = %v, want %v", sim, want)
	}

	if _, ok := fs.NumericSimilarity("missing"); ok {
		t.Error("expected no similarity for item without a row")
	}
}

func TestNumericSimilarityNumericOnlyMatrixIsConstant(t *testing.T) {
	// With no text dimensions each row equals its own scaled numeric
	// vector, so cosine is 1 for every item and the scorer's min-max
	// fallback later flattens the constant signal to zero contribution.
	items := []Item{
		{ID: "A1", AverageRating: 4.0, RatingCount: 10, Price: 5},
		{ID: "A2", AverageRating: 3.0, RatingCount: 20, Price: 15},
	}
	b := &Builder{MaxTextFeatures: 1000, MinDocFreq: 2}
	fs, err := b.Build(items)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !fs.NumericOnly {
		t.Fatal("expected numeric-only degraded build")
	}

	for _, id := range fs.ItemOrder {
		sim, ok := fs.NumericSimilarity(id)
		if !ok {
			t.Fatalf("%s has a row", id)
		}
		if math.Abs(sim-1) > 1e-9 {
			t.Errorf("self-similarity for %s in numeric-only space = %v, want 1", id, sim)
		}
	}
}

func TestDecodeStringList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{`["Soft grip","Steel core"]`, []string{"Soft grip", "Steel core"}},
		{`"single value"`, []string{"single value"}},
		{`[]`, nil},
		{`null`, nil},
		{``, nil},
	}
	for _, tt := range tests {
		if got := DecodeStringList(json.RawMessage(tt.raw)); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DecodeStringList(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
