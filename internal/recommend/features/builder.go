// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

// Package features builds content feature matrices for scope bundles.
//
// Each item contributes one row: TF-IDF text dimensions followed by three
// standard-scaled numeric columns (average rating, rating count, price).
// An explicit item-to-row map is built alongside the matrix so scoring
// never relies on positional alignment between queries and rows.
package features

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// Item is the per-product metadata consumed by the builder.
type Item struct {
	ID            string
	Title         string
	AverageRating float64
	RatingCount   float64
	Price         float64
	Features      []string
	Description   []string
	Categories    json.RawMessage
}

// numericDims is the count of scaled numeric columns appended to each row.
const numericDims = 3

// FeatureSet is the immutable content side of a scope bundle.
//
// Fields are exported for gob persistence. Matrix rows are
// [text dims..., scaled average rating, scaled rating count, scaled price].
type FeatureSet struct {
	Matrix [][]float64

	// RowIndex maps item ID to its row in Matrix.
	RowIndex map[string]int

	// ItemOrder lists item IDs in row order; it fixes candidate iteration
	// order so equal scores rank deterministically.
	ItemOrder []string

	// TextDims is the TF-IDF column count (0 when NumericOnly).
	TextDims int

	// NumericOnly marks a degraded build where the text corpus was empty
	// and rows hold only the scaled numeric columns.
	NumericOnly bool

	Scaler     *StandardScaler
	Vectorizer *Vectorizer
}

// Builder constructs FeatureSets.
type Builder struct {
	MaxTextFeatures int
	MinDocFreq      int
}

// document assembles an item's text corpus entry: feature bullets,
// description paragraphs, flattened lowercased categories, then title.
func document(it *Item) string {
	parts := make([]string, 0, 4)
	if s := strings.TrimSpace(strings.Join(it.Features, " ")); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(strings.Join(it.Description, " ")); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(strings.Join(FlattenCategories(it.Categories), " ")); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(it.Title); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// Build fits the scaler and vectorizer over the items and assembles the
// feature matrix with its row index.
//
// When every document is empty after cleaning, the build degrades to a
// numeric-only matrix instead of failing; NumericOnly is set so callers
// can log the condition.
func (b *Builder) Build(items []Item) (*FeatureSet, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("feature build: no items")
	}

	numeric := make([][]float64, len(items))
	for i := range items {
		numeric[i] = []float64{items[i].AverageRating, items[i].RatingCount, items[i].Price}
	}

	scaler := &StandardScaler{}
	if err := scaler.Fit(numeric); err != nil {
		return nil, fmt.Errorf("feature build: %w", err)
	}

	corpus := make([]string, len(items))
	empty := true
	for i := range items {
		corpus[i] = document(&items[i])
		if strings.TrimSpace(corpus[i]) != "" {
			empty = false
		}
	}

	fs := &FeatureSet{
		RowIndex:  make(map[string]int, len(items)),
		ItemOrder: make([]string, 0, len(items)),
		Scaler:    scaler,
	}

	var vec *Vectorizer
	if !empty {
		vec = NewVectorizer(b.MaxTextFeatures, b.MinDocFreq)
		if !vec.Fit(corpus) {
			// Every surviving term fell below min_df; same degraded
			// mode as an empty corpus.
			vec = nil
		}
	}

	if vec == nil {
		fs.NumericOnly = true
	} else {
		fs.Vectorizer = vec
		fs.TextDims = vec.Dims()
	}

	fs.Matrix = make([][]float64, 0, len(items))
	for i := range items {
		if _, dup := fs.RowIndex[items[i].ID]; dup {
			continue
		}

		scaled := scaler.Transform(numeric[i])
		var row []float64
		if vec != nil {
			row = vec.Transform(corpus[i])
			row = append(row, scaled...)
		} else {
			row = scaled
		}

		fs.RowIndex[items[i].ID] = len(fs.Matrix)
		fs.ItemOrder = append(fs.ItemOrder, items[i].ID)
		fs.Matrix = append(fs.Matrix, row)
	}

	return fs, nil
}

// NumericSimilarity computes cosine similarity between an item's scaled
// numeric attributes, zero-padded across the text dimensions, and the
// item's full feature row. The scaled attributes are exactly the row's
// numeric tail, so on a numeric-only matrix the similarity is 1 for every
// item; with text dimensions present it measures how much of the row's
// mass sits in the numeric columns. Returns false when the item has no row.
func (fs *FeatureSet) NumericSimilarity(itemID string) (float64, bool) {
	rowIdx, ok := fs.RowIndex[itemID]
	if !ok {
		return 0, false
	}
	row := fs.Matrix[rowIdx]
	base := len(row) - numericDims

	// The padded text dimensions contribute nothing to the dot product,
	// so only the numeric tail participates.
	var dot, normQ, normR float64
	for j := base; j < len(row); j++ {
		dot += row[j] * row[j]
		normQ += row[j] * row[j]
	}
	for _, v := range row {
		normR += v * v
	}
	if normQ == 0 || normR == 0 {
		return 0, true
	}
	return dot / (math.Sqrt(normQ) * math.Sqrt(normR)), true
}

// Rows returns the number of items in the matrix.
func (fs *FeatureSet) Rows() int {
	return len(fs.Matrix)
}
