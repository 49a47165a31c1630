// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package features

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Vectorizer converts documents into TF-IDF rows.
//
// Tokens are lowercased words of two or more letters/digits, stop words are
// removed before n-gram construction, and both unigrams and bigrams enter
// the vocabulary. The vocabulary is capped at MaxFeatures terms by corpus
// frequency (alphabetical tie-break) and terms must appear in at least
// MinDocFreq documents. IDF is smoothed (ln((1+n)/(1+df)) + 1) and rows
// are L2-normalized.
//
// Fields are exported for gob persistence inside scope bundles.
type Vectorizer struct {
	MaxFeatures int
	MinDocFreq  int

	// Vocab maps a term to its column in transformed rows.
	Vocab map[string]int

	// IDF is the inverse document frequency per column, parallel to Vocab.
	IDF []float64
}

// NewVectorizer creates a vectorizer with the given vocabulary bounds.
func NewVectorizer(maxFeatures, minDocFreq int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = 1000
	}
	if minDocFreq <= 0 {
		minDocFreq = 1
	}
	return &Vectorizer{
		MaxFeatures: maxFeatures,
		MinDocFreq:  minDocFreq,
	}
}

// tokenize splits a document into lowercased alphanumeric tokens of two or
// more characters, dropping stop words.
func tokenize(doc string) []string {
	doc = strings.ToLower(doc)

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() >= 2 {
			tok := cur.String()
			if !IsStopWord(tok) {
				tokens = append(tokens, tok)
			}
		}
		cur.Reset()
	}

	for _, r := range doc {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// ngrams expands tokens into unigrams and bigrams.
func ngrams(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	terms := make([]string, 0, 2*len(tokens)-1)
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

// Fit builds the vocabulary and IDF weights from the corpus.
// Returns false when no term survives tokenization and the frequency
// cutoffs; callers treat that as a degraded, numeric-only corpus.
func (v *Vectorizer) Fit(corpus []string) bool {
	df := make(map[string]int)
	tf := make(map[string]int)

	for _, doc := range corpus {
		terms := ngrams(tokenize(doc))
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			tf[t]++
			seen[t] = struct{}{}
		}
		for t := range seen {
			df[t]++
		}
	}

	// min_df cutoff
	kept := make([]string, 0, len(df))
	for t, n := range df {
		if n >= v.MinDocFreq {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return false
	}

	// Cap vocabulary by corpus term frequency, alphabetical tie-break.
	if len(kept) > v.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if tf[kept[i]] != tf[kept[j]] {
				return tf[kept[i]] > tf[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:v.MaxFeatures]
	}

	// Stable column order: alphabetical over the final vocabulary.
	sort.Strings(kept)

	v.Vocab = make(map[string]int, len(kept))
	v.IDF = make([]float64, len(kept))
	n := float64(len(corpus))
	for i, t := range kept {
		v.Vocab[t] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	return true
}

// Transform converts one document into its L2-normalized TF-IDF row.
// The vectorizer must be fitted.
func (v *Vectorizer) Transform(doc string) []float64 {
	row := make([]float64, len(v.IDF))
	for _, t := range ngrams(tokenize(doc)) {
		if col, ok := v.Vocab[t]; ok {
			row[col]++
		}
	}

	var norm float64
	for col := range row {
		row[col] *= v.IDF[col]
		norm += row[col] * row[col]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for col := range row {
			row[col] /= norm
		}
	}

	return row
}

// Dims returns the vocabulary size.
func (v *Vectorizer) Dims() int {
	return len(v.IDF)
}
