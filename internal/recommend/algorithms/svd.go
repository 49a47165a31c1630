// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

// Package algorithms implements the latent-factor models behind the
// collaborative side of the recommendation engine.
package algorithms

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/tomtom215/suasor/internal/recommend"
)

// Rating bounds on the source data; predictions are clamped into this range.
const (
	minRating = 1.0
	maxRating = 5.0
)

// SVDConfig holds the matrix-factorization hyperparameters.
type SVDConfig struct {
	Factors        int
	Epochs         int
	LearningRate   float64
	Regularization float64
	Seed           int64
}

// DefaultSVDConfig returns the tuned production hyperparameters.
func DefaultSVDConfig() SVDConfig {
	return SVDConfig{
		Factors:        100,
		Epochs:         20,
		LearningRate:   0.005,
		Regularization: 0.02,
		Seed:           42,
	}
}

// SVD is a biased matrix-factorization model trained by stochastic gradient
// descent (the Funk-SVD formulation). Training is incremental: each call to
// FitChunk folds a new slice of ratings into the existing factor state, so a
// scope's ratings can stream through in bounded chunks without ever holding
// the full set in memory.
//
// Fields are exported for gob persistence. The zero value is not usable;
// construct with NewSVD.
type SVD struct {
	Config SVDConfig

	UserIndex map[string]int
	ItemIndex map[string]int

	UserFactors [][]float64
	ItemFactors [][]float64
	UserBias    []float64
	ItemBias    []float64

	GlobalMean  float64
	RatingSum   float64
	RatingCount int64

	mu  sync.RWMutex
	rng *rand.Rand
}

var _ recommend.Model = (*SVD)(nil)

// NewSVD constructs an empty model. Zero or negative hyperparameters fall
// back to the defaults.
func NewSVD(cfg SVDConfig) *SVD {
	def := DefaultSVDConfig()
	if cfg.Factors <= 0 {
		cfg.Factors = def.Factors
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Regularization < 0 {
		cfg.Regularization = def.Regularization
	}

	return &SVD{
		Config:    cfg,
		UserIndex: make(map[string]int),
		ItemIndex: make(map[string]int),
		rng:       rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // deterministic init, not crypto
	}
}

// random returns the model's seeded source, recreating it after a gob
// round-trip (unexported fields do not survive decoding).
func (m *SVD) random() *rand.Rand {
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(m.Config.Seed)) //nolint:gosec // deterministic init, not crypto
	}
	return m.rng
}

func (m *SVD) newVector() []float64 {
	v := make([]float64, m.Config.Factors)
	for f := range v {
		v[f] = (m.random().Float64() - 0.5) * 0.01
	}
	return v
}

// userIdx returns the row for a user, growing the factor state on first
// sight. Caller holds the write lock.
func (m *SVD) userIdx(id string) int {
	if i, ok := m.UserIndex[id]; ok {
		return i
	}
	i := len(m.UserFactors)
	m.UserIndex[id] = i
	m.UserFactors = append(m.UserFactors, m.newVector())
	m.UserBias = append(m.UserBias, 0)
	return i
}

func (m *SVD) itemIdx(id string) int {
	if i, ok := m.ItemIndex[id]; ok {
		return i
	}
	i := len(m.ItemFactors)
	m.ItemIndex[id] = i
	m.ItemFactors = append(m.ItemFactors, m.newVector())
	m.ItemBias = append(m.ItemBias, 0)
	return i
}

// FitChunk runs the full epoch schedule over one chunk of ratings,
// accumulating into the state left by earlier chunks. Users and items not
// seen before get freshly initialized factors; the global mean tracks the
// running average across every rating fitted so far.
func (m *SVD) FitChunk(ctx context.Context, ratings []recommend.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("fit chunk: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	userOf := make([]int, len(ratings))
	itemOf := make([]int, len(ratings))
	for i, r := range ratings {
		userOf[i] = m.userIdx(r.UserID)
		itemOf[i] = m.itemIdx(r.ItemID)
		m.RatingSum += r.Value
		m.RatingCount++
	}
	m.GlobalMean = m.RatingSum / float64(m.RatingCount)

	lr := m.Config.LearningRate
	reg := m.Config.Regularization

	for epoch := 0; epoch < m.Config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fit chunk: epoch %d: %w", epoch, err)
		}

		for _, idx := range m.random().Perm(len(ratings)) {
			u, it := userOf[idx], itemOf[idx]
			pu, qi := m.UserFactors[u], m.ItemFactors[it]

			dot := 0.0
			for f := range pu {
				dot += pu[f] * qi[f]
			}
			err := ratings[idx].Value - (m.GlobalMean + m.UserBias[u] + m.ItemBias[it] + dot)

			m.UserBias[u] += lr * (err - reg*m.UserBias[u])
			m.ItemBias[it] += lr * (err - reg*m.ItemBias[it])
			for f := range pu {
				puOld := pu[f]
				pu[f] += lr * (err*qi[f] - reg*puOld)
				qi[f] += lr * (err*puOld - reg*qi[f])
			}
		}
	}

	return nil
}

// Predict estimates a rating for a user/item pair. It never fails: unknown
// users or items degrade to the bias terms that are available, and a fully
// cold pair falls back to the global mean. The estimate is clamped to the
// rating scale.
func (m *SVD) Predict(userID, itemID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	est := m.GlobalMean

	u, knownUser := m.UserIndex[userID]
	it, knownItem := m.ItemIndex[itemID]

	if knownUser {
		est += m.UserBias[u]
	}
	if knownItem {
		est += m.ItemBias[it]
	}
	if knownUser && knownItem {
		pu, qi := m.UserFactors[u], m.ItemFactors[it]
		for f := range pu {
			est += pu[f] * qi[f]
		}
	}

	if est < minRating {
		return minRating
	}
	if est > maxRating {
		return maxRating
	}
	return est
}

// UserCount reports the number of distinct users fitted.
func (m *SVD) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.UserIndex)
}

// ItemCount reports the number of distinct items fitted.
func (m *SVD) ItemCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ItemIndex)
}

// RatingsFitted reports the total ratings folded in across all chunks.
func (m *SVD) RatingsFitted() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RatingCount
}
