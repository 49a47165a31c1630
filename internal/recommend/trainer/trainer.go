// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

// Package trainer drives the per-scope training pipeline: stream the
// scope's ratings through disk-staged chunks into the latent-factor model,
// build the content feature set from an item sample, and publish the
// resulting bundle for serving and persistence.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/suasor/internal/config"
	"github.com/tomtom215/suasor/internal/metrics"
	"github.com/tomtom215/suasor/internal/recommend"
	"github.com/tomtom215/suasor/internal/recommend/algorithms"
	"github.com/tomtom215/suasor/internal/recommend/features"
	"github.com/tomtom215/suasor/internal/recommend/storage"
)

// DataSource supplies the training inputs for one scope.
type DataSource interface {
	// CountRatings returns the number of qualifying ratings in the scope.
	CountRatings(ctx context.Context, scope string) (int64, error)

	// RatingsChunk returns one deterministic page of the scope's ratings.
	RatingsChunk(ctx context.Context, scope string, limit, offset int) ([]recommend.Rating, error)

	// ItemsSample returns up to limit distinct items with their metadata.
	ItemsSample(ctx context.Context, scope string, limit int) ([]features.Item, error)
}

// BundleStore persists trained bundles.
type BundleStore interface {
	SaveBundle(b *recommend.Bundle) error
}

// Trainer runs the training pipeline for configured scopes.
type Trainer struct {
	cfg    config.TrainConfig
	data   DataSource
	store  BundleStore
	scopes *recommend.ScopeRegistry
	chunks *storage.ChunkStore
	logger zerolog.Logger
}

// New wires a trainer to its data source, persistence, and serving registry.
func New(cfg config.TrainConfig, data DataSource, store BundleStore, scopes *recommend.ScopeRegistry, chunks *storage.ChunkStore, logger zerolog.Logger) *Trainer {
	return &Trainer{
		cfg:    cfg,
		data:   data,
		store:  store,
		scopes: scopes,
		chunks: chunks,
		logger: logger.With().Str("component", "trainer").Logger(),
	}
}

// TrainScope runs the full pipeline for one scope and publishes the result.
// A scope with no qualifying ratings returns ErrEmptyTrainingSet.
func (t *Trainer) TrainScope(ctx context.Context, scope string) (*recommend.Bundle, error) {
	start := time.Now()
	logger := t.logger.With().Str("scope", scope).Logger()

	// Stragglers from an interrupted run must not leak into this pass.
	defer func() {
		if err := t.chunks.Cleanup(); err != nil {
			logger.Warn().Err(err).Msg("Chunk cleanup failed")
		}
	}()

	total, err := t.data.CountRatings(ctx, scope)
	if err != nil {
		metrics.TrainingFailures.WithLabelValues(scope).Inc()
		return nil, fmt.Errorf("train %s: %w", scope, err)
	}
	if total == 0 {
		metrics.TrainingFailures.WithLabelValues(scope).Inc()
		return nil, fmt.Errorf("train %s: %w", scope, recommend.ErrEmptyTrainingSet)
	}

	logger.Info().Int64("ratings", total).Int("chunk_size", t.cfg.ChunkSize).Msg("Training started")

	model := algorithms.NewSVD(algorithms.SVDConfig{
		Factors:        t.cfg.Factors,
		Epochs:         t.cfg.Epochs,
		LearningRate:   t.cfg.LearningRate,
		Regularization: t.cfg.Regularization,
		Seed:           t.cfg.Seed,
	})

	chunkCount := 0
	for offset := 0; int64(offset) < total; offset += t.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			metrics.TrainingFailures.WithLabelValues(scope).Inc()
			return nil, fmt.Errorf("train %s: %w", scope, err)
		}

		page, err := t.data.RatingsChunk(ctx, scope, t.cfg.ChunkSize, offset)
		if err != nil {
			metrics.TrainingFailures.WithLabelValues(scope).Inc()
			return nil, fmt.Errorf("train %s: chunk at %d: %w", scope, offset, err)
		}
		if len(page) == 0 {
			break
		}

		// Stage on disk, then read back for fitting. Keeps peak memory at
		// one chunk regardless of scope size and exercises the same path
		// an out-of-process producer would use.
		chunk, err := t.chunks.Write(ctx, page)
		if err != nil {
			metrics.TrainingFailures.WithLabelValues(scope).Inc()
			return nil, fmt.Errorf("train %s: %w", scope, err)
		}
		ratings, err := t.chunks.Consume(ctx, chunk)
		if err != nil {
			metrics.TrainingFailures.WithLabelValues(scope).Inc()
			return nil, fmt.Errorf("train %s: %w", scope, err)
		}

		if err := model.FitChunk(ctx, ratings); err != nil {
			metrics.TrainingFailures.WithLabelValues(scope).Inc()
			return nil, fmt.Errorf("train %s: %w", scope, err)
		}
		chunkCount++
		logger.Debug().Int("chunk", chunkCount).Int("ratings", len(ratings)).Msg("Chunk fitted")
	}

	items, err := t.data.ItemsSample(ctx, scope, t.cfg.SampleSize)
	if err != nil {
		metrics.TrainingFailures.WithLabelValues(scope).Inc()
		return nil, fmt.Errorf("train %s: item sample: %w", scope, err)
	}

	builder := &features.Builder{
		MaxTextFeatures: t.cfg.MaxTextFeatures,
		MinDocFreq:      t.cfg.MinDocFreq,
	}
	fs, err := builder.Build(items)
	if err != nil {
		metrics.TrainingFailures.WithLabelValues(scope).Inc()
		return nil, fmt.Errorf("train %s: feature build: %w", scope, err)
	}
	if fs.NumericOnly {
		metrics.DegradedFeatureBuilds.WithLabelValues(scope).Inc()
		logger.Warn().Int("items", len(items)).Msg("No usable text corpus, feature set degraded to numeric columns only")
	}

	elapsed := time.Since(start)
	bundle := &recommend.Bundle{
		Scope:    scope,
		Model:    model,
		Features: fs,
		Meta: recommend.BundleMeta{
			Scope:              scope,
			TrainedAt:          time.Now().UTC(),
			UserCount:          model.UserCount(),
			ItemCount:          model.ItemCount(),
			RatingCount:        model.RatingsFitted(),
			FeatureRows:        fs.Rows(),
			TextDims:           fs.TextDims,
			NumericOnly:        fs.NumericOnly,
			TrainingDurationMS: elapsed.Milliseconds(),
		},
	}

	if err := t.store.SaveBundle(bundle); err != nil {
		metrics.TrainingFailures.WithLabelValues(scope).Inc()
		return nil, fmt.Errorf("train %s: %w", scope, err)
	}
	if err := t.scopes.Publish(bundle); err != nil {
		metrics.TrainingFailures.WithLabelValues(scope).Inc()
		return nil, fmt.Errorf("train %s: %w", scope, err)
	}

	metrics.TrainingDuration.WithLabelValues(scope).Observe(elapsed.Seconds())
	metrics.TrainingChunks.WithLabelValues(scope).Add(float64(chunkCount))
	metrics.TrainingRatings.WithLabelValues(scope).Add(float64(model.RatingsFitted()))

	logger.Info().
		Int("chunks", chunkCount).
		Int64("ratings", model.RatingsFitted()).
		Int("users", model.UserCount()).
		Int("items", model.ItemCount()).
		Int("feature_rows", fs.Rows()).
		Bool("numeric_only", fs.NumericOnly).
		Dur("elapsed", elapsed).
		Msg("Training complete")
	return bundle, nil
}

// TrainAll trains every configured scope in order. Individual scope
// failures are logged and skipped; the pass as a whole fails only when no
// scope trained successfully.
func (t *Trainer) TrainAll(ctx context.Context, scopes []string) error {
	if len(scopes) == 0 {
		return errors.New("train all: no scopes configured")
	}

	succeeded := 0
	var lastErr error
	for _, scope := range scopes {
		if _, err := t.TrainScope(ctx, scope); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			lastErr = err
			t.logger.Error().Err(err).Str("scope", scope).Msg("Scope training failed")
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		return fmt.Errorf("train all: every scope failed: %w", lastErr)
	}
	t.logger.Info().Int("succeeded", succeeded).Int("failed", len(scopes)-succeeded).Msg("Training pass finished")
	return nil
}
