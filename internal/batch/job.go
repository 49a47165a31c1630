// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

// Package batch precomputes recommendations for every known user and
// writes them to the per-scope output tables. Scoring fans out across a
// bounded worker pool; writes go through an optional rate limiter so a
// large batch cannot starve the serving path's database access.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/suasor/internal/config"
	"github.com/tomtom215/suasor/internal/metrics"
	"github.com/tomtom215/suasor/internal/recommend"
)

// Skip reasons reported per scope.
const (
	SkipNoRecommendations = "no_recommendations"
	SkipScoringFailed     = "scoring_failed"
	SkipWriteFailed       = "write_failed"
)

// Recommender scores one user within a scope.
type Recommender interface {
	RecommendForUser(ctx context.Context, scope, userID string, topN int) ([]recommend.ScoredItem, *recommend.ScoreStats, error)
}

// UserSource lists the users to precompute for.
type UserSource interface {
	DistinctUsers(ctx context.Context, scope string) ([]string, error)
}

// Sink receives the computed recommendations.
type Sink interface {
	UpsertRecommendations(ctx context.Context, scope, userID string, items []recommend.ScoredItem) error
}

// ScopeReport counts per-user outcomes for one scope.
type ScopeReport struct {
	Scope     string         `json:"scope"`
	Users     int            `json:"users"`
	Succeeded int            `json:"succeeded"`
	Skipped   map[string]int `json:"skipped,omitempty"`
}

// Report is the outcome of one batch run.
type Report struct {
	Scopes   []ScopeReport `json:"scopes"`
	Duration time.Duration `json:"duration"`
}

// Job runs batch precomputation across scopes.
type Job struct {
	cfg    config.BatchConfig
	rec    Recommender
	users  UserSource
	sink   Sink
	logger zerolog.Logger
}

// New wires a batch job to its scorer, user source, and output sink.
func New(cfg config.BatchConfig, rec Recommender, users UserSource, sink Sink, logger zerolog.Logger) *Job {
	return &Job{
		cfg:    cfg,
		rec:    rec,
		users:  users,
		sink:   sink,
		logger: logger.With().Str("component", "batch").Logger(),
	}
}

// Run precomputes recommendations for every user in every given scope.
// Scopes fail independently; the run as a whole errors only when not a
// single scope produced output.
func (j *Job) Run(ctx context.Context, scopes []string) (*Report, error) {
	if len(scopes) == 0 {
		return nil, fmt.Errorf("batch run: no scopes")
	}

	start := time.Now()
	report := &Report{}
	succeededScopes := 0
	var lastErr error

	for _, scope := range scopes {
		sr, err := j.runScope(ctx, scope)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			j.logger.Error().Err(err).Str("scope", scope).Msg("Batch scope failed")
			continue
		}
		report.Scopes = append(report.Scopes, *sr)
		if sr.Succeeded > 0 {
			succeededScopes++
		}
	}

	report.Duration = time.Since(start)
	if succeededScopes == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("batch run: no scope produced recommendations: %w", lastErr)
		}
		return nil, fmt.Errorf("batch run: no scope produced recommendations")
	}

	j.logger.Info().
		Int("scopes", len(report.Scopes)).
		Dur("elapsed", report.Duration).
		Msg("Batch run finished")
	return report, nil
}

func (j *Job) runScope(ctx context.Context, scope string) (*ScopeReport, error) {
	scopeStart := time.Now()
	users, err := j.users.DistinctUsers(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", scope, err)
	}

	report := &ScopeReport{Scope: scope, Users: len(users), Skipped: make(map[string]int)}
	if len(users) == 0 {
		j.logger.Warn().Str("scope", scope).Msg("No users to batch")
		return report, nil
	}

	concurrency := j.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	var limiter *rate.Limiter
	if j.cfg.WriteRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(j.cfg.WriteRate), 1)
	}

	var mu sync.Mutex
	skip := func(reason string) {
		mu.Lock()
		report.Skipped[reason]++
		mu.Unlock()
		metrics.BatchUsersSkipped.WithLabelValues(scope, reason).Inc()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, userID := range users {
		g.Go(func() error {
			items, _, err := j.rec.RecommendForUser(gctx, scope, userID, j.cfg.TopN)
			if err != nil {
				skip(SkipScoringFailed)
				j.logger.Debug().Err(err).Str("scope", scope).Str("user_id", userID).Msg("Scoring failed")
				return nil //nolint:nilerr // per-user failures are counted, not fatal
			}
			if len(items) == 0 {
				skip(SkipNoRecommendations)
				return nil
			}

			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			if err := j.sink.UpsertRecommendations(gctx, scope, userID, items); err != nil {
				skip(SkipWriteFailed)
				j.logger.Warn().Err(err).Str("scope", scope).Str("user_id", userID).Msg("Write failed")
				return nil //nolint:nilerr // per-user failures are counted, not fatal
			}

			mu.Lock()
			report.Succeeded++
			mu.Unlock()
			metrics.BatchUsersSucceeded.WithLabelValues(scope).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch %s: %w", scope, err)
	}

	metrics.BatchDuration.WithLabelValues(scope).Observe(time.Since(scopeStart).Seconds())
	j.logger.Info().
		Str("scope", scope).
		Int("users", report.Users).
		Int("succeeded", report.Succeeded).
		Interface("skipped", report.Skipped).
		Msg("Batch scope finished")
	return report, nil
}
