// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Trainer runs a full training pass over every configured scope.
type Trainer interface {
	TrainAll(ctx context.Context) error
}

// TrainSchedulerConfig holds configuration for the training scheduler.
type TrainSchedulerConfig struct {
	// OnStartup triggers a training pass when the service starts.
	OnStartup bool

	// Interval is how often to retrain models. Default: 24h.
	Interval time.Duration

	// PassTimeout bounds a single training pass. Default: 30m.
	PassTimeout time.Duration
}

// TrainScheduler runs periodic model retraining under supervision.
type TrainScheduler struct {
	trainer Trainer
	config  TrainSchedulerConfig
	logger  zerolog.Logger
	name    string
}

// NewTrainScheduler creates a new training scheduler service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainScheduler(trainer Trainer, cfg TrainSchedulerConfig, logger zerolog.Logger) *TrainScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = 30 * time.Minute
	}
	return &TrainScheduler{
		trainer: trainer,
		config:  cfg,
		logger:  logger.With().Str("service", "train-scheduler").Logger(),
		name:    "train-scheduler",
	}
}

// Serve implements suture.Service. Individual pass failures are logged and
// retried on the next tick rather than crashing the service, so a transient
// database error does not trigger a supervisor restart storm.
func (s *TrainScheduler) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Msg("training scheduler starting")

	if s.config.OnStartup {
		if err := s.runPass(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("startup training failed (will retry on schedule)")
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("training scheduler shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.runPass(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled training failed")
			}
		}
	}
}

func (s *TrainScheduler) runPass(ctx context.Context) error {
	passCtx, cancel := context.WithTimeout(ctx, s.config.PassTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info().Msg("starting training pass")

	if err := s.trainer.TrainAll(passCtx); err != nil {
		return err
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Msg("training pass complete")

	return nil
}

// String returns the service name for logging.
func (s *TrainScheduler) String() string {
	return s.name
}
