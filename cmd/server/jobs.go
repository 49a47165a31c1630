// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// errJobBusy is returned when a training or batch run is already in
// progress. The API maps it to 409 Conflict.
var errJobBusy = errors.New("a job is already running")

// trainRunner runs the training pipeline for a set of scopes.
type trainRunner interface {
	TrainAll(ctx context.Context, scopes []string) error
}

// batchRunner precomputes recommendations for a set of scopes.
type batchRunner interface {
	Run(ctx context.Context, scopes []string) error
}

// jobRunner serializes training and batch runs. Both pull rating chunks
// through the same staging directory and write to the same tables, so at
// most one job runs at a time; a second trigger gets errJobBusy instead
// of queueing.
//
// It implements api.JobRunner for HTTP-triggered runs and the scheduler's
// Trainer interface for interval retraining, sharing one busy guard.
type jobRunner struct {
	ctx    context.Context
	train  trainRunner
	batch  batchRunner
	scopes []string
	logger zerolog.Logger

	mu   sync.Mutex
	busy bool
}

func newJobRunner(ctx context.Context, train trainRunner, batch batchRunner, scopes []string, logger zerolog.Logger) *jobRunner {
	return &jobRunner{
		ctx:    ctx,
		train:  train,
		batch:  batch,
		scopes: scopes,
		logger: logger.With().Str("component", "jobs").Logger(),
	}
}

func (j *jobRunner) acquire() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.busy {
		return false
	}
	j.busy = true
	return true
}

func (j *jobRunner) release() {
	j.mu.Lock()
	j.busy = false
	j.mu.Unlock()
}

// TriggerTrain starts an asynchronous training run and returns its job ID.
func (j *jobRunner) TriggerTrain(scopes []string) (string, error) {
	return j.trigger("train", scopes, func(ctx context.Context, scopes []string) error {
		return j.train.TrainAll(ctx, scopes)
	})
}

// TriggerBatch starts an asynchronous batch run and returns its job ID.
func (j *jobRunner) TriggerBatch(scopes []string) (string, error) {
	return j.trigger("batch", scopes, j.batch.Run)
}

func (j *jobRunner) trigger(kind string, scopes []string, run func(context.Context, []string) error) (string, error) {
	if len(scopes) == 0 {
		scopes = j.scopes
	}
	if !j.acquire() {
		return "", errJobBusy
	}

	jobID := uuid.NewString()
	logger := j.logger.With().Str("job_id", jobID).Str("kind", kind).Logger()
	logger.Info().Strs("scopes", scopes).Msg("job started")

	go func() {
		defer j.release()
		start := time.Now()
		// The job outlives the HTTP request; only server shutdown cancels it.
		if err := run(j.ctx, scopes); err != nil {
			logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("job failed")
			return
		}
		logger.Info().Dur("duration", time.Since(start)).Msg("job complete")
	}()

	return jobID, nil
}

// TrainAll runs a synchronous training pass over every configured scope.
// The interval scheduler calls this, sharing the busy guard with
// HTTP-triggered jobs.
func (j *jobRunner) TrainAll(ctx context.Context) error {
	if !j.acquire() {
		return errJobBusy
	}
	defer j.release()
	return j.train.TrainAll(ctx, j.scopes)
}
