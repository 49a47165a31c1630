// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Training pipeline (chunk throughput, duration, model sizes)
// - Hybrid scoring (predictions, per-reason drop counts)
// - Batch recommendation jobs
// - DuckDB query performance
// - API endpoint latency and throughput

var (
	// Training Metrics
	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suasor_training_duration_seconds",
			Help:    "Duration of per-scope training runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"scope"},
	)

	TrainingChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_training_chunks_total",
			Help: "Total number of rating chunks fitted",
		},
		[]string{"scope"},
	)

	TrainingRatings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_training_ratings_total",
			Help: "Total number of rating rows fitted",
		},
		[]string{"scope"},
	)

	TrainingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_training_failures_total",
			Help: "Total number of failed training runs",
		},
		[]string{"scope"},
	)

	ModelSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "suasor_model_size_bytes",
			Help: "Compressed size of the latest persisted scope bundle",
		},
		[]string{"scope"},
	)

	DegradedFeatureBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_degraded_feature_builds_total",
			Help: "Feature builds that fell back to numeric-only mode (empty text corpus)",
		},
		[]string{"scope"},
	)

	// Scoring Metrics
	PredictionsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_predictions_total",
			Help: "Total number of per-user recommendation requests scored",
		},
		[]string{"scope"},
	)

	ScoringOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_scoring_outcomes_total",
			Help: "Per-candidate scoring outcomes (scored or dropped with reason)",
		},
		[]string{"scope", "outcome"},
	)

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suasor_scoring_duration_seconds",
			Help:    "Duration of per-user hybrid scoring in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	// Batch Job Metrics
	BatchUsersSucceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_batch_users_succeeded_total",
			Help: "Users for whom batch recommendations were written",
		},
		[]string{"scope"},
	)

	BatchUsersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_batch_users_skipped_total",
			Help: "Users skipped during batch recommendation, by reason",
		},
		[]string{"scope", "reason"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suasor_batch_duration_seconds",
			Help:    "Duration of per-scope batch recommendation runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"scope"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suasor_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "scope"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "scope"},
	)

	// Model Registry Metrics
	RegistrySaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_registry_saves_total",
			Help: "Scope bundles persisted to the model registry",
		},
		[]string{"scope"},
	)

	RegistryLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_registry_loads_total",
			Help: "Scope bundles loaded from the model registry",
		},
		[]string{"scope", "result"}, // "hit", "miss", "error"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suasor_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suasor_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveDBQuery records a completed database query.
func ObserveDBQuery(operation, scope string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, scope).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, scope).Inc()
	}
}

// ObserveAPIRequest records a completed API request.
func ObserveAPIRequest(method, endpoint string, status int, start time.Time) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
}
