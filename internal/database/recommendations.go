// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/suasor/internal/config"
	"github.com/tomtom215/suasor/internal/metrics"
	"github.com/tomtom215/suasor/internal/recommend"
)

// validScope reports whether scope has a recommendations table.
func (db *DB) validScope(scope string) bool {
	if scope == config.CombinedScope {
		return true
	}
	for _, s := range db.scopes {
		if s.Name == scope {
			return true
		}
	}
	return false
}

// UpsertRecommendations writes one user's ranked recommendations into the
// scope's output table as a single row holding the ordered item ID list as
// JSON. ON CONFLICT DO NOTHING keeps re-runs idempotent: a user already
// scored is left untouched rather than re-ranked, so an interrupted batch
// can simply run again.
func (db *DB) UpsertRecommendations(ctx context.Context, scope, userID string, items []recommend.ScoredItem) error {
	if !db.validScope(scope) {
		return fmt.Errorf("scope %s: %w", scope, recommend.ErrInvalidScope)
	}
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ItemID
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode recommendations for %s: %w", userID, err)
	}

	start := time.Now()
	query := fmt.Sprintf(`
		INSERT INTO recommendations_%s (user_id, item_ids, generated_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`, scope)

	_, err = db.conn.ExecContext(ctx, query, userID, string(encoded), time.Now().UTC())
	metrics.ObserveDBQuery("upsert_recommendations", scope, start, err)
	if err != nil {
		return fmt.Errorf("upsert recommendations for %s: %w", userID, err)
	}
	return nil
}

// StoredRecommendations returns the ordered item ID list the batch stored
// for a user, or nil when the user has no row. This sits on the serving
// path, so it runs behind the serving circuit breaker.
func (db *DB) StoredRecommendations(ctx context.Context, scope, userID string) ([]string, error) {
	if !db.validScope(scope) {
		return nil, fmt.Errorf("scope %s: %w", scope, recommend.ErrInvalidScope)
	}

	return db.servingBreaker.Execute(func() ([]string, error) {
		start := time.Now()
		query := fmt.Sprintf("SELECT item_ids FROM recommendations_%s WHERE user_id = ?", scope)

		var encoded string
		err := db.conn.QueryRowContext(ctx, query, userID).Scan(&encoded)
		if errors.Is(err, sql.ErrNoRows) {
			metrics.ObserveDBQuery("stored_recommendations", scope, start, nil)
			return nil, nil
		}
		metrics.ObserveDBQuery("stored_recommendations", scope, start, err)
		if err != nil {
			return nil, fmt.Errorf("stored recommendations for %s: %w", userID, err)
		}

		var ids []string
		if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
			return nil, fmt.Errorf("decode recommendations for %s: %w", userID, err)
		}
		return ids, nil
	})
}

// CountRecommendations returns the number of scored users in a scope.
func (db *DB) CountRecommendations(ctx context.Context, scope string) (int64, error) {
	if !db.validScope(scope) {
		return 0, fmt.Errorf("scope %s: %w", scope, recommend.ErrInvalidScope)
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM recommendations_%s", scope)
	if err := db.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recommendations for %s: %w", scope, err)
	}
	return count, nil
}
