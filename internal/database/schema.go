// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/suasor/internal/config"
)

// EnsureRecommendationTables creates the per-scope output tables if they do
// not exist, including the one for the combined scope. One row per user
// holds the ranked item list as a JSON array; the primary key on user_id is
// what makes batch upserts idempotent.
func (db *DB) EnsureRecommendationTables(ctx context.Context) error {
	names := make([]string, 0, len(db.scopes)+1)
	for _, s := range db.scopes {
		names = append(names, s.Name)
	}
	names = append(names, config.CombinedScope)

	for _, name := range names {
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS recommendations_%s (
				user_id      VARCHAR NOT NULL,
				item_ids     VARCHAR NOT NULL,
				generated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (user_id)
			)`, name)
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create recommendations_%s: %w", name, err)
		}
	}
	return nil
}
