// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/suasor/internal/config"
	"github.com/tomtom215/suasor/internal/metrics"
	"github.com/tomtom215/suasor/internal/recommend"
	"github.com/tomtom215/suasor/internal/recommend/features"
)

// ratingFilter drops rows that cannot train: ratings outside the 1-5 star
// range and rows missing either key.
const ratingFilter = "rating >= 1 AND rating <= 5 AND user_id <> '' AND parent_asin <> ''"

// ratingsFrom builds the FROM clause for a scope's ratings. The combined
// scope reads the union of every configured category table; UNION (not
// UNION ALL) so a rating event present in two categories counts once.
func (db *DB) ratingsFrom(scope string) (string, error) {
	if scope == config.CombinedScope {
		parts := make([]string, 0, len(db.scopes))
		for _, s := range db.scopes {
			parts = append(parts, fmt.Sprintf(
				"SELECT user_id, parent_asin, rating, ts FROM %s WHERE %s", s.RatingsTable, ratingFilter))
		}
		if len(parts) == 0 {
			return "", fmt.Errorf("scope %s: %w", scope, recommend.ErrInvalidScope)
		}
		return "(" + strings.Join(parts, " UNION ") + ")", nil
	}

	for _, s := range db.scopes {
		if s.Name == scope {
			return fmt.Sprintf("(SELECT user_id, parent_asin, rating, ts FROM %s WHERE %s)",
				s.RatingsTable, ratingFilter), nil
		}
	}
	return "", fmt.Errorf("scope %s: %w", scope, recommend.ErrInvalidScope)
}

// metaFrom builds the FROM clause for a scope's item metadata.
func (db *DB) metaFrom(scope string) (string, error) {
	cols := "parent_asin, title, average_rating, rating_count, price, features, description, categories"
	if scope == config.CombinedScope {
		parts := make([]string, 0, len(db.scopes))
		for _, s := range db.scopes {
			parts = append(parts, fmt.Sprintf("SELECT %s FROM %s", cols, s.MetaTable))
		}
		if len(parts) == 0 {
			return "", fmt.Errorf("scope %s: %w", scope, recommend.ErrInvalidScope)
		}
		return "(" + strings.Join(parts, " UNION ") + ")", nil
	}

	for _, s := range db.scopes {
		if s.Name == scope {
			return fmt.Sprintf("(SELECT %s FROM %s)", cols, s.MetaTable), nil
		}
	}
	return "", fmt.Errorf("scope %s: %w", scope, recommend.ErrInvalidScope)
}

// CountRatings returns the number of qualifying ratings in a scope.
func (db *DB) CountRatings(ctx context.Context, scope string) (int64, error) {
	start := time.Now()
	from, err := db.ratingsFrom(scope)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+from+" r").Scan(&count)
	metrics.ObserveDBQuery("count_ratings", scope, start, err)
	if err != nil {
		return 0, fmt.Errorf("count ratings for %s: %w", scope, err)
	}
	return count, nil
}

// RatingsChunk returns one page of a scope's ratings in a deterministic
// order, so repeated runs chunk the data identically.
func (db *DB) RatingsChunk(ctx context.Context, scope string, limit, offset int) ([]recommend.Rating, error) {
	start := time.Now()
	from, err := db.ratingsFrom(scope)
	if err != nil {
		return nil, err
	}

	query := "SELECT user_id, parent_asin, rating, ts FROM " + from +
		" r ORDER BY user_id, parent_asin, ts LIMIT ? OFFSET ?"
	rows, err := db.conn.QueryContext(ctx, query, limit, offset)
	metrics.ObserveDBQuery("ratings_chunk", scope, start, err)
	if err != nil {
		return nil, fmt.Errorf("ratings chunk for %s: %w", scope, err)
	}
	defer closeWithLog(rows, "ratings chunk rows")

	var out []recommend.Rating
	for rows.Next() {
		var r recommend.Rating
		if err := rows.Scan(&r.UserID, &r.ItemID, &r.Value, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ratings chunk for %s: %w", scope, err)
	}
	return out, nil
}

// DistinctUsers returns every user with at least one qualifying rating in
// the scope.
func (db *DB) DistinctUsers(ctx context.Context, scope string) ([]string, error) {
	start := time.Now()
	from, err := db.ratingsFrom(scope)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, "SELECT DISTINCT user_id FROM "+from+" r ORDER BY user_id")
	metrics.ObserveDBQuery("distinct_users", scope, start, err)
	if err != nil {
		return nil, fmt.Errorf("distinct users for %s: %w", scope, err)
	}
	defer closeWithLog(rows, "distinct user rows")

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("distinct users for %s: %w", scope, err)
	}
	return users, nil
}

// ItemsSample returns up to limit distinct items with their metadata,
// ordered by rating count so the feature matrix covers the catalog's most
// visible items first.
func (db *DB) ItemsSample(ctx context.Context, scope string, limit int) ([]features.Item, error) {
	start := time.Now()
	from, err := db.metaFrom(scope)
	if err != nil {
		return nil, err
	}

	// JSON-typed columns come back as VARCHAR so scanning stays uniform
	// across file-backed and in-memory databases.
	query := `SELECT parent_asin,
			COALESCE(title, ''),
			COALESCE(average_rating, 0),
			COALESCE(rating_count, 0),
			COALESCE(price, 0),
			COALESCE(CAST(features AS VARCHAR), ''),
			COALESCE(CAST(description AS VARCHAR), ''),
			COALESCE(CAST(categories AS VARCHAR), '')
		FROM ` + from + ` m
		WHERE parent_asin <> ''
		ORDER BY rating_count DESC, parent_asin
		LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	metrics.ObserveDBQuery("items_sample", scope, start, err)
	if err != nil {
		return nil, fmt.Errorf("items sample for %s: %w", scope, err)
	}
	defer closeWithLog(rows, "item sample rows")

	var out []features.Item
	for rows.Next() {
		var it features.Item
		var featuresRaw, descriptionRaw, categoriesRaw string
		if err := rows.Scan(&it.ID, &it.Title, &it.AverageRating, &it.RatingCount,
			&it.Price, &featuresRaw, &descriptionRaw, &categoriesRaw); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Features = features.DecodeStringList(json.RawMessage(featuresRaw))
		it.Description = features.DecodeStringList(json.RawMessage(descriptionRaw))
		it.Categories = json.RawMessage(categoriesRaw)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("items sample for %s: %w", scope, err)
	}
	return out, nil
}
