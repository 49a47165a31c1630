// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/suasor/internal/metrics"
	"github.com/tomtom215/suasor/internal/recommend"
	"github.com/tomtom215/suasor/internal/recommend/algorithms"
	"github.com/tomtom215/suasor/internal/recommend/features"
)

// keyPrefix versions the on-disk key space so a future layout change can
// migrate instead of misreading old values.
const keyPrefix = "suasor:model:v1:"

// storedBundle is the concrete persisted form of a trained bundle. Gob
// cannot round-trip the Model interface without type registration, so the
// registry pins the concrete model type here.
type storedBundle struct {
	Metadata recommend.BundleMeta
	SVD      *algorithms.SVD
	Features *features.FeatureSet
}

// ModelRegistry stores one trained bundle per scope in Badger.
type ModelRegistry struct {
	db     *badger.DB
	logger zerolog.Logger
}

// OpenModelRegistry opens (or creates) the registry at path.
func OpenModelRegistry(path string, logger zerolog.Logger) (*ModelRegistry, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open model registry: %w", err)
	}
	return &ModelRegistry{
		db:     db,
		logger: logger.With().Str("component", "model_registry").Logger(),
	}, nil
}

// SaveBundle overwrites the stored bundle for the bundle's scope.
func (r *ModelRegistry) SaveBundle(b *recommend.Bundle) error {
	if b == nil || b.Scope == "" {
		return fmt.Errorf("save bundle: missing scope")
	}
	svd, ok := b.Model.(*algorithms.SVD)
	if !ok {
		return fmt.Errorf("save bundle: unsupported model type %T", b.Model)
	}

	start := time.Now()
	data, err := encodePayload(&storedBundle{
		Metadata: b.Meta,
		SVD:      svd,
		Features: b.Features,
	})
	if err != nil {
		return fmt.Errorf("save bundle %s: %w", b.Scope, err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+b.Scope), data)
	})
	if err != nil {
		return fmt.Errorf("save bundle %s: %w", b.Scope, err)
	}

	metrics.RegistrySaves.WithLabelValues(b.Scope).Inc()
	metrics.ModelSizeBytes.WithLabelValues(b.Scope).Set(float64(len(data)))
	r.logger.Info().
		Str("scope", b.Scope).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(start)).
		Msg("Model bundle saved")
	return nil
}

// LoadBundle fetches the stored bundle for a scope. A scope that has never
// been trained returns ErrModelNotFound.
func (r *ModelRegistry) LoadBundle(scope string) (*recommend.Bundle, error) {
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + scope))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RegistryLoads.WithLabelValues(scope, "miss").Inc()
		return nil, fmt.Errorf("load bundle %s: %w", scope, recommend.ErrModelNotFound)
	}
	if err != nil {
		metrics.RegistryLoads.WithLabelValues(scope, "error").Inc()
		return nil, fmt.Errorf("load bundle %s: %w", scope, err)
	}

	var stored storedBundle
	if err := decodePayload(data, &stored); err != nil {
		metrics.RegistryLoads.WithLabelValues(scope, "error").Inc()
		return nil, fmt.Errorf("load bundle %s: %w", scope, err)
	}

	metrics.RegistryLoads.WithLabelValues(scope, "hit").Inc()
	return &recommend.Bundle{
		Scope:    scope,
		Model:    stored.SVD,
		Features: stored.Features,
		Meta:     stored.Metadata,
	}, nil
}

// ListScopes returns the scopes that have a stored bundle.
func (r *ModelRegistry) ListScopes() ([]string, error) {
	var scopes []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			scopes = append(scopes, strings.TrimPrefix(key, keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	return scopes, nil
}

// Close flushes and closes the underlying store.
func (r *ModelRegistry) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close model registry: %w", err)
	}
	return nil
}
