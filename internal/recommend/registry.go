// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package recommend

import (
	"fmt"
	"sync"
)

// ScopeRegistry holds the live bundle for each scope. Publish replaces a
// scope's bundle atomically under the write lock; readers always see either
// the previous complete bundle or the new one, never a mix.
type ScopeRegistry struct {
	mu      sync.RWMutex
	bundles map[string]*Bundle
}

// NewScopeRegistry returns an empty registry.
func NewScopeRegistry() *ScopeRegistry {
	return &ScopeRegistry{bundles: make(map[string]*Bundle)}
}

// Publish installs a bundle as the live model for its scope.
func (r *ScopeRegistry) Publish(b *Bundle) error {
	if b == nil || b.Scope == "" {
		return fmt.Errorf("publish bundle: missing scope")
	}
	if b.Model == nil {
		return fmt.Errorf("publish bundle %s: nil model", b.Scope)
	}

	r.mu.Lock()
	r.bundles[b.Scope] = b
	r.mu.Unlock()
	return nil
}

// Get returns the live bundle for a scope, or ErrModelNotFound if the scope
// has never been published.
func (r *ScopeRegistry) Get(scope string) (*Bundle, error) {
	r.mu.RLock()
	b, ok := r.bundles[scope]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("scope %s: %w", scope, ErrModelNotFound)
	}
	return b, nil
}

// Status returns the metadata of every published bundle.
func (r *ScopeRegistry) Status() []BundleMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BundleMeta, 0, len(r.bundles))
	for _, b := range r.bundles {
		out = append(out, b.Meta)
	}
	return out
}
