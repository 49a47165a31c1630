// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

// Package config defines the Suasor configuration model and its loader.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. See LoadWithKoanf.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Suasor server.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Registry RegistryConfig `koanf:"registry"`
	Train    TrainConfig    `koanf:"train"`
	Batch    BatchConfig    `koanf:"batch"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Scopes   []ScopeConfig  `koanf:"scopes"`
}

// DatabaseConfig holds DuckDB connection settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Use ":memory:" for tests.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory is passed to DuckDB as max_memory (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads" validate:"gte=0"`
}

// RegistryConfig holds the Badger model registry settings.
type RegistryConfig struct {
	// Path is the Badger directory for persisted scope bundles.
	Path string `koanf:"path" validate:"required"`
}

// TrainConfig holds training pipeline settings.
//
// The latent-factor hyperparameters deliberately stay fixed across scopes so
// retrained models remain comparable release to release.
type TrainConfig struct {
	// Factors is the latent factor dimension.
	Factors int `koanf:"factors" validate:"gt=0"`

	// Epochs is the number of SGD passes per chunk.
	Epochs int `koanf:"epochs" validate:"gt=0"`

	// LearningRate is the SGD step size.
	LearningRate float64 `koanf:"learning_rate" validate:"gt=0"`

	// Regularization is the L2 penalty applied to all parameters.
	Regularization float64 `koanf:"regularization" validate:"gt=0"`

	// Seed makes factor initialization and epoch shuffling reproducible.
	Seed int64 `koanf:"seed"`

	// ChunkSize bounds how many rating rows are staged on disk at once.
	ChunkSize int `koanf:"chunk_size" validate:"gt=0"`

	// SampleSize bounds the content feature matrix (distinct items).
	SampleSize int `koanf:"sample_size" validate:"gt=0"`

	// MaxTextFeatures caps the TF-IDF vocabulary.
	MaxTextFeatures int `koanf:"max_text_features" validate:"gt=0"`

	// MinDocFreq drops terms appearing in fewer documents than this.
	MinDocFreq int `koanf:"min_doc_freq" validate:"gt=0"`

	// WorkDir is where training chunks are staged.
	WorkDir string `koanf:"work_dir" validate:"required"`

	// Interval is how often scheduled retraining runs.
	Interval time.Duration `koanf:"interval"`

	// OnStartup triggers a full training pass when the service starts.
	OnStartup bool `koanf:"on_startup"`
}

// BatchConfig holds batch recommendation job settings.
type BatchConfig struct {
	// TopN is how many recommendations are written per user.
	TopN int `koanf:"top_n" validate:"gt=0"`

	// Concurrency bounds parallel per-user scoring.
	// 0 = runtime.NumCPU().
	Concurrency int `koanf:"concurrency" validate:"gte=0"`

	// WriteRate limits recommendation upserts per second. 0 = unlimited.
	WriteRate float64 `koanf:"write_rate" validate:"gte=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs is the per-IP request budget per RateLimitWindow.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gt=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ScopeConfig maps a scope name to its source tables.
type ScopeConfig struct {
	// Name is the scope identifier used in API paths and registry keys.
	Name string `koanf:"name" validate:"required"`

	// RatingsTable holds (user_id, parent_asin, rating, ts) rows.
	RatingsTable string `koanf:"ratings_table" validate:"required"`

	// MetaTable holds per-item metadata (title, price, text fields).
	MetaTable string `koanf:"meta_table" validate:"required"`
}

// CombinedScope is the synthetic scope built from the union of every
// configured category's tables. It never appears in Config.Scopes.
const CombinedScope = "combined"

// identRe restricts scope names and table names to SQL-identifier-safe
// strings. Table names are interpolated into query text, so anything else
// is rejected at load time.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for structural and semantic errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if len(c.Scopes) == 0 {
		return fmt.Errorf("config validation: at least one scope is required")
	}

	seen := make(map[string]struct{}, len(c.Scopes))
	for _, s := range c.Scopes {
		if s.Name == CombinedScope {
			return fmt.Errorf("config validation: scope name %q is reserved", CombinedScope)
		}
		if !identRe.MatchString(s.Name) {
			return fmt.Errorf("config validation: invalid scope name %q", s.Name)
		}
		if !identRe.MatchString(s.RatingsTable) || !identRe.MatchString(s.MetaTable) {
			return fmt.Errorf("config validation: invalid table name for scope %q", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("config validation: duplicate scope %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	return nil
}

// Scope returns the configuration for a named scope, or false when the
// scope is unknown. CombinedScope is not resolvable here; callers handle
// it explicitly.
func (c *Config) Scope(name string) (ScopeConfig, bool) {
	for _, s := range c.Scopes {
		if s.Name == name {
			return s, true
		}
	}
	return ScopeConfig{}, false
}

// ScopeNames returns all configured scope names plus CombinedScope, in
// declaration order.
func (c *Config) ScopeNames() []string {
	names := make([]string, 0, len(c.Scopes)+1)
	for _, s := range c.Scopes {
		names = append(names, s.Name)
	}
	return append(names, CombinedScope)
}
