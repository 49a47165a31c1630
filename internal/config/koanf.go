// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/suasor/config.yaml",
	"/etc/suasor/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/suasor.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Registry: RegistryConfig{
			Path: "/data/models",
		},
		Train: TrainConfig{
			Factors:         100,
			Epochs:          20,
			LearningRate:    0.005,
			Regularization:  0.02,
			Seed:            42,
			ChunkSize:       50000,
			SampleSize:      20000,
			MaxTextFeatures: 1000,
			MinDocFreq:      2,
			WorkDir:         "/data/chunks",
			Interval:        24 * time.Hour,
			OnStartup:       false,
		},
		Batch: BatchConfig{
			TopN:        10,
			Concurrency: 0, // 0 = use runtime.NumCPU()
			WriteRate:   0, // unlimited
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3861,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Scopes: []ScopeConfig{
			{Name: "beauty", RatingsTable: "all_beauty", MetaTable: "meta_all_beauty"},
			{Name: "fashion", RatingsTable: "amazon_fashion", MetaTable: "meta_amazon_fashion"},
			{Name: "appliances", RatingsTable: "appliances", MetaTable: "meta_appliances"},
			{Name: "arts_crafts", RatingsTable: "arts_crafts", MetaTable: "meta_arts_crafts"},
			{Name: "automotive", RatingsTable: "automotive", MetaTable: "meta_automotive"},
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults. The loaded configuration is
// validated before being returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// SUASOR_SERVER_PORT -> server.port
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known
// slice fields. Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envPrefix namespaces Suasor environment variables.
const envPrefix = "SUASOR_"

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - SUASOR_DATABASE_PATH -> database.path
//   - SUASOR_TRAIN_CHUNK_SIZE -> train.chunk_size
//   - SUASOR_SERVER_PORT -> server.port
func envTransformFunc(key string) string {
	if !strings.HasPrefix(key, envPrefix) {
		// Ignore unrelated environment variables so they cannot pollute config.
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		// Database mappings
		"database_path":       "database.path",
		"database_max_memory": "database.max_memory",
		"database_threads":    "database.threads",

		// Registry mappings
		"registry_path": "registry.path",

		// Training mappings
		"train_factors":           "train.factors",
		"train_epochs":            "train.epochs",
		"train_learning_rate":     "train.learning_rate",
		"train_regularization":    "train.regularization",
		"train_seed":              "train.seed",
		"train_chunk_size":        "train.chunk_size",
		"train_sample_size":       "train.sample_size",
		"train_max_text_features": "train.max_text_features",
		"train_min_doc_freq":      "train.min_doc_freq",
		"train_work_dir":          "train.work_dir",
		"train_interval":          "train.interval",
		"train_on_startup":        "train.on_startup",

		// Batch mappings
		"batch_top_n":       "batch.top_n",
		"batch_concurrency": "batch.concurrency",
		"batch_write_rate":  "batch.write_rate",

		// Server mappings
		"server_host":              "server.host",
		"server_port":              "server.port",
		"server_timeout":           "server.timeout",
		"server_rate_limit_reqs":   "server.rate_limit_reqs",
		"server_rate_limit_window": "server.rate_limit_window",
		"server_cors_origins":      "server.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped SUASOR_ keys are skipped rather than guessed at.
	return ""
}
