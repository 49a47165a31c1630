// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	if cfg.Train.Factors != 100 || cfg.Train.Epochs != 20 {
		t.Errorf("unexpected default hyperparameters: factors=%d epochs=%d",
			cfg.Train.Factors, cfg.Train.Epochs)
	}
	if cfg.Train.LearningRate != 0.005 || cfg.Train.Regularization != 0.02 {
		t.Errorf("unexpected default SGD settings: lr=%v reg=%v",
			cfg.Train.LearningRate, cfg.Train.Regularization)
	}
	if cfg.Train.Seed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Train.Seed)
	}
	if len(cfg.Scopes) != 5 {
		t.Errorf("expected 5 default scopes, got %d", len(cfg.Scopes))
	}
}

func TestValidateRejectsBadScopes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no scopes", func(c *Config) { c.Scopes = nil }},
		{"reserved name", func(c *Config) { c.Scopes[0].Name = CombinedScope }},
		{"sql-unsafe table", func(c *Config) { c.Scopes[0].RatingsTable = "x; DROP TABLE y" }},
		{"sql-unsafe scope", func(c *Config) { c.Scopes[0].Name = "bad-name!" }},
		{"duplicate scope", func(c *Config) { c.Scopes[1].Name = c.Scopes[0].Name }},
		{"zero chunk size", func(c *Config) { c.Train.ChunkSize = 0 }},
		{"negative write rate", func(c *Config) { c.Batch.WriteRate = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestScopeLookup(t *testing.T) {
	cfg := defaultConfig()

	s, ok := cfg.Scope("beauty")
	if !ok {
		t.Fatal("expected beauty scope to resolve")
	}
	if s.RatingsTable != "all_beauty" || s.MetaTable != "meta_all_beauty" {
		t.Errorf("unexpected tables for beauty: %+v", s)
	}

	if _, ok := cfg.Scope("electronics"); ok {
		t.Error("unknown scope should not resolve")
	}
	if _, ok := cfg.Scope(CombinedScope); ok {
		t.Error("combined scope resolves via union, not per-scope tables")
	}
}

func TestScopeNamesIncludesCombined(t *testing.T) {
	cfg := defaultConfig()
	names := cfg.ScopeNames()
	if len(names) != 6 {
		t.Fatalf("expected 6 scope names, got %d", len(names))
	}
	if names[len(names)-1] != CombinedScope {
		t.Errorf("expected combined scope last, got %q", names[len(names)-1])
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"SUASOR_DATABASE_PATH", "database.path"},
		{"SUASOR_TRAIN_CHUNK_SIZE", "train.chunk_size"},
		{"SUASOR_SERVER_PORT", "server.port"},
		{"SUASOR_LOG_LEVEL", "logging.level"},
		{"SUASOR_UNKNOWN_KEY", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadWithKoanfLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
database:
  path: /tmp/test.duckdb
train:
  chunk_size: 123
server:
  port: 9999
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SUASOR_SERVER_PORT", "8123")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}

	// File overrides defaults.
	if cfg.Database.Path != "/tmp/test.duckdb" {
		t.Errorf("expected file-provided db path, got %q", cfg.Database.Path)
	}
	if cfg.Train.ChunkSize != 123 {
		t.Errorf("expected file-provided chunk size 123, got %d", cfg.Train.ChunkSize)
	}

	// Env overrides file.
	if cfg.Server.Port != 8123 {
		t.Errorf("expected env-provided port 8123, got %d", cfg.Server.Port)
	}

	// Untouched values keep defaults.
	if cfg.Train.Factors != 100 {
		t.Errorf("expected default factors 100, got %d", cfg.Train.Factors)
	}
	if cfg.Train.Interval != 24*time.Hour {
		t.Errorf("expected default train interval, got %v", cfg.Train.Interval)
	}
}
