// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/suasor/internal/recommend"
)

// ChunkStore spools rating chunks to a working directory so a scope's full
// rating set never has to sit in memory during training. Chunks are
// write-once/read-once: Consume returns a chunk's ratings and removes the
// file in the same call, and a second consume of the same chunk fails.
type ChunkStore struct {
	dir    string
	logger zerolog.Logger

	mu   sync.Mutex
	seq  int
	live map[string]struct{}
}

// Chunk is a handle to one spooled file.
type Chunk struct {
	Path  string
	Count int
}

// NewChunkStore creates the working directory if needed.
func NewChunkStore(dir string, logger zerolog.Logger) (*ChunkStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("chunk store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("chunk store: create %s: %w", dir, err)
	}
	return &ChunkStore{
		dir:    dir,
		logger: logger.With().Str("component", "chunkstore").Logger(),
		live:   make(map[string]struct{}),
	}, nil
}

// Write spools one chunk of ratings to disk and returns its handle.
func (s *ChunkStore) Write(ctx context.Context, ratings []recommend.Rating) (*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("chunk write: %w", err)
	}
	if len(ratings) == 0 {
		return nil, fmt.Errorf("chunk write: empty chunk")
	}

	data, err := encodePayload(ratings)
	if err != nil {
		return nil, fmt.Errorf("chunk write: %w", err)
	}

	s.mu.Lock()
	path := filepath.Join(s.dir, fmt.Sprintf("chunk_%06d.gob.gz", s.seq))
	s.seq++
	s.live[path] = struct{}{}
	s.mu.Unlock()

	if err := os.WriteFile(path, data, 0o640); err != nil {
		s.forget(path)
		return nil, fmt.Errorf("chunk write: %w", err)
	}

	s.logger.Debug().Str("path", path).Int("ratings", len(ratings)).Msg("Chunk spooled")
	return &Chunk{Path: path, Count: len(ratings)}, nil
}

// Consume reads a chunk back and deletes its file. Consuming the same chunk
// twice is an error.
func (s *ChunkStore) Consume(ctx context.Context, c *Chunk) ([]recommend.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("chunk consume: %w", err)
	}

	s.mu.Lock()
	_, ok := s.live[c.Path]
	if ok {
		delete(s.live, c.Path)
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("chunk consume: %s already consumed", c.Path)
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("chunk consume: %w", err)
	}

	var ratings []recommend.Rating
	if err := decodePayload(data, &ratings); err != nil {
		return nil, fmt.Errorf("chunk consume: %s: %w", c.Path, err)
	}

	if err := os.Remove(c.Path); err != nil {
		s.logger.Warn().Err(err).Str("path", c.Path).Msg("Failed to remove consumed chunk")
	}
	return ratings, nil
}

// Cleanup removes any spooled chunks still on disk, including stragglers
// left behind by an interrupted run. Called after every training pass.
func (s *ChunkStore) Cleanup() error {
	s.mu.Lock()
	s.live = make(map[string]struct{})
	s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "chunk_*.gob.gz"))
	if err != nil {
		return fmt.Errorf("chunk cleanup: %w", err)
	}

	var firstErr error
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk cleanup: %w", err)
			}
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("Chunk directory cleaned")
	}
	return firstErr
}

func (s *ChunkStore) forget(path string) {
	s.mu.Lock()
	delete(s.live, path)
	s.mu.Unlock()
}
