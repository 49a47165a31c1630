// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

// Package storage persists trained model bundles and spools training
// chunks to disk. Everything on the wire is gob inside gzip with a
// sha256 checksum over the compressed payload, so a truncated write or
// bit rot is caught at load time instead of surfacing as a corrupt model.
package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
)

// envelope is the on-disk frame around any gob payload.
type envelope struct {
	Checksum       [sha256.Size]byte
	CompressedData []byte
}

// encodePayload gobs v, gzips it, and frames it with a checksum.
func encodePayload(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(zw).Encode(v); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	env := envelope{
		Checksum:       sha256.Sum256(buf.Bytes()),
		CompressedData: buf.Bytes(),
	}

	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(&env); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out.Bytes(), nil
}

// decodePayload verifies the checksum and decodes the inner gob into v.
func decodePayload(data []byte, v interface{}) error {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	if sum := sha256.Sum256(env.CompressedData); sum != env.Checksum {
		return fmt.Errorf("payload checksum mismatch")
	}

	zr, err := gzip.NewReader(bytes.NewReader(env.CompressedData))
	if err != nil {
		return fmt.Errorf("decompress payload: %w", err)
	}
	defer zr.Close() //nolint:errcheck // read-only stream

	if err := gob.NewDecoder(zr).Decode(v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
