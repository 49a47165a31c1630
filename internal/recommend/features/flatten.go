// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

package features

import (
	"strings"

	"github.com/goccy/go-json"
)

// FlattenCategories decodes a JSON category value and returns its string
// leaves, lowercased, in document order. Category trees arrive as strings,
// arrays of strings, or arrays of arrays; nesting is flattened recursively
// and non-string leaves are dropped.
func FlattenCategories(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	var out []string
	flattenValue(v, &out)
	return out
}

func flattenValue(v interface{}, out *[]string) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		if s != "" {
			*out = append(*out, s)
		}
	case []interface{}:
		for _, e := range t {
			flattenValue(e, out)
		}
	}
}

// DecodeStringList decodes a JSON value into its string elements without
// changing case. Used for feature and description columns, which are flat
// lists in well-formed metadata but occasionally arrive as bare strings.
func DecodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	var out []string
	collectStrings(v, &out)
	return out
}

func collectStrings(v interface{}, out *[]string) {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			*out = append(*out, s)
		}
	case []interface{}:
		for _, e := range t {
			collectStrings(e, out)
		}
	}
}
