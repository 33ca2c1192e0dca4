// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReservedBytes is the opaque reserved field of a length-prefixed record.
// It serializes as an array of byte values, never as base64.
type ReservedBytes []byte

// Normalized returns exactly 4 bytes: zero-padded when short, truncated when long.
func (rb ReservedBytes) Normalized() [reservedSize]byte {
	var out [reservedSize]byte
	copy(out[:], rb)
	return out
}

// MarshalJSON implements json.Marshaler.
func (rb ReservedBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(rb.ints())
}

// UnmarshalJSON implements json.Unmarshaler.
func (rb *ReservedBytes) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("reserved bytes: %w", err)
	}

	return rb.setInts(values)
}

// MarshalYAML implements yaml.Marshaler.
func (rb ReservedBytes) MarshalYAML() (any, error) {
	return rb.ints(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (rb *ReservedBytes) UnmarshalYAML(node *yaml.Node) error {
	var values []int
	if err := node.Decode(&values); err != nil {
		return fmt.Errorf("reserved bytes: %w", err)
	}

	return rb.setInts(values)
}

// ints converts bytes to integer values.
func (rb ReservedBytes) ints() []int {
	if rb == nil {
		return nil
	}

	out := make([]int, len(rb))
	for i, b := range rb {
		out[i] = int(b)
	}

	return out
}

// setInts replaces content with integer values, rejecting anything outside a byte range.
func (rb *ReservedBytes) setInts(values []int) error {
	if values == nil {
		*rb = nil
		return nil
	}

	out := make(ReservedBytes, len(values))
	for i, v := range values {
		if v < 0 || v > 0xff {
			return fmt.Errorf("%w: reserved byte %d out of range: %d", ErrInvalidManifest, i, v)
		}

		out[i] = byte(v)
	}

	*rb = out
	return nil
}

// UnmarshalJSON implements json.Unmarshaler and accepts the legacy "idx" and "start" keys.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plainRecord Record
	aux := struct {
		*plainRecord
		Index  *int   `json:"index"`
		Idx    *int   `json:"idx"`
		Offset *int64 `json:"offset"`
		Start  *int64 `json:"start"`
	}{plainRecord: (*plainRecord)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch {
	case aux.Index != nil:
		r.Index = *aux.Index
	case aux.Idx != nil:
		r.Index = *aux.Idx
	}

	switch {
	case aux.Offset != nil:
		r.Offset = *aux.Offset
	case aux.Start != nil:
		r.Offset = *aux.Start
	}

	return nil
}

// Validate checks manifest invariants: known method, contiguous indices in order,
// unique filenames that stay inside the extracted directory.
func (idx *Index) Validate() error {
	if idx == nil {
		return ErrNilIndex
	}

	if !idx.Method.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, idx.Method)
	}

	seen := make(map[string]int, len(idx.Records)+1)
	for i := range idx.Records {
		rec := &idx.Records[i]
		if rec.Index != i {
			return fmt.Errorf("%w: record at position %d has index %d", ErrInvalidManifest, i, rec.Index)
		}

		if err := validateRecordFilename(rec.Filename, seen, i); err != nil {
			return err
		}
	}

	if idx.Trailing != nil {
		if idx.Method != MethodLengthPrefixed {
			return fmt.Errorf("%w: trailing bytes only apply to %s", ErrInvalidManifest, MethodLengthPrefixed)
		}

		if err := validateRecordFilename(idx.Trailing.Filename, seen, -1); err != nil {
			return err
		}
	}

	return nil
}

// validateRecordFilename rejects empty, nested, manifest-colliding and duplicate names.
func validateRecordFilename(name string, seen map[string]int, position int) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: record %d filename %q", ErrInvalidExtractPath, position, name)
	}

	if name == ManifestJSONName || name == ManifestYAMLName {
		return fmt.Errorf("%w: record %d filename %q collides with manifest", ErrInvalidManifest, position, name)
	}

	if prev, ok := seen[name]; ok {
		return fmt.Errorf("%w: filename %q used by records %d and %d", ErrInvalidManifest, name, prev, position)
	}

	seen[name] = position
	return nil
}

// WriteIndex validates idx and writes it to dir in the selected format.
// A manifest of the other format in dir is removed so ReadIndex cannot pick a stale one.
func WriteIndex(dir string, idx *Index, format ManifestFormat) (string, error) {
	if err := idx.Validate(); err != nil {
		return "", err
	}

	if format == "" {
		format = ManifestJSON
	}

	data, err := encodeIndex(idx, format)
	if err != nil {
		return "", err
	}

	name, stale := ManifestJSONName, ManifestYAMLName
	if format == ManifestYAML {
		name, stale = ManifestYAMLName, ManifestJSONName
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	if err := removeIfExists(filepath.Join(dir, stale)); err != nil {
		return "", err
	}

	return path, nil
}

// ReadIndex loads and validates the manifest of an extracted directory.
// index.json is preferred; index.yaml is used when no JSON manifest exists.
func ReadIndex(dir string) (*Index, error) {
	candidates := []struct {
		path   string
		format ManifestFormat
	}{
		{path: filepath.Join(dir, ManifestJSONName), format: ManifestJSON},
		{path: filepath.Join(dir, ManifestYAMLName), format: ManifestYAML},
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}

		idx, err := decodeIndex(data, candidate.format)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", candidate.path, err)
		}

		if err := idx.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", candidate.path, err)
		}

		return idx, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, candidates[0].path)
}

// encodeIndex serializes idx in the given format.
func encodeIndex(idx *Index, format ManifestFormat) ([]byte, error) {
	switch format {
	case ManifestJSON:
		data, err := json.MarshalIndent(idx, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}

		return append(data, '\n'), nil
	case ManifestYAML:
		data, err := yaml.Marshal(idx)
		if err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}

		return data, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownManifestFormat, format)
	}
}

// decodeIndex parses manifest bytes in the given format.
func decodeIndex(data []byte, format ManifestFormat) (*Index, error) {
	var idx Index
	switch format {
	case ManifestJSON:
		if err := json.Unmarshal(data, &idx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
	case ManifestYAML:
		if err := yaml.Unmarshal(data, &idx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownManifestFormat, format)
	}

	return &idx, nil
}
