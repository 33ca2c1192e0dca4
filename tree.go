// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/woozymasta/pathrules"
)

// DefaultSelectPattern selects extracted directories rebuilt by RebuildTree.
const DefaultSelectPattern = "*.data"

// RebuildTree rebuilds every selected extracted directory under extractedRoot into
// destDir/<directory name>. Directories without a manifest are skipped.
// Directories are processed in name order and the first failure stops the walk.
func RebuildTree(ctx context.Context, extractedRoot string, destDir string, opts TreeOptions) ([]TreeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()
	logger := opts.Rebuild.Logger

	matcher, err := pathrules.NewMatcher(normalizeRules(opts.Select), opts.SelectMatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidSelectPattern, err)
	}

	entries, err := os.ReadDir(extractedRoot)
	if err != nil {
		return nil, fmt.Errorf("read extracted root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !matcher.Included(entry.Name(), true) {
			continue
		}

		names = append(names, entry.Name())
	}

	slices.Sort(names)

	results := make([]TreeResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		manifestDir := filepath.Join(extractedRoot, name)
		if !hasManifest(manifestDir) {
			logger.Debug("skipping directory without manifest", "dir", manifestDir)
			continue
		}

		outputPath := filepath.Join(destDir, name)
		res, err := Rebuild(ctx, outputPath, manifestDir, nil, opts.Rebuild)
		if err != nil {
			return results, fmt.Errorf("rebuild %s: %w", name, err)
		}

		results = append(results, TreeResult{
			ManifestDir: manifestDir,
			OutputPath:  outputPath,
			Result:      res,
		})
	}

	return results, nil
}

// CollectReplacements maps files in dir to record indices of idx.
// A file matches a record by its exact extracted filename, or by the
// zero-padded "NNNN_" index prefix of extracted names. Exact names win.
func CollectReplacements(dir string, idx *Index) (map[int]string, error) {
	if idx == nil {
		return nil, ErrNilIndex
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replacement dir: %w", err)
	}

	byName := make(map[string]int, len(idx.Records))
	for _, rec := range idx.Records {
		byName[rec.Filename] = rec.Index
	}

	exact := make(map[int]string)
	prefixed := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == ManifestJSONName || name == ManifestYAMLName {
			continue
		}

		path := filepath.Join(dir, name)
		if i, ok := byName[name]; ok {
			exact[i] = path
			continue
		}

		i, ok := replacementPrefixIndex(name)
		if !ok || i >= len(idx.Records) {
			continue
		}

		if prev, dup := prefixed[i]; dup {
			return nil, fmt.Errorf("%w: record %d matched by %s and %s", ErrAmbiguousReplacement, i, filepath.Base(prev), name)
		}

		prefixed[i] = path
	}

	for i, path := range prefixed {
		if _, ok := exact[i]; !ok {
			exact[i] = path
		}
	}

	return exact, nil
}

// replacementPrefixIndex parses the leading 4-digit record index of name.
func replacementPrefixIndex(name string) (int, bool) {
	if len(name) < 5 || name[4] != '_' {
		return 0, false
	}

	for _, c := range name[:4] {
		if c < '0' || c > '9' {
			return 0, false
		}
	}

	i, err := strconv.Atoi(name[:4])
	if err != nil {
		return 0, false
	}

	return i, true
}

// hasManifest reports whether dir contains a JSON or YAML manifest.
// Stat failures other than absence count as present so Rebuild surfaces them.
func hasManifest(dir string) bool {
	for _, name := range []string{ManifestJSONName, ManifestYAMLName} {
		_, err := os.Stat(filepath.Join(dir, name))
		if err == nil {
			return true
		}
		if !errors.Is(err, os.ErrNotExist) {
			return true
		}
	}

	return false
}
