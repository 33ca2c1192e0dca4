// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"fmt"

	"github.com/woozymasta/lzss"
	"github.com/woozymasta/pathrules"
)

// compressMatcher holds compiled allow-list rules for LZSS blob storage.
type compressMatcher struct {
	matcher *pathrules.Matcher
}

// newCompressMatcher compiles compression filename rules.
func newCompressMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*compressMatcher, error) {
	rules = normalizeRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidCompressPattern, err)
	}

	return &compressMatcher{matcher: matcher}, nil
}

// normalizeRules normalizes rule patterns and drops empty patterns.
func normalizeRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether filename is included by compress rules.
func (m *compressMatcher) Match(filename string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	candidate := NormalizePath(filename)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}

// shouldCompress returns true if filename and size pass compression policy.
func shouldCompress(opts ExtractOptions, matcher *compressMatcher, filename string, size int64) bool {
	if size > int64(opts.MaxCompressSize) || size < int64(opts.MinCompressSize) {
		return false
	}

	if matcher == nil {
		return false
	}

	return matcher.Match(filename)
}

// compressLZSS compresses the data using LZSS.
func compressLZSS(data []byte) ([]byte, error) {
	return lzss.Compress(data, lzss.DefaultCompressOptions())
}
