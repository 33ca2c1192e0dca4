// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/woozymasta/lzss"
	"github.com/woozymasta/pathrules"
)

func TestCompressMatcherMatch(t *testing.T) {
	t.Parallel()

	matcher, err := newCompressMatcher(includeRules(
		"*.bin",
		"*_len_*.wav",
	), pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   pathrules.ActionExclude,
	})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	cases := []struct {
		name string
		path string
		want bool
	}{
		{name: "extension rule", path: "0003_len_100.bin", want: true},
		{name: "case insensitive", path: "TRAILING.BIN", want: true},
		{name: "name rule", path: "0001_len_9000.wav", want: true},
		{name: "scan record miss", path: "0001_sig.wav", want: false},
		{name: "no match", path: "0000_len_45.png", want: false},
		{name: "empty", path: "", want: false},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := matcher.Match(tc.path)
			if got != tc.want {
				t.Fatalf("Match(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestShouldCompressPolicy(t *testing.T) {
	t.Parallel()

	opts := ExtractOptions{
		Compress:        includeRules("*.bin"),
		MinCompressSize: 100,
		MaxCompressSize: 1000,
	}
	opts.applyDefaults()

	matcher, err := newCompressMatcher(opts.Compress, opts.CompressMatcherOptions)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if shouldCompress(opts, matcher, "a.bin", 99) {
		t.Fatal("expected false for file below min size")
	}

	if shouldCompress(opts, matcher, "a.bin", 1001) {
		t.Fatal("expected false for file above max size")
	}

	if shouldCompress(opts, matcher, "a.png", 500) {
		t.Fatal("expected false for unmatched name")
	}

	if !shouldCompress(opts, matcher, "a.bin", 500) {
		t.Fatal("expected true for matched name in size range")
	}

	if shouldCompress(opts, nil, "a.bin", 500) {
		t.Fatal("expected false without rules")
	}
}

func TestCompressMatcherEmptyRules(t *testing.T) {
	t.Parallel()

	matcher, err := newCompressMatcher([]pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: "  "}}, pathrules.MatcherOptions{})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	if matcher != nil || matcher.Match("a.bin") {
		t.Fatal("blank patterns must produce no matcher")
	}
}

func TestCompressMatcherInvalidRule(t *testing.T) {
	t.Parallel()

	_, err := newCompressMatcher([]pathrules.Rule{
		{
			Action:  pathrules.ActionUnknown,
			Pattern: "*.bin",
		},
	}, pathrules.MatcherOptions{
		DefaultAction: pathrules.ActionExclude,
	})
	if !errors.Is(err, ErrInvalidCompressPattern) {
		t.Fatalf("expected ErrInvalidCompressPattern, got %v", err)
	}
}

func TestBlobSourceDecompressesStoredBlob(t *testing.T) {
	t.Parallel()

	random := make([]byte, 8192)
	rng := rand.New(rand.NewSource(42))
	for i := range random {
		random[i] = byte(rng.Intn(256))
	}

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "repetitive", data: bytes.Repeat([]byte("abcabcabc"), 700)},
		{name: "text", data: []byte("uniform sampler2D tex; void main() { gl_FragColor = texture2D(tex, uv); }")},
		{name: "random", data: random},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stored, err := compressLZSS(tc.data)
			if err != nil {
				t.Fatalf("compressLZSS: %v", err)
			}

			var stream bytes.Buffer
			if _, _, err := lzss.CompressToWriter(&stream, bytes.NewReader(tc.data), nil); err != nil {
				t.Fatalf("lzss.CompressToWriter: %v", err)
			}
			if !bytes.Equal(stream.Bytes(), stored) {
				t.Fatal("stream output differs from slice output")
			}

			path := writeTestFile(t, t.TempDir(), "blob.bin", stored)
			rc, err := blobSource{path: path, size: int64(len(tc.data)), compressed: true}.open()
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer func() { _ = rc.Close() }()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read decompressed blob: %v", err)
			}
			if !bytes.Equal(got, tc.data) {
				t.Fatalf("decompressed %d bytes, want %d", len(got), len(tc.data))
			}
		})
	}
}

func TestBlobSourceMissing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "absent.bin")
	_, err := statBlob(path, "expected")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("err=%v, want ErrBlobNotFound", err)
	}
}
