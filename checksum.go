// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"crypto/sha1" //nolint:gosec // Identity check only, not a security boundary.
	"encoding/hex"
	"io"
)

// hashPrefixSHA1 calculates hex SHA1 over first n bytes of ra.
func hashPrefixSHA1(ra io.ReaderAt, n int64) (string, error) {
	h := sha1.New() //nolint:gosec // Identity check only, not a security boundary.
	if _, err := io.Copy(h, io.NewSectionReader(ra, 0, n)); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// newSHA1Writer returns a hash sink for streaming output and its hex digest func.
func newSHA1Writer() (io.Writer, func() string) {
	h := sha1.New() //nolint:gosec // Identity check only, not a security boundary.
	return h, func() string { return hex.EncodeToString(h.Sum(nil)) }
}
