// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
)

// DetectRawText reports whether rs starts with GLSLMagic and, if so, returns the rest of the
// stream decoded as UTF-8 with invalid bytes replaced by U+FFFD.
// When the marker is absent rs is rewound to offset 0 for the next strategy.
func DetectRawText(rs io.ReadSeeker) (string, bool, error) {
	if rs == nil {
		return "", false, ErrNilReader
	}

	var header [len(GLSLMagic)]byte
	n, err := io.ReadFull(rs, header[:])
	if err != nil && !isTruncation(err) {
		return "", false, fmt.Errorf("read raw text marker: %w", err)
	}

	if n != len(header) || header != GLSLMagic {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return "", false, fmt.Errorf("rewind after raw text probe: %w", err)
		}

		return "", false, nil
	}

	rest, err := io.ReadAll(rs)
	if err != nil {
		return "", false, fmt.Errorf("read raw text payload: %w", err)
	}

	return decodeText(rest), true, nil
}

// HasRawTextMarker reports whether data starts with GLSLMagic.
func HasRawTextMarker(data []byte) bool {
	return bytes.HasPrefix(data, GLSLMagic[:])
}

// decodeText decodes UTF-8 and never fails: invalid sequences become U+FFFD.
func decodeText(raw []byte) string {
	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return string(bytes.ToValidUTF8(raw, []byte("\uFFFD")))
	}

	return string(decoded)
}
