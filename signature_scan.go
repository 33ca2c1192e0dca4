// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"bytes"
	"fmt"
)

const (
	// sigNotFound marks a signature with no occurrence left in the buffer.
	sigNotFound = -1
	// sigUnsearched marks a signature not searched yet.
	sigUnsearched = -2
)

// ScanSignatures carves resources by searching for registered leading signatures.
// Bytes between resources are skipped, so the result is not a lossless description of buf.
func ScanSignatures(buf []byte) []Record {
	var records []Record
	scanner := newSignatureScanner(buf)
	for pos := 0; pos < len(buf); {
		start, sig, ok := scanner.next(pos)
		if !ok {
			break
		}

		end := FindEnd(buf, start, sig.Kind)
		// A valid match spans at least its own magic; never stall on a zero-width record.
		end = max(end, min(start+len(sig.Magic), len(buf)))

		idx := len(records)
		records = append(records, Record{
			Index:    idx,
			Offset:   int64(start),
			Length:   int64(end - start),
			End:      int64(end),
			Filename: signatureScanFilename(idx, sig.Kind),
			Kind:     sig.Kind,
		})

		pos = end
	}

	return records
}

// signatureScanner finds the lowest-offset signature at or after a position.
// Each signature keeps its next known occurrence, so a pattern is searched again
// only after the scan position moves past it.
type signatureScanner struct {
	buf    []byte
	cached []int
}

// newSignatureScanner prepares a scanner with no cached occurrences.
func newSignatureScanner(buf []byte) *signatureScanner {
	cache := make([]int, len(signatures))
	for i := range cache {
		cache[i] = sigUnsearched
	}

	return &signatureScanner{buf: buf, cached: cache}
}

// next returns the earliest match at or after pos; ties go to the first registered signature.
func (s *signatureScanner) next(pos int) (int, Signature, bool) {
	best := sigNotFound
	bestSig := -1
	for i, sig := range signatures {
		at := s.cached[i]
		if at == sigNotFound {
			continue
		}

		if at < pos {
			found := bytes.Index(s.buf[pos:], sig.Magic)
			if found < 0 {
				s.cached[i] = sigNotFound
				continue
			}

			at = pos + found
			s.cached[i] = at
		}

		if best == sigNotFound || at < best {
			best = at
			bestSig = i
		}
	}

	if bestSig < 0 {
		return 0, Signature{}, false
	}

	return best, signatures[bestSig], true
}

// signatureScanFilename builds deterministic output name for a signature scan record.
func signatureScanFilename(idx int, kind Kind) string {
	return fmt.Sprintf("%04d_sig%s", idx, kind.Ext())
}
