// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"bytes"
	"encoding/binary"
)

// FindEnd returns the exclusive end offset of the resource of given kind starting at start.
// Truncated or malformed structure clamps to len(buf); the result is always within [start, len(buf)].
func FindEnd(buf []byte, start int, kind Kind) int {
	size := len(buf)
	if start < 0 {
		start = 0
	}
	if start >= size {
		return size
	}

	var end int
	switch kind {
	case KindPNG:
		end = pngEnd(buf, start)
	case KindJPEG:
		end = jpegEnd(buf, start)
	case KindOGG:
		end = oggEnd(buf, start)
	case KindRIFF:
		end = riffEnd(buf, start)
	default:
		// ZIP and unknown blobs have no structural end and run to the buffer end.
		end = size
	}

	return min(max(end, start), size)
}

// pngEnd walks length/type/data/CRC chunks after the 8-byte signature until IEND.
func pngEnd(buf []byte, start int) int {
	size := int64(len(buf))
	pos := int64(start) + 8
	for pos+8 <= size {
		chunkLen := int64(binary.BigEndian.Uint32(buf[pos : pos+4]))
		isIEND := bytes.Equal(buf[pos+4:pos+8], pngIEND)
		pos += 8 + chunkLen + 4
		if isIEND || pos > size {
			break
		}
	}

	return int(min(pos, size))
}

// jpegEnd finds the end-of-image marker.
func jpegEnd(buf []byte, start int) int {
	idx := bytes.Index(buf[start:], jpegEOI)
	if idx < 0 {
		return len(buf)
	}

	return start + idx + len(jpegEOI)
}

// oggEnd treats everything up to the next stream marker as one resource.
func oggEnd(buf []byte, start int) int {
	from := start + len(oggMarker)
	if from >= len(buf) {
		return len(buf)
	}

	idx := bytes.Index(buf[from:], oggMarker)
	if idx < 0 {
		return len(buf)
	}

	return from + idx
}

// riffEnd trusts the declared top-level chunk size.
func riffEnd(buf []byte, start int) int {
	size := int64(len(buf))
	if int64(start)+8 > size {
		return len(buf)
	}

	declared := int64(binary.LittleEndian.Uint32(buf[start+4 : start+8]))
	return int(min(int64(start)+8+declared, size))
}
