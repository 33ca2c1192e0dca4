// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// lengthPrefixedBufferSize is a sequential read buffer for record streaming.
const lengthPrefixedBufferSize = 64 * 1024

var (
	// lengthPrefixedReaderPool reuses buffered readers between extraction runs.
	lengthPrefixedReaderPool = sync.Pool{
		New: func() any {
			return bufio.NewReaderSize(bytes.NewReader(nil), lengthPrefixedBufferSize)
		},
	}
)

// LengthPrefixedFunc receives one record and a stream of its complete payload.
// Bytes left unread in payload are discarded after the callback returns.
type LengthPrefixedFunc func(rec Record, payload io.Reader) error

// ExtractLengthPrefixed reads (LE32 length, 4 reserved bytes, payload) records from r.
// size is the total stream length; a negative size means unknown and payloads are buffered
// until complete. Reading stops without error when a header or payload would be truncated.
// It returns parsed records and the number of bytes covered by them.
func ExtractLengthPrefixed(r io.Reader, size int64, emit LengthPrefixedFunc) ([]Record, int64, error) {
	if r == nil {
		return nil, 0, ErrNilReader
	}

	br := lengthPrefixedReaderPool.Get().(*bufio.Reader) //nolint:forcetypeassert // pool contains only *bufio.Reader
	br.Reset(r)
	defer lengthPrefixedReaderPool.Put(br)

	var (
		records  []Record
		consumed int64
		header   [recordHeaderSize]byte
	)

	for idx := 0; ; idx++ {
		if size >= 0 && size-consumed < recordHeaderSize {
			break
		}

		if _, err := io.ReadFull(br, header[:]); err != nil {
			if isTruncation(err) {
				break
			}

			return records, consumed, fmt.Errorf("read record %d header: %w", idx, err)
		}

		length := int64(binary.LittleEndian.Uint32(header[0:4]))
		rec := Record{
			Index:    idx,
			Offset:   consumed,
			Length:   length,
			Reserved: ReservedBytes(bytes.Clone(header[4:8])),
		}

		payload, head, ok, err := openRecordPayload(br, size, consumed, length)
		if err != nil {
			return records, consumed, fmt.Errorf("read record %d payload: %w", idx, err)
		}
		if !ok {
			break
		}

		rec.Kind = Classify(head)
		rec.Filename = lengthPrefixedFilename(idx, length, rec.Kind)

		if emit != nil {
			if err := emit(rec, payload); err != nil {
				return records, consumed, err
			}
		}

		if err := drainPayload(payload); err != nil {
			return records, consumed, fmt.Errorf("skip record %d payload: %w", idx, err)
		}

		records = append(records, rec)
		consumed += recordHeaderSize + length
	}

	return records, consumed, nil
}

// ParseLengthPrefixed parses length-prefixed records from an in-memory buffer.
func ParseLengthPrefixed(data []byte) ([]Record, int64) {
	// bytes.Reader never fails, so only truncation can end the walk.
	records, consumed, _ := ExtractLengthPrefixed(bytes.NewReader(data), int64(len(data)), nil)
	return records, consumed
}

// openRecordPayload prepares the payload stream of one record and its classification prefix.
// ok is false when the payload is shorter than declared.
func openRecordPayload(br *bufio.Reader, size int64, consumed int64, length int64) (io.Reader, []byte, bool, error) {
	prefixLen := int(min(length, classifyPrefix))

	if size < 0 {
		var buf bytes.Buffer
		n, err := io.CopyN(&buf, br, length)
		if n < length {
			if err == nil || isTruncation(err) {
				return nil, nil, false, nil
			}

			return nil, nil, false, err
		}

		head := bytes.Clone(buf.Bytes()[:prefixLen])
		return &buf, head, true, nil
	}

	if length > size-consumed-recordHeaderSize {
		return nil, nil, false, nil
	}

	peeked, err := br.Peek(prefixLen)
	if err != nil {
		if isTruncation(err) {
			return nil, nil, false, nil
		}

		return nil, nil, false, err
	}

	return &io.LimitedReader{R: br, N: length}, bytes.Clone(peeked), true, nil
}

// drainPayload discards payload bytes the emit callback did not read.
func drainPayload(payload io.Reader) error {
	lr, ok := payload.(*io.LimitedReader)
	if !ok {
		return nil
	}

	want := lr.N
	n, err := io.Copy(io.Discard, lr)
	if err != nil {
		return err
	}
	if n != want {
		return io.ErrUnexpectedEOF
	}

	return nil
}

// lengthPrefixedFilename builds deterministic output name for a length-prefixed record.
func lengthPrefixedFilename(idx int, length int64, kind Kind) string {
	return fmt.Sprintf("%04d_len_%d%s", idx, length, kind.Ext())
}

// isTruncation reports whether err signals end of input rather than an I/O failure.
func isTruncation(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
