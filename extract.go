// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// extractCopyBufferSize defines buffer size for file copy during extraction.
const extractCopyBufferSize = 64 * 1024

// containerSource is a container opened for both sequential and random access.
type containerSource interface {
	io.ReadSeeker
	io.ReaderAt
}

// recordSink receives extracted payloads.
type recordSink interface {
	writeText(rec *Record, text string) error
	writeRecord(rec *Record, payload io.Reader) error
}

// Run extracts every embedded resource of the container at containerPath into
// <OutputRoot>/<container basename>/ and writes the manifest there.
// Strategies are probed in fixed order: raw text, length-prefixed, signature scan.
func Run(ctx context.Context, containerPath string, opts ExtractOptions) (*Index, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()
	logger := opts.Logger.With("container", containerPath)

	outDir, err := containerOutputDir(containerPath, opts)
	if err != nil {
		return nil, err
	}

	matcher, err := newCompressMatcher(opts.Compress, opts.CompressMatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("compile compress rules: %w", err)
	}

	f, size, err := openFileWithSize(containerPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	sink := &diskSink{
		dir:     outDir,
		opts:    opts,
		matcher: matcher,
		copyBuf: make([]byte, extractCopyBufferSize),
	}

	idx, err := runStrategies(ctx, f, size, sink, logger)
	if err != nil {
		return nil, err
	}

	idx.Source = filepath.Base(containerPath)

	manifestPath, err := WriteIndex(outDir, idx, opts.ManifestFormat)
	if err != nil {
		return nil, err
	}

	logger.Info("extraction done", "method", idx.Method, "records", len(idx.Records), "path", manifestPath)

	return idx, nil
}

// Analyze runs the strategy chain over an in-memory container without writing files.
func Analyze(data []byte) *Index {
	// bytes.Reader and the discard sink cannot fail, and the context is never cancelled.
	idx, _ := runStrategies(context.Background(), bytes.NewReader(data), int64(len(data)), discardSink{}, loggerOrDiscard(nil))
	return idx
}

// runStrategies probes extraction strategies in priority order and returns the first
// usable result. Structural mismatches fall through to the next strategy.
func runStrategies(ctx context.Context, src containerSource, size int64, sink recordSink, logger *slog.Logger) (*Index, error) {
	idx, err := tryRawText(src, size, sink)
	if err != nil {
		return nil, err
	}

	if idx == nil {
		logger.Debug("trying length-prefixed extraction")
		idx, err = tryLengthPrefixed(ctx, src, size, sink)
		if err != nil {
			return nil, err
		}
	}

	if idx == nil {
		logger.Info("no length-prefixed records found, falling back to signature scanning")
		idx, err = trySignatureScan(ctx, src, size, sink)
		if err != nil {
			return nil, err
		}
	}

	sum, err := hashPrefixSHA1(src, size)
	if err != nil {
		return nil, fmt.Errorf("hash source: %w", err)
	}

	idx.SourceSize = size
	idx.SourceSHA1 = sum
	logger.Debug("strategy selected", "method", idx.Method, "records", len(idx.Records), "consumed", idx.Consumed)

	return idx, nil
}

// tryRawText returns a glsl_detected index when the container carries the raw text marker.
func tryRawText(src containerSource, size int64, sink recordSink) (*Index, error) {
	text, ok, err := DetectRawText(src)
	if err != nil || !ok {
		return nil, err
	}

	rec := Record{
		Index:    0,
		Offset:   int64(len(GLSLMagic)),
		Length:   size - int64(len(GLSLMagic)),
		Filename: RawTextFilename,
		Kind:     KindGLSL,
	}

	if err := sink.writeText(&rec, text); err != nil {
		return nil, err
	}

	return &Index{
		Method:   MethodGLSLDetected,
		Records:  []Record{rec},
		Consumed: size,
	}, nil
}

// tryLengthPrefixed streams length-prefixed records; nil index means zero records.
func tryLengthPrefixed(ctx context.Context, src containerSource, size int64, sink recordSink) (*Index, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind container: %w", err)
	}

	var written []Record
	_, consumed, err := ExtractLengthPrefixed(src, size, func(rec Record, payload io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := sink.writeRecord(&rec, payload); err != nil {
			return err
		}

		written = append(written, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(written) == 0 {
		return nil, nil
	}

	idx := &Index{
		Method:   MethodLengthPrefixed,
		Records:  written,
		Consumed: consumed,
	}

	if consumed < size {
		trailing := Record{
			Index:    len(written),
			Offset:   consumed,
			Length:   size - consumed,
			Filename: TrailingFilename,
			Kind:     KindUnknown,
		}

		if err := sink.writeRecord(&trailing, io.NewSectionReader(src, consumed, size-consumed)); err != nil {
			return nil, err
		}

		idx.Trailing = &trailing
	}

	return idx, nil
}

// trySignatureScan loads the whole container and carves it by leading signatures.
func trySignatureScan(ctx context.Context, src containerSource, size int64, sink recordSink) (*Index, error) {
	data, err := io.ReadAll(io.NewSectionReader(src, 0, size))
	if err != nil {
		return nil, fmt.Errorf("read container: %w", err)
	}

	records := ScanSignatures(data)
	if records == nil {
		records = []Record{}
	}

	var consumed int64
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec := &records[i]
		if err := sink.writeRecord(rec, bytes.NewReader(data[rec.Offset:rec.End])); err != nil {
			return nil, err
		}

		consumed += rec.Length
	}

	return &Index{
		Method:   MethodSignatureScan,
		Records:  records,
		Consumed: consumed,
	}, nil
}

// discardSink drops payloads; used for in-memory analysis.
type discardSink struct{}

func (discardSink) writeText(*Record, string) error { return nil }

func (discardSink) writeRecord(*Record, io.Reader) error { return nil }

// diskSink writes payloads as files into one extracted directory.
type diskSink struct {
	matcher *compressMatcher
	dir     string
	copyBuf []byte
	opts    ExtractOptions
}

// writeText writes the decoded raw text payload as UTF-8.
func (s *diskSink) writeText(rec *Record, text string) error {
	outPath := filepath.Join(s.dir, rec.Filename)
	data := []byte(text)

	file, needsTruncate, err := openExtractFile(outPath, s.opts.FileMode, int64(len(data)))
	if err != nil {
		return fmt.Errorf("open %s: %w", rec.Filename, err)
	}

	return s.finish(rec, outPath, file, needsTruncate, bytes.NewReader(data), int64(len(data)))
}

// writeRecord stores one payload, LZSS-compressed when rules select it and it shrinks.
func (s *diskSink) writeRecord(rec *Record, payload io.Reader) error {
	outPath := filepath.Join(s.dir, rec.Filename)

	if shouldCompress(s.opts, s.matcher, rec.Filename, rec.Length) {
		stored, compressed, err := s.prepareCompressed(rec, payload)
		if err != nil {
			return err
		}

		if compressed {
			rec.Compressed = true
			rec.StoredSize = int64(len(stored))
		}

		payload = bytes.NewReader(stored)
	}

	expected := rec.Length
	if rec.Compressed {
		expected = rec.StoredSize
	}

	file, needsTruncate, err := openExtractFile(outPath, s.opts.FileMode, expected)
	if err != nil {
		return fmt.Errorf("open %s: %w", rec.Filename, err)
	}

	return s.finish(rec, outPath, file, needsTruncate, payload, expected)
}

// prepareCompressed reads the payload and returns the bytes to store.
// The compressed form is kept only when it is smaller than the raw payload.
func (s *diskSink) prepareCompressed(rec *Record, payload io.Reader) ([]byte, bool, error) {
	var raw bytes.Buffer
	raw.Grow(int(rec.Length))
	n, err := io.CopyBuffer(&raw, payload, s.copyBuf)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", rec.Filename, err)
	}
	if n != rec.Length {
		return nil, false, fmt.Errorf("read %s: short payload (%d/%d)", rec.Filename, n, rec.Length)
	}

	compressed, err := compressLZSS(raw.Bytes())
	if err != nil {
		return nil, false, fmt.Errorf("compress %s: %w", rec.Filename, err)
	}

	if len(compressed) >= raw.Len() {
		return raw.Bytes(), false, nil
	}

	return compressed, true, nil
}

// finish copies payload into an opened output file and reports completion.
func (s *diskSink) finish(rec *Record, outPath string, file *os.File, needsTruncate bool, payload io.Reader, expected int64) error {
	written, copyErr := copyExtractData(file, payload, s.copyBuf)
	if copyErr == nil && needsTruncate {
		if truncErr := file.Truncate(written); truncErr != nil {
			_ = file.Close()
			return fmt.Errorf("truncate %s: %w", rec.Filename, truncErr)
		}
	}

	closeErr := file.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", rec.Filename, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", rec.Filename, closeErr)
	}

	if written != expected {
		return fmt.Errorf("write %s: short payload (%d/%d)", rec.Filename, written, expected)
	}

	if s.opts.OnRecordDone != nil {
		s.opts.OnRecordDone(*rec, outPath)
	}

	return nil
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode, expectedSize int64) (*os.File, bool, error) {
	switch mode {
	case ExtractFileModeAuto:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return file, false, nil
		}

		if !os.IsExist(err) {
			return nil, false, err
		}

		file, truncErr := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		return file, false, truncErr
	case ExtractFileModeOverwriteSmart:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o600)
		if err != nil {
			return nil, false, err
		}

		info, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, false, err
		}

		needsTruncate := info.Size() > expectedSize
		return file, needsTruncate, nil
	case ExtractFileModeTruncate:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		return file, false, err
	case ExtractFileModeCreateOnly:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		return file, false, err
	default:
		return nil, false, fmt.Errorf("unknown extract file mode %q", mode)
	}
}

// copyExtractData copies one payload stream to output file using fixed buffer.
func copyExtractData(dst *os.File, src io.Reader, buf []byte) (int64, error) {
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}

	var total int64
	for {
		readN, readErr := src.Read(buf)
		if readN > 0 {
			writeN, writeErr := dst.Write(buf[:readN])
			total += int64(writeN)

			if writeErr != nil {
				return total, writeErr
			}

			if writeN != readN {
				return total, io.ErrShortWrite
			}
		}

		if readErr == nil {
			continue
		}

		if readErr == io.EOF {
			return total, nil
		}

		return total, readErr
	}
}
