// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	// defaultRebuildWriterPool reuses default-sized bufio writers between rebuilds.
	defaultRebuildWriterPool = sync.Pool{
		New: func() any {
			return bufio.NewWriterSize(io.Discard, DefaultWriteBuffer)
		},
	}
	// defaultRebuildCopyBufferPool reuses payload copy buffers between rebuilds.
	defaultRebuildCopyBufferPool = sync.Pool{
		New: func() any {
			return new([rebuildCopyBufferSize]byte)
		},
	}
)

const (
	// rebuildCopyBufferSize is per-rebuild temporary buffer used by streaming payload copy.
	rebuildCopyBufferSize = 64 * 1024
)

// rebuildPlan holds every resolved input of one rebuild.
type rebuildPlan struct {
	trailing *blobSource
	records  []blobSource
	replaced int
}

// Rebuild reassembles a container at outputPath from the manifest and blobs in manifestDir.
// replacements maps record index to an alternate raw blob path.
// Every source is resolved before writing; the output is written to a temporary file and
// renamed into place only after it is complete, so a failed rebuild leaves no partial container.
func Rebuild(
	ctx context.Context,
	outputPath string,
	manifestDir string,
	replacements map[int]string,
	opts RebuildOptions,
) (*RebuildResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()

	idx, err := ReadIndex(manifestDir)
	if err != nil {
		return nil, err
	}

	plan, err := resolveRebuildPlan(manifestDir, idx, replacements)
	if err != nil {
		return nil, err
	}

	outDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(outDir, filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temporary output: %w", err)
	}

	tmpPath := tmp.Name()
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	res, err := writeRebuild(ctx, tmp, idx, plan, opts)
	if err != nil {
		discard()
		return nil, err
	}

	if err := tmp.Sync(); err != nil {
		discard()
		return nil, fmt.Errorf("sync output: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("close output: %w", err)
	}

	if err := commitRebuildOutput(tmpPath, outputPath, opts.BackupKeep); err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	opts.Logger.Info("rebuild done",
		"path", outputPath,
		"method", idx.Method,
		"records", res.WrittenRecords,
		"replaced", res.Replaced,
		"matches_source", res.MatchesSource,
	)

	return res, nil
}

// RebuildTo streams a rebuilt container into w. When idx is nil it is read from manifestDir.
func RebuildTo(
	ctx context.Context,
	w io.Writer,
	manifestDir string,
	idx *Index,
	replacements map[int]string,
	opts RebuildOptions,
) (*RebuildResult, error) {
	if w == nil {
		return nil, ErrNilWriter
	}

	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()

	if idx == nil {
		loaded, err := ReadIndex(manifestDir)
		if err != nil {
			return nil, err
		}

		idx = loaded
	} else if err := idx.Validate(); err != nil {
		return nil, err
	}

	plan, err := resolveRebuildPlan(manifestDir, idx, replacements)
	if err != nil {
		return nil, err
	}

	return writeRebuild(ctx, w, idx, plan, opts)
}

// resolveRebuildPlan resolves every blob of the manifest, failing on the first missing one.
func resolveRebuildPlan(manifestDir string, idx *Index, replacements map[int]string) (*rebuildPlan, error) {
	keys := make([]int, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}

	slices.Sort(keys)
	for _, k := range keys {
		if k < 0 || k >= len(idx.Records) {
			return nil, fmt.Errorf("%w: index %d (manifest has %d records)", ErrUnknownRecord, k, len(idx.Records))
		}
	}

	plan := &rebuildPlan{records: make([]blobSource, len(idx.Records))}
	for i := range idx.Records {
		rec := &idx.Records[i]
		if alt, ok := replacements[rec.Index]; ok {
			size, err := statBlob(alt, "replacement")
			if err != nil {
				return nil, err
			}

			if _, err := checkedLength(rec.Filename, size); err != nil {
				return nil, err
			}

			plan.records[i] = blobSource{path: alt, size: size, replaced: true}
			plan.replaced++
			continue
		}

		src, err := resolveExtractedBlob(manifestDir, rec)
		if err != nil {
			return nil, err
		}

		plan.records[i] = src
	}

	if idx.Trailing != nil {
		src, err := resolveExtractedBlob(manifestDir, idx.Trailing)
		if err != nil {
			return nil, err
		}

		plan.trailing = &src
	}

	return plan, nil
}

// resolveExtractedBlob resolves the originally extracted file of one record.
func resolveExtractedBlob(manifestDir string, rec *Record) (blobSource, error) {
	path := filepath.Join(manifestDir, rec.Filename)
	size, err := statBlob(path, "expected")
	if err != nil {
		return blobSource{}, err
	}

	if rec.Compressed {
		// The stored file holds LZSS data; the payload size is the recorded length.
		size = rec.Length
	}

	if _, err := checkedLength(rec.Filename, size); err != nil {
		return blobSource{}, err
	}

	return blobSource{path: path, size: size, compressed: rec.Compressed}, nil
}

// writeRebuild writes framed records and trailing bytes into out.
func writeRebuild(
	ctx context.Context,
	out io.Writer,
	idx *Index,
	plan *rebuildPlan,
	opts RebuildOptions,
) (*RebuildResult, error) {
	startedAt := time.Now()

	if !idx.Method.Lossless() {
		opts.Logger.Warn("manifest method does not capture gap bytes, rebuild will differ from source",
			"method", idx.Method)
	}

	hashSink, digest := newSHA1Writer()
	w, releaseWriter := acquireRebuildWriter(io.MultiWriter(out, hashSink), opts.WriterBufferSize)
	defer releaseWriter()

	copyBuf, releaseCopyBuffer := acquireRebuildCopyBuffer()
	defer releaseCopyBuffer()

	var total int64
	var header [recordHeaderSize]byte
	for i := range idx.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec := idx.Records[i]
		src := plan.records[i]

		length, err := checkedLength(rec.Filename, src.size)
		if err != nil {
			return nil, err
		}

		binary.LittleEndian.PutUint32(header[0:4], length)
		reserved := [reservedSize]byte{}
		if !opts.DropReserved {
			reserved = rec.Reserved.Normalized()
		}

		copy(header[4:8], reserved[:])
		if _, err := w.Write(header[:]); err != nil {
			return nil, fmt.Errorf("write record %d header: %w", rec.Index, err)
		}

		written, err := copyBlob(w, src, copyBuf)
		if err != nil {
			return nil, fmt.Errorf("write record %d: %w", rec.Index, err)
		}

		total += recordHeaderSize + written
		opts.Logger.Debug("record written", "index", rec.Index, "path", src.path, "length", written, "replaced", src.replaced)

		if opts.OnRecordDone != nil {
			opts.OnRecordDone(rec, src.path, written)
		}
	}

	if plan.trailing != nil {
		written, err := copyBlob(w, *plan.trailing, copyBuf)
		if err != nil {
			return nil, fmt.Errorf("write trailing bytes: %w", err)
		}

		total += written
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush output: %w", err)
	}

	sum := digest()

	return &RebuildResult{
		WrittenRecords: len(idx.Records),
		Replaced:       plan.replaced,
		Size:           total,
		SHA1:           sum,
		MatchesSource:  idx.SourceSHA1 != "" && strings.EqualFold(sum, idx.SourceSHA1),
		Lossless:       idx.Method.Lossless(),
		Duration:       time.Since(startedAt),
	}, nil
}

// copyBlob streams exactly src.size payload bytes from one blob into dst.
func copyBlob(dst io.Writer, src blobSource, copyBuf []byte) (int64, error) {
	rc, err := src.open()
	if err != nil {
		return 0, err
	}

	written, copyErr := copyPayloadBounded(dst, rc, src.size, copyBuf)
	closeErr := rc.Close()
	if copyErr != nil {
		return written, fmt.Errorf("copy %s: %w", src.path, copyErr)
	}
	if closeErr != nil {
		return written, fmt.Errorf("close %s: %w", src.path, closeErr)
	}
	if written != src.size {
		return written, fmt.Errorf("copy %s: short read (%d/%d)", src.path, written, src.size)
	}

	return written, nil
}

// commitRebuildOutput moves a finished temporary file over outputPath, rotating backups.
func commitRebuildOutput(tmpPath string, outputPath string, backupKeep int) error {
	backupPath := outputPath + ".bak"
	movedToBackup := false

	if backupKeep > 0 {
		if err := prepareBackupSlot(backupPath, backupKeep); err != nil {
			return err
		}

		moved, err := renameIfExists(outputPath, backupPath)
		if err != nil {
			return fmt.Errorf("move output to backup: %w", err)
		}

		movedToBackup = moved
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		if movedToBackup {
			if rollbackErr := rollbackFromBackup(outputPath, backupPath); rollbackErr != nil {
				return fmt.Errorf("finalize output: %v (rollback failed: %v)", err, rollbackErr)
			}
		}

		return fmt.Errorf("finalize output: %w", err)
	}

	return nil
}

// acquireRebuildWriter returns a buffered writer and release callback.
func acquireRebuildWriter(out io.Writer, size int) (*bufio.Writer, func()) {
	if size == DefaultWriteBuffer {
		w := defaultRebuildWriterPool.Get().(*bufio.Writer) //nolint:forcetypeassert // pool contains only *bufio.Writer
		w.Reset(out)

		return w, func() {
			w.Reset(io.Discard)
			defaultRebuildWriterPool.Put(w)
		}
	}

	return bufio.NewWriterSize(out, size), func() {}
}

// acquireRebuildCopyBuffer returns reusable payload copy buffer and release callback.
func acquireRebuildCopyBuffer() ([]byte, func()) {
	arr := defaultRebuildCopyBufferPool.Get().(*[rebuildCopyBufferSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
	buf := arr[:]

	return buf, func() {
		defaultRebuildCopyBufferPool.Put(arr)
	}
}

// copyPayloadBounded streams payload from src to dst and enforces strict size limit.
func copyPayloadBounded(dst io.Writer, src io.Reader, limit int64, buf []byte) (int64, error) {
	if dst == nil {
		return 0, ErrNilWriter
	}
	if src == nil {
		return 0, ErrNilReader
	}
	if limit < 0 {
		return 0, ErrSizeOverflow
	}
	if len(buf) == 0 {
		buf = make([]byte, 32*1024)
	}

	var written int64
	emptyReads := 0
	for written < limit {
		chunkSize := len(buf)
		remaining := limit - written
		if int64(chunkSize) > remaining {
			chunkSize = int(remaining)
		}

		n, readErr := src.Read(buf[:chunkSize])
		if n > 0 {
			emptyReads = 0
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)

			if writeErr != nil {
				return written, writeErr
			}
			if nw != n {
				return written, io.ErrShortWrite
			}
		}
		if n == 0 && readErr == nil {
			emptyReads++
			if emptyReads > 100 {
				return written, io.ErrNoProgress
			}

			continue
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}

			return written, readErr
		}
	}

	// If we consumed exactly the limit, probe one extra byte to ensure source is not longer.
	if written == limit {
		var probe [1]byte
		n, err := src.Read(probe[:])
		if n > 0 {
			return written, ErrSizeOverflow
		}
		if err != nil && err != io.EOF {
			return written, err
		}
	}

	return written, nil
}

// checkedLength validates blob size for the 32-bit length field.
func checkedLength(name string, size int64) (uint32, error) {
	if size < 0 || size >= maxRecordLength {
		return 0, fmt.Errorf("%w: blob %s size %d", ErrSizeOverflow, name, size)
	}

	return uint32(size), nil //nolint:gosec // bounded by maxRecordLength check above
}
