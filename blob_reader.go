// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/woozymasta/lzss"
)

// blobSource is one resolved rebuild input.
type blobSource struct {
	path       string
	size       int64
	compressed bool
	replaced   bool
}

// decompressReadCloser joins a decompressed stream with the file it decodes.
type decompressReadCloser struct {
	*io.PipeReader
	file *os.File
}

// Close stops the decoder and closes the underlying file.
func (d decompressReadCloser) Close() error {
	_ = d.PipeReader.Close()
	return d.file.Close()
}

// statBlob resolves size of a blob on disk, mapping absence to ErrBlobNotFound.
func statBlob(path string, kind string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s blob %s", ErrBlobNotFound, kind, path)
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s blob %s: %w", kind, path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s blob %s is a directory", ErrBlobNotFound, kind, path)
	}

	return info.Size(), nil
}

// open returns the raw payload stream of the blob.
// LZSS-stored blobs are decompressed on the fly.
func (b blobSource) open() (io.ReadCloser, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", b.path, err)
	}

	if !b.compressed {
		return f, nil
	}

	outLen, err := checkedInt64ToInt(b.size)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("resolve output size for %s: %w", b.path, err)
	}

	pr, pw := io.Pipe()
	go streamDecompressBlob(b.path, pw, f, outLen)

	return decompressReadCloser{PipeReader: pr, file: f}, nil
}

// streamDecompressBlob decodes one stored blob into pipe writer.
func streamDecompressBlob(name string, dst *io.PipeWriter, src io.Reader, outLen int) {
	_, err := lzss.DecompressToWriter(dst, src, outLen, nil)
	if err != nil {
		_ = dst.CloseWithError(fmt.Errorf("decompress blob %s: %w", name, err))
		return
	}

	_ = dst.Close()
}

// checkedInt64ToInt converts int64 to int with platform-safe overflow check.
func checkedInt64ToInt(v int64) (int, error) {
	if v < 0 || v > math.MaxInt {
		return 0, ErrSizeOverflow
	}

	return int(v), nil
}
