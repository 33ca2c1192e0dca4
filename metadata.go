// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Inspect runs the strategy chain over a container and returns its index without writing
// any file. Length-prefixed containers are streamed; only the signature scan fallback
// loads the whole container.
func Inspect(ctx context.Context, containerPath string) (*Index, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	f, size, err := openFileWithSize(containerPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	idx, err := runStrategies(ctx, f, size, discardSink{}, loggerOrDiscard(nil))
	if err != nil {
		return nil, err
	}

	idx.Source = filepath.Base(containerPath)
	return idx, nil
}

// openFileWithSize opens a file and returns a handle plus current size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open container: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat: %w", err)
	}

	return f, fi.Size(), nil
}
