// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import "errors"

// Sentinel errors for extraction and rebuild. Use errors.Is in callers.
var (
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrNilWriter means the writer is nil.
	ErrNilWriter = errors.New("writer is nil")
	// ErrNilIndex means the extraction index is nil.
	ErrNilIndex = errors.New("extraction index is nil")
	// ErrManifestNotFound means the manifest file is absent from the extracted directory.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrInvalidManifest means the manifest is malformed or breaks record invariants.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrUnknownMethod means the manifest names an extraction method this package does not know.
	ErrUnknownMethod = errors.New("unknown extraction method")
	// ErrUnknownManifestFormat means the requested manifest serialization is not supported.
	ErrUnknownManifestFormat = errors.New("unknown manifest format")
	// ErrBlobNotFound means a replacement or extracted blob is missing during rebuild.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrUnknownRecord means a replacement targets an index absent from the manifest.
	ErrUnknownRecord = errors.New("replacement targets unknown record")
	// ErrAmbiguousReplacement means two replacement files map to the same record.
	ErrAmbiguousReplacement = errors.New("ambiguous replacement")
	// ErrSizeOverflow means a blob does not fit the 32-bit length field.
	ErrSizeOverflow = errors.New("size exceeds uint32 length field")
	// ErrInvalidExtractPath means a container name or record filename is unusable as output path.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrInvalidCompressPattern means one or more compression rules are invalid.
	ErrInvalidCompressPattern = errors.New("invalid compress rules")
	// ErrInvalidSelectPattern means one or more tree selection rules are invalid.
	ErrInvalidSelectPattern = errors.New("invalid select rules")
)
