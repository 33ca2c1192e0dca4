// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"log/slog"
	"time"

	"github.com/woozymasta/pathrules"
)

// Internal binary layout and format limits.
const (
	recordHeaderSize = 8       // LE32 length + 4 reserved bytes
	reservedSize     = 4       // opaque reserved field width
	classifyPrefix   = 16      // payload bytes inspected for length-prefixed naming
	jfifSearchWindow = 64      // window for the digits+JFIF heuristic
	maxRecordLength  = 1 << 32 // addressable by the 32-bit length field
)

// Output layout names.
const (
	// DefaultOutputRoot is the extraction root used when ExtractOptions.OutputRoot is empty.
	DefaultOutputRoot = "assets/extracted"
	// ManifestJSONName is the JSON manifest filename inside an extracted directory.
	ManifestJSONName = "index.json"
	// ManifestYAMLName is the YAML manifest filename inside an extracted directory.
	ManifestYAMLName = "index.yaml"
	// RawTextFilename is the output file for raw text payloads.
	RawTextFilename = "shader_extracted.glsl"
	// TrailingFilename stores bytes left after the last length-prefixed record.
	TrailingFilename = "trailing.bin"
)

// Default extraction tuning values.
const (
	DefaultMinCompressSize = 512
	DefaultMaxCompressSize = 16 * 1024 * 1024
	DefaultWriteBuffer     = 1024 * 1024
)

// Method names the strategy that produced an extraction index.
type Method string

// Extraction strategies, in probing priority order.
const (
	// MethodGLSLDetected marks a container holding one raw text payload.
	MethodGLSLDetected Method = "glsl_detected"
	// MethodLengthPrefixed marks a container parsed as (length, reserved, payload) records.
	MethodLengthPrefixed Method = "length_prefixed"
	// MethodSignatureScan marks a container carved by leading-signature search.
	MethodSignatureScan Method = "signature_scan"
)

// Known reports whether m is one of the extraction methods.
func (m Method) Known() bool {
	switch m {
	case MethodGLSLDetected, MethodLengthPrefixed, MethodSignatureScan:
		return true
	default:
		return false
	}
}

// Lossless reports whether a rebuild from this method can reproduce the source container.
func (m Method) Lossless() bool {
	return m == MethodLengthPrefixed
}

// Record describes one extracted resource.
type Record struct {
	// Reserved holds the opaque 4-byte field of length-prefixed framing.
	Reserved ReservedBytes `json:"reserved,omitempty" yaml:"reserved,omitempty"`
	// Filename is the output file name inside the extracted directory.
	Filename string `json:"filename" yaml:"filename"`
	// Index is the 0-based discovery order and rebuild replay order.
	Index int `json:"index" yaml:"index"`
	// Offset is the record header offset (length-prefixed) or resource start (signature scan).
	Offset int64 `json:"offset" yaml:"offset"`
	// Length is the payload size in bytes.
	Length int64 `json:"length" yaml:"length"`
	// End is the exclusive resource end for signature scan records.
	End int64 `json:"end,omitempty" yaml:"end,omitempty"`
	// StoredSize is on-disk size of an LZSS-stored blob.
	StoredSize int64 `json:"stored_size,omitempty" yaml:"stored_size,omitempty"`
	// Kind is the resource classification by leading signature.
	Kind Kind `json:"kind" yaml:"kind"`
	// Compressed reports whether the extracted file holds LZSS data instead of raw payload.
	Compressed bool `json:"compressed,omitempty" yaml:"compressed,omitempty"`
}

// PayloadOffset returns the source offset of the first payload byte.
func (r *Record) PayloadOffset(method Method) int64 {
	if method == MethodLengthPrefixed {
		return r.Offset + recordHeaderSize
	}

	return r.Offset
}

// Index is the manifest of one extraction run.
type Index struct {
	// Trailing describes bytes after the last length-prefixed record, when any.
	Trailing *Record `json:"trailing,omitempty" yaml:"trailing,omitempty"`
	// Method is the strategy that produced Records.
	Method Method `json:"method" yaml:"method"`
	// Source is the container base name.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	// SourceSHA1 is hex SHA1 of the whole source container.
	SourceSHA1 string `json:"source_sha1,omitempty" yaml:"source_sha1,omitempty"`
	// Records are ordered by Index.
	Records []Record `json:"records" yaml:"records"`
	// SourceSize is the source container size in bytes.
	SourceSize int64 `json:"source_size,omitempty" yaml:"source_size,omitempty"`
	// Consumed is the number of source bytes covered by records and their framing.
	Consumed int64 `json:"consumed,omitempty" yaml:"consumed,omitempty"`
}

// ManifestFormat selects manifest serialization.
type ManifestFormat string

// Supported manifest formats.
const (
	// ManifestJSON writes index.json with 2-space indentation.
	ManifestJSON ManifestFormat = "json"
	// ManifestYAML writes index.yaml.
	ManifestYAML ManifestFormat = "yaml"
)

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeAuto first tries create-only, then falls back to truncate for existing files.
	ExtractFileModeAuto ExtractFileMode = "auto"
	// ExtractFileModeOverwriteSmart rewrites files in place and truncates only when existing file is larger.
	ExtractFileModeOverwriteSmart ExtractFileMode = "overwrite_smart"
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// ExtractOptions configures Run.
type ExtractOptions struct {
	// Logger receives progress and fallback messages; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// OnRecordDone is called after one record is fully written to disk.
	OnRecordDone func(rec Record, outputPath string) `json:"-" yaml:"-"`
	// OutputRoot is the parent of per-container output directories.
	OutputRoot string `json:"output_root,omitempty" yaml:"output_root,omitempty"`
	// OutputDir overrides <OutputRoot>/<container basename> when set.
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// ManifestFormat selects manifest serialization (JSON by default).
	ManifestFormat ManifestFormat `json:"manifest_format,omitempty" yaml:"manifest_format,omitempty"`
	// Compress defines ordered filename rules for LZSS storage of extracted blobs.
	// Empty rule set means every blob is stored raw.
	Compress []pathrules.Rule `json:"compress,omitempty" yaml:"compress,omitempty"`
	// CompressMatcherOptions control compression rule matching.
	CompressMatcherOptions pathrules.MatcherOptions `json:"compress_matcher_options,omitzero" yaml:"compress_matcher_options,omitzero"`
	// MinCompressSize disables compression for blobs smaller than this size.
	MinCompressSize uint32 `json:"min_compress_size,omitempty" yaml:"min_compress_size,omitempty"`
	// MaxCompressSize disables compression for blobs larger than this size.
	MaxCompressSize uint32 `json:"max_compress_size,omitempty" yaml:"max_compress_size,omitempty"`
}

// RebuildOptions configures Rebuild and RebuildTo.
type RebuildOptions struct {
	// Logger receives progress messages; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// OnRecordDone is called after one record is written to the output stream.
	OnRecordDone func(rec Record, sourcePath string, written int64) `json:"-" yaml:"-"`
	// WriterBufferSize is buffered writer size in bytes.
	WriterBufferSize int `json:"writer_buffer_size,omitempty" yaml:"writer_buffer_size,omitempty"`
	// BackupKeep controls how many previous outputs are kept as backups.
	// 0 replaces the output, 1 keeps `<output>.bak`, N keeps `.bak` + `.bak.1..N-1`.
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
	// DropReserved writes zero reserved bytes instead of the recorded ones.
	DropReserved bool `json:"drop_reserved,omitempty" yaml:"drop_reserved,omitempty"`
}

// RebuildResult contains rebuild output statistics.
type RebuildResult struct {
	// SHA1 is hex SHA1 of the written container.
	SHA1 string `json:"sha1" yaml:"sha1"`
	// WrittenRecords is number of records written.
	WrittenRecords int `json:"written_records" yaml:"written_records"`
	// Replaced is number of records taken from replacement paths.
	Replaced int `json:"replaced,omitempty" yaml:"replaced,omitempty"`
	// Size is total bytes written.
	Size int64 `json:"size" yaml:"size"`
	// Duration is end-to-end rebuild duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	// MatchesSource reports whether SHA1 equals the manifest source hash.
	MatchesSource bool `json:"matches_source,omitempty" yaml:"matches_source,omitempty"`
	// Lossless reports whether the manifest method supports lossless rebuild.
	Lossless bool `json:"lossless,omitempty" yaml:"lossless,omitempty"`
}

// TreeOptions configures RebuildTree.
type TreeOptions struct {
	// Rebuild options applied to every selected directory.
	Rebuild RebuildOptions `json:"rebuild,omitzero" yaml:"rebuild,omitzero"`
	// Select defines ordered directory name rules; empty means DefaultSelectPattern.
	Select []pathrules.Rule `json:"select,omitempty" yaml:"select,omitempty"`
	// SelectMatcherOptions control selection rule matching.
	SelectMatcherOptions pathrules.MatcherOptions `json:"select_matcher_options,omitzero" yaml:"select_matcher_options,omitzero"`
}

// TreeResult is the outcome of one directory rebuilt by RebuildTree.
type TreeResult struct {
	// Result holds rebuild statistics.
	Result *RebuildResult `json:"result" yaml:"result"`
	// ManifestDir is the extracted directory.
	ManifestDir string `json:"manifest_dir" yaml:"manifest_dir"`
	// OutputPath is the rebuilt container path.
	OutputPath string `json:"output_path" yaml:"output_path"`
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.OutputRoot == "" {
		opts.OutputRoot = DefaultOutputRoot
	}

	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeAuto
	}

	if opts.ManifestFormat == "" {
		opts.ManifestFormat = ManifestJSON
	}

	if opts.MinCompressSize == 0 {
		opts.MinCompressSize = DefaultMinCompressSize
	}

	if opts.MaxCompressSize == 0 || opts.MaxCompressSize <= opts.MinCompressSize {
		opts.MaxCompressSize = DefaultMaxCompressSize
	}

	if opts.CompressMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.CompressMatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.CompressMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.CompressMatcherOptions.DefaultAction = pathrules.ActionExclude
	}

	opts.Logger = loggerOrDiscard(opts.Logger)
}

// applyDefaults fills zero-valued rebuild options with defaults.
func (opts *RebuildOptions) applyDefaults() {
	if opts.WriterBufferSize < 4096 {
		opts.WriterBufferSize = DefaultWriteBuffer
	}

	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}

	opts.Logger = loggerOrDiscard(opts.Logger)
}

// applyDefaults fills zero-valued tree options with defaults.
func (opts *TreeOptions) applyDefaults() {
	opts.Rebuild.applyDefaults()

	if len(opts.Select) == 0 {
		opts.Select = []pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: DefaultSelectPattern}}
	}

	if opts.SelectMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.SelectMatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.SelectMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.SelectMatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// loggerOrDiscard returns l, or a logger that drops every record when l is nil.
func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}

	return slog.New(slog.DiscardHandler)
}
