package datacarve

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testIndex() *Index {
	return &Index{
		Method:     MethodLengthPrefixed,
		Source:     "level1.data",
		SourceSHA1: "0123456789abcdef0123456789abcdef01234567",
		SourceSize: 66,
		Consumed:   63,
		Records: []Record{
			{Index: 0, Offset: 0, Length: 45, Kind: KindPNG, Filename: "0000_len_45.png", Reserved: ReservedBytes{1, 2, 3, 255}},
			{Index: 1, Offset: 53, Length: 2, Kind: KindUnknown, Filename: "0001_len_2.bin", Reserved: ReservedBytes{0, 0, 0, 0}},
		},
		Trailing: &Record{Index: 2, Offset: 63, Length: 3, Filename: TrailingFilename},
	}
}

func TestWriteReadIndex_JSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := WriteIndex(dir, testIndex(), ManifestJSON)
	if err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}
	if filepath.Base(path) != ManifestJSONName {
		t.Fatalf("path=%q", path)
	}

	raw := string(readTestFile(t, path))
	if !strings.Contains(raw, `"reserved": [`) || !strings.Contains(raw, "255") {
		t.Fatalf("reserved bytes must serialize as integers:\n%s", raw)
	}
	if !strings.Contains(raw, "\n  \"") || !strings.HasSuffix(raw, "\n") {
		t.Fatalf("expected 2-space indented JSON:\n%s", raw)
	}

	got, err := ReadIndex(dir)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}

	assertIndexEqual(t, got, testIndex())
}

func TestWriteReadIndex_YAMLReplacesJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := WriteIndex(dir, testIndex(), ManifestJSON); err != nil {
		t.Fatalf("WriteIndex(json): %v", err)
	}

	if _, err := WriteIndex(dir, testIndex(), ManifestYAML); err != nil {
		t.Fatalf("WriteIndex(yaml): %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, ManifestJSONName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale JSON manifest must be removed, stat err=%v", err)
	}

	raw := string(readTestFile(t, filepath.Join(dir, ManifestYAMLName)))
	if !strings.Contains(raw, "method: length_prefixed") || !strings.Contains(raw, "kind: png") {
		t.Fatalf("unexpected YAML manifest:\n%s", raw)
	}

	got, err := ReadIndex(dir)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}

	assertIndexEqual(t, got, testIndex())
}

func TestReadIndex_LegacyKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTestFile(t, dir, ManifestJSONName, []byte(`{
  "method": "signature_scan",
  "records": [
    {"idx": 0, "start": 12, "end": 57, "length": 45, "filename": "0000_sig.png"},
    {"index": 1, "start": 60, "end": 74, "length": 14, "filename": "0001_sig.jpg"}
  ]
}`))

	idx, err := ReadIndex(dir)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}

	if idx.Records[0].Index != 0 || idx.Records[0].Offset != 12 || idx.Records[1].Offset != 60 {
		t.Fatalf("legacy keys not mapped: %+v", idx.Records)
	}
	if idx.Records[0].Kind != KindUnknown || idx.Records[0].Reserved != nil {
		t.Fatalf("absent fields must stay zero: %+v", idx.Records[0])
	}
}

func TestReadIndex_RawTextManifestWithoutIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTestFile(t, dir, ManifestJSONName, []byte(`{"method": "glsl_detected", "records": [{"filename": "shader_extracted.glsl"}]}`))

	idx, err := ReadIndex(dir)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(idx.Records) != 1 || idx.Records[0].Index != 0 || idx.Records[0].Filename != RawTextFilename {
		t.Fatalf("unexpected records: %+v", idx.Records)
	}
}

func TestReadIndex_NotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := ReadIndex(dir)
	if !errors.Is(err, ErrManifestNotFound) {
		t.Fatalf("err=%v, want ErrManifestNotFound", err)
	}
	if !strings.Contains(err.Error(), filepath.Join(dir, ManifestJSONName)) {
		t.Fatalf("error must name manifest path: %v", err)
	}
}

func TestIndexValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(idx *Index)
		want   error
	}{
		{name: "valid", mutate: func(*Index) {}},
		{name: "unknown method", mutate: func(idx *Index) { idx.Method = "guess" }, want: ErrUnknownMethod},
		{name: "index gap", mutate: func(idx *Index) { idx.Records[1].Index = 2 }, want: ErrInvalidManifest},
		{name: "nested filename", mutate: func(idx *Index) { idx.Records[0].Filename = "../escape.png" }, want: ErrInvalidExtractPath},
		{name: "backslash filename", mutate: func(idx *Index) { idx.Records[0].Filename = `a\b.png` }, want: ErrInvalidExtractPath},
		{name: "empty filename", mutate: func(idx *Index) { idx.Records[0].Filename = "" }, want: ErrInvalidExtractPath},
		{name: "duplicate filename", mutate: func(idx *Index) { idx.Records[1].Filename = idx.Records[0].Filename }, want: ErrInvalidManifest},
		{name: "manifest collision", mutate: func(idx *Index) { idx.Records[1].Filename = ManifestJSONName }, want: ErrInvalidManifest},
		{name: "trailing on scan", mutate: func(idx *Index) { idx.Method = MethodSignatureScan }, want: ErrInvalidManifest},
		{name: "trailing duplicates record", mutate: func(idx *Index) { idx.Trailing.Filename = "0001_len_2.bin" }, want: ErrInvalidManifest},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			idx := testIndex()
			tc.mutate(idx)

			err := idx.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}

				return
			}

			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate err=%v, want %v", err, tc.want)
			}
		})
	}

	var nilIndex *Index
	if err := nilIndex.Validate(); !errors.Is(err, ErrNilIndex) {
		t.Fatalf("nil Validate err=%v", err)
	}
}

func TestReservedBytes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   ReservedBytes
		want [4]byte
	}{
		{name: "nil", in: nil, want: [4]byte{}},
		{name: "short", in: ReservedBytes{7}, want: [4]byte{7, 0, 0, 0}},
		{name: "exact", in: ReservedBytes{1, 2, 3, 4}, want: [4]byte{1, 2, 3, 4}},
		{name: "long", in: ReservedBytes{1, 2, 3, 4, 5, 6}, want: [4]byte{1, 2, 3, 4}},
	}

	for _, tc := range testCases {
		if got := tc.in.Normalized(); got != tc.want {
			t.Fatalf("%s: Normalized()=%v, want %v", tc.name, got, tc.want)
		}
	}

	var rb ReservedBytes
	if err := rb.UnmarshalJSON([]byte("[1, 256]")); !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("out-of-range err=%v, want ErrInvalidManifest", err)
	}
	if err := rb.UnmarshalJSON([]byte(`"AQID"`)); err == nil {
		t.Fatal("base64 string must be rejected")
	}
}

func TestWriteIndex_UnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := WriteIndex(t.TempDir(), testIndex(), "toml")
	if !errors.Is(err, ErrUnknownManifestFormat) {
		t.Fatalf("err=%v, want ErrUnknownManifestFormat", err)
	}
}

// assertIndexEqual compares manifest fields that survive serialization.
func assertIndexEqual(t *testing.T, got *Index, want *Index) {
	t.Helper()

	if got.Method != want.Method || got.Source != want.Source || got.SourceSHA1 != want.SourceSHA1 ||
		got.SourceSize != want.SourceSize || got.Consumed != want.Consumed {
		t.Fatalf("index header=%+v, want %+v", got, want)
	}

	if len(got.Records) != len(want.Records) {
		t.Fatalf("records=%d, want %d", len(got.Records), len(want.Records))
	}

	for i := range want.Records {
		assertRecordEqual(t, got.Records[i], want.Records[i])
	}

	if (got.Trailing == nil) != (want.Trailing == nil) {
		t.Fatalf("trailing=%v, want %v", got.Trailing, want.Trailing)
	}
	if want.Trailing != nil {
		assertRecordEqual(t, *got.Trailing, *want.Trailing)
	}
}

func assertRecordEqual(t *testing.T, got Record, want Record) {
	t.Helper()

	if got.Index != want.Index || got.Offset != want.Offset || got.Length != want.Length ||
		got.End != want.End || got.Filename != want.Filename || got.Kind != want.Kind ||
		got.Compressed != want.Compressed || got.StoredSize != want.StoredSize ||
		!bytes.Equal(got.Reserved, want.Reserved) {
		t.Fatalf("record=%+v, want %+v", got, want)
	}
}
