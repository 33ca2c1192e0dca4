package datacarve

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/woozymasta/pathrules"
)

// includeRules builds include rules from raw patterns for concise test setup.
func includeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		rules = append(rules, pathrules.Rule{
			Action:  pathrules.ActionInclude,
			Pattern: pattern,
		})
	}

	return rules
}

// testRecord is one length-prefixed record for container fixtures.
type testRecord struct {
	payload  []byte
	reserved [4]byte
}

// buildLengthPrefixed frames records and appends tail verbatim.
func buildLengthPrefixed(tail []byte, records ...testRecord) []byte {
	var buf bytes.Buffer
	for _, rec := range records {
		var header [8]byte
		binary.LittleEndian.PutUint32(header[0:4], uint32(len(rec.payload))) //nolint:gosec // test fixture sizes are small
		copy(header[4:8], rec.reserved[:])
		buf.Write(header[:])
		buf.Write(rec.payload)
	}

	buf.Write(tail)
	return buf.Bytes()
}

// testPNG returns a minimal PNG: signature, IHDR and IEND chunks (45 bytes).
func testPNG() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'})
	writePNGChunk(&buf, "IHDR", make([]byte, 13))
	writePNGChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

// writePNGChunk writes one PNG chunk with a zero CRC.
func writePNGChunk(buf *bytes.Buffer, typ string, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data))) //nolint:gosec // test fixture sizes are small
	buf.Write(length[:])
	buf.WriteString(typ)
	buf.Write(data)
	buf.Write([]byte{0, 0, 0, 0})
}

// testJPEG returns a minimal JPEG-shaped blob ending with EOI (14 bytes).
func testJPEG() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0xFF, 0xD9}
}

// writeTestFile writes data to dir/name and returns the path.
func writeTestFile(t *testing.T, dir string, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return path
}

// readTestFile reads a file or fails the test.
func readTestFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return data
}
