// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// maxSanitizedSegmentLen limits one path segment to common filesystem-safe length.
	maxSanitizedSegmentLen = 240
)

var (
	// reservedDOSNames contains case-insensitive reserved DOS/Windows/OS2 device names.
	reservedDOSNames = map[string]struct{}{
		"$":        {},
		"$addstor": {},
		"$idle$":   {},
		"386max$$": {},
		"4dosstak": {},
		"82164a":   {},
		"aux":      {},
		"cloak$$$": {},
		"clock":    {},
		"clock$":   {},
		"com1":     {},
		"com2":     {},
		"com3":     {},
		"com4":     {},
		"com5":     {},
		"com6":     {},
		"com7":     {},
		"com8":     {},
		"com9":     {},
		"con":      {},
		"config$":  {},
		"dblssys$": {},
		"dpmixxx0": {},
		"dpmsxxx0": {},
		"emm$$$$$": {},
		"emmqxxx0": {},
		"emmxxxq0": {},
		"emmxxxx0": {},
		"hmaldsys": {},
		"ifs$hlp$": {},
		"kbd$":     {},
		"keybd$":   {},
		"lpt1":     {},
		"lpt2":     {},
		"lpt3":     {},
		"lpt4":     {},
		"lpt5":     {},
		"lpt6":     {},
		"lpt7":     {},
		"lpt8":     {},
		"lpt9":     {},
		"lst":      {},
		"mouse$":   {},
		"ndosstak": {},
		"nul":      {},
		"pc$mouse": {},
		"plt":      {},
		"pointer$": {},
		"prn":      {},
		"protman$": {},
		"qdpmi$$$": {},
		"qemm386$": {},
		"qextxxx0": {},
		"qmmxxxx0": {},
		"screen$":  {},
		"vcpixxx0": {},
		"xmsxxxx0": {},
	}
)

// SanitizeName rewrites a container base name into a deterministic filesystem-safe
// directory name. Separators, control runes and reserved device names are neutralized.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isUnsafeControlCharRune(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			b.WriteRune('_')
			continue
		}

		b.WriteRune(r)
	}

	sanitized := strings.TrimRight(b.String(), ". ")
	if sanitized == "" {
		return "_"
	}

	if isReservedDeviceName(sanitized) {
		sanitized = "_" + sanitized
	}

	if len(sanitized) > maxSanitizedSegmentLen {
		sanitized = shortenSegmentDeterministic(sanitized, maxSanitizedSegmentLen)
	}

	return sanitized
}

// containerOutputDir resolves the per-container output directory.
func containerOutputDir(containerPath string, opts ExtractOptions) (string, error) {
	if opts.OutputDir != "" {
		return opts.OutputDir, nil
	}

	base := filepath.Base(containerPath)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: container path %q", ErrInvalidExtractPath, containerPath)
	}

	return filepath.Join(opts.OutputRoot, SanitizeName(base)), nil
}

// isUnsafeControlCharRune reports whether rune is unsafe for file names and should be replaced.
func isUnsafeControlCharRune(r rune) bool {
	if unicode.IsControl(r) || unicode.In(r, unicode.Cf) {
		return true
	}

	return r == '\uFFFD'
}

// isReservedDeviceName reports whether name matches reserved DOS/Windows/OS2 device identifier.
func isReservedDeviceName(name string) bool {
	candidate := strings.TrimSpace(name)
	candidate = strings.TrimRight(candidate, ". :")
	candidate = strings.ToLower(candidate)
	if dot := strings.IndexByte(candidate, '.'); dot >= 0 {
		candidate = candidate[:dot]
	}
	candidate = strings.TrimRight(candidate, ". :")
	if candidate == "" {
		return false
	}

	_, ok := reservedDOSNames[candidate]
	return ok
}

// shortenSegmentDeterministic shortens long segment while preserving deterministic identity suffix.
func shortenSegmentDeterministic(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	if maxLen <= 10 {
		return value[:maxLen]
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	hashPart := fmt.Sprintf("~%08x", h.Sum32())
	prefixLen := max(maxLen-len(hashPart), 1)

	return value[:prefixLen] + hashPart
}
