// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

package datacarve

import (
	"bytes"
	"fmt"
)

// Kind classifies an embedded resource by its leading signature.
type Kind uint8

// Resource kinds. KindUnknown is the zero value and still produces a ".bin" file.
const (
	KindUnknown Kind = iota
	KindPNG
	KindJPEG
	KindOGG
	// KindRIFF covers every RIFF container; output is named ".wav".
	KindRIFF
	KindZIP
	// KindGLSL is the raw text payload behind GLSLMagic.
	KindGLSL
)

var (
	kindNames = [...]string{"unknown", "png", "jpeg", "ogg", "riff", "zip", "glsl"}
	kindExts  = [...]string{".bin", ".png", ".jpg", ".ogg", ".wav", ".zip", ".glsl"}
)

// String returns the manifest name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Ext returns the output file extension of the kind.
func (k Kind) Ext() string {
	if int(k) < len(kindExts) {
		return kindExts[k]
	}

	return kindExts[KindUnknown]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown kind %d", uint8(k))
	}

	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text decodes as KindUnknown.
func (k *Kind) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = KindUnknown
		return nil
	}

	for i, name := range kindNames {
		if string(text) == name {
			*k = Kind(i) //nolint:gosec // bounded by kindNames length
			return nil
		}
	}

	return fmt.Errorf("unknown kind %q", text)
}

// Signature is one registered leading byte pattern.
type Signature struct {
	Magic []byte
	Kind  Kind
}

// GLSLMagic marks a container whose remainder is one raw text payload.
var GLSLMagic = [8]byte{0xE8, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// signatures is the registered table. Order breaks ties and is part of the contract.
var signatures = []Signature{
	{Magic: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, Kind: KindPNG},
	{Magic: []byte{0xFF, 0xD8, 0xFF}, Kind: KindJPEG},
	{Magic: []byte("OggS"), Kind: KindOGG},
	{Magic: []byte("RIFF"), Kind: KindRIFF},
	{Magic: []byte{'P', 'K', 0x03, 0x04}, Kind: KindZIP},
}

var (
	pngIEND   = []byte("IEND")
	jpegEOI   = []byte{0xFF, 0xD9}
	oggMarker = []byte("OggS")
	jfifTag   = []byte("JFIF")
)

// Signatures returns a copy of the registered signature table in registration order.
func Signatures() []Signature {
	out := make([]Signature, len(signatures))
	for i, sig := range signatures {
		out[i] = Signature{Magic: bytes.Clone(sig.Magic), Kind: sig.Kind}
	}

	return out
}

// Classify returns the kind of the resource starting at b[0].
// Only the leading 64 bytes are inspected.
func Classify(b []byte) Kind {
	for _, sig := range signatures {
		if bytes.HasPrefix(b, sig.Magic) {
			return sig.Kind
		}
	}

	if looksLikeBareJFIF(b) {
		return KindJPEG
	}

	return KindUnknown
}

// looksLikeBareJFIF matches JPEG payloads that lost their SOI marker:
// leading ASCII digits and a JFIF tag close to the start.
func looksLikeBareJFIF(b []byte) bool {
	lead := b[:min(len(b), 4)]
	if len(lead) == 0 {
		return false
	}

	for _, c := range lead {
		if c < '0' || c > '9' {
			return false
		}
	}

	return bytes.Contains(b[:min(len(b), jfifSearchWindow)], jfifTag)
}
