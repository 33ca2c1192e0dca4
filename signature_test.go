package datacarve

import (
	"bytes"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   []byte
		want Kind
	}{
		{name: "png", in: testPNG(), want: KindPNG},
		{name: "png with other magic inside", in: append(testPNG()[:8], "OggSRIFF\xff\xd8\xff"...), want: KindPNG},
		{name: "jpeg", in: testJPEG(), want: KindJPEG},
		{name: "ogg", in: []byte("OggS\x00\x02"), want: KindOGG},
		{name: "riff", in: []byte("RIFF\x04\x00\x00\x00WAVE"), want: KindRIFF},
		{name: "zip", in: []byte("PK\x03\x04rest"), want: KindZIP},
		{name: "bare jfif", in: []byte("0123\x00\x10JFIF\x00"), want: KindJPEG},
		{name: "jfif inside digit lead", in: []byte("7JFIF"), want: KindUnknown},
		{name: "jfif outside window", in: append([]byte("0123"), append(make([]byte, 80), "JFIF"...)...), want: KindUnknown},
		{name: "non digit lead", in: []byte("ab12JFIF"), want: KindUnknown},
		{name: "partial magic", in: []byte{0x89, 'P', 'N'}, want: KindUnknown},
		{name: "empty", in: nil, want: KindUnknown},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tc.in); got != tc.want {
				t.Fatalf("Classify(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestKindExtAndText(t *testing.T) {
	t.Parallel()

	wantExt := map[Kind]string{
		KindUnknown: ".bin",
		KindPNG:     ".png",
		KindJPEG:    ".jpg",
		KindOGG:     ".ogg",
		KindRIFF:    ".wav",
		KindZIP:     ".zip",
		KindGLSL:    ".glsl",
	}

	for kind, ext := range wantExt {
		if got := kind.Ext(); got != ext {
			t.Fatalf("%v.Ext()=%q, want %q", kind, got, ext)
		}

		text, err := kind.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", kind, err)
		}

		var decoded Kind
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if decoded != kind {
			t.Fatalf("UnmarshalText(%q)=%v, want %v", text, decoded, kind)
		}
	}

	var k Kind
	if err := k.UnmarshalText([]byte("gif")); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

func TestSignaturesReturnsCopy(t *testing.T) {
	t.Parallel()

	sigs := Signatures()
	if len(sigs) != 5 || sigs[0].Kind != KindPNG || sigs[4].Kind != KindZIP {
		t.Fatalf("unexpected signature table: %+v", sigs)
	}

	sigs[0].Magic[0] = 0
	if !bytes.HasPrefix(testPNG(), Signatures()[0].Magic) {
		t.Fatal("mutating returned table changed registered signatures")
	}
}
