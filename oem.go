package fatfs

import (
	"golang.org/x/text/encoding/charmap"
)

// OemCpConverter converts between the OEM/DOS code page bytes stored in
// short (8.3) directory names and Unicode code points, the injected
// collaborator spec.md's FileSystem façade takes at Mount time. Long
// filenames are always UTF-16 on disk and never go through this converter.
type OemCpConverter interface {
	// Decode converts one OEM byte to a rune. It returns false if the byte
	// has no mapping in this code page.
	Decode(b byte) (r rune, ok bool)
	// Encode converts one rune to an OEM byte. It returns false if the rune
	// cannot be represented in this code page (the caller falls back to a
	// lossy substitution, e.g. '_').
	Encode(r rune) (b byte, ok bool)
}

// AsciiOemCpConverter is the dependency-free default: every codepoint above
// 0x7F fails to encode/decode. It is the safe fallback spec.md requires
// when no richer converter is supplied.
type AsciiOemCpConverter struct{}

func (AsciiOemCpConverter) Decode(b byte) (rune, bool) {
	if b < 0x80 {
		return rune(b), true
	}
	return 0, false
}

func (AsciiOemCpConverter) Encode(r rune) (byte, bool) {
	if r < 0x80 {
		return byte(r), true
	}
	return 0, false
}

// CP437Converter is a full 8-bit OEM converter backed by IBM code page 437
// (the original PC/MS-DOS code page, and the most common default FAT OEM
// encoding in the wild). It replaces the teacher's go:embed-based code page
// tables, whose backing .tbl files were never part of the tree.
type CP437Converter struct{}

func (CP437Converter) Decode(b byte) (rune, bool) {
	// Code page 437 maps every byte value, so this never fails.
	return charmap.CodePage437.DecodeByte(b), true
}

func (CP437Converter) Encode(r rune) (byte, bool) {
	return charmap.CodePage437.EncodeRune(r)
}
