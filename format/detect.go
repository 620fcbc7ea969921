// Package format detects the kind of input handed to the de-identifier.
package format

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Format represents a supported input format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// PDF indicates a PDF document.
	PDF
	// PNG indicates a PNG image.
	PNG
	// JPEG indicates a JPEG image.
	JPEG
	// Text indicates UTF-8 plain text.
	Text
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case PDF:
		return "PDF"
	case PNG:
		return "PNG"
	case JPEG:
		return "JPEG"
	case Text:
		return "Text"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case PDF:
		return ".pdf"
	case PNG:
		return ".png"
	case JPEG:
		return ".jpg"
	case Text:
		return ".txt"
	default:
		return ""
	}
}

// IsImage reports whether f is a raster image format.
func (f Format) IsImage() bool {
	return f == PNG || f == JPEG
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return PDF
	case ".png":
		return PNG
	case ".jpg", ".jpeg":
		return JPEG
	case ".txt", ".text", ".md", ".csv", ".log":
		return Text
	default:
		return Unknown
	}
}

var (
	pdfMagic  = []byte("%PDF-")
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// DetectFromMagic checks leading bytes to determine the format. The PDF
// header may be preceded by up to 1024 bytes of junk, as readers allow.
// Data that is valid UTF-8 without NUL bytes is Text.
func DetectFromMagic(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return PNG
	case bytes.HasPrefix(data, jpegMagic):
		return JPEG
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(head, pdfMagic) {
		return PDF
	}
	if len(data) > 0 && looksLikeText(head) {
		return Text
	}
	return Unknown
}

func looksLikeText(b []byte) bool {
	if bytes.IndexByte(b, 0) >= 0 {
		return false
	}
	// a multi-byte rune may be cut at the end of the sample
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				b = b[:len(b)-i]
			}
			break
		}
	}
	return utf8.Valid(b)
}

// DetectFromReader reads the first 1024 bytes of r and detects their
// format. It returns the bytes read so the caller can put them back.
func DetectFromReader(r io.Reader) (Format, []byte, error) {
	head := make([]byte, 1024)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Unknown, nil, err
	}
	head = head[:n]
	return DetectFromMagic(head), head, nil
}
