// Package decode provides the scanline decoder capability the
// compositor consumes, plus format detection and the built-in PNG and
// stdlib-image implementations of it.
package decode

import (
	"bytes"
	"errors"

	"github.com/jburnhams/image-stitch-sub000/pkg/pngio"
)

// Decoder is the capability contract for one source image. The
// compositor pulls exactly Header().Height rows, each exactly
// Header().RowBytes() bytes, top to bottom and already
// filter-reversed.
//
// Implementations cache the header after the first call, and Close is
// safe to call more than once.
type Decoder interface {
	Header() (pngio.ImageHeader, error)
	ReadRow() ([]byte, error)
	Close() error
}

// Format tags the container format detected from magic bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatJPEG
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	}
	return "unknown"
}

var jpegMagic = []byte{0xFF, 0xD8}

// DetectFormat sniffs the container format from leading magic bytes.
// It is a pure function consulted once per input.
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, pngio.Signature):
		return FormatPNG
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG
	}
	return FormatUnknown
}

// ErrUnknownFormat indicates the input bytes match no supported
// container format.
var ErrUnknownFormat = errors.New("decode: unrecognized image format")
