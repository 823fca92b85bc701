// Package pngio implements the PNG byte-stream container (signature,
// chunks, CRC32) and the per-scanline predictive filter engine. It is
// the wire-format layer of the compositor: everything here operates on
// raw bytes and knows nothing about layout or pixel conversion.
package pngio

import (
	"encoding/binary"
	"fmt"
)

// ColorType identifies the sample layout of a PNG image.
type ColorType uint8

const (
	ColorGray      ColorType = 0
	ColorRGB       ColorType = 2
	ColorPalette   ColorType = 3
	ColorGrayAlpha ColorType = 4
	ColorRGBA      ColorType = 6
)

// String returns the conventional name of the color type.
func (c ColorType) String() string {
	switch c {
	case ColorGray:
		return "grayscale"
	case ColorRGB:
		return "rgb"
	case ColorPalette:
		return "palette"
	case ColorGrayAlpha:
		return "grayscale+alpha"
	case ColorRGBA:
		return "rgba"
	}
	return fmt.Sprintf("colortype(%d)", uint8(c))
}

// SamplesPerPixel returns the channel count implied by the color type,
// or 0 for an unknown color type.
func (c ColorType) SamplesPerPixel() int {
	switch c {
	case ColorGray, ColorPalette:
		return 1
	case ColorGrayAlpha:
		return 2
	case ColorRGB:
		return 3
	case ColorRGBA:
		return 4
	}
	return 0
}

// ImageHeader is the parsed contents of an IHDR chunk. It is immutable
// once parsed; one exists per source image and one is synthesized for
// the composite output.
type ImageHeader struct {
	Width             uint32
	Height            uint32
	BitDepth          uint8
	ColorType         ColorType
	CompressionMethod uint8
	FilterMethod      uint8
	InterlaceMethod   uint8
}

// BytesPerPixel returns ceil(bitDepth*samplesPerPixel/8), the neighbor
// distance used by the filter engine.
func (h ImageHeader) BytesPerPixel() int {
	return (int(h.BitDepth)*h.ColorType.SamplesPerPixel() + 7) / 8
}

// RowBytes returns the byte length of one scanline, excluding the
// filter tag byte.
func (h ImageHeader) RowBytes() int {
	return (int(h.Width)*int(h.BitDepth)*h.ColorType.SamplesPerPixel() + 7) / 8
}

// Validate checks the bit depth / color type combination against the
// PNG specification.
func (h ImageHeader) Validate() error {
	switch h.ColorType {
	case ColorGray:
		switch h.BitDepth {
		case 1, 2, 4, 8, 16:
			return nil
		}
	case ColorPalette:
		switch h.BitDepth {
		case 1, 2, 4, 8:
			return nil
		}
	case ColorRGB, ColorGrayAlpha, ColorRGBA:
		switch h.BitDepth {
		case 8, 16:
			return nil
		}
	default:
		return fmt.Errorf("pngio: unsupported color type %d", h.ColorType)
	}
	return fmt.Errorf("pngio: bit depth %d invalid for %s", h.BitDepth, h.ColorType)
}

// MarshalIHDR serializes the header into the 13-byte IHDR chunk data
// layout: width(4) height(4) bitDepth(1) colorType(1) compression(1)
// filter(1) interlace(1), big-endian.
func (h ImageHeader) MarshalIHDR() []byte {
	data := make([]byte, 13)
	binary.BigEndian.PutUint32(data[0:4], h.Width)
	binary.BigEndian.PutUint32(data[4:8], h.Height)
	data[8] = h.BitDepth
	data[9] = uint8(h.ColorType)
	data[10] = h.CompressionMethod
	data[11] = h.FilterMethod
	data[12] = h.InterlaceMethod
	return data
}
