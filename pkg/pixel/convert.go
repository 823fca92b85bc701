// Package pixel converts PNG sample layouts to a common RGBA
// representation. Conversion works per-scanline so the compositor can
// stream rows, with a whole-buffer variant for non-streaming callers;
// the two are scanline-for-scanline identical.
package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jburnhams/image-stitch-sub000/pkg/pngio"
)

var (
	// ErrUnsupportedTarget indicates a conversion target other than RGBA
	// was requested.
	ErrUnsupportedTarget = errors.New("pixel: only RGBA conversion targets are supported")
	// ErrMissingPalette indicates a palette source was given without its
	// PLTE table.
	ErrMissingPalette = errors.New("pixel: palette source requires a palette")
	// ErrRowLength indicates the source row does not match the length
	// implied by width, bit depth and color type.
	ErrRowLength = errors.New("pixel: source row length mismatch")
)

// Format describes the sample layout of a scanline. Palette is required
// when ColorType is ColorPalette and ignored otherwise.
type Format struct {
	BitDepth  uint8
	ColorType pngio.ColorType
	Palette   [][3]uint8
}

// FormatOf extracts the scanline format from an image header.
func FormatOf(h pngio.ImageHeader) Format {
	return Format{BitDepth: h.BitDepth, ColorType: h.ColorType}
}

func (f Format) rowBytes(width int) int {
	return (width*int(f.BitDepth)*f.ColorType.SamplesPerPixel() + 7) / 8
}

// sampleReader yields one sample value at a time from a packed row.
// Sub-byte depths (1/2/4) unpack most-significant-bits-first within
// each byte; 16-bit samples are big-endian.
type sampleReader struct {
	row   []byte
	depth uint8
	byteI int
	bitI  uint8 // bits consumed in the current byte, msb first
}

func (r *sampleReader) next() uint16 {
	switch r.depth {
	case 16:
		v := binary.BigEndian.Uint16(r.row[r.byteI:])
		r.byteI += 2
		return v
	case 8:
		v := uint16(r.row[r.byteI])
		r.byteI++
		return v
	default: // 1, 2, 4
		shift := 8 - r.bitI - r.depth
		mask := uint8(1<<r.depth) - 1
		v := (r.row[r.byteI] >> shift) & mask
		r.bitI += r.depth
		if r.bitI == 8 {
			r.bitI = 0
			r.byteI++
		}
		return uint16(v)
	}
}

// rescale maps a sample from one depth's range onto another using
// round(v * targetMax / sourceMax). No dithering is applied.
func rescale(v uint16, fromDepth, toDepth uint8) uint16 {
	if fromDepth == toDepth {
		return v
	}
	srcMax := uint32(1)<<fromDepth - 1
	dstMax := uint32(1)<<toDepth - 1
	return uint16((uint32(v)*dstMax + srcMax/2) / srcMax)
}

// ConvertScanline converts one packed scanline from `from` to `to`,
// which must be an RGBA format at bit depth 8 or 16. When the source
// already matches the target the input slice is returned unchanged.
// Otherwise the converted row is written into dst (grown as needed) and
// dst is returned; a nil dst allocates.
//
// Formats without an alpha channel receive a fully opaque alpha.
func ConvertScanline(dst, src []byte, width int, from, to Format) ([]byte, error) {
	if to.ColorType != pngio.ColorRGBA {
		return nil, fmt.Errorf("%w: requested %s", ErrUnsupportedTarget, to.ColorType)
	}
	if to.BitDepth != 8 && to.BitDepth != 16 {
		return nil, fmt.Errorf("%w: requested %d-bit", ErrUnsupportedTarget, to.BitDepth)
	}
	if got, want := len(src), from.rowBytes(width); got != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for width %d", ErrRowLength, got, want, width)
	}
	if from.ColorType == to.ColorType && from.BitDepth == to.BitDepth {
		return src, nil // identity fast path
	}
	if from.ColorType == pngio.ColorPalette && len(from.Palette) == 0 {
		return nil, ErrMissingPalette
	}

	outBytes := to.rowBytes(width)
	if cap(dst) < outBytes {
		dst = make([]byte, outBytes)
	}
	dst = dst[:outBytes]

	opaque := uint16(1)<<to.BitDepth - 1
	reader := sampleReader{row: src, depth: from.BitDepth}
	out := 0
	put := func(v uint16) {
		if to.BitDepth == 16 {
			binary.BigEndian.PutUint16(dst[out:], v)
			out += 2
		} else {
			dst[out] = uint8(v)
			out++
		}
	}

	for x := 0; x < width; x++ {
		switch from.ColorType {
		case pngio.ColorGray:
			g := rescale(reader.next(), from.BitDepth, to.BitDepth)
			put(g)
			put(g)
			put(g)
			put(opaque)
		case pngio.ColorGrayAlpha:
			g := rescale(reader.next(), from.BitDepth, to.BitDepth)
			a := rescale(reader.next(), from.BitDepth, to.BitDepth)
			put(g)
			put(g)
			put(g)
			put(a)
		case pngio.ColorRGB:
			put(rescale(reader.next(), from.BitDepth, to.BitDepth))
			put(rescale(reader.next(), from.BitDepth, to.BitDepth))
			put(rescale(reader.next(), from.BitDepth, to.BitDepth))
			put(opaque)
		case pngio.ColorPalette:
			idx := int(reader.next())
			if idx >= len(from.Palette) {
				return nil, fmt.Errorf("pixel: palette index %d out of range (%d entries)", idx, len(from.Palette))
			}
			entry := from.Palette[idx]
			// Palette entries are always 8-bit samples.
			put(rescale(uint16(entry[0]), 8, to.BitDepth))
			put(rescale(uint16(entry[1]), 8, to.BitDepth))
			put(rescale(uint16(entry[2]), 8, to.BitDepth))
			put(opaque)
		case pngio.ColorRGBA:
			put(rescale(reader.next(), from.BitDepth, to.BitDepth))
			put(rescale(reader.next(), from.BitDepth, to.BitDepth))
			put(rescale(reader.next(), from.BitDepth, to.BitDepth))
			put(rescale(reader.next(), from.BitDepth, to.BitDepth))
		default:
			return nil, fmt.Errorf("pixel: unsupported source color type %s", from.ColorType)
		}
	}
	return dst, nil
}

// ConvertImage converts a whole packed image buffer scanline by
// scanline. Its output is identical to calling ConvertScanline on each
// row in turn.
func ConvertImage(src []byte, width, height int, from, to Format) ([]byte, error) {
	srcStride := from.rowBytes(width)
	if len(src) != srcStride*height {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for %dx%d", ErrRowLength, len(src), srcStride*height, width, height)
	}
	dstStride := to.rowBytes(width)
	out := make([]byte, dstStride*height)
	for y := 0; y < height; y++ {
		row, err := ConvertScanline(out[y*dstStride:y*dstStride:(y+1)*dstStride],
			src[y*srcStride:(y+1)*srcStride], width, from, to)
		if err != nil {
			return nil, err
		}
		// The identity fast path hands back the source row; the
		// whole-buffer form always fills the output.
		copy(out[y*dstStride:(y+1)*dstStride], row)
	}
	return out, nil
}
