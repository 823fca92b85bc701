package decode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/jburnhams/image-stitch-sub000/pkg/pngio"
)

// imageDecoder adapts a stdlib image.Image to the Decoder contract,
// emitting 8-bit RGBA rows. It backs the JPEG input path; PNG inputs
// use the streaming decoder instead.
type imageDecoder struct {
	img    image.Image
	header pngio.ImageHeader
	row    []byte
	y      int
}

// NewImage wraps an already-decoded stdlib image as a scanline
// decoder.
func NewImage(img image.Image) Decoder {
	bounds := img.Bounds()
	return &imageDecoder{
		img: img,
		header: pngio.ImageHeader{
			Width:     uint32(bounds.Dx()),
			Height:    uint32(bounds.Dy()),
			BitDepth:  8,
			ColorType: pngio.ColorRGBA,
		},
		row: make([]byte, bounds.Dx()*4),
	}
}

// NewJPEG decodes a JPEG and wraps it as a scanline decoder. The whole
// image is materialized by the stdlib decoder; bounded-memory decoding
// applies to the PNG path only.
func NewJPEG(data []byte) (Decoder, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: jpeg: %w", err)
	}
	return NewImage(img), nil
}

// Open detects the format of data and returns the matching decoder.
func Open(data []byte) (Decoder, error) {
	switch DetectFormat(data) {
	case FormatPNG:
		return NewPNG(data)
	case FormatJPEG:
		return NewJPEG(data)
	}
	return nil, ErrUnknownFormat
}

func (d *imageDecoder) Header() (pngio.ImageHeader, error) {
	return d.header, nil
}

func (d *imageDecoder) ReadRow() ([]byte, error) {
	if d.img == nil {
		return nil, io.EOF
	}
	bounds := d.img.Bounds()
	if d.y >= bounds.Dy() {
		return nil, io.EOF
	}
	y := bounds.Min.Y + d.y
	for x := 0; x < bounds.Dx(); x++ {
		r, g, b, a := d.img.At(bounds.Min.X+x, y).RGBA()
		d.row[x*4] = uint8(r >> 8)
		d.row[x*4+1] = uint8(g >> 8)
		d.row[x*4+2] = uint8(b >> 8)
		d.row[x*4+3] = uint8(a >> 8)
	}
	d.y++
	return d.row, nil
}

func (d *imageDecoder) Close() error {
	d.img = nil
	return nil
}
