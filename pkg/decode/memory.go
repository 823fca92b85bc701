package decode

import (
	"io"

	"github.com/jburnhams/image-stitch-sub000/pkg/pngio"
)

// memoryDecoder serves pre-computed raw scanlines. It exists for
// callers that synthesize pixels (and for tests, where it stands in
// for a real codec).
type memoryDecoder struct {
	header pngio.ImageHeader
	rows   [][]byte
	y      int
}

// NewMemory returns a decoder over already-unfiltered scanlines. Rows
// must match header.Height and header.RowBytes(); this is checked at
// read time, not construction, so tests can model misbehaving
// decoders.
func NewMemory(header pngio.ImageHeader, rows [][]byte) Decoder {
	return &memoryDecoder{header: header, rows: rows}
}

// NewSolid returns a decoder for a width x height 8-bit RGBA image
// filled with a single color.
func NewSolid(width, height uint32, rgba [4]uint8) Decoder {
	row := make([]byte, width*4)
	for x := uint32(0); x < width; x++ {
		copy(row[x*4:], rgba[:])
	}
	rows := make([][]byte, height)
	for y := range rows {
		rows[y] = row
	}
	return NewMemory(pngio.ImageHeader{
		Width:     width,
		Height:    height,
		BitDepth:  8,
		ColorType: pngio.ColorRGBA,
	}, rows)
}

func (d *memoryDecoder) Header() (pngio.ImageHeader, error) {
	return d.header, nil
}

func (d *memoryDecoder) ReadRow() ([]byte, error) {
	if d.y >= len(d.rows) {
		return nil, io.EOF
	}
	row := d.rows[d.y]
	d.y++
	return row, nil
}

func (d *memoryDecoder) Close() error {
	d.rows = nil
	return nil
}
