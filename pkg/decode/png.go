package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/jburnhams/image-stitch-sub000/pkg/pngio"
)

// ErrInterlaced indicates an Adam7-interlaced PNG, which this decoder
// does not support.
var ErrInterlaced = errors.New("decode: interlaced (Adam7) PNG is not supported")

// pngDecoder streams scanlines out of an in-memory PNG. The IDAT
// payload is inflated row by row, so only the compressed input and two
// row buffers are ever resident.
type pngDecoder struct {
	header  pngio.ImageHeader
	palette [][3]uint8
	inflate io.ReadCloser
	row     []byte
	prev    []byte
	y       uint32
	closed  bool
}

// NewPNG parses the container structure of data and returns a decoder
// that yields filter-reversed scanlines. Chunk CRCs are verified up
// front; parsing is fail-fast.
func NewPNG(data []byte) (Decoder, error) {
	chunks, err := pngio.ReadAllChunks(data)
	if err != nil {
		return nil, err
	}
	header, err := pngio.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if header.InterlaceMethod != 0 {
		return nil, ErrInterlaced
	}

	var palette [][3]uint8
	var idat []io.Reader
	for _, c := range chunks {
		switch c.Type {
		case pngio.TagPLTE:
			if len(c.Data)%3 != 0 {
				return nil, fmt.Errorf("decode: PLTE length %d is not a multiple of 3", len(c.Data))
			}
			palette = make([][3]uint8, len(c.Data)/3)
			for i := range palette {
				palette[i] = [3]uint8{c.Data[i*3], c.Data[i*3+1], c.Data[i*3+2]}
			}
		case pngio.TagIDAT:
			idat = append(idat, bytes.NewReader(c.Data))
		}
	}
	if len(idat) == 0 {
		return nil, errors.New("decode: PNG has no IDAT chunks")
	}
	if header.ColorType == pngio.ColorPalette && palette == nil {
		return nil, errors.New("decode: palette PNG has no PLTE chunk")
	}

	inflate, err := zlib.NewReader(io.MultiReader(idat...))
	if err != nil {
		return nil, fmt.Errorf("decode: open zlib stream: %w", err)
	}
	return &pngDecoder{
		header:  header,
		palette: palette,
		inflate: inflate,
		row:     make([]byte, header.RowBytes()),
		prev:    make([]byte, header.RowBytes()),
	}, nil
}

func (d *pngDecoder) Header() (pngio.ImageHeader, error) {
	return d.header, nil
}

// Palette returns the PLTE entries, or nil for non-palette images.
func (d *pngDecoder) Palette() [][3]uint8 {
	return d.palette
}

func (d *pngDecoder) ReadRow() ([]byte, error) {
	if d.closed {
		return nil, errors.New("decode: read after close")
	}
	if d.y >= d.header.Height {
		return nil, io.EOF
	}

	var tag [1]byte
	if _, err := io.ReadFull(d.inflate, tag[:]); err != nil {
		return nil, fmt.Errorf("decode: row %d filter tag: %w", d.y, err)
	}
	if _, err := io.ReadFull(d.inflate, d.row); err != nil {
		return nil, fmt.Errorf("decode: row %d: %w", d.y, err)
	}
	raw, err := pngio.Unfilter(pngio.FilterType(tag[0]), d.row, d.prevOrNil(), d.header.BytesPerPixel())
	if err != nil {
		return nil, fmt.Errorf("decode: row %d: %w", d.y, err)
	}
	d.y++
	d.row, d.prev = d.prev, raw
	return raw, nil
}

func (d *pngDecoder) prevOrNil() []byte {
	if d.y == 0 {
		return nil
	}
	return d.prev
}

func (d *pngDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.inflate.Close()
}
