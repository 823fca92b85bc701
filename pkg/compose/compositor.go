package compose

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/jburnhams/image-stitch-sub000/pkg/decode"
	"github.com/jburnhams/image-stitch-sub000/pkg/layout"
	"github.com/jburnhams/image-stitch-sub000/pkg/pixel"
	"github.com/jburnhams/image-stitch-sub000/pkg/pngio"
)

// Bytes composites opts.Inputs into a single PNG returned as one
// buffer. It is a convenience over Stream for callers that do not need
// incremental output.
func Bytes(ctx context.Context, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Stream(ctx, opts, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stream composites opts.Inputs into a PNG written incrementally to w:
// each compressed batch is forwarded as soon as it is produced, so
// resident memory stays proportional to the batch size rather than the
// output dimensions.
//
// The pipeline is single-threaded and pull-based; decoders are read in
// a fixed column order per row, never concurrently, and every decoder
// is closed exactly once on every exit path.
func Stream(ctx context.Context, opts Options, w io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}
	defer func() {
		for _, d := range opts.Inputs {
			d.Close()
		}
	}()
	logger := opts.logger()

	// Header phase: every source header, common output format, layout.
	headers := make([]pngio.ImageHeader, len(opts.Inputs))
	sizes := make([]layout.Size, len(opts.Inputs))
	outDepth := uint8(8)
	for i, d := range opts.Inputs {
		h, err := d.Header()
		if err != nil {
			return fmt.Errorf("compose: header of source %d: %w", i, err)
		}
		headers[i] = h
		sizes[i] = layout.Size{Width: h.Width, Height: h.Height}
		if h.BitDepth == 16 {
			outDepth = 16
		}
	}

	grid, err := layout.Plan(sizes, opts.Layout)
	if err != nil {
		return err
	}
	placed := grid.Placed()
	if len(placed) < len(opts.Inputs) {
		logger.Debug("layout dropped images exceeding the height bound",
			"placed", len(placed), "inputs", len(opts.Inputs))
	}

	outHeader := pngio.ImageHeader{
		Width:     grid.TotalWidth,
		Height:    grid.TotalHeight,
		BitDepth:  outDepth,
		ColorType: pngio.ColorRGBA,
	}
	logger.Debug("composite planned",
		"width", outHeader.Width, "height", outHeader.Height,
		"bitdepth", outDepth, "rows", len(grid.Cells))

	if _, err := w.Write(pngio.Signature); err != nil {
		return fmt.Errorf("compose: write signature: %w", err)
	}
	if _, err := w.Write(pngio.BuildChunk(pngio.TagIHDR, outHeader.MarshalIHDR()).Serialize()); err != nil {
		return fmt.Errorf("compose: write IHDR: %w", err)
	}

	heights := make(map[int]uint32, len(placed))
	for _, idx := range placed {
		heights[idx] = headers[idx].Height
	}
	progress := newProgressTracker(heights, opts.OnProgress)

	enc := newIDATWriter(outHeader.RowBytes(), func(data []byte) error {
		if _, err := w.Write(pngio.BuildChunk(pngio.TagIDAT, data).Serialize()); err != nil {
			return fmt.Errorf("compose: write IDAT: %w", err)
		}
		return nil
	})

	if err := streamBody(ctx, opts, grid, headers, outHeader, enc, progress); err != nil {
		return err
	}

	// Trailer phase.
	if err := enc.finish(); err != nil {
		return err
	}
	if _, err := w.Write(pngio.BuildChunk(pngio.TagIEND, nil).Serialize()); err != nil {
		return fmt.Errorf("compose: write IEND: %w", err)
	}
	return nil
}

// streamBody assembles and filters every output scanline, pushing each
// into the compression adapter.
func streamBody(ctx context.Context, opts Options, grid *layout.Grid,
	headers []pngio.ImageHeader, outHeader pngio.ImageHeader,
	enc *idatWriter, progress *progressTracker) error {

	outFmt := pixel.Format{BitDepth: outHeader.BitDepth, ColorType: pngio.ColorRGBA}
	outPixelBytes := int(outHeader.BitDepth) / 8 * 4
	rowBytes := outHeader.RowBytes()

	// One background pixel at the output depth, repeated on demand.
	bgPixel := opts.Background.AppendSamples(nil, outHeader.BitDepth)

	raw := make([]byte, 0, rowBytes)
	prev := make([]byte, 0, rowBytes)
	convScratch := make([]byte, 0, rowBytes)
	scratch := pngio.NewFilterScratch(rowBytes)
	outRow := 0

	appendBackground := func(dst []byte, pixels uint32) []byte {
		for i := uint32(0); i < pixels; i++ {
			dst = append(dst, bgPixel...)
		}
		return dst
	}

	for r, gridRow := range grid.Cells {
		for y := uint32(0); y < grid.RowHeights[r]; y++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			raw = raw[:0]
			for c, idx := range gridRow {
				colWidth := grid.ColWidths[r][c]
				if idx == layout.Empty {
					raw = appendBackground(raw, colWidth)
					continue
				}
				src := headers[idx]
				if y >= src.Height {
					// Below this image: padding for the rest of the
					// grid row.
					raw = appendBackground(raw, colWidth)
					continue
				}

				row, err := opts.Inputs[idx].ReadRow()
				if err != nil {
					return &DimensionMismatchError{Source: idx, Row: outRow, Col: c,
						Err: fmt.Errorf("scanline stream ended at image row %d of %d: %w", y, src.Height, err)}
				}
				if len(row) != src.RowBytes() {
					return &DimensionMismatchError{Source: idx, Row: outRow, Col: c,
						Err: fmt.Errorf("scanline is %d bytes, header implies %d", len(row), src.RowBytes())}
				}
				progress.rowRead(idx)

				srcFmt := pixel.Format{BitDepth: src.BitDepth, ColorType: src.ColorType,
					Palette: paletteOf(opts.Inputs[idx])}
				converted, err := pixel.ConvertScanline(convScratch, row, int(src.Width), srcFmt, outFmt)
				if err != nil {
					return fmt.Errorf("compose: normalize source %d: %w", idx, err)
				}
				raw = append(raw, converted...)
				if src.Width < colWidth {
					raw = appendBackground(raw, colWidth-src.Width)
				}
			}

			// Right-pad rows narrower than the widest row.
			if pad := rowBytes - len(raw); pad > 0 {
				raw = appendBackground(raw, uint32(pad/outPixelBytes))
			}

			var prevRow []byte
			if outRow > 0 {
				prevRow = prev
			}
			ft, filtered := pngio.ChooseFilter(raw, prevRow, outHeader.BytesPerPixel(), scratch)
			if err := enc.writeRow(ft, filtered); err != nil {
				return err
			}

			prev = append(prev[:0], raw...)
			outRow++
		}
	}
	return nil
}

// paletteOf surfaces a decoder's PLTE table when it carries one.
func paletteOf(d decode.Decoder) [][3]uint8 {
	if p, ok := d.(interface{ Palette() [][3]uint8 }); ok {
		return p.Palette()
	}
	return nil
}
