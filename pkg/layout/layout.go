// Package layout maps N images of arbitrary dimensions onto a 2-D
// placement grid. Planning is a pure function of the input sizes and
// the constraint spec; it performs no I/O and holds no state.
package layout

import "errors"

// Empty marks a grid cell that holds no image and renders as padding.
const Empty = -1

// Size is the pixel dimensions of one input image.
type Size struct {
	Width  uint32
	Height uint32
}

// Spec selects a placement mode by which constraints are set:
//
//   - Columns alone: row-major fill with a fixed column count.
//   - Rows alone: column-major fill with a fixed row count.
//   - MaxWidth and/or MaxHeight: greedy pixel-bounded packing,
//     optionally capped by Columns or Rows.
//   - Nothing set: a single row holding every image in input order.
type Spec struct {
	Columns   int
	Rows      int
	MaxWidth  uint32
	MaxHeight uint32
}

// IsZero reports whether no constraint is set.
func (s Spec) IsZero() bool {
	return s.Columns <= 0 && s.Rows <= 0 && s.MaxWidth == 0 && s.MaxHeight == 0
}

// Grid is a planned placement. Cells hold input indexes or Empty.
// ColWidths[r][c] is the width of the image in that cell (0 when
// empty); RowHeights[r] is the tallest image in row r. TotalWidth is
// the widest row's summed column widths; TotalHeight the sum of row
// heights.
type Grid struct {
	Cells       [][]int
	RowHeights  []uint32
	ColWidths   [][]uint32
	TotalWidth  uint32
	TotalHeight uint32
}

// ErrNoImages indicates Plan was called with an empty size list.
var ErrNoImages = errors.New("layout: no images to place")

// Plan computes the placement grid for the given image sizes.
//
// In pixel-bounded mode, images that cannot fit within MaxHeight are
// silently dropped from the layout; this is deliberate truncation, not
// an error.
func Plan(sizes []Size, spec Spec) (*Grid, error) {
	if len(sizes) == 0 {
		return nil, ErrNoImages
	}

	var cells [][]int
	switch {
	case spec.MaxWidth > 0 || spec.MaxHeight > 0:
		cells = planBounded(sizes, spec)
	case spec.Columns > 0:
		cells = planRowMajor(len(sizes), spec.Columns)
	case spec.Rows > 0:
		cells = planColumnMajor(len(sizes), spec.Rows)
	default:
		row := make([]int, len(sizes))
		for i := range row {
			row[i] = i
		}
		cells = [][]int{row}
	}

	return measure(cells, sizes), nil
}

// planRowMajor fills a fixed column count left to right, top to
// bottom: index = row*columns + col.
func planRowMajor(n, columns int) [][]int {
	rows := (n + columns - 1) / columns
	cells := make([][]int, rows)
	for r := range cells {
		cells[r] = make([]int, columns)
		for c := range cells[r] {
			idx := r*columns + c
			if idx < n {
				cells[r][c] = idx
			} else {
				cells[r][c] = Empty
			}
		}
	}
	return cells
}

// planColumnMajor fills a fixed row count top to bottom, left to
// right: index = col*rows + row.
func planColumnMajor(n, rows int) [][]int {
	columns := (n + rows - 1) / rows
	cells := make([][]int, rows)
	for r := range cells {
		cells[r] = make([]int, columns)
		for c := range cells[r] {
			idx := c*rows + r
			if idx < n {
				cells[r][c] = idx
			} else {
				cells[r][c] = Empty
			}
		}
	}
	return cells
}

// planBounded appends images greedily into the current row, wrapping
// when the next image would exceed MaxWidth or the Columns cap. A row
// always accepts at least one image so placement makes progress
// regardless of width. Before opening a new row the accumulated height
// is checked against MaxHeight; once exceeded, the remaining images
// are dropped.
func planBounded(sizes []Size, spec Spec) [][]int {
	var (
		cells         [][]int
		current       []int
		rowWidth      uint32
		rowHeight     uint32
		runningHeight uint32
	)

	rowFull := func(s Size) bool {
		if len(current) == 0 {
			return false
		}
		if spec.Columns > 0 && len(current) >= spec.Columns {
			return true
		}
		if spec.MaxWidth > 0 && rowWidth+s.Width > spec.MaxWidth {
			return true
		}
		return false
	}

	for i, s := range sizes {
		if rowFull(s) {
			if spec.MaxHeight > 0 && runningHeight+rowHeight+s.Height > spec.MaxHeight {
				break // remaining images are dropped
			}
			if spec.Rows > 0 && len(cells)+1 >= spec.Rows {
				break
			}
			cells = append(cells, current)
			runningHeight += rowHeight
			current, rowWidth, rowHeight = nil, 0, 0
		}
		current = append(current, i)
		rowWidth += s.Width
		if s.Height > rowHeight {
			rowHeight = s.Height
		}
	}
	if len(current) > 0 {
		cells = append(cells, current)
	}
	return cells
}

// measure derives per-row column widths, row heights and the totals
// from the placed cells.
func measure(cells [][]int, sizes []Size) *Grid {
	g := &Grid{
		Cells:      cells,
		RowHeights: make([]uint32, len(cells)),
		ColWidths:  make([][]uint32, len(cells)),
	}
	for r, row := range cells {
		g.ColWidths[r] = make([]uint32, len(row))
		var rowWidth uint32
		for c, idx := range row {
			if idx == Empty {
				continue
			}
			s := sizes[idx]
			g.ColWidths[r][c] = s.Width
			rowWidth += s.Width
			if s.Height > g.RowHeights[r] {
				g.RowHeights[r] = s.Height
			}
		}
		if rowWidth > g.TotalWidth {
			g.TotalWidth = rowWidth
		}
		g.TotalHeight += g.RowHeights[r]
	}
	return g
}

// Placed returns the set of input indexes that appear in the grid, in
// cell iteration order. Pixel-bounded planning may drop trailing
// images, so this can be shorter than the input.
func (g *Grid) Placed() []int {
	var out []int
	for _, row := range g.Cells {
		for _, idx := range row {
			if idx != Empty {
				out = append(out, idx)
			}
		}
	}
	return out
}
