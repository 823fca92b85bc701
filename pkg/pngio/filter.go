package pngio

import "fmt"

// FilterType identifies one of the five PNG scanline filters.
type FilterType uint8

const (
	FilterNone FilterType = iota
	FilterSub
	FilterUp
	FilterAverage
	FilterPaeth

	nFilters = 5
)

// String returns the conventional name of the filter.
func (f FilterType) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterSub:
		return "sub"
	case FilterUp:
		return "up"
	case FilterAverage:
		return "average"
	case FilterPaeth:
		return "paeth"
	}
	return fmt.Sprintf("filter(%d)", uint8(f))
}

// paeth returns whichever of left, up, upLeft is closest to
// left+up-upLeft. Ties resolve left, then up; upLeft wins only when
// strictly smaller than both.
func paeth(left, up, upLeft uint8) uint8 {
	p := int(left) + int(up) - int(upLeft)
	pa := abs(p - int(left))
	pb := abs(p - int(up))
	pc := abs(p - int(upLeft))
	if pa <= pb && pa <= pc {
		return left
	}
	if pb <= pc {
		return up
	}
	return upLeft
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Unfilter reverses ft over row in place and returns it. prev is the
// previous raw (already unfiltered) row, or nil for the first row. All
// arithmetic wraps modulo 256; the left neighbor is zero within the
// first pixel and the up neighbor is zero when prev is nil.
func Unfilter(ft FilterType, row, prev []byte, bytesPerPixel int) ([]byte, error) {
	switch ft {
	case FilterNone:
	case FilterSub:
		for i := bytesPerPixel; i < len(row); i++ {
			row[i] += row[i-bytesPerPixel]
		}
	case FilterUp:
		if prev != nil {
			for i := range row {
				row[i] += prev[i]
			}
		}
	case FilterAverage:
		for i := range row {
			var left, up int
			if i >= bytesPerPixel {
				left = int(row[i-bytesPerPixel])
			}
			if prev != nil {
				up = int(prev[i])
			}
			row[i] += uint8((left + up) / 2)
		}
	case FilterPaeth:
		for i := range row {
			var left, up, upLeft uint8
			if i >= bytesPerPixel {
				left = row[i-bytesPerPixel]
			}
			if prev != nil {
				up = prev[i]
				if i >= bytesPerPixel {
					upLeft = prev[i-bytesPerPixel]
				}
			}
			row[i] += paeth(left, up, upLeft)
		}
	default:
		return nil, fmt.Errorf("pngio: unknown filter type %d", ft)
	}
	return row, nil
}

// applyFilter writes the ft-filtered form of row into dst.
func applyFilter(ft FilterType, dst, row, prev []byte, bytesPerPixel int) {
	switch ft {
	case FilterNone:
		copy(dst, row)
	case FilterSub:
		for i := range row {
			var left uint8
			if i >= bytesPerPixel {
				left = row[i-bytesPerPixel]
			}
			dst[i] = row[i] - left
		}
	case FilterUp:
		for i := range row {
			var up uint8
			if prev != nil {
				up = prev[i]
			}
			dst[i] = row[i] - up
		}
	case FilterAverage:
		for i := range row {
			var left, up int
			if i >= bytesPerPixel {
				left = int(row[i-bytesPerPixel])
			}
			if prev != nil {
				up = int(prev[i])
			}
			dst[i] = row[i] - uint8((left+up)/2)
		}
	case FilterPaeth:
		for i := range row {
			var left, up, upLeft uint8
			if i >= bytesPerPixel {
				left = row[i-bytesPerPixel]
			}
			if prev != nil {
				up = prev[i]
				if i >= bytesPerPixel {
					upLeft = prev[i-bytesPerPixel]
				}
			}
			dst[i] = row[i] - paeth(left, up, upLeft)
		}
	}
}

// signedAbsSum scores a filtered row by summing the absolute values of
// its bytes interpreted as signed (values >127 count as value-256).
// Small scores correlate with rows that compress well.
func signedAbsSum(row []byte) int {
	sum := 0
	for _, b := range row {
		v := int(int8(b))
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return sum
}

// ChooseFilter encodes row with all five filters and returns the kind
// with the minimum signed-absolute-sum score along with the filtered
// bytes; ties resolve to the lowest-numbered filter. The score is a
// compressibility heuristic, not a guarantee of minimal compressed
// size.
//
// The returned slice is valid until the next call on the same scratch;
// pass a nil scratch to allocate fresh buffers.
func ChooseFilter(row, prev []byte, bytesPerPixel int, scratch *FilterScratch) (FilterType, []byte) {
	if scratch == nil {
		scratch = NewFilterScratch(len(row))
	}
	scratch.grow(len(row))

	best := FilterNone
	bestScore := -1
	for ft := FilterNone; ft < nFilters; ft++ {
		candidate := scratch.candidates[ft][:len(row)]
		applyFilter(ft, candidate, row, prev, bytesPerPixel)
		if score := signedAbsSum(candidate); bestScore < 0 || score < bestScore {
			best = ft
			bestScore = score
		}
	}
	return best, scratch.candidates[best][:len(row)]
}

// FilterScratch holds the candidate buffers ChooseFilter scores, so a
// caller encoding many rows reuses one allocation per filter kind.
type FilterScratch struct {
	candidates [nFilters][]byte
}

// NewFilterScratch allocates scratch buffers sized for rows of up to
// rowBytes bytes.
func NewFilterScratch(rowBytes int) *FilterScratch {
	s := &FilterScratch{}
	s.grow(rowBytes)
	return s
}

func (s *FilterScratch) grow(rowBytes int) {
	for i := range s.candidates {
		if cap(s.candidates[i]) < rowBytes {
			s.candidates[i] = make([]byte, rowBytes)
		}
	}
}
