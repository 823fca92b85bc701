// Package compose implements the streaming compositor: it orchestrates
// source decoders, the pixel normalizer, the layout planner and the
// scanline filter engine into a single lazily-produced PNG byte
// stream, holding only a bounded batch of rows in memory at any time.
package compose

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/jburnhams/image-stitch-sub000/pkg/decode"
	"github.com/jburnhams/image-stitch-sub000/pkg/layout"
	"github.com/jburnhams/image-stitch-sub000/pkg/pixel"
)

var (
	// ErrNoInputs indicates a composite was requested with no sources.
	ErrNoInputs = errors.New("compose: no input images")
	// ErrNoLayout indicates no layout constraint was given. At least one
	// of columns, rows, max width or max height is required.
	ErrNoLayout = errors.New("compose: no layout constraint given")
)

// Options configures a single composite operation. All per-run state
// is created when the operation starts and torn down (every decoder
// closed) when its output is fully written or abandoned.
type Options struct {
	// Inputs are the source decoders, in placement order. The
	// compositor takes ownership and closes each exactly once.
	Inputs []decode.Decoder

	// Layout selects the placement mode; at least one constraint is
	// required.
	Layout layout.Spec

	// Background fills empty cells and padding. Defaults to
	// transparent.
	Background pixel.Color

	// OnProgress, when set, fires once per source image as its final
	// scanline is consumed, with the completed count and the total
	// number of images placed by the layout.
	OnProgress func(completed, total int)

	// Logger receives debug-level progress; nil discards.
	Logger *log.Logger
}

func (o *Options) validate() error {
	if len(o.Inputs) == 0 {
		return ErrNoInputs
	}
	if o.Layout.IsZero() {
		return ErrNoLayout
	}
	return nil
}

func (o *Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard)
}

// DimensionMismatchError reports a source whose scanline stream does
// not match its declared header: it ended before height rows were
// produced, or yielded a row of unexpected length. Row and Col locate
// the output cell being assembled when the mismatch surfaced.
type DimensionMismatchError struct {
	Source int
	Row    int
	Col    int
	Err    error
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("compose: dimension mismatch in source %d at output row %d, column %d: %v",
		e.Source, e.Row, e.Col, e.Err)
}

func (e *DimensionMismatchError) Unwrap() error { return e.Err }
