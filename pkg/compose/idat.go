package compose

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zlib"

	"github.com/jburnhams/image-stitch-sub000/pkg/pngio"
)

// flushBudget is the approximate uncompressed batch size between
// non-terminal flushes.
const flushBudget = 1 << 20 // 1 MiB

// minBatchRows keeps very wide images from flushing on every row.
const minBatchRows = 50

// idatWriter is the bounded-memory compression adapter. Filtered rows
// are pushed into a zlib stream; after each batch a non-terminal flush
// makes the compressed bytes available, and they are emitted
// immediately as one IDAT chunk. Resident memory is therefore O(batch
// size) regardless of image dimensions.
type idatWriter struct {
	zw             *zlib.Writer
	buf            bytes.Buffer
	emit           func(data []byte) error
	batchRows      int
	rowsSinceFlush int
	tag            [1]byte
}

// newIDATWriter sizes the batch so that batchRows*rowBytes is roughly
// flushBudget, but never fewer than minBatchRows rows. emit receives
// each compressed batch and is expected to wrap it as a container
// chunk.
func newIDATWriter(rowBytes int, emit func(data []byte) error) *idatWriter {
	batch := flushBudget / (rowBytes + 1)
	if batch < minBatchRows {
		batch = minBatchRows
	}
	w := &idatWriter{emit: emit, batchRows: batch}
	w.zw = zlib.NewWriter(&w.buf)
	return w
}

// writeRow pushes one tagged, filtered scanline into the compressor,
// flushing and draining when the batch threshold is reached.
func (w *idatWriter) writeRow(ft pngio.FilterType, filtered []byte) error {
	w.tag[0] = byte(ft)
	if _, err := w.zw.Write(w.tag[:]); err != nil {
		return fmt.Errorf("compose: compress filter tag: %w", err)
	}
	if _, err := w.zw.Write(filtered); err != nil {
		return fmt.Errorf("compose: compress row: %w", err)
	}
	w.rowsSinceFlush++
	if w.rowsSinceFlush < w.batchRows {
		return nil
	}
	w.rowsSinceFlush = 0
	// Non-terminal flush: the partial stream stays a valid decode
	// target while compression continues.
	if err := w.zw.Flush(); err != nil {
		return fmt.Errorf("compose: flush compressor: %w", err)
	}
	return w.drain()
}

// drain hands the accumulated compressed bytes to the consumer.
func (w *idatWriter) drain() error {
	if w.buf.Len() == 0 {
		return nil
	}
	err := w.emit(w.buf.Bytes())
	w.buf.Reset()
	return err
}

// finish terminates the zlib stream and drains whatever remains.
func (w *idatWriter) finish() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("compose: finish compressor: %w", err)
	}
	return w.drain()
}
