package pngio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func testContainer(t *testing.T, h ImageHeader, extra ...Chunk) []byte {
	t.Helper()
	chunks := []Chunk{BuildChunk(TagIHDR, h.MarshalIHDR())}
	chunks = append(chunks, extra...)
	chunks = append(chunks, BuildChunk(TagIEND, nil))
	return BuildContainer(chunks)
}

func TestParseHeaderRoundTrip(t *testing.T) {
	want := ImageHeader{
		Width:     640,
		Height:    480,
		BitDepth:  8,
		ColorType: ColorRGBA,
	}
	data := testContainer(t, want)

	got, err := ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if got != want {
		t.Errorf("ParseHeader = %+v, want %+v", got, want)
	}
}

func TestParseHeaderErrors(t *testing.T) {
	valid := testContainer(t, ImageHeader{Width: 1, Height: 1, BitDepth: 8, ColorType: ColorGray})

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"bad signature", append([]byte("notapng!"), valid[8:]...), ErrInvalidSignature},
		{"empty", nil, ErrInvalidSignature},
		{"truncated after signature", valid[:8], ErrIncomplete},
		{"first chunk not IHDR", BuildContainer([]Chunk{BuildChunk(TagIEND, nil)}), ErrNotIHDR},
		{"IHDR wrong length", BuildContainer([]Chunk{BuildChunk(TagIHDR, make([]byte, 12))}), ErrBadLength},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseHeader(tc.data); !errors.Is(err, tc.want) {
				t.Errorf("ParseHeader error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseHeaderRejectsBadDepth(t *testing.T) {
	h := ImageHeader{Width: 1, Height: 1, BitDepth: 3, ColorType: ColorRGB}
	if _, err := ParseHeader(testContainer(t, h)); err == nil {
		t.Error("expected error for bit depth 3")
	}
}

func TestReadAllChunks(t *testing.T) {
	data := testContainer(t,
		ImageHeader{Width: 2, Height: 2, BitDepth: 8, ColorType: ColorRGB},
		BuildChunk(TagIDAT, []byte{1, 2, 3}),
		BuildChunk(TagIDAT, []byte{4, 5}),
	)

	chunks, err := ReadAllChunks(data)
	if err != nil {
		t.Fatalf("ReadAllChunks: %v", err)
	}
	wantTypes := []string{TagIHDR, TagIDAT, TagIDAT, TagIEND}
	if len(chunks) != len(wantTypes) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantTypes))
	}
	for i, want := range wantTypes {
		if chunks[i].Type != want {
			t.Errorf("chunk %d type = %q, want %q", i, chunks[i].Type, want)
		}
	}
	if !bytes.Equal(chunks[1].Data, []byte{1, 2, 3}) {
		t.Errorf("chunk 1 data = %v", chunks[1].Data)
	}
}

// Any prefix of a valid stream must fail with an error, never panic.
// Cuts landing inside a chunk's trailing CRC (fewer than 12 bytes left)
// are the interesting region.
func TestReadAllChunksTruncation(t *testing.T) {
	data := testContainer(t, ImageHeader{Width: 1, Height: 1, BitDepth: 8, ColorType: ColorGray},
		BuildChunk(TagIDAT, []byte{9, 9, 9, 9}))

	for cut := 0; cut < len(data); cut++ {
		if _, err := ReadAllChunks(data[:cut]); err == nil {
			t.Errorf("cut at %d: expected truncation error", cut)
		}
	}
}

// Flipping any single bit in a chunk's type or data must surface as a
// CRC mismatch naming the chunk.
func TestReadAllChunksCRCMismatch(t *testing.T) {
	data := testContainer(t, ImageHeader{Width: 1, Height: 1, BitDepth: 8, ColorType: ColorGray},
		BuildChunk(TagIDAT, []byte{0xAA, 0xBB}))

	// The IDAT chunk starts after signature (8) + IHDR (12+13).
	idatOff := 8 + 25
	for off := idatOff + 4; off < idatOff+4+4+2; off++ { // type and data bytes
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), data...)
			corrupt[off] ^= 1 << bit

			_, err := ReadAllChunks(corrupt)
			var crcErr *CRCError
			if !errors.As(err, &crcErr) {
				t.Fatalf("flip offset %d bit %d: error = %v, want CRCError", off, bit, err)
			}
		}
	}
}

func TestSerializeChunkLayout(t *testing.T) {
	c := BuildChunk(TagIDAT, []byte{0xDE, 0xAD})
	wire := c.Serialize()

	if got := binary.BigEndian.Uint32(wire[0:4]); got != 2 {
		t.Errorf("length = %d, want 2", got)
	}
	if got := string(wire[4:8]); got != TagIDAT {
		t.Errorf("tag = %q", got)
	}
	if !bytes.Equal(wire[8:10], []byte{0xDE, 0xAD}) {
		t.Errorf("data = %v", wire[8:10])
	}
	if got := binary.BigEndian.Uint32(wire[10:14]); got != c.CRC {
		t.Errorf("crc = %08x, want %08x", got, c.CRC)
	}
}

func TestRowBytesAndBytesPerPixel(t *testing.T) {
	tests := []struct {
		h        ImageHeader
		rowBytes int
		bpp      int
	}{
		{ImageHeader{Width: 10, BitDepth: 8, ColorType: ColorRGBA}, 40, 4},
		{ImageHeader{Width: 10, BitDepth: 16, ColorType: ColorRGBA}, 80, 8},
		{ImageHeader{Width: 10, BitDepth: 1, ColorType: ColorGray}, 2, 1},
		{ImageHeader{Width: 9, BitDepth: 4, ColorType: ColorPalette}, 5, 1},
		{ImageHeader{Width: 3, BitDepth: 8, ColorType: ColorGrayAlpha}, 6, 2},
	}
	for _, tc := range tests {
		if got := tc.h.RowBytes(); got != tc.rowBytes {
			t.Errorf("%+v RowBytes = %d, want %d", tc.h, got, tc.rowBytes)
		}
		if got := tc.h.BytesPerPixel(); got != tc.bpp {
			t.Errorf("%+v BytesPerPixel = %d, want %d", tc.h, got, tc.bpp)
		}
	}
}
