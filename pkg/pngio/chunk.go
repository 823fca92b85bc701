package pngio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Signature is the 8-byte PNG file signature.
var Signature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Well-known chunk tags.
const (
	TagIHDR = "IHDR"
	TagPLTE = "PLTE"
	TagIDAT = "IDAT"
	TagIEND = "IEND"
)

var (
	// ErrInvalidSignature indicates the stream does not start with the
	// PNG signature.
	ErrInvalidSignature = errors.New("pngio: invalid PNG signature")
	// ErrNotIHDR indicates the first chunk of the stream is not IHDR.
	ErrNotIHDR = errors.New("pngio: first chunk is not IHDR")
	// ErrBadLength indicates a chunk declares more data than the stream
	// holds, or IHDR data is not exactly 13 bytes.
	ErrBadLength = errors.New("pngio: bad chunk length")
	// ErrIncomplete indicates the stream ended inside a chunk.
	ErrIncomplete = errors.New("pngio: truncated chunk stream")
)

// CRCError reports a stored CRC that does not match the CRC computed
// over a chunk's type and data.
type CRCError struct {
	ChunkType string
	Stored    uint32
	Computed  uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("pngio: CRC mismatch in %q chunk: stored %08x, computed %08x",
		e.ChunkType, e.Stored, e.Computed)
}

// Chunk is one PNG chunk. CRC is computed over Type‖Data with the
// standard IEEE polynomial.
type Chunk struct {
	Type string // 4-byte ASCII tag
	Data []byte
	CRC  uint32
}

// BuildChunk constructs a chunk for the given tag and data, computing
// its CRC. It panics if the tag is not exactly 4 bytes, which is a
// programming error rather than an input error.
func BuildChunk(tag string, data []byte) Chunk {
	if len(tag) != 4 {
		panic("pngio: chunk tag must be 4 bytes")
	}
	h := crc32.NewIEEE()
	h.Write([]byte(tag))
	h.Write(data)
	return Chunk{Type: tag, Data: data, CRC: h.Sum32()}
}

// AppendTo serializes the chunk onto dst: big-endian length, tag, data,
// CRC.
func (c Chunk) AppendTo(dst []byte) []byte {
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(c.Data)))
	dst = append(dst, u32[:]...)
	dst = append(dst, c.Type...)
	dst = append(dst, c.Data...)
	binary.BigEndian.PutUint32(u32[:], c.CRC)
	return append(dst, u32[:]...)
}

// Serialize returns the chunk's wire representation.
func (c Chunk) Serialize() []byte {
	return c.AppendTo(make([]byte, 0, 12+len(c.Data)))
}

// BuildContainer concatenates the PNG signature and the serialized
// chunks into a complete byte stream.
func BuildContainer(chunks []Chunk) []byte {
	size := len(Signature)
	for _, c := range chunks {
		size += 12 + len(c.Data)
	}
	out := make([]byte, 0, size)
	out = append(out, Signature...)
	for _, c := range chunks {
		out = c.AppendTo(out)
	}
	return out
}

// cursor is a value-semantics read position over a byte stream. Every
// read returns an advanced copy, so no parse state is ever shared or
// mutated in place.
type cursor struct {
	data []byte
	off  int
}

func (cu cursor) remaining() int { return len(cu.data) - cu.off }

// readChunk parses one chunk at the cursor, verifying its CRC, and
// returns the advanced cursor.
func (cu cursor) readChunk() (Chunk, cursor, error) {
	if cu.remaining() < 12 {
		return Chunk{}, cu, ErrIncomplete
	}
	length := binary.BigEndian.Uint32(cu.data[cu.off:])
	tagStart := cu.off + 4
	tag := string(cu.data[tagStart : tagStart+4])
	dataStart := tagStart + 4
	if int64(cu.remaining()-12) < int64(length) {
		return Chunk{}, cu, fmt.Errorf("%w: %q declares %d data bytes, %d available",
			ErrBadLength, tag, length, cu.remaining()-12)
	}
	data := cu.data[dataStart : dataStart+int(length)]
	stored := binary.BigEndian.Uint32(cu.data[dataStart+int(length):])

	h := crc32.NewIEEE()
	h.Write(cu.data[tagStart : dataStart+int(length)])
	if computed := h.Sum32(); computed != stored {
		return Chunk{}, cu, &CRCError{ChunkType: tag, Stored: stored, Computed: computed}
	}
	next := cursor{data: cu.data, off: dataStart + int(length) + 4}
	return Chunk{Type: tag, Data: data, CRC: stored}, next, nil
}

// ReadAllChunks parses a complete PNG stream into its chunks. Parsing
// is fail-fast: any truncation or CRC mismatch aborts with no partial
// result. The first chunk must be IHDR.
func ReadAllChunks(data []byte) ([]Chunk, error) {
	if !bytes.HasPrefix(data, Signature) {
		return nil, ErrInvalidSignature
	}
	cu := cursor{data: data, off: len(Signature)}
	var chunks []Chunk
	for cu.remaining() > 0 {
		c, next, err := cu.readChunk()
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 && c.Type != TagIHDR {
			return nil, ErrNotIHDR
		}
		chunks = append(chunks, c)
		cu = next
		if c.Type == TagIEND {
			break
		}
	}
	if len(chunks) == 0 {
		return nil, ErrIncomplete
	}
	return chunks, nil
}

// ParseHeader parses the signature and the leading IHDR chunk of a PNG
// stream into an ImageHeader. It reads no further than the first chunk.
func ParseHeader(data []byte) (ImageHeader, error) {
	if !bytes.HasPrefix(data, Signature) {
		return ImageHeader{}, ErrInvalidSignature
	}
	c, _, err := cursor{data: data, off: len(Signature)}.readChunk()
	if err != nil {
		return ImageHeader{}, err
	}
	if c.Type != TagIHDR {
		return ImageHeader{}, ErrNotIHDR
	}
	if len(c.Data) != 13 {
		return ImageHeader{}, fmt.Errorf("%w: IHDR data is %d bytes, want 13", ErrBadLength, len(c.Data))
	}
	h := ImageHeader{
		Width:             binary.BigEndian.Uint32(c.Data[0:4]),
		Height:            binary.BigEndian.Uint32(c.Data[4:8]),
		BitDepth:          c.Data[8],
		ColorType:         ColorType(c.Data[9]),
		CompressionMethod: c.Data[10],
		FilterMethod:      c.Data[11],
		InterlaceMethod:   c.Data[12],
	}
	if err := h.Validate(); err != nil {
		return ImageHeader{}, err
	}
	return h, nil
}
