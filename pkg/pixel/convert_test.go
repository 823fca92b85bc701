package pixel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jburnhams/image-stitch-sub000/pkg/pngio"
)

var rgba8 = Format{BitDepth: 8, ColorType: pngio.ColorRGBA}
var rgba16 = Format{BitDepth: 16, ColorType: pngio.ColorRGBA}

func TestConvertScanlineIdentity(t *testing.T) {
	src := []byte{10, 20, 30, 40, 50, 60, 70, 80}
	got, err := ConvertScanline(nil, src, 2, rgba8, rgba8)
	if err != nil {
		t.Fatalf("ConvertScanline: %v", err)
	}
	if &got[0] != &src[0] {
		t.Error("identity conversion should return the input slice unchanged")
	}
}

func TestConvertScanlineUnsupportedTarget(t *testing.T) {
	_, err := ConvertScanline(nil, []byte{1, 2, 3}, 1, Format{BitDepth: 8, ColorType: pngio.ColorRGB},
		Format{BitDepth: 8, ColorType: pngio.ColorRGB})
	if !errors.Is(err, ErrUnsupportedTarget) {
		t.Errorf("error = %v, want ErrUnsupportedTarget", err)
	}
}

func TestConvertScanline(t *testing.T) {
	tests := []struct {
		name  string
		from  Format
		width int
		src   []byte
		to    Format
		want  []byte
	}{
		{
			name:  "gray8 to rgba8",
			from:  Format{BitDepth: 8, ColorType: pngio.ColorGray},
			width: 2,
			src:   []byte{0, 200},
			to:    rgba8,
			want:  []byte{0, 0, 0, 255, 200, 200, 200, 255},
		},
		{
			name:  "gray1 msb first",
			from:  Format{BitDepth: 1, ColorType: pngio.ColorGray},
			width: 3,
			src:   []byte{0b101_00000},
			to:    rgba8,
			want: []byte{
				255, 255, 255, 255,
				0, 0, 0, 255,
				255, 255, 255, 255,
			},
		},
		{
			name:  "gray2 scaling",
			from:  Format{BitDepth: 2, ColorType: pngio.ColorGray},
			width: 4,
			src:   []byte{0b00_01_10_11},
			to:    rgba8,
			// round(v*255/3): 0, 85, 170, 255
			want: []byte{
				0, 0, 0, 255,
				85, 85, 85, 255,
				170, 170, 170, 255,
				255, 255, 255, 255,
			},
		},
		{
			name:  "rgb8 gains opaque alpha",
			from:  Format{BitDepth: 8, ColorType: pngio.ColorRGB},
			width: 2,
			src:   []byte{1, 2, 3, 4, 5, 6},
			to:    rgba8,
			want:  []byte{1, 2, 3, 255, 4, 5, 6, 255},
		},
		{
			name:  "grayalpha8",
			from:  Format{BitDepth: 8, ColorType: pngio.ColorGrayAlpha},
			width: 1,
			src:   []byte{100, 50},
			to:    rgba8,
			want:  []byte{100, 100, 100, 50},
		},
		{
			name: "palette4",
			from: Format{
				BitDepth:  4,
				ColorType: pngio.ColorPalette,
				Palette:   [][3]uint8{{9, 9, 9}, {1, 2, 3}, {4, 5, 6}},
			},
			width: 2,
			src:   []byte{0x21},
			to:    rgba8,
			want:  []byte{4, 5, 6, 255, 1, 2, 3, 255},
		},
		{
			name:  "rgba8 promoted to rgba16",
			from:  rgba8,
			width: 1,
			src:   []byte{0, 255, 1, 128},
			to:    rgba16,
			// v*257 big-endian
			want: []byte{0, 0, 255, 255, 1, 1, 128, 128},
		},
		{
			name:  "rgba16 demoted to rgba8",
			from:  rgba16,
			width: 1,
			src:   []byte{0xFF, 0xFF, 0x80, 0x80, 0x00, 0x00, 0x01, 0x01},
			to:    rgba8,
			want:  []byte{255, 128, 0, 1},
		},
		{
			name:  "gray16 to rgba16 keeps precision",
			from:  Format{BitDepth: 16, ColorType: pngio.ColorGray},
			width: 1,
			src:   []byte{0x12, 0x34},
			to:    rgba16,
			want:  []byte{0x12, 0x34, 0x12, 0x34, 0x12, 0x34, 0xFF, 0xFF},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ConvertScanline(nil, tc.src, tc.width, tc.from, tc.to)
			if err != nil {
				t.Fatalf("ConvertScanline: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("got  %v\nwant %v", got, tc.want)
			}
		})
	}
}

func TestConvertScanlineErrors(t *testing.T) {
	t.Run("row length mismatch", func(t *testing.T) {
		_, err := ConvertScanline(nil, []byte{1, 2, 3}, 2, Format{BitDepth: 8, ColorType: pngio.ColorRGB}, rgba8)
		if !errors.Is(err, ErrRowLength) {
			t.Errorf("error = %v, want ErrRowLength", err)
		}
	})
	t.Run("missing palette", func(t *testing.T) {
		_, err := ConvertScanline(nil, []byte{0}, 1, Format{BitDepth: 8, ColorType: pngio.ColorPalette}, rgba8)
		if !errors.Is(err, ErrMissingPalette) {
			t.Errorf("error = %v, want ErrMissingPalette", err)
		}
	})
	t.Run("palette index out of range", func(t *testing.T) {
		from := Format{BitDepth: 8, ColorType: pngio.ColorPalette, Palette: [][3]uint8{{0, 0, 0}}}
		if _, err := ConvertScanline(nil, []byte{5}, 1, from, rgba8); err == nil {
			t.Error("expected out-of-range error")
		}
	})
}

// The whole-buffer variant must match per-scanline conversion exactly.
func TestConvertImageMatchesScanline(t *testing.T) {
	from := Format{BitDepth: 8, ColorType: pngio.ColorRGB}
	width, height := 3, 4
	src := make([]byte, from.rowBytes(width)*height)
	for i := range src {
		src[i] = byte(i * 7)
	}

	whole, err := ConvertImage(src, width, height, from, rgba8)
	if err != nil {
		t.Fatalf("ConvertImage: %v", err)
	}

	srcStride := from.rowBytes(width)
	dstStride := rgba8.rowBytes(width)
	for y := 0; y < height; y++ {
		row, err := ConvertScanline(nil, src[y*srcStride:(y+1)*srcStride], width, from, rgba8)
		if err != nil {
			t.Fatalf("ConvertScanline row %d: %v", y, err)
		}
		if !bytes.Equal(whole[y*dstStride:(y+1)*dstStride], row) {
			t.Errorf("row %d differs between whole-buffer and scanline conversion", y)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"", Transparent, false},
		{"transparent", Transparent, false},
		{"white", Color{255, 255, 255, 255}, false},
		{"Black", Color{0, 0, 0, 255}, false},
		{"#fff", Color{255, 255, 255, 255}, false},
		{"#f00f", Color{255, 0, 0, 255}, false},
		{"#102030", Color{16, 32, 48, 255}, false},
		{"#10203040", Color{16, 32, 48, 64}, false},
		{"1,2,3", Color{1, 2, 3, 255}, false},
		{"1, 2, 3, 4", Color{1, 2, 3, 4}, false},
		{"not-a-color", Color{}, true},
		{"#12345", Color{}, true},
		{"1,2", Color{}, true},
		{"300,0,0", Color{}, true},
	}
	for _, tc := range tests {
		got, err := ParseColor(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestColorAppendSamples(t *testing.T) {
	c := Color{255, 0, 128, 1}
	if got := c.AppendSamples(nil, 8); !bytes.Equal(got, []byte{255, 0, 128, 1}) {
		t.Errorf("8-bit samples = %v", got)
	}
	want16 := []byte{0xFF, 0xFF, 0, 0, 0x80, 0x80, 0x01, 0x01}
	if got := c.AppendSamples(nil, 16); !bytes.Equal(got, want16) {
		t.Errorf("16-bit samples = %v, want %v", got, want16)
	}
}
