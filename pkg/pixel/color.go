package pixel

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an 8-bit RGBA background color. The zero value is fully
// transparent.
type Color [4]uint8

// Transparent is the default padding color.
var Transparent = Color{0, 0, 0, 0}

var namedColors = map[string]Color{
	"transparent": {0, 0, 0, 0},
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"lime":        {0, 255, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"cyan":        {0, 255, 255, 255},
	"magenta":     {255, 0, 255, 255},
	"gray":        {128, 128, 128, 255},
	"silver":      {192, 192, 192, 255},
}

// ParseColor parses a background color given as a named color
// ("white"), a hex literal ("#fff", "#ffff", "#rrggbb", "#rrggbbaa"),
// or a decimal tuple ("r,g,b" or "r,g,b,a"). An empty string is the
// default transparent color.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Transparent, nil
	}
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:])
	}
	if strings.Contains(s, ",") {
		return parseTupleColor(s)
	}
	return Color{}, fmt.Errorf("pixel: unknown color %q", s)
}

func parseHexColor(hex string) (Color, error) {
	c := Color{0, 0, 0, 255}
	switch len(hex) {
	case 3, 4: // #rgb[a], each digit doubled
		for i := 0; i < len(hex); i++ {
			v, err := strconv.ParseUint(hex[i:i+1], 16, 8)
			if err != nil {
				return Color{}, fmt.Errorf("pixel: invalid hex color %q", "#"+hex)
			}
			c[i] = uint8(v*16 + v)
		}
	case 6, 8: // #rrggbb[aa]
		for i := 0; i*2 < len(hex); i++ {
			v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
			if err != nil {
				return Color{}, fmt.Errorf("pixel: invalid hex color %q", "#"+hex)
			}
			c[i] = uint8(v)
		}
	default:
		return Color{}, fmt.Errorf("pixel: invalid hex color length %q", "#"+hex)
	}
	return c, nil
}

func parseTupleColor(s string) (Color, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("pixel: color tuple must have 3 or 4 components, got %d", len(parts))
	}
	c := Color{0, 0, 0, 255}
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return Color{}, fmt.Errorf("pixel: invalid color component %q: %v", p, err)
		}
		c[i] = uint8(v)
	}
	return c, nil
}

// AppendSamples appends the color as one RGBA pixel at the given bit
// depth (8 or 16, big-endian samples). 8-bit components scale to
// 16-bit by v*257, which equals round(v*65535/255).
func (c Color) AppendSamples(dst []byte, bitDepth uint8) []byte {
	for _, v := range c {
		if bitDepth == 16 {
			w := uint16(v) * 257
			dst = append(dst, uint8(w>>8), uint8(w))
		} else {
			dst = append(dst, v)
		}
	}
	return dst
}
