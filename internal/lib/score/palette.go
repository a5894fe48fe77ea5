package score

import (
	"fmt"
	"math"
)

// Color is an opaque RGB presentation color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex renders the color as a #rrggbb string.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette selects how scores map to colors. Palette choice never affects
// the score itself.
type Palette string

const (
	// PaletteStandard interpolates red through yellow to green.
	PaletteStandard Palette = "standard"
	// PaletteHeatmap interpolates blue through green to red, with red
	// marking the roughest surfaces.
	PaletteHeatmap Palette = "heatmap"
	// PaletteHighContrast uses three stepped bands for accessibility.
	PaletteHighContrast Palette = "high_contrast"
)

// ColorFor maps a score in [0,1] to a color from the chosen palette.
func ColorFor(score float64, palette Palette) Color {
	s := math.Max(0, math.Min(1, score))
	switch palette {
	case PaletteHeatmap:
		// Low scores run hot.
		if s < 0.5 {
			return lerpColor(Color{R: 0xd6, G: 0x2b, B: 0x2b}, Color{R: 0x2e, G: 0xa8, B: 0x4f}, s*2)
		}
		return lerpColor(Color{R: 0x2e, G: 0xa8, B: 0x4f}, Color{R: 0x2b, G: 0x6c, B: 0xd6}, (s-0.5)*2)
	case PaletteHighContrast:
		switch {
		case s >= 0.85:
			return Color{R: 0x00, G: 0x66, B: 0x00}
		case s >= 0.60:
			return Color{R: 0xff, G: 0xb3, B: 0x00}
		default:
			return Color{R: 0xcc, G: 0x00, B: 0x00}
		}
	default:
		if s < 0.5 {
			return lerpColor(Color{R: 0xe0, G: 0x3c, B: 0x3c}, Color{R: 0xf2, G: 0xc9, B: 0x3c}, s*2)
		}
		return lerpColor(Color{R: 0xf2, G: 0xc9, B: 0x3c}, Color{R: 0x3c, G: 0xb0, B: 0x55}, (s-0.5)*2)
	}
}

func lerpColor(a, b Color, t float64) Color {
	t = math.Max(0, math.Min(1, t))
	return Color{
		R: uint8(math.Round(float64(a.R) + t*(float64(b.R)-float64(a.R)))),
		G: uint8(math.Round(float64(a.G) + t*(float64(b.G)-float64(a.G)))),
		B: uint8(math.Round(float64(a.B) + t*(float64(b.B)-float64(a.B)))),
	}
}
