package render

import (
	"fmt"
	"image/color"
)

// ColorTheme selects a KiCad colour theme
type ColorTheme int

const (
	ThemeClassic ColorTheme = iota
	ThemeKiCad2020
)

// ThemeNames maps theme enum to display name
var ThemeNames = map[ColorTheme]string{
	ThemeClassic:   "Classic",
	ThemeKiCad2020: "KiCad 2020",
}

// ParseTheme looks a theme up by display name, case-sensitively
func ParseTheme(name string) (ColorTheme, bool) {
	for t, n := range ThemeNames {
		if n == name {
			return t, true
		}
	}
	return ThemeClassic, false
}

// KiCad Classic theme colors
var classicColors = map[string]color.NRGBA{
	"F.Cu":      {R: 200, G: 52, B: 52, A: 255},  // Front copper (red)
	"B.Cu":      {R: 77, G: 127, B: 196, A: 255}, // Back copper (blue)
	"In1.Cu":    {R: 127, G: 200, B: 127, A: 255},
	"In2.Cu":    {R: 206, G: 125, B: 44, A: 255},
	"In3.Cu":    {R: 79, G: 203, B: 203, A: 255},
	"In4.Cu":    {R: 219, G: 98, B: 139, A: 255},
	"Edge.Cuts": {R: 208, G: 210, B: 205, A: 255},
}

// KiCad 2020 theme colors (modern, higher contrast)
var kicad2020Colors = map[string]color.NRGBA{
	"F.Cu":      {R: 179, G: 31, B: 31, A: 255},
	"B.Cu":      {R: 12, G: 98, B: 179, A: 255},
	"In1.Cu":    {R: 194, G: 194, B: 0, A: 255},
	"In2.Cu":    {R: 194, G: 0, B: 194, A: 255},
	"In3.Cu":    {R: 0, G: 194, B: 194, A: 255},
	"In4.Cu":    {R: 126, G: 194, B: 0, A: 255},
	"Edge.Cuts": {R: 255, G: 255, B: 0, A: 255},
}

// Special colors
var (
	ColorPad        = color.NRGBA{R: 227, G: 183, B: 46, A: 255}  // Pad copper (gold)
	ColorVia        = color.NRGBA{R: 236, G: 236, B: 236, A: 255} // Via (light gray)
	ColorDrill      = color.NRGBA{R: 0, G: 16, B: 35, A: 255}     // Hole, same as background
	ColorObstacle   = color.NRGBA{R: 150, G: 150, B: 150, A: 160} // Fixed copper and holes
	ColorKeepout    = color.NRGBA{R: 255, G: 38, B: 226, A: 70}   // Keepout area
	ColorOverflow   = color.NRGBA{R: 255, G: 0, B: 0, A: 150}     // Overused grid cell
	ColorBackground = color.NRGBA{R: 0, G: 16, B: 35, A: 255}     // Background (dark blue)
)

// SubstrateColor returns the board fill of theme
func SubstrateColor(theme ColorTheme) color.NRGBA {
	if theme == ThemeKiCad2020 {
		return color.NRGBA{R: 25, G: 95, B: 55, A: 255} // Slightly brighter green
	}
	return color.NRGBA{R: 20, G: 90, B: 50, A: 255} // Dark green (classic PCB)
}

// LayerColor returns the colour of a layer in theme. Unknown inner layers
// cycle through the inner layer colours.
func LayerColor(theme ColorTheme, layer string) color.NRGBA {
	colors := classicColors
	if theme == ThemeKiCad2020 {
		colors = kicad2020Colors
	}
	if c, ok := colors[layer]; ok {
		return c
	}
	var n int
	if _, err := fmt.Sscanf(layer, "In%d.Cu", &n); err == nil && n > 0 {
		return colors[fmt.Sprintf("In%d.Cu", (n-1)%4+1)]
	}
	// Default to gray for unknown layers
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}
