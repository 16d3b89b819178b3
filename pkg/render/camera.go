package render

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
)

// Camera maps board millimetres onto image pixels. KiCad's Y axis points
// down like the image's, so no axis is inverted.
type Camera struct {
	// Center position in world coordinates (mm)
	CenterX float64
	CenterY float64

	// Zoom level (pixels per mm)
	Zoom float64

	// Screen dimensions (pixels)
	ScreenWidth  int
	ScreenHeight int

	// FlipView mirrors X to show the board from below
	FlipView bool
}

// NewCamera creates a camera with default settings
func NewCamera(screenWidth, screenHeight int) *Camera {
	return &Camera{
		Zoom:         10.0, // 10 pixels per mm is a reasonable default
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
	}
}

// WorldToScreen converts world coordinates (mm) to screen coordinates (pixels)
func (c *Camera) WorldToScreen(pos sexp.Position) (float64, float64) {
	x := (pos.X - c.CenterX) * c.Zoom
	y := (pos.Y - c.CenterY) * c.Zoom
	if c.FlipView {
		x = -x
	}
	return x + float64(c.ScreenWidth)/2.0, y + float64(c.ScreenHeight)/2.0
}

// Length converts a world length to pixels
func (c *Camera) Length(mm float64) float64 {
	return mm * c.Zoom
}

// Fit centres the content and zooms so that it fills 90% of the screen
func (c *Camera) Fit(bbox sexp.BoundingBox) {
	width := bbox.Width()
	height := bbox.Height()
	if width <= 0 || height <= 0 {
		return
	}

	center := bbox.Center()
	c.CenterX, c.CenterY = center.X, center.Y

	zoomX := float64(c.ScreenWidth) * 0.9 / width
	zoomY := float64(c.ScreenHeight) * 0.9 / height
	c.Zoom = min(zoomX, zoomY)
}
