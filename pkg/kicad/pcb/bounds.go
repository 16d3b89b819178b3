package pcb

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
)

// GetBoundingBox returns the board extent: the Edge.Cuts drawings when
// present, otherwise everything with copper.
func (b *Board) GetBoundingBox() BoundingBox {
	if bbox := b.Edges.BoundingBox(); !bbox.IsEmpty() {
		return bbox
	}
	bbox := NewBoundingBox()
	for _, track := range b.Tracks {
		bbox.Expand(track.Start)
		bbox.Expand(track.End)
	}
	for _, via := range b.Vias {
		bbox.ExpandBox(sexp.RectAround(via.Position, Size{Width: via.Size, Height: via.Size}))
	}
	for _, fp := range b.Footprints {
		bbox.ExpandBox(fp.GetBoundingBox())
	}
	return bbox
}

// GetBoundingBox calculates the bounding box of a footprint's pads
func (fp *Footprint) GetBoundingBox() BoundingBox {
	bbox := NewBoundingBox()
	for _, pad := range fp.Pads {
		bbox.ExpandBox(sexp.RectAround(fp.TransformPosition(pad.Position), pad.AbsoluteSize()))
	}
	// If no pads, at least include footprint position
	if len(fp.Pads) == 0 {
		bbox.Expand(fp.Position.Position)
	}
	return bbox
}

// TransformPosition transforms a relative position by footprint position and rotation
func (fp *Footprint) TransformPosition(relPos PositionAngle) Position {
	return fp.Position.Position.Add(relPos.Position.Rotate(fp.Position.Angle))
}

// AbsoluteSize returns the axis-aligned extent of the pad after its
// rotation. The angle stored on a pad already includes the footprint's.
func (p Pad) AbsoluteSize() Size {
	rad := float64(p.Position.Angle) * math.Pi / 180
	c, s := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	// Snap multiples of 90 degrees so that sizes stay exact
	if c < 1e-9 {
		c, s = 0, 1
	} else if s < 1e-9 {
		c, s = 1, 0
	}
	return Size{
		Width:  p.Size.Width*c + p.Size.Height*s,
		Height: p.Size.Width*s + p.Size.Height*c,
	}
}
