// Package sexp provides the geometry types shared by the KiCad board loader
// and the routing engine, plus helpers to read them from S-expression nodes.
package sexp

import "math"

// Coordinate conversion constants
const (
	NanometersToMM = 1e-6 // Convert nm to mm (multiply by this)
	MMToNanometers = 1e6  // Convert mm to nm (multiply by this)
)

// Epsilon is the coordinate tolerance in mm used for point equality.
const Epsilon = 1e-6

// Position represents a 2D coordinate in millimetres
type Position struct {
	X float64 // X coordinate in mm
	Y float64 // Y coordinate in mm
}

// Angle represents rotation in degrees
type Angle float64

// PositionAngle combines position with rotation
type PositionAngle struct {
	Position
	Angle Angle
}

// Size represents dimensions
type Size struct {
	Width  float64 // Width in mm
	Height float64 // Height in mm
}

// Add returns p+q.
func (p Position) Add(q Position) Position { return Position{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Position) Sub(q Position) Position { return Position{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale returns p*k.
func (p Position) Scale(k float64) Position { return Position{X: p.X * k, Y: p.Y * k} }

// Dist returns the Euclidean distance between p and q.
func (p Position) Dist(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Near reports whether p and q coincide within tol.
func (p Position) Near(q Position, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol
}

// Rotate rotates p around the origin by deg degrees. KiCad's Y axis points
// down, so a positive angle turns counter-clockwise on screen.
func (p Position) Rotate(deg Angle) Position {
	if deg == 0 {
		return p
	}
	rad := -float64(deg) * math.Pi / 180.0
	cos, sin := math.Cos(rad), math.Sin(rad)
	return Position{
		X: p.X*cos - p.Y*sin,
		Y: p.X*sin + p.Y*cos,
	}
}

// Cross returns the z component of the cross product of a and b.
func Cross(a, b Position) float64 {
	return a.X*b.Y - a.Y*b.X
}

// BoundingBox represents a rectangular boundary
type BoundingBox struct {
	Min Position // Minimum (top-left) corner
	Max Position // Maximum (bottom-right) corner
}

// NewBoundingBox creates an empty bounding box
func NewBoundingBox() BoundingBox {
	return BoundingBox{
		Min: Position{X: math.Inf(1), Y: math.Inf(1)},
		Max: Position{X: math.Inf(-1), Y: math.Inf(-1)},
	}
}

// RectAround returns the box of the given size centred on c.
func RectAround(c Position, s Size) BoundingBox {
	return BoundingBox{
		Min: Position{X: c.X - s.Width/2, Y: c.Y - s.Height/2},
		Max: Position{X: c.X + s.Width/2, Y: c.Y + s.Height/2},
	}
}

// IsEmpty checks if the bounding box is empty
func (bb BoundingBox) IsEmpty() bool {
	return bb.Min.X > bb.Max.X || bb.Min.Y > bb.Max.Y
}

// Intersects checks if two bounding boxes intersect
func (bb BoundingBox) Intersects(other BoundingBox) bool {
	return bb.Min.X <= other.Max.X && bb.Max.X >= other.Min.X &&
		bb.Min.Y <= other.Max.Y && bb.Max.Y >= other.Min.Y
}

// Contains checks if a position is within the bounding box
func (bb BoundingBox) Contains(pos Position) bool {
	return pos.X >= bb.Min.X && pos.X <= bb.Max.X &&
		pos.Y >= bb.Min.Y && pos.Y <= bb.Max.Y
}

// Expand grows the bounding box to include a position
func (bb *BoundingBox) Expand(pos Position) {
	bb.Min.X = math.Min(bb.Min.X, pos.X)
	bb.Min.Y = math.Min(bb.Min.Y, pos.Y)
	bb.Max.X = math.Max(bb.Max.X, pos.X)
	bb.Max.Y = math.Max(bb.Max.Y, pos.Y)
}

// ExpandBox grows the bounding box to include another box
func (bb *BoundingBox) ExpandBox(other BoundingBox) {
	if !other.IsEmpty() {
		bb.Expand(other.Min)
		bb.Expand(other.Max)
	}
}

// Inflate returns the box grown by margin on every side.
func (bb BoundingBox) Inflate(margin float64) BoundingBox {
	return BoundingBox{
		Min: Position{X: bb.Min.X - margin, Y: bb.Min.Y - margin},
		Max: Position{X: bb.Max.X + margin, Y: bb.Max.Y + margin},
	}
}

// Width returns the width of the bounding box
func (bb BoundingBox) Width() float64 {
	return bb.Max.X - bb.Min.X
}

// Height returns the height of the bounding box
func (bb BoundingBox) Height() float64 {
	return bb.Max.Y - bb.Min.Y
}

// Center returns the center point of the bounding box
func (bb BoundingBox) Center() Position {
	return Position{
		X: (bb.Min.X + bb.Max.X) / 2.0,
		Y: (bb.Min.Y + bb.Max.Y) / 2.0,
	}
}

// GrLine represents a line graphic element
type GrLine struct {
	Start Position
	End   Position
	Width float64
	Layer string
}

// GrArc represents an arc defined by three points: start, mid and end
type GrArc struct {
	Start Position
	Mid   Position
	End   Position
	Width float64
	Layer string
}

// GrRect represents a rectangle graphic element
type GrRect struct {
	Start Position // Top-left corner
	End   Position // Bottom-right corner
	Width float64
	Layer string
}

// GrCircle is defined by its center and a point on the circumference
type GrCircle struct {
	Center Position
	End    Position
	Width  float64
	Layer  string
}

// GrPoly represents a polygon graphic element
type GrPoly struct {
	Points []Position
	Width  float64
	Layer  string
}

// Graphics contains graphic elements of one or more layers
type Graphics struct {
	Lines   []GrLine
	Arcs    []GrArc
	Rects   []GrRect
	Circles []GrCircle
	Polys   []GrPoly
}

// BoundingBox returns the bounds of every element in g.
func (g Graphics) BoundingBox() BoundingBox {
	bbox := NewBoundingBox()
	for _, l := range g.Lines {
		bbox.Expand(l.Start)
		bbox.Expand(l.End)
	}
	for _, a := range g.Arcs {
		// Approximate, the true extreme of the arc may lie between the points
		bbox.Expand(a.Start)
		bbox.Expand(a.Mid)
		bbox.Expand(a.End)
	}
	for _, r := range g.Rects {
		bbox.Expand(r.Start)
		bbox.Expand(r.End)
	}
	for _, c := range g.Circles {
		radius := c.Center.Dist(c.End)
		bbox.Expand(Position{X: c.Center.X - radius, Y: c.Center.Y - radius})
		bbox.Expand(Position{X: c.Center.X + radius, Y: c.Center.Y + radius})
	}
	for _, p := range g.Polys {
		for _, pt := range p.Points {
			bbox.Expand(pt)
		}
	}
	return bbox
}

// Outline returns the polygon vertices of g in drawing order: polygon points
// first, then rectangle corners, then line endpoints. It is meant for the
// Edge.Cuts layer where the result approximates the board outline.
func (g Graphics) Outline() []Position {
	var pts []Position
	for _, p := range g.Polys {
		pts = append(pts, p.Points...)
	}
	for _, r := range g.Rects {
		pts = append(pts,
			r.Start,
			Position{X: r.End.X, Y: r.Start.Y},
			r.End,
			Position{X: r.Start.X, Y: r.End.Y})
	}
	for _, l := range g.Lines {
		if len(pts) == 0 || !pts[len(pts)-1].Near(l.Start, Epsilon) {
			pts = append(pts, l.Start)
		}
		pts = append(pts, l.End)
	}
	return pts
}
