// Package primitives defines the value types exchanged between the routing
// engine and its collaborators: pads, obstacles, nets and components on the
// input side, segments, vias and routes on the output side.
//
// All coordinates are in millimetres with KiCad's orientation (Y grows
// downwards). Layers of inputs are named ("F.Cu", "In1.Cu"), layers of
// outputs are indices into the job's layer stack.
package primitives

import (
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// Point is a board coordinate in millimetres
type Point = sexp.Position

// AllLayers is the layer name that places a pad or obstacle on every copper layer
const AllLayers = "*.Cu"

// Pad is a component pad to be connected
type Pad struct {
	Number      string    // Pad number within the component (e.g., "1", "A3")
	Position    Point     // Absolute centre
	Size        sexp.Size // Copper size after rotation
	Layer       string    // Copper layer name, AllLayers for through-hole
	NetID       int       // 0 when unconnected
	NetName     string
	ThroughHole bool
	Drill       float64 // Hole diameter, through-hole pads only
	Component   string  // Owning component reference
}

// Bounds returns the pad's copper rectangle
func (p Pad) Bounds() sexp.BoundingBox {
	return sexp.RectAround(p.Position, p.Size)
}

// OnAllLayers reports whether the pad has copper on every layer
func (p Pad) OnAllLayers() bool {
	return p.ThroughHole || p.Layer == AllLayers || p.Layer == ""
}

func (p Pad) String() string {
	return fmt.Sprintf("%s.%s@(%.3f,%.3f)", p.Component, p.Number, p.Position.X, p.Position.Y)
}

// Obstacle is fixed copper or a keepout that no route may cross. An empty
// Layers list means every copper layer.
type Obstacle struct {
	Bounds sexp.BoundingBox
	Layers []string
	NetID  int // Owning net for fixed copper, 0 for keepouts
	Label  string
}

// Component is a placed part with its pads
type Component struct {
	Ref  string
	Pads []Pad
}

// Pad returns the pad with the given number
func (c Component) Pad(number string) (Pad, bool) {
	for _, p := range c.Pads {
		if p.Number == number {
			return p, true
		}
	}
	return Pad{}, false
}

// PinRef names one pin of one component
type PinRef struct {
	Ref string
	Pin string
}

func (p PinRef) String() string { return p.Ref + "." + p.Pin }

// Net is a set of pins that must be joined
type Net struct {
	ID   int
	Name string
	Pins []PinRef
}

// BoardGeometry is the routable area
type BoardGeometry struct {
	Origin  Point   // Top-left corner
	Width   float64 // Extent along X
	Height  float64 // Extent along Y
	Outline []Point // Optional outline polygon, rectangle when empty
}

// Bounds returns the board rectangle
func (b BoardGeometry) Bounds() sexp.BoundingBox {
	return sexp.BoundingBox{
		Min: b.Origin,
		Max: Point{X: b.Origin.X + b.Width, Y: b.Origin.Y + b.Height},
	}
}

// Contains reports whether p lies inside the outline (or the rectangle)
func (b BoardGeometry) Contains(p Point) bool {
	if !b.Bounds().Contains(p) {
		return false
	}
	if len(b.Outline) < 3 {
		return true
	}
	return pointInPolygon(p, b.Outline)
}

// pointInPolygon is the even-odd ray casting test
func pointInPolygon(p Point, poly []Point) bool {
	inside := false
	j := len(poly) - 1
	for i := range poly {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Segment is a straight copper run on one layer
type Segment struct {
	Start Point
	End   Point
	Width float64
	Layer int
	Net   int
}

// Length returns the segment length
func (s Segment) Length() float64 { return s.Start.Dist(s.End) }

// Direction returns End-Start
func (s Segment) Direction() Point { return s.End.Sub(s.Start) }

// Reversed returns the segment with swapped endpoints
func (s Segment) Reversed() Segment {
	s.Start, s.End = s.End, s.Start
	return s
}

// Contains reports whether p lies on the segment within tol
func (s Segment) Contains(p Point, tol float64) bool {
	return DistToSegment(p, s.Start, s.End) <= tol
}

// Via is a plated hole joining a span of layers
type Via struct {
	Position   Point
	Drill      float64
	Diameter   float64
	StartLayer int
	EndLayer   int
	Net        int
	Type       rules.ViaType
}

// Spans reports whether the via has copper on layer
func (v Via) Spans(layer int) bool {
	return layer >= v.StartLayer && layer <= v.EndLayer
}

// DistToSegment returns the distance from p to segment ab
func DistToSegment(p, a, b Point) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / l2
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	return p.Dist(a.Add(ab.Scale(t)))
}

// CollapseCollinear removes duplicate points and interior points that
// continue straight in the same direction.
func CollapseCollinear(pts []Point) []Point {
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1].Near(p, sexp.Epsilon) {
			continue
		}
		if len(out) >= 2 && Straight(out[len(out)-2], out[len(out)-1], p) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// Straight reports whether b lies on the line from a to c between them,
// so that a-b-c can be replaced by a-c.
func Straight(a, b, c Point) bool {
	u, v := b.Sub(a), c.Sub(b)
	lu, lv := math.Hypot(u.X, u.Y), math.Hypot(v.X, v.Y)
	if lu == 0 || lv == 0 {
		return true
	}
	if math.Abs(sexp.Cross(u, v)) > 1e-9*lu*lv {
		return false
	}
	return u.X*v.X+u.Y*v.Y > 0
}
