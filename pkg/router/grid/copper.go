package grid

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// tileSize is the edge of a shape index bucket in mm
const tileSize = 2.0

// Shape is fixed geometry kept at full precision next to the lattice. The
// lattice halos are sized for a default trace; CopperClear measures vias
// and wider or stricter nets against the shapes themselves.
type Shape struct {
	Bounds    sexp.BoundingBox
	Layers    []int   // nil = all layers
	Net       int     // 0 = no net
	Clearance float64 // Clearance the shape demands from other nets
	Keepout   bool    // No copper at all, no clearance added
}

type shapeEntry struct {
	Shape
	mask uint64
}

type tileKey struct{ x, y int }

func layerMask(layers []int) uint64 {
	if len(layers) == 0 {
		return ^uint64(0)
	}
	var m uint64
	for _, l := range layers {
		if l >= 0 && l < 64 {
			m |= 1 << uint(l)
		}
	}
	return m
}

func (g *Grid) tileOf(x, y float64) tileKey {
	return tileKey{
		x: int(math.Floor((x - g.origin.X) / tileSize)),
		y: int(math.Floor((y - g.origin.Y) / tileSize)),
	}
}

// AddShape records fixed copper, or a keepout, for exact clearance checks.
// Shapes are added while the grid is prepared, before it is cloned.
func (g *Grid) AddShape(s Shape) {
	if s.Bounds.IsEmpty() {
		return
	}
	if g.tiles == nil {
		g.tiles = make(map[tileKey][]int)
	}
	idx := len(g.shapes)
	g.shapes = append(g.shapes, shapeEntry{Shape: s, mask: layerMask(s.Layers)})
	if !s.Keepout {
		g.maxClearance = math.Max(g.maxClearance, s.Clearance)
	}
	lo, hi := g.tileOf(s.Bounds.Min.X, s.Bounds.Min.Y), g.tileOf(s.Bounds.Max.X, s.Bounds.Max.Y)
	for y := lo.y; y <= hi.y; y++ {
		for x := lo.x; x <= hi.x; x++ {
			k := tileKey{x, y}
			g.tiles[k] = append(g.tiles[k], idx)
		}
	}
}

// Shapes returns the number of recorded shapes
func (g *Grid) Shapes() int { return len(g.shapes) }

// CopperClear reports whether copper of the given width swept along a-b on
// layer keeps clearance from every shape of another net, stays out of
// keepouts and keeps EdgeClearance from the board edge. A via is checked as
// the point a-a with its diameter as width.
func (g *Grid) CopperClear(a, b sexp.Position, layer, net int, width, clearance float64) bool {
	const eps = 1e-9
	half := width / 2
	if g.hasBoard && g.edgeDist(a, b) < half+g.rules.EdgeClearance-eps {
		return false
	}
	if len(g.shapes) == 0 || layer < 0 || layer >= 64 {
		return true
	}
	bit := uint64(1) << uint(layer)
	reach := half + math.Max(clearance, g.maxClearance)
	lo := g.tileOf(math.Min(a.X, b.X)-reach, math.Min(a.Y, b.Y)-reach)
	hi := g.tileOf(math.Max(a.X, b.X)+reach, math.Max(a.Y, b.Y)+reach)
	for y := lo.y; y <= hi.y; y++ {
		for x := lo.x; x <= hi.x; x++ {
			for _, i := range g.tiles[tileKey{x, y}] {
				s := &g.shapes[i]
				if s.mask&bit == 0 || (s.Net != 0 && s.Net == net) {
					continue
				}
				need := half
				if !s.Keepout {
					need += math.Max(clearance, s.Clearance)
				}
				if segmentBoxDist(a, b, s.Bounds) < need-eps {
					return false
				}
			}
		}
	}
	return true
}

// TraceNear reports whether a committed centerline of another net lies on
// a cell of disc around (col, row).
func (g *Grid) TraceNear(col, row, layer int, disc []Offset, net int) bool {
	for _, o := range disc {
		c := g.At(col+o.DC, row+o.DR, layer)
		if c != nil && c.Trace && c.Net != net {
			return true
		}
	}
	return false
}

// edgeDist returns the distance from segment a-b to the board edge,
// negative when an endpoint lies outside a rectangular board.
func (g *Grid) edgeDist(a, b sexp.Position) float64 {
	if poly := g.board.Outline; len(poly) >= 3 {
		best := math.Inf(1)
		j := len(poly) - 1
		for i := range poly {
			best = math.Min(best, segmentDist(a, b, poly[j], poly[i]))
			j = i
		}
		return best
	}
	bb := g.board.Bounds()
	inside := func(p sexp.Position) float64 {
		return min(p.X-bb.Min.X, bb.Max.X-p.X, p.Y-bb.Min.Y, bb.Max.Y-p.Y)
	}
	return math.Min(inside(a), inside(b))
}

// segmentBoxDist returns the distance between segment a-b and the box
func segmentBoxDist(a, b sexp.Position, bb sexp.BoundingBox) float64 {
	if clipsBox(a, b, bb) {
		return 0
	}
	d := math.Min(distToBox(a, bb), distToBox(b, bb))
	corners := [4]sexp.Position{
		bb.Min, {X: bb.Max.X, Y: bb.Min.Y}, bb.Max, {X: bb.Min.X, Y: bb.Max.Y},
	}
	for _, c := range corners {
		d = math.Min(d, primitives.DistToSegment(c, a, b))
	}
	return d
}

// clipsBox is the Liang-Barsky test of segment a-b against the box
func clipsBox(a, b sexp.Position, bb sexp.BoundingBox) bool {
	d := b.Sub(a)
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-d.X, a.X - bb.Min.X},
		{d.X, bb.Max.X - a.X},
		{-d.Y, a.Y - bb.Min.Y},
		{d.Y, bb.Max.Y - a.Y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return false
			}
			t1 = math.Min(t1, t)
		}
	}
	return t0 <= t1
}

// segmentDist returns the distance between segments a-b and c-d
func segmentDist(a, b, c, d sexp.Position) float64 {
	if segmentsCross(a, b, c, d) {
		return 0
	}
	return min(
		primitives.DistToSegment(a, c, d), primitives.DistToSegment(b, c, d),
		primitives.DistToSegment(c, a, b), primitives.DistToSegment(d, a, b),
	)
}

func segmentsCross(a, b, c, d sexp.Position) bool {
	orient := func(p, q, r sexp.Position) float64 {
		return (q.X-p.X)*(r.Y-p.Y) - (q.Y-p.Y)*(r.X-p.X)
	}
	d1, d2 := orient(c, d, a), orient(c, d, b)
	d3, d4 := orient(a, b, c), orient(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
