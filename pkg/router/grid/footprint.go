package grid

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// Footprint is the rasterised copper of a route: centerline cells claimed
// with capacity one, and clearance halo cells around them. The two sets
// are disjoint.
type Footprint struct {
	Center []Coord
	Halo   []Coord
}

// Len returns the number of cells in the footprint
func (f Footprint) Len() int { return len(f.Center) + len(f.Halo) }

// Contains reports whether c is a centerline or halo cell
func (f Footprint) Contains(c Coord) bool {
	for _, x := range f.Center {
		if x == c {
			return true
		}
	}
	for _, x := range f.Halo {
		if x == c {
			return true
		}
	}
	return false
}

type footprintBuilder struct {
	g      *Grid
	center map[Coord]bool
	halo   map[Coord]bool
	fp     Footprint
}

func (b *footprintBuilder) addCenter(c Coord) {
	if !b.g.InBounds(c.Col, c.Row, c.Layer) || b.center[c] {
		return
	}
	b.center[c] = true
	b.fp.Center = append(b.fp.Center, c)
}

func (b *footprintBuilder) addHalo(c Coord) {
	if !b.g.InBounds(c.Col, c.Row, c.Layer) || b.halo[c] {
		return
	}
	b.halo[c] = true
	b.fp.Halo = append(b.fp.Halo, c)
}

// Footprint rasterises a route. Segments claim the cells along their
// centerline and a halo reaching width+clearance; vias claim their pad disc
// on every spanned layer and a halo reaching diameter/2 + the larger of
// clearance and ViaClearance + trace width/2.
func (g *Grid) Footprint(r *primitives.Route, clearance float64) Footprint {
	b := &footprintBuilder{
		g:      g,
		center: make(map[Coord]bool),
		halo:   make(map[Coord]bool),
	}
	discs := make(map[float64][]Offset)
	disc := func(radius float64, inclusive bool) []Offset {
		key := radius
		if inclusive {
			key = -radius
		}
		if d, ok := discs[key]; ok {
			return d
		}
		d := g.Disc(radius, inclusive)
		discs[key] = d
		return d
	}

	var haloSeeds []struct {
		c   Coord
		off []Offset
	}

	for _, s := range r.Segments {
		cells := g.rasterSegment(s.Start, s.End, s.Layer)
		off := disc(s.Width+clearance, false)
		for _, c := range cells {
			b.addCenter(c)
			haloSeeds = append(haloSeeds, struct {
				c   Coord
				off []Offset
			}{c, off})
		}
	}

	for _, v := range r.Vias {
		col, row := g.WorldToGrid(v.Position.X, v.Position.Y)
		core := disc(v.Diameter/2, true)
		off := disc(v.Diameter/2+math.Max(clearance, g.rules.ViaClearance)+g.rules.TraceWidth/2, false)
		for l := v.StartLayer; l <= v.EndLayer; l++ {
			for _, o := range core {
				b.addCenter(Coord{Col: col + o.DC, Row: row + o.DR, Layer: l})
			}
			haloSeeds = append(haloSeeds, struct {
				c   Coord
				off []Offset
			}{Coord{Col: col, Row: row, Layer: l}, off})
		}
	}

	for _, seed := range haloSeeds {
		for _, o := range seed.off {
			c := Coord{Col: seed.c.Col + o.DC, Row: seed.c.Row + o.DR, Layer: seed.c.Layer}
			if !b.center[c] {
				b.addHalo(c)
			}
		}
	}
	return b.fp
}

// rasterSegment returns the cells nearest to points sampled along the
// segment at a quarter of the resolution.
func (g *Grid) rasterSegment(a, b sexp.Position, layer int) []Coord {
	steps := int(math.Ceil(a.Dist(b)/(g.res/4))) + 1
	out := make([]Coord, 0, steps/4+2)
	last := Coord{Col: -1}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := a.Add(b.Sub(a).Scale(t))
		col, row := g.WorldToGrid(p.X, p.Y)
		c := Coord{Col: col, Row: row, Layer: layer}
		if c != last {
			out = append(out, c)
			last = c
		}
	}
	return out
}
