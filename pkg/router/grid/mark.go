package grid

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// cellRange returns the inclusive range of cells whose lattice points lie
// inside bb. ok is false when no lattice point does.
func (g *Grid) cellRange(bb sexp.BoundingBox) (c0, r0, c1, r1 int, ok bool) {
	const eps = 1e-9
	c0 = ceilIndex((bb.Min.X - g.origin.X - eps) / g.res)
	r0 = ceilIndex((bb.Min.Y - g.origin.Y - eps) / g.res)
	c1 = floorIndex((bb.Max.X - g.origin.X + eps) / g.res)
	r1 = floorIndex((bb.Max.Y - g.origin.Y + eps) / g.res)
	c0, r0 = max(c0, 0), max(r0, 0)
	c1, r1 = min(c1, g.cols-1), min(r1, g.rows-1)
	return c0, r0, c1, r1, c0 <= c1 && r0 <= r1
}

func ceilIndex(v float64) int {
	i := int(v)
	if float64(i) < v {
		i++
	}
	return i
}

func floorIndex(v float64) int {
	i := int(v)
	if float64(i) > v {
		i--
	}
	return i
}

func (g *Grid) layerList(layers []int) []int {
	if len(layers) > 0 {
		return layers
	}
	all := make([]int, g.layers)
	for i := range all {
		all[i] = i
	}
	return all
}

// AddObstacle marks exactly the cells inside bb as obstacles on the given
// layers (all layers when empty). net records the owner of fixed copper.
func (g *Grid) AddObstacle(bb sexp.BoundingBox, layers []int, net int) {
	c0, r0, c1, r1, ok := g.cellRange(bb)
	if !ok {
		return
	}
	for _, l := range g.layerList(layers) {
		if l < 0 || l >= g.layers {
			continue
		}
		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				c := &g.cells[g.index(col, row, l)]
				c.IsObstacle = true
				c.Blocked = true
				c.Net = net
			}
		}
	}
}

// AddKeepout marks a copper keepout: an obstacle owned by no net
func (g *Grid) AddKeepout(bb sexp.BoundingBox, layers []int) {
	g.AddObstacle(bb, layers, 0)
}

// AddPad marks the pad core as owned by its net on the given layers (all
// layers when empty), plus a clearance halo of radius halo mm around the
// core where no other net already owns the cell. Obstacles are never
// overwritten. Pads without a net become obstacles.
func (g *Grid) AddPad(bb sexp.BoundingBox, layers []int, net int, halo float64) {
	if net == 0 {
		g.AddObstacle(bb, layers, 0)
		return
	}
	outer := bb.Inflate(halo)
	c0, r0, c1, r1, ok := g.cellRange(outer)
	if !ok {
		return
	}
	for _, l := range g.layerList(layers) {
		if l < 0 || l >= g.layers {
			continue
		}
		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				c := &g.cells[g.index(col, row, l)]
				if c.IsObstacle {
					continue
				}
				p := g.Point(col, row)
				switch {
				case bb.Contains(p):
					c.Blocked, c.Fixed, c.Net = true, true, net
				case distToBox(p, bb) < halo-1e-9 && c.Net == 0:
					c.Blocked, c.Fixed, c.Net = true, true, net
				}
			}
		}
	}
}

// distToBox returns the distance from p to the nearest point of bb
func distToBox(p sexp.Position, bb sexp.BoundingBox) float64 {
	dx := max(bb.Min.X-p.X, 0, p.X-bb.Max.X)
	dy := max(bb.Min.Y-p.Y, 0, p.Y-bb.Max.Y)
	return sexp.Position{X: dx, Y: dy}.Dist(sexp.Position{})
}

// AddBoardMargin turns every cell outside the board, or closer than margin
// to its edge, into an obstacle on all layers. The board is kept for
// CopperClear.
func (g *Grid) AddBoardMargin(board primitives.BoardGeometry, margin float64) {
	g.board, g.hasBoard = board, true
	bounds := board.Bounds()
	outline := board.Outline
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			p := g.Point(col, row)
			out := !board.Contains(p)
			if !out && margin > 0 {
				if len(outline) >= 3 {
					out = distToPolygon(p, outline) < margin-1e-9
				} else {
					out = p.X-bounds.Min.X < margin-1e-9 || bounds.Max.X-p.X < margin-1e-9 ||
						p.Y-bounds.Min.Y < margin-1e-9 || bounds.Max.Y-p.Y < margin-1e-9
				}
			}
			if !out {
				continue
			}
			for l := 0; l < g.layers; l++ {
				c := &g.cells[g.index(col, row, l)]
				c.IsObstacle, c.Blocked = true, true
			}
		}
	}
}

func distToPolygon(p sexp.Position, poly []sexp.Position) float64 {
	best := -1.0
	j := len(poly) - 1
	for i := range poly {
		d := primitives.DistToSegment(p, poly[j], poly[i])
		if best < 0 || d < best {
			best = d
		}
		j = i
	}
	return best
}
