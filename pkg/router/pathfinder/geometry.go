package pathfinder

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/grid"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// Geometry converts the path into copper. start and goal are the exact pad
// centres: the route begins and ends on them even when they fall between
// lattice points. Collinear grid steps are collapsed into single segments.
func (p *Path) Geometry(g *grid.Grid, start, goal primitives.Point, width float64, net int) ([]primitives.Segment, []primitives.Via) {
	if len(p.States) == 0 {
		return nil, nil
	}
	var (
		segs  []primitives.Segment
		vias  []primitives.Via
		run   []primitives.Point
		layer = p.States[0].Layer
	)
	flush := func() {
		pts := primitives.CollapseCollinear(run)
		for i := 1; i < len(pts); i++ {
			segs = append(segs, primitives.Segment{Start: pts[i-1], End: pts[i], Width: width, Layer: layer, Net: net})
		}
	}

	viaAt := make(map[int]ViaStep, len(p.Vias))
	for _, v := range p.Vias {
		viaAt[v.Index] = v
	}

	run = append(run, start, g.Point(p.States[0].Col, p.States[0].Row))
	for i := 1; i < len(p.States); i++ {
		s := p.States[i]
		pt := g.Point(s.Col, s.Row)
		if s.Layer == layer {
			run = append(run, pt)
			continue
		}
		flush()
		v := primitives.Via{Position: pt, Net: net, StartLayer: min(layer, s.Layer), EndLayer: max(layer, s.Layer)}
		if step, ok := viaAt[i]; ok {
			v.Drill = step.Def.Drill
			v.Diameter = step.Def.Diameter()
			v.StartLayer, v.EndLayer = step.Def.StartLayer, step.Def.EndLayer
			v.Type = step.Def.Type
		}
		vias = append(vias, v)
		layer = s.Layer
		run = []primitives.Point{pt}
	}
	run = append(run, goal)
	flush()
	return segs, vias
}

// Length returns the number of planar steps and layer changes in the path
func (p *Path) Length() (steps, vias int) {
	for i := 1; i < len(p.States); i++ {
		if p.States[i].Layer != p.States[i-1].Layer {
			vias++
		} else {
			steps++
		}
	}
	return steps, vias
}
