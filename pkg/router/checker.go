package router

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/grid"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// gridChecker accepts new copper for one net when its centerline is
// passable and unused, its halo holds no other net's centerline and it
// keeps clearance from the exact pad, obstacle and keepout shapes. The
// net's own route must not be on the grid while it is checked.
type gridChecker struct {
	g         *grid.Grid
	net       int
	clearance float64
}

func (c gridChecker) SegmentClear(s primitives.Segment) bool {
	if !c.g.CopperClear(s.Start, s.End, s.Layer, c.net, s.Width, c.clearance) {
		return false
	}
	fp := c.g.Footprint(&primitives.Route{Net: c.net, Segments: []primitives.Segment{s}}, c.clearance)
	for _, x := range fp.Center {
		if !c.g.Passable(x.Col, x.Row, x.Layer, c.net) {
			return false
		}
		if cell := c.g.At(x.Col, x.Row, x.Layer); cell.UsageCount > 0 || cell.HaloCount > 0 {
			return false
		}
	}
	for _, x := range fp.Halo {
		if cell := c.g.At(x.Col, x.Row, x.Layer); cell != nil && (cell.UsageCount > 0 || (cell.Trace && cell.Net != c.net)) {
			return false
		}
	}
	return true
}
