package router

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/grid"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/pathfinder"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// fanoutRings is how far past the first candidate ring a plane via may be
// placed.
const fanoutRings = 8

var fanoutDirs = []grid.Offset{
	{DC: 1}, {DC: -1}, {DR: 1}, {DR: -1},
	{DC: 1, DR: 1}, {DC: 1, DR: -1}, {DC: -1, DR: 1}, {DC: -1, DR: -1},
}

// routePlane connects the pads of a plane net to its plane layer.
// Through-hole pads already reach the plane. Every surface pad gets a short
// fanout trace to a via that drops to the plane.
func (a *Autorouter) routePlane(f *pathfinder.Finder, plan *netPlan) (*primitives.Route, error) {
	g := f.Grid()
	net := plan.net
	route := &primitives.Route{Net: net.ID, NetName: net.Name}
	check := gridChecker{g: g, net: net.ID, clearance: plan.clearance}
	res := a.rules.GridResolution

	for k, pad := range plan.pads {
		layers := a.routableLayers(pad)
		if pad.OnAllLayers() || len(layers) == 0 {
			continue
		}
		layer := layers[0]
		if layer == plan.plane {
			continue
		}
		def, ok := plan.vias.GetBestVia(layer, plan.plane)
		if !ok {
			a.log.Warn("no via reaches plane", "net", net.Name, "pad", pad)
			return nil, ErrUnroutable
		}
		pc, pr := g.WorldToGrid(pad.Position.X, pad.Position.Y)
		clearance := math.Max(plan.clearance, a.rules.ViaClearance)
		first := int(math.Ceil((math.Max(pad.Size.Width, pad.Size.Height)/2 + def.Diameter()/2 + clearance) / res))

		placed := false
		for ring := first; ring <= first+fanoutRings && !placed; ring++ {
			for _, d := range fanoutDirs {
				col, row := pc+d.DC*ring, pr+d.DR*ring
				if !g.InBounds(col, row, layer) || !f.ViaFits(col, row, def, net.ID, plan.clearance) {
					continue
				}
				at := g.Point(col, row)
				seg := primitives.Segment{Start: pad.Position, End: at, Width: plan.width, Layer: layer, Net: net.ID}
				if !check.SegmentClear(seg) {
					continue
				}
				via := primitives.Via{
					Position: at, Drill: def.Drill, Diameter: def.Diameter(),
					StartLayer: def.StartLayer, EndLayer: def.EndLayer, Net: net.ID, Type: def.Type,
				}
				fanout := &primitives.Route{Net: net.ID, Segments: []primitives.Segment{seg}, Vias: []primitives.Via{via}}
				if err := fanout.CheckContinuity(continuityTol, plan.anchors[k:k+1]); err != nil {
					a.log.Error("discarding broken fanout", "net", net.Name, "err", err)
					continue
				}
				route.Append(fanout)
				placed = true
				break
			}
		}
		if !placed {
			a.log.Warn("no room for plane via", "net", net.Name, "pad", pad)
			return nil, ErrUnroutable
		}
	}
	a.log.Debug("plane net", "net", net.Name, "plane", a.stack.LayerName(plan.plane), "vias", len(route.Vias))
	return route, nil
}
