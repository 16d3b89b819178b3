package router

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/grid"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/optimizer"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/pathfinder"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// continuityTol is the point coincidence used when checking routes
const continuityTol = 1e-4

// ErrUnroutable marks a net that could not be connected. RouteAll never
// returns it; such nets are listed in Result.UnroutedNets.
var ErrUnroutable = pathfinder.ErrUnroutable

func (a *Autorouter) newFinder(g *grid.Grid) *pathfinder.Finder {
	return pathfinder.New(g, a.stack, a.vias, pathfinder.Options{
		Diagonal:      a.opts.Diagonal,
		Negotiate:     a.opts.Negotiate,
		MaxExpansions: a.opts.MaxExpansions,
		Heuristic:     a.opts.Heuristic,
	})
}

// routableLayers returns the routable layers a pad has copper on
func (a *Autorouter) routableLayers(p primitives.Pad) []int {
	layers, _ := a.padLayers(p)
	if layers == nil {
		return a.stack.RoutableLayers()
	}
	var out []int
	for _, l := range layers {
		if a.stack.IsRoutable(l) {
			out = append(out, l)
		}
	}
	return out
}

func sharedLayer(x, y []int) (int, bool) {
	for _, l := range x {
		for _, m := range y {
			if l == m {
				return l, true
			}
		}
	}
	return 0, false
}

type padEdge struct {
	i, j int
	dist float64
}

// padEdges returns every pad pair sorted by distance, then index
func padEdges(pads []primitives.Pad) []padEdge {
	var edges []padEdge
	for i := range pads {
		for j := i + 1; j < len(pads); j++ {
			edges = append(edges, padEdge{i: i, j: j, dist: pads[i].Position.Dist(pads[j].Position)})
		}
	}
	sort.SliceStable(edges, func(x, y int) bool {
		if edges[x].dist != edges[y].dist {
			return edges[x].dist < edges[y].dist
		}
		if edges[x].i != edges[y].i {
			return edges[x].i < edges[y].i
		}
		return edges[x].j < edges[y].j
	})
	return edges
}

// routeNet computes the copper of one net on the finder's grid without
// committing it. Pads of the same component closer than IntraICThreshold
// are joined by a straight trace when the grid allows it; everything else
// is connected along a minimum spanning tree of pad distances, one A*
// search per tree edge. Any failing edge makes the whole net unroutable.
func (a *Autorouter) routeNet(ctx context.Context, f *pathfinder.Finder, plan *netPlan, extra func(col, row, layer int) float64) (*primitives.Route, error) {
	if a.opts.NetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.NetTimeout)
		defer cancel()
	}
	g := f.Grid()
	if plan.plane >= 0 {
		return a.routePlane(f, plan)
	}

	net := plan.net
	route := &primitives.Route{Net: net.ID, NetName: net.Name}
	check := gridChecker{g: g, net: net.ID, clearance: plan.clearance}
	set := primitives.NewDisjointSet(len(plan.pads))
	edges := padEdges(plan.pads)

	for _, e := range edges {
		pi, pj := plan.pads[e.i], plan.pads[e.j]
		if e.dist > a.opts.IntraICThreshold || pi.Component == "" || pi.Component != pj.Component {
			continue
		}
		if set.Connected(e.i, e.j) {
			continue
		}
		layer, ok := sharedLayer(a.routableLayers(pi), a.routableLayers(pj))
		if !ok {
			continue
		}
		seg := primitives.Segment{Start: pi.Position, End: pj.Position, Width: plan.width, Layer: layer, Net: net.ID}
		if !check.SegmentClear(seg) {
			continue
		}
		route.Segments = append(route.Segments, seg)
		set.Union(e.i, e.j)
		a.log.Debug("intra-component shortcut", "net", net.Name, "from", pi, "to", pj)
	}

	for _, e := range edges {
		if set.Connected(e.i, e.j) {
			continue
		}
		pi, pj := plan.pads[e.i], plan.pads[e.j]
		sc, sr := g.WorldToGrid(pi.Position.X, pi.Position.Y)
		gc, gr := g.WorldToGrid(pj.Position.X, pj.Position.Y)
		path, err := f.FindPath(ctx, pathfinder.Request{
			Net:         net.ID,
			Start:       pathfinder.State{Col: sc, Row: sr},
			Goal:        pathfinder.State{Col: gc, Row: gr},
			StartLayers: a.routableLayers(pi),
			GoalLayers:  a.routableLayers(pj),
			Width:       plan.width,
			Clearance:   plan.clearance,
			Vias:        &plan.vias,
			Extra:       extra,
		})
		if err != nil {
			if !stderrors.Is(err, pathfinder.ErrUnroutable) {
				a.log.Warn("search rejected", "net", net.Name, "err", err)
			}
			return nil, ErrUnroutable
		}
		segs, vias := path.Geometry(g, pi.Position, pj.Position, plan.width, net.ID)
		route.Segments = append(route.Segments, segs...)
		route.Vias = append(route.Vias, vias...)
		set.Union(e.i, e.j)
	}

	if a.opts.Optimize {
		route = optimizer.New(check, optimizer.DefaultOptions()).Optimize(route, plan.anchors)
	}
	if err := route.CheckContinuity(continuityTol, plan.anchors); err != nil {
		a.log.Error("discarding broken route", "net", net.Name, "err", err)
		return nil, errors.Wrap(errors.ErrCodeInternal, ErrUnroutable, "net %s", net.Name)
	}
	return route, nil
}

// commit places a route on the live grid
func (a *Autorouter) commit(id int, route *primitives.Route) {
	plan := a.plans[id]
	nr := &netRoute{
		route:   route,
		fp:      a.grid.Footprint(route, plan.clearance),
		anchors: plan.anchors,
	}
	a.mark(id, nr)
	a.routes[id] = nr
	delete(a.unrouted, id)
}

func (a *Autorouter) mark(id int, nr *netRoute) {
	if nr.marked {
		return
	}
	if a.opts.Negotiate {
		a.grid.MarkRouteUsage(nr.fp)
	} else {
		a.grid.MarkRoute(nr.fp, id)
	}
	nr.marked = true
}

// ripUp removes a net's route from the grid
func (a *Autorouter) ripUp(id int) {
	nr, ok := a.routes[id]
	if !ok {
		return
	}
	if nr.marked {
		if a.opts.Negotiate {
			a.grid.UnmarkRouteUsage(nr.fp)
		} else {
			a.grid.UnmarkRoute(nr.fp, id)
		}
		nr.marked = false
	}
	delete(a.routes, id)
}

// routeAndCommit routes one net against the live grid
func (a *Autorouter) routeAndCommit(ctx context.Context, id int) error {
	plan := a.plans[id]
	route, err := a.routeNet(ctx, a.newFinder(a.grid), plan, a.extraCost(a.grid, id))
	if err != nil {
		a.unrouted[id] = true
		a.log.Warn("net unroutable", "net", plan.net.Name, "pads", len(plan.pads))
		return err
	}
	a.commit(id, route)
	a.log.Debug("net routed", "net", plan.net.Name,
		"segments", len(route.Segments), "vias", len(route.Vias), "length", route.Length())
	return nil
}
