package router

import (
	"sort"
	"time"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// Statistics summarises the routed copper
type Statistics struct {
	Nets        int
	Segments    int
	Vias        int
	TotalLength float64 // mm
	ViasByType  map[string]int
	LayerLength map[string]float64 // mm per layer name
}

// RouteStats describes the copper of one net
type RouteStats struct {
	Net      int
	Name     string
	Class    string
	Segments int
	Vias     int
	Length   float64
	Layers   []string
	Overused bool
}

// DiffPairResult reports how well a differential pair stayed coupled
type DiffPairResult struct {
	Name     string
	Positive string
	Negative string
	Routed   bool
	Coupling float64 // Fraction of the negative route inside the coupling band
}

// Result is the outcome of RouteAll. Unroutable nets and residual
// overflow are reported here, never as errors.
type Result struct {
	Stack           string
	NetsRequested   int
	NetsRouted      int
	UnroutedNets    []string
	OverflowNets    []string
	Overflow        int
	OverflowHistory []int // Total overflow after each routing pass
	Iterations      int
	Converged       bool
	Duration        time.Duration
	Statistics      Statistics
	Nets            []RouteStats
	DiffPairs       []DiffPairResult
}

// CompletionRate is the fraction of requested nets that were routed
func (r *Result) CompletionRate() float64 {
	if r.NetsRequested == 0 {
		return 1
	}
	return float64(r.NetsRouted) / float64(r.NetsRequested)
}

func (a *Autorouter) routedIDs() []int {
	ids := make([]int, 0, len(a.routes))
	for id := range a.routes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Routes returns the committed routes ordered by net id. Routes of plane
// nets whose pads all reach the plane are empty and left out.
func (a *Autorouter) Routes() []*primitives.Route {
	var out []*primitives.Route
	for _, id := range a.routedIDs() {
		if r := a.routes[id].route; !r.IsEmpty() {
			out = append(out, r)
		}
	}
	return out
}

// Route returns the committed route of a net
func (a *Autorouter) Route(id int) (*primitives.Route, bool) {
	nr, ok := a.routes[id]
	if !ok {
		return nil, false
	}
	return nr.route, true
}

// Statistics summarises the committed routes
func (a *Autorouter) Statistics() Statistics {
	s := Statistics{ViasByType: make(map[string]int), LayerLength: make(map[string]float64)}
	for _, id := range a.routedIDs() {
		r := a.routes[id].route
		s.Nets++
		s.Segments += len(r.Segments)
		s.Vias += len(r.Vias)
		for _, seg := range r.Segments {
			l := seg.Length()
			s.TotalLength += l
			s.LayerLength[a.stack.LayerName(seg.Layer)] += l
		}
		for _, v := range r.Vias {
			s.ViasByType[v.Type.String()]++
		}
	}
	return s
}

func (a *Autorouter) routeStats(id int) RouteStats {
	nr := a.routes[id]
	plan := a.plans[id]
	rs := RouteStats{
		Net:      id,
		Name:     plan.net.Name,
		Class:    plan.class.Name,
		Segments: len(nr.route.Segments),
		Vias:     len(nr.route.Vias),
		Length:   nr.route.Length(),
		Overused: a.opts.Negotiate && a.grid.Overused(nr.fp),
	}
	seen := make(map[int]bool)
	for _, seg := range nr.route.Segments {
		seen[seg.Layer] = true
	}
	for l := 0; l < a.stack.Count(); l++ {
		if seen[l] {
			rs.Layers = append(rs.Layers, a.stack.LayerName(l))
		}
	}
	return rs
}

// result assembles the Result of the current grid state
func (a *Autorouter) result(start time.Time) *Result {
	res := &Result{
		Stack:           a.stack.Name(),
		OverflowHistory: append([]int(nil), a.history...),
		Iterations:      a.iterations,
		Statistics:      a.Statistics(),
	}
	if a.opts.Negotiate {
		res.Overflow = a.grid.TotalOverflow()
	}
	for _, id := range a.netOrder {
		plan := a.plans[id]
		if !plan.routable() {
			continue
		}
		res.NetsRequested++
		if _, ok := a.routes[id]; !ok {
			res.UnroutedNets = append(res.UnroutedNets, plan.net.Name)
			continue
		}
		res.NetsRouted++
		rs := a.routeStats(id)
		if rs.Overused {
			res.OverflowNets = append(res.OverflowNets, rs.Name)
		}
		res.Nets = append(res.Nets, rs)
	}
	for _, p := range a.pairs {
		_, okP := a.routes[p.positive]
		_, okN := a.routes[p.negative]
		res.DiffPairs = append(res.DiffPairs, DiffPairResult{
			Name:     p.name,
			Positive: a.plans[p.positive].net.Name,
			Negative: a.plans[p.negative].net.Name,
			Routed:   okP && okN,
			Coupling: a.coupling(p),
		})
	}
	res.Converged = res.Overflow == 0 && len(res.UnroutedNets) == 0
	res.Duration = time.Since(start)
	return res
}
