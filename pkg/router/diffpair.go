package router

import (
	"math"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/grid"
)

// diffPair couples two nets that must run side by side
type diffPair struct {
	name     string
	positive int
	negative int
}

// pairSuffixes are the recognised positive/negative name endings
var pairSuffixes = [][2]string{
	{"_DP", "_DM"},
	{"_P", "_N"},
	{"+", "-"},
}

// splitPairName returns the base name and polarity of a pair net
func splitPairName(name string) (base string, positive bool, suffix int, ok bool) {
	upper := strings.ToUpper(name)
	for i, s := range pairSuffixes {
		for pol, sfx := range s {
			if len(upper) > len(sfx) && strings.HasSuffix(upper, sfx) {
				return name[:len(name)-len(sfx)], pol == 0, i, true
			}
		}
	}
	return "", false, 0, false
}

// detectPairs finds differential pairs among the routable signal nets
func (a *Autorouter) detectPairs() []*diffPair {
	type key struct {
		base   string
		suffix int
	}
	pos := make(map[key]int)
	neg := make(map[key]int)
	for _, id := range a.netOrder {
		p := a.plans[id]
		if !p.routable() || p.plane >= 0 {
			continue
		}
		base, positive, sfx, ok := splitPairName(p.net.Name)
		if !ok {
			continue
		}
		k := key{strings.ToUpper(base), sfx}
		if positive {
			if _, dup := pos[k]; !dup {
				pos[k] = id
			}
		} else if _, dup := neg[k]; !dup {
			neg[k] = id
		}
	}

	var pairs []*diffPair
	for k, p := range pos {
		n, ok := neg[k]
		if !ok {
			continue
		}
		base, _, _, _ := splitPairName(a.plans[p].net.Name)
		pair := &diffPair{name: base, positive: p, negative: n}
		a.plans[p].pair = pair
		a.plans[n].pair = pair
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].positive < pairs[j].positive })
	for _, p := range pairs {
		a.log.Debug("differential pair", "name", p.name,
			"positive", a.plans[p.positive].net.Name, "negative", a.plans[p.negative].net.Name)
	}
	return pairs
}

// couplingBand maps the cells near the positive route of a pair to their
// Chebyshev distance from its centerline. Only distances 1..reach are kept.
func couplingBand(g *grid.Grid, fp grid.Footprint, reach int) map[grid.Coord]int {
	band := make(map[grid.Coord]int)
	center := make(map[grid.Coord]bool, len(fp.Center))
	for _, c := range fp.Center {
		center[c] = true
	}
	for _, c := range fp.Center {
		for dr := -reach; dr <= reach; dr++ {
			for dc := -reach; dc <= reach; dc++ {
				n := grid.Coord{Col: c.Col + dc, Row: c.Row + dr, Layer: c.Layer}
				if center[n] || !g.InBounds(n.Col, n.Row, n.Layer) {
					continue
				}
				d := max(abs(dc), abs(dr))
				if old, ok := band[n]; !ok || d < old {
					band[n] = d
				}
			}
		}
	}
	return band
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// pairReach is the band width in cells: one pitch of trace plus
// clearance, and one cell of slack.
func (a *Autorouter) pairReach(p *netPlan) int {
	return int(math.Ceil((p.width+p.clearance)/a.rules.GridResolution-1e-9)) + 1
}

// extraCost returns the per-cell penalty for the negative net of a pair:
// cells outside the band beside the positive route cost CouplingPenalty.
// Other nets get nil.
func (a *Autorouter) extraCost(g *grid.Grid, id int) func(col, row, layer int) float64 {
	plan := a.plans[id]
	if plan.pair == nil || plan.pair.negative != id {
		return nil
	}
	posRoute, ok := a.routes[plan.pair.positive]
	if !ok {
		return nil
	}
	band := couplingBand(g, posRoute.fp, a.pairReach(plan))
	penalty := a.opts.CouplingPenalty
	return func(col, row, layer int) float64 {
		if _, ok := band[grid.Coord{Col: col, Row: row, Layer: layer}]; ok {
			return 0
		}
		return penalty
	}
}

// coupling returns the fraction of the negative route's centerline cells
// that lie in the band of the positive route.
func (a *Autorouter) coupling(p *diffPair) float64 {
	pos, okP := a.routes[p.positive]
	neg, okN := a.routes[p.negative]
	if !okP || !okN || len(neg.fp.Center) == 0 {
		return 0
	}
	band := couplingBand(a.grid, pos.fp, a.pairReach(a.plans[p.negative]))
	in := 0
	for _, c := range neg.fp.Center {
		if _, ok := band[c]; ok {
			in++
		}
	}
	return float64(in) / float64(len(neg.fp.Center))
}
