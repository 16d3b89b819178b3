package router

import (
	"sort"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// netPlan is everything resolved about a net before routing
type netPlan struct {
	net       *primitives.Net
	class     rules.NetClass
	tier      rules.Tier
	pads      []primitives.Pad
	anchors   []primitives.Anchor
	width     float64
	clearance float64
	plane     int // Plane layer for plane nets, -1 otherwise
	vias      rules.ViaRules
	pair      *diffPair
}

func (p *netPlan) routable() bool { return len(p.pads) >= 2 }

// buildPlans resolves pins to pads and classifies every net. Unknown pins
// are input errors; class via sizes that do not fit are via errors.
func (a *Autorouter) buildPlans() error {
	if a.plans != nil {
		return nil
	}
	plans := make(map[int]*netPlan, len(a.nets))
	for _, id := range a.netOrder {
		n := a.nets[id]
		class := a.opts.NetClasses.Lookup(n.Name)
		vias, err := a.vias.ForClass(class)
		if err != nil {
			return err
		}
		p := &netPlan{
			net:       n,
			class:     class,
			tier:      class.Tier,
			width:     class.Width(a.rules),
			clearance: class.Clearance(a.rules),
			plane:     -1,
			vias:      vias,
		}
		for _, pin := range n.Pins {
			c, ok := a.components[pin.Ref]
			if !ok {
				return errors.New(errors.ErrCodeInvalidInput, "net %s: unknown component %q", n.Name, pin.Ref)
			}
			pad, ok := c.Pad(pin.Pin)
			if !ok {
				return errors.New(errors.ErrCodeInvalidInput, "net %s: component %s has no pad %q", n.Name, pin.Ref, pin.Pin)
			}
			p.pads = append(p.pads, pad)
			p.anchors = append(p.anchors, a.anchor(pad))
		}
		if l, ok := a.stack.PlaneFor(n.Name); ok {
			p.plane = l.Index
		}
		plans[id] = p
	}
	a.plans = plans
	a.pairs = a.detectPairs()
	return nil
}

func (a *Autorouter) anchor(p primitives.Pad) primitives.Anchor {
	layers, _ := a.padLayers(p)
	if len(layers) == 0 {
		return primitives.Anchor{Position: p.Position, Layer: -1}
	}
	return primitives.Anchor{Position: p.Position, Layer: layers[0]}
}

// orderNets returns the routable nets in routing order: by tier, then
// fewer pads first, then net id. With Shuffle set the order inside each
// tier is randomised instead. The negative net of a differential pair
// always directly follows its positive net.
func (a *Autorouter) orderNets() []int {
	var ids []int
	for _, id := range a.netOrder {
		if a.plans[id].routable() {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		pi, pj := a.plans[ids[i]], a.plans[ids[j]]
		if pi.tier != pj.tier {
			return pi.tier < pj.tier
		}
		if len(pi.pads) != len(pj.pads) {
			return len(pi.pads) < len(pj.pads)
		}
		return ids[i] < ids[j]
	})
	if a.opts.Shuffle {
		a.shuffleWithinTiers(ids)
	}
	return a.pairOrder(ids)
}

// shuffleWithinTiers permutes each run of equal tier in place
func (a *Autorouter) shuffleWithinTiers(ids []int) {
	start := 0
	for i := 1; i <= len(ids); i++ {
		if i < len(ids) && a.plans[ids[i]].tier == a.plans[ids[start]].tier {
			continue
		}
		run := ids[start:i]
		a.rng.Shuffle(len(run), func(x, y int) { run[x], run[y] = run[y], run[x] })
		start = i
	}
}

// pairOrder moves each negative pair net right behind its positive net
func (a *Autorouter) pairOrder(ids []int) []int {
	negatives := make(map[int]bool)
	for _, p := range a.pairs {
		negatives[p.negative] = true
	}
	out := make([]int, 0, len(ids))
	present := make(map[int]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	for _, id := range ids {
		if negatives[id] {
			continue
		}
		out = append(out, id)
		if pair := a.plans[id].pair; pair != nil && pair.positive == id && present[pair.negative] {
			out = append(out, pair.negative)
		}
	}
	// A negative net whose positive net is not routable still gets routed
	for _, id := range ids {
		if negatives[id] && !present[a.plans[id].pair.positive] {
			out = append(out, id)
		}
	}
	return out
}

// reshuffle randomises the order of ripped-up nets while keeping tier
// order and pair adjacency.
func (a *Autorouter) reshuffle(ids []int) []int {
	a.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	sort.SliceStable(ids, func(i, j int) bool {
		return a.plans[ids[i]].tier < a.plans[ids[j]].tier
	})
	return a.pairOrder(ids)
}
