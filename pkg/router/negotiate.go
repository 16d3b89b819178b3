package router

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// snapshot is a restorable set of committed routes
type snapshot struct {
	routes   map[int]netRoute
	unrouted map[int]bool
	overflow int
}

func (a *Autorouter) snapshot(overflow int) *snapshot {
	s := &snapshot{
		routes:   make(map[int]netRoute, len(a.routes)),
		unrouted: make(map[int]bool, len(a.unrouted)),
		overflow: overflow,
	}
	for id, nr := range a.routes {
		s.routes[id] = *nr
	}
	for id := range a.unrouted {
		s.unrouted[id] = true
	}
	return s
}

// better orders iterations by total overflow plus unrouted nets, then by
// unrouted nets.
func (s *snapshot) better(than *snapshot) bool {
	si, ti := s.overflow+len(s.unrouted), than.overflow+len(than.unrouted)
	if si != ti {
		return si < ti
	}
	return len(s.unrouted) < len(than.unrouted)
}

func (a *Autorouter) restore(s *snapshot) {
	for _, id := range a.routedIDs() {
		a.ripUp(id)
	}
	for id, nr := range s.routes {
		c := nr
		c.marked = false
		a.mark(id, &c)
		a.routes[id] = &c
	}
	a.unrouted = make(map[int]bool, len(s.unrouted))
	for id := range s.unrouted {
		a.unrouted[id] = true
	}
}

// reset removes every route and all congestion history
func (a *Autorouter) reset() {
	for _, id := range a.routedIDs() {
		a.ripUp(id)
	}
	a.unrouted = make(map[int]bool)
	a.grid.ResetHistory()
	a.history = nil
	a.iterations = 0
}

// RouteAll routes every net with at least two pads. The first pass routes
// the nets in tier order. With negotiation enabled, later passes rip up the
// nets sitting on overused cells, raise congestion costs and route them
// again until no cell is overused or MaxIterations is reached. The best
// pass is kept.
//
// Calling RouteAll again on a converged autorouter with the same nets
// returns the previous result without routing.
func (a *Autorouter) RouteAll(ctx context.Context) (*Result, error) {
	key := a.netSetKey()
	if a.last != nil && a.last.Converged && a.lastNets == key {
		a.log.Debug("already converged", "nets", a.last.NetsRouted)
		return a.last, nil
	}
	start := time.Now()
	if err := a.buildPlans(); err != nil {
		return nil, err
	}
	if err := a.prepare(); err != nil {
		return nil, err
	}
	a.reset()

	a.setState(StateNetOrdering)
	order := a.orderNets()
	a.log.Info("routing", "nets", len(order), "stack", a.stack.Name(), "negotiate", a.opts.Negotiate)

	a.setState(StateRoutingPass)
	a.routeSerial(ctx, order)
	overflow := a.overflow()
	a.history = append(a.history, overflow)
	a.iterations = 1
	best := a.snapshot(overflow)
	a.log.Debug("first pass", "overflow", overflow, "unrouted", len(a.unrouted))

	if a.opts.Negotiate {
		for it := 1; overflow > 0 && it <= a.opts.MaxIterations; it++ {
			if ctx.Err() != nil {
				a.log.Warn("routing cancelled", "iteration", it)
				break
			}
			a.setState(StateNegotiationPass)
			a.grid.UpdateHistoryCosts(a.rules.HistoryIncrement)
			victims := a.overusedNets()
			for _, id := range victims {
				a.ripUp(id)
			}
			victims = a.reshuffle(victims)
			a.grid.SetPresentFactor(a.grid.PresentFactor() * a.rules.PresentCostGrowth)

			a.setState(StateRoutingPass)
			if err := a.reroute(ctx, victims); err != nil {
				return nil, err
			}
			overflow = a.overflow()
			a.history = append(a.history, overflow)
			a.iterations++
			a.log.Debug("negotiation pass", "iteration", it, "rerouted", len(victims),
				"overflow", overflow, "unrouted", len(a.unrouted), "present", a.grid.PresentFactor())

			if cur := a.snapshot(overflow); cur.better(best) {
				best = cur
			}
		}
		if overflow != best.overflow || len(a.unrouted) != len(best.unrouted) {
			a.log.Debug("restoring best pass", "overflow", best.overflow, "unrouted", len(best.unrouted))
			a.restore(best)
		}
	}

	res := a.result(start)
	if res.Converged {
		a.setState(StateConverged)
	} else if a.opts.Negotiate {
		a.log.Warn("negotiation did not converge", "overflow", res.Overflow, "iterations", res.Iterations)
	}
	a.setState(StateDone)
	a.last, a.lastNets = res, key
	a.log.Info("routing done",
		"routed", res.NetsRouted, "requested", res.NetsRequested,
		"overflow", res.Overflow, "iterations", res.Iterations, "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// RouteNet routes a single net against whatever is already committed,
// replacing its previous route. It returns ErrUnroutable when no
// connection exists.
func (a *Autorouter) RouteNet(ctx context.Context, id int) (*primitives.Route, error) {
	if _, ok := a.nets[id]; !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "net %d is not registered", id)
	}
	if err := a.buildPlans(); err != nil {
		return nil, err
	}
	if err := a.prepare(); err != nil {
		return nil, err
	}
	if !a.plans[id].routable() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "net %s has fewer than two pads", a.plans[id].net.Name)
	}
	a.last = nil
	a.ripUp(id)
	a.setState(StateRoutingPass)
	defer a.setState(StateDone)
	if err := a.routeAndCommit(ctx, id); err != nil {
		return nil, err
	}
	return a.routes[id].route, nil
}

func (a *Autorouter) overflow() int {
	if !a.opts.Negotiate {
		return 0
	}
	return a.grid.TotalOverflow()
}

// overusedNets lists the routed nets touching an overused cell
func (a *Autorouter) overusedNets() []int {
	var out []int
	for _, id := range a.routedIDs() {
		if a.grid.Overused(a.routes[id].fp) {
			out = append(out, id)
		}
	}
	return out
}

func (a *Autorouter) routeSerial(ctx context.Context, ids []int) {
	for i, id := range ids {
		if ctx.Err() != nil {
			for _, rest := range ids[i:] {
				a.unrouted[rest] = true
			}
			a.log.Warn("routing cancelled", "remaining", len(ids)-i)
			return
		}
		_ = a.routeAndCommit(ctx, id)
	}
}

// reroute routes ripped-up nets again. With several workers the searches
// run concurrently against a frozen copy of the grid and are committed in
// order afterwards; negative pair nets wait for their positive net and are
// routed serially.
func (a *Autorouter) reroute(ctx context.Context, ids []int) error {
	if a.opts.Workers <= 1 || len(ids) < 2 {
		a.routeSerial(ctx, ids)
		return nil
	}

	inBatch := make(map[int]bool, len(ids))
	for _, id := range ids {
		inBatch[id] = true
	}
	deferred := make([]bool, len(ids))
	for i, id := range ids {
		if p := a.plans[id].pair; p != nil && p.negative == id && inBatch[p.positive] {
			deferred[i] = true
		}
	}

	frozen := a.grid.Clone()
	routes := make([]*primitives.Route, len(ids))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(a.opts.Workers)
	for i, id := range ids {
		if deferred[i] {
			continue
		}
		eg.Go(func() error {
			r, err := a.routeNet(egctx, a.newFinder(frozen), a.plans[id], a.extraCost(frozen, id))
			if err == nil {
				routes[i] = r
			} else if errors.Is(err, errors.ErrCodeInternal) {
				a.log.Error("worker route failed", "net", a.plans[id].net.Name, "err", err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, id := range ids {
		switch {
		case deferred[i]:
			_ = a.routeAndCommit(ctx, id)
		case routes[i] != nil:
			a.commit(id, routes[i])
		default:
			a.unrouted[id] = true
			a.log.Warn("net unroutable", "net", a.plans[id].net.Name)
		}
	}
	return nil
}
