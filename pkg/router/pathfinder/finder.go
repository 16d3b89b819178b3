// Package pathfinder implements the single-net A* search over the routing
// grid. A search connects one start cell to one goal cell, possibly on
// different layers, and returns the cheapest path it finds within its
// expansion and time budget.
package pathfinder

import (
	"context"
	stderrors "errors"
	"math"
	"time"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/grid"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/heuristic"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// ErrUnroutable is returned when no path exists within the search budget.
// It is an expected outcome, not a failure of the job.
var ErrUnroutable = stderrors.New("pathfinder: net unroutable")

// Defaults for Options
const (
	DefaultMaxExpansions = 400_000
	checkInterval        = 1024
)

// State is a position in the search space
type State struct {
	Col, Row, Layer int
}

// Options configures a Finder
type Options struct {
	Diagonal      bool                // Allow 45-degree moves
	Negotiate     bool                // Usage is a cost; only pads, obstacles and other nets' fixed copper prune
	MaxExpansions int                 // Per-search node budget, 0 = DefaultMaxExpansions
	Timeout       time.Duration       // Per-search wall-clock budget, 0 = none
	Heuristic     heuristic.Heuristic // nil = admissible default for the move set
}

// Request describes one two-point search
type Request struct {
	Net         int
	Start       State // Start cell; Layer ignored when StartLayers is set
	Goal        State // Goal cell; Layer ignored when GoalLayers is set
	StartLayers []int // Layers the start pad has copper on
	GoalLayers  []int // Layers the goal pad has copper on
	Width       float64
	Clearance   float64         // Net clearance, 0 = TraceClearance
	Vias        *rules.ViaRules // Via catalogue of the net, nil = the finder's

	// Extra, when set, adds a cost for entering a cell. Used to keep the
	// second net of a differential pair beside the first.
	Extra func(col, row, layer int) float64
}

// ViaStep records a layer change between States[Index-1] and States[Index]
type ViaStep struct {
	Index int
	Def   rules.ViaDefinition
}

// Path is the result of a successful search
type Path struct {
	States     []State
	Vias       []ViaStep
	Cost       float64
	Expansions int
}

// Finder searches paths on one grid
type Finder struct {
	grid     *grid.Grid
	stack    *rules.LayerStack
	vias     rules.ViaRules
	opts     Options
	routable []int
	minVia   float64
	discs    map[discKey][]grid.Offset
}

type discKey struct {
	radius    float64
	inclusive bool
}

// New creates a finder over g. The finder reads g during FindPath and
// never modifies it.
func New(g *grid.Grid, stack *rules.LayerStack, vias rules.ViaRules, opts Options) *Finder {
	if opts.MaxExpansions <= 0 {
		opts.MaxExpansions = DefaultMaxExpansions
	}
	if opts.Heuristic == nil {
		opts.Heuristic = heuristic.Default(opts.Diagonal)
	}
	f := &Finder{
		grid:     g,
		stack:    stack,
		vias:     vias,
		opts:     opts,
		routable: stack.RoutableLayers(),
		discs:    make(map[discKey][]grid.Offset),
	}
	f.minVia = math.Inf(1)
	for _, d := range vias.Definitions {
		if vias.Usable(d) {
			f.minVia = math.Min(f.minVia, g.Rules().ViaCost*d.CostMultiplier)
		}
	}
	if math.IsInf(f.minVia, 1) {
		f.minVia = 0
	}
	return f
}

// Grid returns the grid the finder searches
func (f *Finder) Grid() *grid.Grid { return f.grid }

var (
	orthogonal = []grid.Offset{{DC: 1}, {DC: -1}, {DR: 1}, {DR: -1}}
	diagonal   = []grid.Offset{{DC: 1, DR: 1}, {DC: 1, DR: -1}, {DC: -1, DR: 1}, {DC: -1, DR: -1}}
)

func (f *Finder) key(s State) int {
	return (s.Layer*f.grid.Rows()+s.Row)*f.grid.Cols() + s.Col
}

func contains(layers []int, l int) bool {
	for _, x := range layers {
		if x == l {
			return true
		}
	}
	return false
}

// disc returns a cached grid disc
func (f *Finder) disc(radius float64, inclusive bool) []grid.Offset {
	k := discKey{radius, inclusive}
	d, ok := f.discs[k]
	if !ok {
		d = f.grid.Disc(radius, inclusive)
		f.discs[k] = d
	}
	return d
}

// FindPath runs A* for req. It returns ErrUnroutable when the open set
// empties, the budget is exhausted or ctx is done.
//
// The lattice halos keep a default trace clear of pads and obstacles.
// Wider nets and nets with a larger clearance are also measured against
// the exact pad, obstacle and keepout shapes for every step.
func (f *Finder) FindPath(ctx context.Context, req Request) (*Path, error) {
	g := f.grid
	dr := g.Rules()
	if req.Width <= 0 {
		req.Width = dr.TraceWidth
	}
	if req.Clearance <= 0 {
		req.Clearance = dr.TraceClearance
	}
	vias := f.vias
	if req.Vias != nil {
		vias = *req.Vias
	}
	exact := req.Width > dr.TraceWidth+1e-9 || req.Clearance > dr.TraceClearance+1e-9
	var keep []grid.Offset
	if exact && !f.opts.Negotiate {
		keep = f.disc(req.Width+req.Clearance, false)
	}
	fits := func(from, to State) bool {
		if !exact {
			return true
		}
		if !g.CopperClear(g.Point(from.Col, from.Row), g.Point(to.Col, to.Row), to.Layer, req.Net, req.Width, req.Clearance) {
			return false
		}
		return keep == nil || !g.TraceNear(to.Col, to.Row, to.Layer, keep, req.Net)
	}
	startLayers := f.filterRoutable(req.StartLayers, req.Start.Layer)
	goalLayers := f.filterRoutable(req.GoalLayers, req.Goal.Layer)
	if len(startLayers) == 0 || len(goalLayers) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidLayer, "net %d: pad has no routable layer", req.Net)
	}
	if !g.InBounds(req.Start.Col, req.Start.Row, 0) || !g.InBounds(req.Goal.Col, req.Goal.Row, 0) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "net %d: endpoint outside grid", req.Net)
	}

	widthFactor := req.Width / dr.TraceWidth
	moves := orthogonal
	if f.opts.Diagonal {
		moves = append(append([]grid.Offset{}, orthogonal...), diagonal...)
	}

	var deadline time.Time
	if f.opts.Timeout > 0 {
		deadline = time.Now().Add(f.opts.Timeout)
	}

	estimate := func(s State) float64 {
		goalLayer := goalLayers[0]
		if contains(goalLayers, s.Layer) {
			goalLayer = s.Layer
		}
		return f.opts.Heuristic.Estimate(heuristic.Context{
			Col: s.Col, Row: s.Row, Layer: s.Layer,
			GoalCol: req.Goal.Col, GoalRow: req.Goal.Row, GoalLayer: goalLayer,
			StepCost:   widthFactor,
			MinViaCost: f.minVia,
			Grid:       g,
		})
	}

	gScore := make(map[int]float64)
	parent := make(map[int]int)
	via := make(map[int]rules.ViaDefinition)
	closed := make(map[int]bool)
	open := &openSet{}
	seq := 0

	push := func(s State, cost float64, from int, def *rules.ViaDefinition) {
		k := f.key(s)
		if old, ok := gScore[k]; ok && old <= cost {
			return
		}
		gScore[k] = cost
		parent[k] = from
		if def != nil {
			via[k] = *def
		} else {
			delete(via, k)
		}
		h := estimate(s)
		seq++
		open.push(&node{key: k, state: s, g: cost, h: h, f: cost + h, seq: seq})
	}

	for _, l := range startLayers {
		s := State{Col: req.Start.Col, Row: req.Start.Row, Layer: l}
		if c := g.At(s.Col, s.Row, l); c == nil || c.IsObstacle {
			continue
		}
		push(s, 0, -1, nil)
	}

	expansions := 0
	for open.Len() > 0 {
		cur := open.pop()
		if closed[cur.key] || cur.g > gScore[cur.key] {
			continue
		}
		closed[cur.key] = true
		expansions++

		if cur.state.Col == req.Goal.Col && cur.state.Row == req.Goal.Row && contains(goalLayers, cur.state.Layer) {
			return f.reconstruct(cur, parent, via, expansions), nil
		}
		if expansions >= f.opts.MaxExpansions {
			return nil, ErrUnroutable
		}
		if expansions%checkInterval == 0 {
			if ctx.Err() != nil {
				return nil, ErrUnroutable
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return nil, ErrUnroutable
			}
		}

		s := cur.state
		for _, m := range moves {
			next := State{Col: s.Col + m.DC, Row: s.Row + m.DR, Layer: s.Layer}
			if !f.enterable(next, req) {
				continue
			}
			step := 1.0
			if m.DC != 0 && m.DR != 0 {
				// No corner cutting past blocked cells
				if !f.enterable(State{Col: s.Col + m.DC, Row: s.Row, Layer: s.Layer}, req) ||
					!f.enterable(State{Col: s.Col, Row: s.Row + m.DR, Layer: s.Layer}, req) {
					continue
				}
				step = math.Sqrt2
			}
			cost := f.cellCost(next, req)
			if math.IsInf(cost, 1) || !fits(s, next) {
				continue
			}
			push(next, cur.g+step*widthFactor+cost, cur.key, nil)
		}

		for _, l := range f.routable {
			if l == s.Layer {
				continue
			}
			def, ok := vias.GetBestVia(s.Layer, l)
			if !ok || !f.ViaFits(s.Col, s.Row, def, req.Net, req.Clearance) {
				continue
			}
			next := State{Col: s.Col, Row: s.Row, Layer: l}
			if !f.enterable(next, req) {
				continue
			}
			cost := f.cellCost(next, req)
			if math.IsInf(cost, 1) {
				continue
			}
			push(next, cur.g+dr.ViaCost*def.CostMultiplier+cost, cur.key, &def)
		}
	}
	return nil, ErrUnroutable
}

func (f *Finder) filterRoutable(layers []int, fallback int) []int {
	if len(layers) == 0 {
		layers = []int{fallback}
	}
	out := make([]int, 0, len(layers))
	for _, l := range layers {
		if f.stack.IsRoutable(l) {
			out = append(out, l)
		}
	}
	return out
}

func (f *Finder) enterable(s State, req Request) bool {
	if !f.grid.Passable(s.Col, s.Row, s.Layer, req.Net) {
		return false
	}
	if f.opts.Negotiate {
		return true
	}
	c := f.grid.At(s.Col, s.Row, s.Layer)
	return c.Net == req.Net || c.UsageCount == 0
}

func (f *Finder) cellCost(s State, req Request) float64 {
	cost := f.grid.NegotiatedCost(s.Col, s.Row, s.Layer)
	if req.Extra != nil {
		cost += req.Extra(s.Col, s.Row, s.Layer)
	}
	return cost
}

// ViaFits reports whether a via pad fits at (col, row) on every layer of
// its span: its disc is passable, it keeps the larger of clearance and
// ViaClearance from other nets' pads, obstacles and the board edge, and,
// unless negotiating, from other nets' committed centerlines.
func (f *Finder) ViaFits(col, row int, def rules.ViaDefinition, net int, clearance float64) bool {
	g := f.grid
	r := def.Diameter() / 2
	if !g.DiscPassable(col, row, f.disc(r, true), def.StartLayer, def.EndLayer, net) {
		return false
	}
	cl := math.Max(clearance, g.Rules().ViaClearance)
	at := g.Point(col, row)
	var keep []grid.Offset
	if !f.opts.Negotiate {
		keep = f.disc(r+cl+g.Rules().TraceWidth/2, false)
	}
	for l := def.StartLayer; l <= def.EndLayer; l++ {
		if !g.CopperClear(at, at, l, net, def.Diameter(), cl) {
			return false
		}
		if keep != nil && g.TraceNear(col, row, l, keep, net) {
			return false
		}
	}
	return true
}

func (f *Finder) reconstruct(goal *node, parent map[int]int, via map[int]rules.ViaDefinition, expansions int) *Path {
	var keys []int
	for k := goal.key; k >= 0; k = parent[k] {
		keys = append(keys, k)
	}
	p := &Path{Cost: goal.g, Expansions: expansions, States: make([]State, len(keys))}
	cols, rows := f.grid.Cols(), f.grid.Rows()
	for i, k := range keys {
		idx := len(keys) - 1 - i
		p.States[idx] = State{Col: k % cols, Row: (k / cols) % rows, Layer: k / (cols * rows)}
	}
	for i := 1; i < len(keys); i++ {
		k := f.key(p.States[i])
		if def, ok := via[k]; ok && p.States[i].Layer != p.States[i-1].Layer {
			p.Vias = append(p.Vias, ViaStep{Index: i, Def: def})
		}
	}
	return p
}
