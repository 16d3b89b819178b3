package router

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/grid"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// State is the phase of the autorouter
type State int

const (
	StateIdle State = iota
	StateNetOrdering
	StateRoutingPass
	StateNegotiationPass
	StateConverged
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateNetOrdering:
		return "NetOrdering"
	case StateRoutingPass:
		return "RoutingPass"
	case StateNegotiationPass:
		return "NegotiationPass"
	case StateConverged:
		return "Converged"
	case StateDone:
		return "Done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// netRoute is the committed copper of one net
type netRoute struct {
	route   *primitives.Route
	fp      grid.Footprint
	anchors []primitives.Anchor
	marked  bool
}

// Autorouter routes the nets of one board. It is not safe for concurrent
// use.
type Autorouter struct {
	opts  Options
	board primitives.BoardGeometry
	stack *rules.LayerStack
	rules rules.DesignRules
	vias  rules.ViaRules
	grid  *grid.Grid
	log   *log.Logger
	rng   *rand.Rand
	state State

	components map[string]*primitives.Component
	compOrder  []string
	nets       map[int]*primitives.Net
	netOrder   []int
	obstacles  []primitives.Obstacle
	keepouts   []primitives.Obstacle
	prepared   bool
	dirty      bool // grid holds rasterised inputs

	plans      map[int]*netPlan
	routes     map[int]*netRoute
	unrouted   map[int]bool
	pairs      []*diffPair
	history    []int
	iterations int
	last       *Result
	lastNets   string
}

// New validates the options and builds the routing grid for board. On a
// configuration error no grid is created.
func New(board primitives.BoardGeometry, opts Options) (*Autorouter, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if !(board.Width > 0) || !(board.Height > 0) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "board size %.3fx%.3f mm is empty", board.Width, board.Height)
	}
	a := &Autorouter{
		opts:       opts,
		board:      board,
		stack:      opts.Stack,
		rules:      opts.Rules,
		vias:       *opts.Vias,
		log:        opts.Logger,
		rng:        rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		components: make(map[string]*primitives.Component),
		nets:       make(map[int]*primitives.Net),
		routes:     make(map[int]*netRoute),
		unrouted:   make(map[int]bool),
	}
	g, err := a.newGrid()
	if err != nil {
		return nil, err
	}
	a.grid = g
	a.log.Debug("autorouter created",
		"stack", a.stack.Name(), "cols", g.Cols(), "rows", g.Rows(), "layers", g.Layers(),
		"resolution", a.rules.GridResolution)
	return a, nil
}

// newGrid builds an empty grid with the board margin blocked
func (a *Autorouter) newGrid() (*grid.Grid, error) {
	g, err := grid.New(a.board.Bounds(), a.stack.Count(), a.rules)
	if err != nil {
		return nil, err
	}
	margin := a.rules.EdgeClearance
	if margin > 0 {
		margin += a.rules.TraceWidth / 2
	}
	g.AddBoardMargin(a.board, margin)
	return g, nil
}

// State returns the current phase
func (a *Autorouter) State() State { return a.state }

// Grid returns the routing grid
func (a *Autorouter) Grid() *grid.Grid { return a.grid }

// Stack returns the layer stack
func (a *Autorouter) Stack() *rules.LayerStack { return a.stack }

func (a *Autorouter) setState(s State) {
	if a.state == s {
		return
	}
	a.log.Debug("state", "from", a.state, "to", s)
	a.state = s
}

// layerIndices resolves layer names. An empty list or AllLayers means
// every layer and resolves to nil.
func (a *Autorouter) layerIndices(names []string) ([]int, error) {
	var out []int
	for _, n := range names {
		if n == primitives.AllLayers || n == "" {
			return nil, nil
		}
		idx, ok := a.stack.IndexOf(n)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidLayer, "layer %q is not in stack %s", n, a.stack.Name())
		}
		out = append(out, idx)
	}
	return out, nil
}

func (a *Autorouter) padLayers(p primitives.Pad) ([]int, error) {
	if p.OnAllLayers() {
		return nil, nil
	}
	return a.layerIndices([]string{p.Layer})
}

// AddComponent registers a placed component. Pads on unknown layers are
// configuration errors.
func (a *Autorouter) AddComponent(c primitives.Component) error {
	if c.Ref == "" {
		return errors.New(errors.ErrCodeInvalidInput, "component without reference")
	}
	if _, dup := a.components[c.Ref]; dup {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate component %q", c.Ref)
	}
	for i := range c.Pads {
		if _, err := a.padLayers(c.Pads[i]); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidLayer, err, "component %s pad %s", c.Ref, c.Pads[i].Number)
		}
		if c.Pads[i].Component == "" {
			c.Pads[i].Component = c.Ref
		}
	}
	cc := c
	cc.Pads = append([]primitives.Pad(nil), c.Pads...)
	a.components[c.Ref] = &cc
	a.compOrder = append(a.compOrder, c.Ref)
	a.invalidate()
	return nil
}

// AddNet registers a net. Net ids must be positive and unique.
func (a *Autorouter) AddNet(n primitives.Net) error {
	if n.ID <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "net %q has invalid id %d", n.Name, n.ID)
	}
	if _, dup := a.nets[n.ID]; dup {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate net id %d", n.ID)
	}
	nn := n
	nn.Pins = append([]primitives.PinRef(nil), n.Pins...)
	a.nets[n.ID] = &nn
	a.netOrder = append(a.netOrder, n.ID)
	a.invalidate()
	return nil
}

// AddObstacle registers fixed copper or a blocked area. The obstacle is
// grown by the clearance plus half a trace width so that no trace
// centerline can come too close.
func (a *Autorouter) AddObstacle(o primitives.Obstacle) error {
	if _, err := a.layerIndices(o.Layers); err != nil {
		return err
	}
	if o.Bounds.IsEmpty() {
		return errors.New(errors.ErrCodeInvalidInput, "obstacle %q has empty bounds", o.Label)
	}
	a.obstacles = append(a.obstacles, o)
	a.invalidate()
	return nil
}

// AddKeepout registers an area where no copper may be placed on the given
// layers (all layers when empty).
func (a *Autorouter) AddKeepout(bounds sexp.BoundingBox, layers []string) error {
	if _, err := a.layerIndices(layers); err != nil {
		return err
	}
	if bounds.IsEmpty() {
		return errors.New(errors.ErrCodeInvalidInput, "keepout has empty bounds")
	}
	k := primitives.Obstacle{Bounds: bounds, Layers: layers, Label: "keepout"}
	a.keepouts = append(a.keepouts, k)
	a.invalidate()
	return nil
}

// invalidate drops the cached result and the rasterised inputs so that
// the next routing call starts from a fresh grid.
func (a *Autorouter) invalidate() {
	a.last = nil
	a.plans = nil
	a.prepared = false
}

// pinNets maps every (ref, pin) of the net list to its net
func (a *Autorouter) pinNets() map[primitives.PinRef]int {
	m := make(map[primitives.PinRef]int)
	for _, id := range a.netOrder {
		for _, p := range a.nets[id].Pins {
			m[p] = id
		}
	}
	return m
}

func (a *Autorouter) padNet(ref string, p primitives.Pad, pins map[primitives.PinRef]int) int {
	if id, ok := pins[primitives.PinRef{Ref: ref, Pin: p.Number}]; ok {
		return id
	}
	return p.NetID
}

// padClearance is the clearance the pad of a net demands from other nets
func (a *Autorouter) padClearance(net int) float64 {
	if n, ok := a.nets[net]; ok {
		return a.opts.NetClasses.Lookup(n.Name).Clearance(a.rules)
	}
	return a.rules.TraceClearance
}

// padHalo is the pad clearance zone of a default-width trace
func (a *Autorouter) padHalo(net int) float64 {
	return a.padClearance(net) + a.rules.TraceWidth/2
}

func (a *Autorouter) markObstacle(o primitives.Obstacle) {
	layers, _ := a.layerIndices(o.Layers)
	a.grid.AddObstacle(o.Bounds.Inflate(a.rules.TraceClearance+a.rules.TraceWidth/2), layers, o.NetID)
	a.grid.AddShape(grid.Shape{Bounds: o.Bounds, Layers: layers, Net: o.NetID, Clearance: a.rules.TraceClearance})
}

func (a *Autorouter) markKeepout(k primitives.Obstacle) {
	layers, _ := a.layerIndices(k.Layers)
	a.grid.AddKeepout(k.Bounds.Inflate(a.rules.TraceWidth/2), layers)
	a.grid.AddShape(grid.Shape{Bounds: k.Bounds, Layers: layers, Keepout: true})
}

// prepare rasterises pads, obstacles and keepouts once per job and
// records their exact shapes. Pads are marked before obstacles so that
// pads covered by an obstacle stay blocked. Pad halos are added in two
// passes: every pad core first, then the halos, so that no halo can claim
// another net's copper.
func (a *Autorouter) prepare() error {
	if a.prepared {
		return nil
	}
	if a.dirty {
		g, err := a.newGrid()
		if err != nil {
			return err
		}
		a.grid = g
		a.routes = make(map[int]*netRoute)
		a.unrouted = make(map[int]bool)
	}
	a.dirty = true
	pins := a.pinNets()
	for _, ref := range a.compOrder {
		for _, p := range a.components[ref].Pads {
			layers, _ := a.padLayers(p)
			a.grid.AddPad(p.Bounds(), layers, a.padNet(ref, p, pins), 0)
		}
	}
	a.markAll()
	a.prepared = true
	return nil
}

func (a *Autorouter) markAll() {
	pins := a.pinNets()
	for _, ref := range a.compOrder {
		for _, p := range a.components[ref].Pads {
			layers, _ := a.padLayers(p)
			net := a.padNet(ref, p, pins)
			a.grid.AddPad(p.Bounds(), layers, net, a.padHalo(net))
			a.grid.AddShape(grid.Shape{Bounds: p.Bounds(), Layers: layers, Net: net, Clearance: a.padClearance(net)})
		}
	}
	for _, o := range a.obstacles {
		a.markObstacle(o)
	}
	for _, k := range a.keepouts {
		a.markKeepout(k)
	}
}

// netSetKey identifies the registered nets for idempotence checks
func (a *Autorouter) netSetKey() string {
	ids := append([]int(nil), a.netOrder...)
	sort.Ints(ids)
	return fmt.Sprint(ids, len(a.components), len(a.obstacles), len(a.keepouts))
}
