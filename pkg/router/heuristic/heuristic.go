// Package heuristic provides the remaining-cost estimates used by the A*
// pathfinder. The set is closed and selected by name when the router is
// built.
//
//	manhattan   admissible for four-direction moves
//	octile      admissible for eight-direction moves
//	congestion  Manhattan plus a penalty for busy neighbourhoods; not
//	            admissible, trades optimality for fewer conflicts
//	weighted    octile scaled by a factor > 1 (greedy weighted A*)
//
// Every variant adds a via lower bound when the goal is on another layer.
package heuristic

import (
	"math"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/grid"
)

// Context is the state handed to a heuristic
type Context struct {
	Col, Row, Layer             int
	GoalCol, GoalRow, GoalLayer int

	StepCost   float64    // Lower bound of the cost of one orthogonal step
	MinViaCost float64    // Lower bound of the cost of one layer change
	Grid       *grid.Grid // Congestion source, may be nil
}

func (c Context) deltas() (dx, dy float64) {
	return math.Abs(float64(c.Col - c.GoalCol)), math.Abs(float64(c.Row - c.GoalRow))
}

func (c Context) viaBound() float64 {
	if c.Layer != c.GoalLayer {
		return c.MinViaCost
	}
	return 0
}

// Heuristic estimates the cost from a state to the goal
type Heuristic interface {
	Estimate(ctx Context) float64
	Name() string
}

// Manhattan is |dx|+|dy| steps
type Manhattan struct{}

func (Manhattan) Name() string { return "manhattan" }

func (Manhattan) Estimate(c Context) float64 {
	dx, dy := c.deltas()
	return (dx+dy)*c.StepCost + c.viaBound()
}

// Octile is the exact move count on an eight-connected lattice
type Octile struct{}

func (Octile) Name() string { return "octile" }

func (Octile) Estimate(c Context) float64 {
	dx, dy := c.deltas()
	lo, hi := math.Min(dx, dy), math.Max(dx, dy)
	return ((hi-lo)+math.Sqrt2*lo)*c.StepCost + c.viaBound()
}

// Congestion adds Weight times the mean usage of the cells within Radius
// of the current state to the Manhattan estimate.
type Congestion struct {
	Weight float64
	Radius int
}

func (Congestion) Name() string { return "congestion" }

func (h Congestion) Estimate(c Context) float64 {
	base := Manhattan{}.Estimate(c)
	if c.Grid == nil || h.Weight == 0 {
		return base
	}
	return base + h.Weight*c.Grid.Congestion(c.Col, c.Row, c.Layer, h.Radius)
}

// Weighted scales another heuristic, expanding fewer states at the cost of
// path optimality.
type Weighted struct {
	Base   Heuristic
	Weight float64
}

func (Weighted) Name() string { return "weighted" }

func (h Weighted) Estimate(c Context) float64 {
	return h.Weight * h.Base.Estimate(c)
}

var constructors = map[string]func() Heuristic{
	"manhattan":  func() Heuristic { return Manhattan{} },
	"octile":     func() Heuristic { return Octile{} },
	"congestion": func() Heuristic { return Congestion{Weight: 2, Radius: 2} },
	"weighted":   func() Heuristic { return Weighted{Base: Octile{}, Weight: 1.5} },
}

// New returns the heuristic with the given name
func New(name string) (Heuristic, error) {
	ctor, ok := constructors[strings.ToLower(name)]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"unknown heuristic %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Default returns the admissible heuristic matching the move set
func Default(diagonal bool) Heuristic {
	if diagonal {
		return Octile{}
	}
	return Manhattan{}
}

// Names lists the available heuristics
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
