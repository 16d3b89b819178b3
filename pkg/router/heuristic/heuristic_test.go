package heuristic

import (
	"math"
	"testing"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/grid"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

func TestEstimate(t *testing.T) {
	ctx := Context{Col: 0, Row: 0, Layer: 0, GoalCol: 3, GoalRow: 4, GoalLayer: 0, StepCost: 1, MinViaCost: 10}
	via := ctx
	via.GoalLayer = 1

	tests := []struct {
		name string
		h    Heuristic
		ctx  Context
		want float64
	}{
		{"manhattan", Manhattan{}, ctx, 7},
		{"manhattan via", Manhattan{}, via, 17},
		{"octile", Octile{}, ctx, 1 + 3*math.Sqrt2},
		{"octile via", Octile{}, via, 11 + 3*math.Sqrt2},
		{"weighted", Weighted{Base: Manhattan{}, Weight: 2}, ctx, 14},
		{"congestion without grid", Congestion{Weight: 5, Radius: 1}, ctx, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.Estimate(tt.ctx); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Estimate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdmissibleAtGoal(t *testing.T) {
	for _, name := range []string{"manhattan", "octile"} {
		h, err := New(name)
		if err != nil {
			t.Fatal(err)
		}
		ctx := Context{Col: 5, Row: 5, GoalCol: 5, GoalRow: 5, StepCost: 1, MinViaCost: 10}
		if got := h.Estimate(ctx); got != 0 {
			t.Errorf("%s.Estimate(goal) = %v, want 0", name, got)
		}
	}
}

func TestCongestionPenalty(t *testing.T) {
	g, err := grid.New(sexp.BoundingBox{Max: sexp.Position{X: 10, Y: 10}}, 1, rules.DefaultDesignRules())
	if err != nil {
		t.Fatal(err)
	}
	ctx := Context{Col: 10, Row: 10, GoalCol: 20, GoalRow: 10, StepCost: 1, Grid: g}
	h := Congestion{Weight: 9, Radius: 1}
	quiet := h.Estimate(ctx)

	g.MarkRouteUsage(grid.Footprint{Center: []grid.Coord{{Col: 10, Row: 10}}})
	busy := h.Estimate(ctx)
	if !(busy > quiet) {
		t.Errorf("Estimate() in congested area = %v, want > %v", busy, quiet)
	}
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		h, err := New(name)
		if err != nil {
			t.Fatalf("New(%q) error = %v", name, err)
		}
		if h.Name() != name {
			t.Errorf("New(%q).Name() = %q", name, h.Name())
		}
	}
	if _, err := New("dijkstra"); err == nil {
		t.Error("New(dijkstra) expected error")
	}
}
