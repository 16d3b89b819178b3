package primitives

import (
	"math"
	"testing"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
)

func pt(x, y float64) Point { return Point{X: x, Y: y} }

func TestRouteLength(t *testing.T) {
	r := &Route{Segments: []Segment{
		{Start: pt(0, 0), End: pt(3, 4)},
		{Start: pt(3, 4), End: pt(3, 10)},
	}}
	if got := r.Length(); math.Abs(got-11) > 1e-9 {
		t.Errorf("Length() = %v, want 11", got)
	}
}

func TestCheckContinuity(t *testing.T) {
	pads := []Anchor{{Position: pt(0, 0), Layer: 0}, {Position: pt(10, 0), Layer: 1}}

	tests := []struct {
		name    string
		route   Route
		anchors []Anchor
		wantErr bool
	}{
		{
			name: "straight",
			route: Route{Segments: []Segment{
				{Start: pt(0, 0), End: pt(5, 0), Layer: 0},
				{Start: pt(5, 0), End: pt(10, 0), Layer: 0},
			}},
			anchors: []Anchor{{Position: pt(0, 0), Layer: 0}, {Position: pt(10, 0), Layer: 0}},
		},
		{
			name: "via between layers",
			route: Route{
				Segments: []Segment{
					{Start: pt(0, 0), End: pt(5, 0), Layer: 0},
					{Start: pt(5, 0), End: pt(10, 0), Layer: 1},
				},
				Vias: []Via{{Position: pt(5, 0), StartLayer: 0, EndLayer: 1}},
			},
			anchors: pads,
		},
		{
			name: "layer change without via",
			route: Route{Segments: []Segment{
				{Start: pt(0, 0), End: pt(5, 0), Layer: 0},
				{Start: pt(5, 0), End: pt(10, 0), Layer: 1},
			}},
			anchors: pads,
			wantErr: true,
		},
		{
			name: "dangling stub",
			route: Route{Segments: []Segment{
				{Start: pt(0, 0), End: pt(10, 0), Layer: 0},
				{Start: pt(4, 0), End: pt(4, 3), Layer: 0},
			}},
			anchors: []Anchor{{Position: pt(0, 0), Layer: 0}, {Position: pt(10, 0), Layer: 0}},
			wantErr: true,
		},
		{
			name: "through-hole anchor on any layer",
			route: Route{Segments: []Segment{
				{Start: pt(0, 0), End: pt(10, 0), Layer: 1},
			}},
			anchors: []Anchor{{Position: pt(0, 0), Layer: -1}, {Position: pt(10, 0), Layer: -1}},
		},
		{
			name: "disconnected anchor",
			route: Route{Segments: []Segment{
				{Start: pt(0, 0), End: pt(5, 0), Layer: 0},
				{Start: pt(5, 0), End: pt(5, 5), Layer: 0},
			}},
			anchors: []Anchor{{Position: pt(0, 0), Layer: 0}, {Position: pt(5, 5), Layer: 0}, {Position: pt(9, 9), Layer: 0}},
			wantErr: true,
		},
		{
			name: "stray via",
			route: Route{
				Segments: []Segment{{Start: pt(0, 0), End: pt(10, 0), Layer: 0}},
				Vias:     []Via{{Position: pt(3, 3), StartLayer: 0, EndLayer: 1}},
			},
			anchors: []Anchor{{Position: pt(0, 0), Layer: 0}, {Position: pt(10, 0), Layer: 0}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.route.CheckContinuity(1e-4, tt.anchors)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckContinuity() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInternal) {
				t.Errorf("CheckContinuity() code = %v, want INTERNAL_ERROR", errors.GetCode(err))
			}
		})
	}
}

func TestBoardContains(t *testing.T) {
	b := BoardGeometry{
		Width: 10, Height: 10,
		Outline: []Point{pt(0, 0), pt(10, 0), pt(0, 10)},
	}
	tests := []struct {
		p    Point
		want bool
	}{
		{pt(1, 1), true},
		{pt(9, 9), false},
		{pt(-1, 1), false},
	}
	for _, tt := range tests {
		if got := b.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestDisjointSet(t *testing.T) {
	ds := NewDisjointSet(5)
	if !ds.Union(0, 1) || !ds.Union(3, 4) {
		t.Fatal("Union() of fresh sets returned false")
	}
	if ds.Union(1, 0) {
		t.Error("Union() of joined sets returned true")
	}
	if ds.Count() != 3 {
		t.Errorf("Count() = %d, want 3", ds.Count())
	}
	if !ds.Connected(0, 1) || ds.Connected(1, 3) {
		t.Error("Connected() mismatch")
	}
	if got := len(ds.Groups()); got != 3 {
		t.Errorf("len(Groups()) = %d, want 3", got)
	}
}

func TestDistToSegment(t *testing.T) {
	tests := []struct {
		p, a, b Point
		want    float64
	}{
		{pt(5, 3), pt(0, 0), pt(10, 0), 3},
		{pt(-3, 4), pt(0, 0), pt(10, 0), 5},
		{pt(1, 1), pt(0, 0), pt(0, 0), math.Sqrt2},
	}
	for _, tt := range tests {
		if got := DistToSegment(tt.p, tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DistToSegment(%v, %v, %v) = %v, want %v", tt.p, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCollapseCollinear(t *testing.T) {
	tests := []struct {
		name string
		in   []Point
		want int
	}{
		{"line", []Point{pt(0, 0), pt(1, 0), pt(2, 0), pt(3, 0)}, 2},
		{"corner", []Point{pt(0, 0), pt(1, 0), pt(1, 1)}, 3},
		{"duplicates", []Point{pt(0, 0), pt(0, 0), pt(1, 1), pt(2, 2)}, 2},
		{"reversal kept", []Point{pt(0, 0), pt(2, 0), pt(1, 0)}, 3},
	}
	for _, tt := range tests {
		if got := CollapseCollinear(tt.in); len(got) != tt.want {
			t.Errorf("%s: CollapseCollinear() = %v, want %d points", tt.name, got, tt.want)
		}
	}
}
