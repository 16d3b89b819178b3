package optimizer

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

type checkerFunc func(primitives.Segment) bool

func (f checkerFunc) SegmentClear(s primitives.Segment) bool { return f(s) }

var allClear = checkerFunc(func(primitives.Segment) bool { return true })

func pt(x, y float64) primitives.Point { return primitives.Point{X: x, Y: y} }

func polyline(layer int, pts ...primitives.Point) []primitives.Segment {
	var segs []primitives.Segment
	for i := 1; i < len(pts); i++ {
		segs = append(segs, primitives.Segment{Start: pts[i-1], End: pts[i], Width: 0.25, Layer: layer, Net: 1})
	}
	return segs
}

func anchorsAt(pts ...primitives.Point) []primitives.Anchor {
	out := make([]primitives.Anchor, len(pts))
	for i, p := range pts {
		out[i] = primitives.Anchor{Position: p, Layer: -1}
	}
	return out
}

func TestMergeCollinear(t *testing.T) {
	r := &primitives.Route{Net: 1, Segments: polyline(0, pt(0, 0), pt(1, 0), pt(2, 0), pt(3, 0), pt(3, 2), pt(3, 4))}
	anchors := anchorsAt(pt(0, 0), pt(3, 4))
	o := New(nil, Options{})

	got := o.MergeCollinear(r, anchors)
	if len(got.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(got.Segments))
	}
	if math.Abs(got.Length()-r.Length()) > 1e-9 {
		t.Errorf("Length() = %v, want %v", got.Length(), r.Length())
	}

	again := o.MergeCollinear(got, anchors)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("MergeCollinear() not idempotent (-first +second):\n%s", diff)
	}
}

func TestMergeCollinearKeepsPinnedPoints(t *testing.T) {
	// A pad in the middle of a straight run must stay a segment endpoint
	r := &primitives.Route{Net: 1, Segments: polyline(0, pt(0, 0), pt(2, 0), pt(4, 0))}
	anchors := anchorsAt(pt(0, 0), pt(2, 0), pt(4, 0))

	got := New(nil, Options{}).MergeCollinear(r, anchors)
	if len(got.Segments) != 2 {
		t.Errorf("len(Segments) = %d, want 2", len(got.Segments))
	}
}

func TestMergeCollinearStopsAtVia(t *testing.T) {
	r := &primitives.Route{
		Net:      1,
		Segments: polyline(0, pt(0, 0), pt(2, 0), pt(4, 0)),
		Vias:     []primitives.Via{{Position: pt(2, 0), StartLayer: 0, EndLayer: 1}},
	}
	r.Segments = append(r.Segments, polyline(1, pt(2, 0), pt(2, 3))...)
	anchors := anchorsAt(pt(0, 0), pt(4, 0), pt(2, 3))

	got := New(nil, Options{}).MergeCollinear(r, anchors)
	if len(got.Segments) != 3 {
		t.Errorf("len(Segments) = %d, want 3", len(got.Segments))
	}
}

func TestConvert45Corners(t *testing.T) {
	r := &primitives.Route{Net: 1, Segments: polyline(0, pt(0, 0), pt(4, 0), pt(4, 4))}
	anchors := anchorsAt(pt(0, 0), pt(4, 4))

	tests := []struct {
		name    string
		checker Checker
		want    int
	}{
		{"clear", allClear, 3},
		{"blocked", checkerFunc(func(primitives.Segment) bool { return false }), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.checker, Options{}).Convert45Corners(r, anchors)
			if len(got.Segments) != tt.want {
				t.Fatalf("len(Segments) = %d, want %d", len(got.Segments), tt.want)
			}
			if got.Length() > r.Length()+1e-9 {
				t.Errorf("Length() = %v grew from %v", got.Length(), r.Length())
			}
			if err := got.CheckContinuity(1e-6, anchors); err != nil {
				t.Errorf("CheckContinuity() = %v", err)
			}
		})
	}
}

func TestEliminateZigzags(t *testing.T) {
	r := &primitives.Route{Net: 1, Segments: polyline(0, pt(0, 0), pt(3, 0), pt(3, 0.5), pt(6, 0.5))}
	anchors := anchorsAt(pt(0, 0), pt(6, 0.5))

	got := New(allClear, Options{}).EliminateZigzags(r, anchors)
	if !(got.Length() < r.Length()) {
		t.Errorf("Length() = %v, want < %v", got.Length(), r.Length())
	}
	diag := false
	for _, s := range got.Segments {
		d := s.Direction()
		if math.Abs(math.Abs(d.X)-math.Abs(d.Y)) < 1e-9 && d.X != 0 {
			diag = true
		}
	}
	if !diag {
		t.Errorf("no 45-degree segment in %+v", got.Segments)
	}
}

func TestCompressStaircase(t *testing.T) {
	r := &primitives.Route{Net: 1, Segments: polyline(0,
		pt(0, 0), pt(0.25, 0), pt(0.25, 0.25), pt(0.5, 0.25), pt(0.5, 0.5), pt(0.75, 0.5), pt(0.75, 0.75))}
	anchors := anchorsAt(pt(0, 0), pt(0.75, 0.75))

	got := New(allClear, Options{}).CompressStaircase(r, anchors)
	if len(got.Segments) != 1 {
		t.Fatalf("len(Segments) = %d, want 1", len(got.Segments))
	}
	if want := 0.75 * math.Sqrt2; math.Abs(got.Length()-want) > 1e-9 {
		t.Errorf("Length() = %v, want %v", got.Length(), want)
	}
}

func TestMinimizeVias(t *testing.T) {
	// F.Cu - via - B.Cu detour - via - F.Cu, with F.Cu free underneath
	r := &primitives.Route{Net: 1}
	r.Segments = append(r.Segments, polyline(0, pt(0, 0), pt(2, 0))...)
	r.Segments = append(r.Segments, polyline(1, pt(2, 0), pt(5, 0))...)
	r.Segments = append(r.Segments, polyline(0, pt(5, 0), pt(7, 0))...)
	r.Vias = []primitives.Via{
		{Position: pt(2, 0), StartLayer: 0, EndLayer: 1, Net: 1},
		{Position: pt(5, 0), StartLayer: 0, EndLayer: 1, Net: 1},
	}
	anchors := []primitives.Anchor{{Position: pt(0, 0), Layer: 0}, {Position: pt(7, 0), Layer: 0}}

	tests := []struct {
		name     string
		checker  Checker
		wantVias int
	}{
		{"free", allClear, 0},
		{"blocked", checkerFunc(func(s primitives.Segment) bool { return s.Layer != 0 }), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.checker, Options{}).MinimizeVias(r, anchors)
			if len(got.Vias) != tt.wantVias {
				t.Errorf("len(Vias) = %d, want %d", len(got.Vias), tt.wantVias)
			}
			if err := got.CheckContinuity(1e-6, anchors); err != nil {
				t.Errorf("CheckContinuity() = %v", err)
			}
		})
	}
}

func TestOptimizeKeepsEndpoints(t *testing.T) {
	r := &primitives.Route{Net: 1, Segments: polyline(0,
		pt(0, 0), pt(1, 0), pt(2, 0), pt(2, 0.25), pt(4, 0.25), pt(4, 3))}
	anchors := anchorsAt(pt(0, 0), pt(4, 3))

	got := New(allClear, Options{}).Optimize(r, anchors)
	if err := got.CheckContinuity(1e-6, anchors); err != nil {
		t.Fatalf("CheckContinuity() = %v", err)
	}
	if got.Length() > r.Length()+1e-9 {
		t.Errorf("Length() = %v grew from %v", got.Length(), r.Length())
	}
	if len(got.Segments) > len(r.Segments) {
		t.Errorf("len(Segments) = %d grew from %d", len(got.Segments), len(r.Segments))
	}
}

func TestOptimizeWithoutCheckerOnlyMerges(t *testing.T) {
	r := &primitives.Route{Net: 1, Segments: polyline(0, pt(0, 0), pt(4, 0), pt(4, 4))}
	anchors := anchorsAt(pt(0, 0), pt(4, 4))
	got := New(nil, Options{}).Optimize(r, anchors)
	if diff := cmp.Diff(r.Segments, got.Segments); diff != "" {
		t.Errorf("Optimize() without checker moved copper (-in +out):\n%s", diff)
	}
}
