package optimizer

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// chain is a polyline of segments on one layer whose interior points are
// free corners: exactly two segments of equal width meet there and no via
// or pad pins the point.
type chain struct {
	layer int
	width float64
	net   int
	pts   []primitives.Point
}

func (c chain) segments() []primitives.Segment {
	out := make([]primitives.Segment, 0, len(c.pts))
	for i := 1; i < len(c.pts); i++ {
		out = append(out, primitives.Segment{
			Start: c.pts[i-1], End: c.pts[i],
			Width: c.width, Layer: c.layer, Net: c.net,
		})
	}
	return out
}

type pointKey struct {
	x, y  int64
	layer int
}

type topology struct {
	tol     float64
	segs    []primitives.Segment
	vias    []primitives.Via
	anchors []primitives.Anchor
	ends    map[pointKey][]int // segment indices touching a point
}

func newTopology(r *primitives.Route, anchors []primitives.Anchor, tol float64) *topology {
	t := &topology{
		tol:     tol,
		segs:    r.Segments,
		vias:    r.Vias,
		anchors: anchors,
		ends:    make(map[pointKey][]int),
	}
	for i, s := range r.Segments {
		t.ends[t.key(s.Start, s.Layer)] = append(t.ends[t.key(s.Start, s.Layer)], i)
		t.ends[t.key(s.End, s.Layer)] = append(t.ends[t.key(s.End, s.Layer)], i)
	}
	return t
}

func (t *topology) key(p primitives.Point, layer int) pointKey {
	return pointKey{x: int64(math.Round(p.X / t.tol)), y: int64(math.Round(p.Y / t.tol)), layer: layer}
}

// pinned reports whether a via or a pad fixes the point
func (t *topology) pinned(p primitives.Point, layer int) bool {
	for _, v := range t.vias {
		if v.Spans(layer) && v.Position.Near(p, t.tol) {
			return true
		}
	}
	for _, a := range t.anchors {
		if (a.Layer < 0 || a.Layer == layer) && a.Position.Near(p, t.tol) {
			return true
		}
	}
	return false
}

// other returns the segment continuing a chain through p, if p is free
func (t *topology) other(p primitives.Point, layer, from int) (int, bool) {
	at := t.ends[t.key(p, layer)]
	if len(at) != 2 || t.pinned(p, layer) {
		return 0, false
	}
	next := at[0]
	if next == from {
		next = at[1]
	}
	if next == from || t.segs[next].Width != t.segs[from].Width {
		return 0, false
	}
	return next, true
}

func (t *topology) far(seg int, p primitives.Point) primitives.Point {
	s := t.segs[seg]
	if s.Start.Near(p, t.tol) {
		return s.End
	}
	return s.Start
}

// chains splits the segments into maximal chains
func (t *topology) chains() []chain {
	used := make([]bool, len(t.segs))
	var out []chain
	for i, s := range t.segs {
		if used[i] {
			continue
		}
		used[i] = true
		pts := []primitives.Point{s.Start, s.End}

		cur, from := s.End, i
		for {
			next, ok := t.other(cur, s.Layer, from)
			if !ok || used[next] {
				break
			}
			used[next] = true
			cur = t.far(next, cur)
			pts = append(pts, cur)
			from = next
		}

		cur, from = s.Start, i
		var head []primitives.Point
		for {
			next, ok := t.other(cur, s.Layer, from)
			if !ok || used[next] {
				break
			}
			used[next] = true
			cur = t.far(next, cur)
			head = append(head, cur)
			from = next
		}
		for l, r := 0, len(head)-1; l < r; l, r = l+1, r-1 {
			head[l], head[r] = head[r], head[l]
		}

		out = append(out, chain{
			layer: s.Layer,
			width: s.Width,
			net:   s.Net,
			pts:   append(head, pts...),
		})
	}
	return out
}

func build(base *primitives.Route, chains []chain, vias []primitives.Via) *primitives.Route {
	r := &primitives.Route{Net: base.Net, NetName: base.NetName, Vias: vias}
	for _, c := range chains {
		r.Segments = append(r.Segments, c.segments()...)
	}
	return r
}

func unit(v primitives.Point) (primitives.Point, float64) {
	l := math.Hypot(v.X, v.Y)
	if l == 0 {
		return v, 0
	}
	return v.Scale(1 / l), l
}

func axisAligned(v primitives.Point, tol float64) bool {
	return math.Abs(v.X) <= tol || math.Abs(v.Y) <= tol
}
