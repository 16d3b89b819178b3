// Package optimizer rewrites the geometry of finished routes: it merges
// collinear runs, replaces jogs and staircases by diagonals, chamfers right
// angles and removes via pairs that a single layer can replace.
//
// The optimizer never searches. Every rewrite that moves copper is checked
// against a Checker supplied by the caller; without one only merges that
// keep the copper unchanged run. A rewrite that would break continuity is
// discarded and the input returned.
package optimizer

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// Checker decides whether new copper may be placed
type Checker interface {
	// SegmentClear reports whether s can be added to its net without a
	// clearance violation the route did not already have.
	SegmentClear(s primitives.Segment) bool
}

// Options tunes the rewrites. Lengths are in mm.
type Options struct {
	Tolerance  float64 // Point coincidence, default 1e-4
	MaxChamfer float64 // Longest leg cut off a right angle, default 0.5
	MaxJog     float64 // Longest side step treated as a zigzag or stair, default 0.75
	MinStairs  int     // Fewest segments forming a staircase, default 3
}

// DefaultOptions returns the defaults used by the router
func DefaultOptions() Options {
	return Options{Tolerance: 1e-4, MaxChamfer: 0.5, MaxJog: 0.75, MinStairs: 3}
}

// Optimizer rewrites routes
type Optimizer struct {
	checker Checker
	opts    Options
}

// New creates an optimizer. checker may be nil.
func New(checker Checker, opts Options) *Optimizer {
	d := DefaultOptions()
	if opts.Tolerance <= 0 {
		opts.Tolerance = d.Tolerance
	}
	if opts.MaxChamfer <= 0 {
		opts.MaxChamfer = d.MaxChamfer
	}
	if opts.MaxJog <= 0 {
		opts.MaxJog = d.MaxJog
	}
	if opts.MinStairs < 2 {
		opts.MinStairs = d.MinStairs
	}
	return &Optimizer{checker: checker, opts: opts}
}

// Optimize applies every rewrite in turn
func (o *Optimizer) Optimize(r *primitives.Route, anchors []primitives.Anchor) *primitives.Route {
	r = o.MergeCollinear(r, anchors)
	if o.checker == nil {
		return r
	}
	r = o.MinimizeVias(r, anchors)
	r = o.MergeCollinear(r, anchors)
	r = o.CompressStaircase(r, anchors)
	r = o.EliminateZigzags(r, anchors)
	r = o.Convert45Corners(r, anchors)
	return o.MergeCollinear(r, anchors)
}

// verified returns out when it keeps continuity, in otherwise
func (o *Optimizer) verified(in, out *primitives.Route, anchors []primitives.Anchor) *primitives.Route {
	if err := out.CheckContinuity(o.opts.Tolerance, anchors); err != nil {
		return in
	}
	return out
}

func (o *Optimizer) clear(a, b primitives.Point, c chain) bool {
	if o.checker == nil {
		return false
	}
	return o.checker.SegmentClear(primitives.Segment{Start: a, End: b, Width: c.width, Layer: c.layer, Net: c.net})
}

// rewrite applies fn to every chain and verifies the result
func (o *Optimizer) rewrite(r *primitives.Route, anchors []primitives.Anchor, fn func(chain) []primitives.Point) *primitives.Route {
	if r == nil || len(r.Segments) == 0 {
		return r
	}
	chains := newTopology(r, anchors, o.opts.Tolerance).chains()
	changed := false
	for i := range chains {
		pts := fn(chains[i])
		if len(pts) != len(chains[i].pts) {
			changed = true
		} else {
			for k := range pts {
				if !pts[k].Near(chains[i].pts[k], o.opts.Tolerance) {
					changed = true
					break
				}
			}
		}
		chains[i].pts = pts
	}
	if !changed {
		return r
	}
	return o.verified(r, build(r, chains, r.Vias), anchors)
}

// MergeCollinear fuses adjacent segments of a chain that continue in the
// same direction. Applying it to its own output changes nothing.
func (o *Optimizer) MergeCollinear(r *primitives.Route, anchors []primitives.Anchor) *primitives.Route {
	return o.rewrite(r, anchors, func(c chain) []primitives.Point {
		pts := primitives.CollapseCollinear(c.pts)
		if len(pts) < 2 {
			// keep a degenerate chain so a pinned point stays covered
			return c.pts
		}
		return pts
	})
}

// Convert45Corners chamfers right-angle free corners with a 45-degree
// segment where the checker allows it.
func (o *Optimizer) Convert45Corners(r *primitives.Route, anchors []primitives.Anchor) *primitives.Route {
	if o.checker == nil {
		return r
	}
	return o.rewrite(r, anchors, func(c chain) []primitives.Point {
		pts := c.pts
		if len(pts) < 3 {
			return pts
		}
		out := []primitives.Point{pts[0]}
		for i := 1; i < len(pts)-1; i++ {
			a, b, next := out[len(out)-1], pts[i], pts[i+1]
			u, lu := unit(b.Sub(a))
			v, lv := unit(next.Sub(b))
			if lu == 0 || lv == 0 || math.Abs(u.X*v.X+u.Y*v.Y) > 1e-9 {
				out = append(out, b)
				continue
			}
			d := math.Min(o.opts.MaxChamfer, math.Min(lu, lv)/2)
			if d < 2*o.opts.Tolerance {
				out = append(out, b)
				continue
			}
			q1, q2 := b.Sub(u.Scale(d)), b.Add(v.Scale(d))
			if !o.clear(q1, q2, c) {
				out = append(out, b)
				continue
			}
			out = append(out, q1, q2)
		}
		return append(out, pts[len(pts)-1])
	})
}

// EliminateZigzags replaces a short side step between two parallel runs
// by a diagonal: a-b-c-d with ab parallel to cd and a short bc becomes
// a-b'-c-d where b'c is at 45 degrees.
func (o *Optimizer) EliminateZigzags(r *primitives.Route, anchors []primitives.Anchor) *primitives.Route {
	if o.checker == nil {
		return r
	}
	tol := o.opts.Tolerance
	return o.rewrite(r, anchors, func(c chain) []primitives.Point {
		pts := append([]primitives.Point(nil), c.pts...)
		for i := 1; i+2 < len(pts); i++ {
			a, b, cc, d := pts[i-1], pts[i], pts[i+1], pts[i+2]
			u1, l1 := unit(b.Sub(a))
			u2, l2 := unit(cc.Sub(b))
			u3, l3 := unit(d.Sub(cc))
			if l1 == 0 || l2 == 0 || l3 == 0 || l2 > o.opts.MaxJog || l1 < l2-tol {
				continue
			}
			if !u1.Near(u3, 1e-9) || math.Abs(u1.X*u2.X+u1.Y*u2.Y) > 1e-9 {
				continue
			}
			nb := b.Sub(u1.Scale(l2))
			if !o.clear(nb, cc, c) {
				continue
			}
			if nb.Near(a, tol) {
				pts = append(pts[:i], pts[i+1:]...)
			} else {
				pts[i] = nb
			}
			i++
		}
		return pts
	})
}

// CompressStaircase replaces runs of short alternating horizontal and
// vertical steps heading the same way by one straight segment.
func (o *Optimizer) CompressStaircase(r *primitives.Route, anchors []primitives.Anchor) *primitives.Route {
	if o.checker == nil {
		return r
	}
	tol := o.opts.Tolerance
	return o.rewrite(r, anchors, func(c chain) []primitives.Point {
		pts := c.pts
		out := []primitives.Point{pts[0]}
		i := 0
		for i < len(pts)-1 {
			j := o.stairEnd(pts, i, tol)
			if j-i >= o.opts.MinStairs && o.clear(pts[i], pts[j], c) {
				out = append(out, pts[j])
				i = j
				continue
			}
			out = append(out, pts[i+1])
			i++
		}
		return out
	})
}

// stairEnd returns the last index k such that pts[i..k] is a staircase
func (o *Optimizer) stairEnd(pts []primitives.Point, i int, tol float64) int {
	var hSign, vSign float64
	k := i
	prevH := false
	for k+1 < len(pts) {
		d := pts[k+1].Sub(pts[k])
		if !axisAligned(d, tol) || math.Hypot(d.X, d.Y) > o.opts.MaxJog || math.Hypot(d.X, d.Y) <= tol {
			break
		}
		isH := math.Abs(d.Y) <= tol
		if k > i && isH == prevH {
			break
		}
		if isH {
			s := math.Copysign(1, d.X)
			if hSign != 0 && s != hSign {
				break
			}
			hSign = s
		} else {
			s := math.Copysign(1, d.Y)
			if vSign != 0 && s != vSign {
				break
			}
			vSign = s
		}
		prevH = isH
		k++
	}
	return k
}

// MinimizeVias removes a pair of vias joining the same two layers when the
// copper between them can move to the other layer: the detour A-B on
// layer L between vias at A and B, both also touching layer M only, is
// moved onto M and both vias dropped.
func (o *Optimizer) MinimizeVias(r *primitives.Route, anchors []primitives.Anchor) *primitives.Route {
	if o.checker == nil || r == nil || len(r.Vias) < 2 {
		return r
	}
	tol := o.opts.Tolerance
	top := newTopology(r, anchors, tol)
	chains := top.chains()

	layersAt := func(p primitives.Point, skip int) map[int]int {
		counts := make(map[int]int)
		for i, c := range chains {
			if i == skip {
				continue
			}
			if c.pts[0].Near(p, tol) || c.pts[len(c.pts)-1].Near(p, tol) {
				counts[c.layer]++
			}
		}
		return counts
	}
	anchored := func(p primitives.Point) bool {
		for _, a := range anchors {
			if a.Position.Near(p, tol) {
				return true
			}
		}
		return false
	}

	for ci, c := range chains {
		if len(c.pts) < 2 {
			continue
		}
		first, last := c.pts[0], c.pts[len(c.pts)-1]
		vi, vj := -1, -1
		for k, v := range r.Vias {
			if v.Position.Near(first, tol) && vi < 0 {
				vi = k
			} else if v.Position.Near(last, tol) && vj < 0 {
				vj = k
			}
		}
		if vi < 0 || vj < 0 || anchored(first) || anchored(last) {
			continue
		}
		a, b := r.Vias[vi], r.Vias[vj]
		if a.StartLayer != b.StartLayer || a.EndLayer != b.EndLayer {
			continue
		}
		la, lb := layersAt(first, ci), layersAt(last, ci)
		if len(la) != 1 || len(lb) != 1 {
			continue
		}
		var m int
		for l := range la {
			m = l
		}
		if _, ok := lb[m]; !ok || m == c.layer {
			continue
		}

		moved := c
		moved.layer = m
		ok := true
		for _, s := range moved.segments() {
			if !o.checker.SegmentClear(s) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		out := make([]chain, len(chains))
		copy(out, chains)
		out[ci] = moved
		vias := make([]primitives.Via, 0, len(r.Vias)-2)
		for k, v := range r.Vias {
			if k != vi && k != vj {
				vias = append(vias, v)
			}
		}
		next := o.verified(r, build(r, out, vias), anchors)
		if next == r {
			continue
		}
		// Restart on the smaller route; each pass removes two vias
		return o.MinimizeVias(next, anchors)
	}
	return r
}
