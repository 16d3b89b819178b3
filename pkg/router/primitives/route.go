package primitives

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
)

// Anchor is a point the route must reach: a pad centre with the layers it
// has copper on. A negative Layer means every layer.
type Anchor struct {
	Position Point
	Layer    int
}

func (a Anchor) onLayer(layer int) bool {
	return a.Layer < 0 || a.Layer == layer
}

// Route is the copper realising one net
type Route struct {
	Net      int
	NetName  string
	Segments []Segment
	Vias     []Via
}

// Length returns the summed segment length
func (r *Route) Length() float64 {
	var total float64
	for _, s := range r.Segments {
		total += s.Length()
	}
	return total
}

// IsEmpty reports whether the route has no copper
func (r *Route) IsEmpty() bool {
	return len(r.Segments) == 0 && len(r.Vias) == 0
}

// Clone returns a deep copy
func (r *Route) Clone() *Route {
	c := &Route{Net: r.Net, NetName: r.NetName}
	c.Segments = append([]Segment(nil), r.Segments...)
	c.Vias = append([]Via(nil), r.Vias...)
	return c
}

// Append adds the copper of other to r
func (r *Route) Append(other *Route) {
	if other == nil {
		return
	}
	r.Segments = append(r.Segments, other.Segments...)
	r.Vias = append(r.Vias, other.Vias...)
}

// Bounds returns the bounding box of all copper centrelines
func (r *Route) Bounds() sexp.BoundingBox {
	bb := sexp.NewBoundingBox()
	for _, s := range r.Segments {
		bb.Expand(s.Start)
		bb.Expand(s.End)
	}
	for _, v := range r.Vias {
		bb.Expand(v.Position)
	}
	return bb
}

// CheckContinuity verifies that the route has no dangling copper: every
// segment endpoint touches an anchor, a via spanning its layer or another
// segment on its layer, every via touches some copper, and all anchors
// end up in a single connected piece. Violations are internal errors.
func (r *Route) CheckContinuity(tol float64, anchors []Anchor) error {
	n := len(r.Segments) + len(r.Vias) + len(anchors)
	if n == 0 {
		return nil
	}
	set := NewDisjointSet(n)
	viaBase := len(r.Segments)
	anchorBase := viaBase + len(r.Vias)

	for i, s := range r.Segments {
		for _, end := range [2]Point{s.Start, s.End} {
			touched := false
			for j, o := range r.Segments {
				if j == i || o.Layer != s.Layer {
					continue
				}
				if o.Contains(end, tol) {
					set.Union(i, j)
					touched = true
				}
			}
			for j, v := range r.Vias {
				if v.Spans(s.Layer) && v.Position.Near(end, tol) {
					set.Union(i, viaBase+j)
					touched = true
				}
			}
			for j, a := range anchors {
				if a.onLayer(s.Layer) && a.Position.Near(end, tol) {
					set.Union(i, anchorBase+j)
					touched = true
				}
			}
			if !touched {
				return errors.New(errors.ErrCodeInternal,
					"net %d: segment %d end (%.4f, %.4f) on layer %d is dangling", r.Net, i, end.X, end.Y, s.Layer)
			}
		}
	}

	for j, v := range r.Vias {
		touched := false
		for i, s := range r.Segments {
			if v.Spans(s.Layer) && s.Contains(v.Position, tol) {
				set.Union(viaBase+j, i)
				touched = true
			}
		}
		for k, o := range r.Vias {
			// Stacked vias sharing a layer
			if k != j && o.Position.Near(v.Position, tol) && o.StartLayer <= v.EndLayer && v.StartLayer <= o.EndLayer {
				set.Union(viaBase+j, viaBase+k)
			}
		}
		for k, a := range anchors {
			if a.Position.Near(v.Position, tol) {
				set.Union(viaBase+j, anchorBase+k)
				touched = true
			}
		}
		if !touched {
			return errors.New(errors.ErrCodeInternal,
				"net %d: via %d at (%.4f, %.4f) is dangling", r.Net, j, v.Position.X, v.Position.Y)
		}
	}

	if len(anchors) == 0 {
		return nil
	}
	if r.IsEmpty() && len(anchors) > 1 {
		for _, a := range anchors[1:] {
			if !a.Position.Near(anchors[0].Position, tol) {
				return errors.New(errors.ErrCodeInternal, "net %d: route is empty", r.Net)
			}
		}
		return nil
	}
	root := set.Find(anchorBase)
	for k := 1; k < len(anchors); k++ {
		if set.Find(anchorBase+k) != root && !anchors[k].Position.Near(anchors[0].Position, tol) {
			return errors.New(errors.ErrCodeInternal,
				"net %d: anchor (%.4f, %.4f) is not connected", r.Net, anchors[k].Position.X, anchors[k].Position.Y)
		}
	}
	for i := 0; i < anchorBase; i++ {
		if set.Find(i) != root {
			return errors.New(errors.ErrCodeInternal, "net %d: copper island not connected to pads", r.Net)
		}
	}
	return nil
}
