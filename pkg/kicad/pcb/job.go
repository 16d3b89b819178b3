package pcb

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// unboundedMargin pads the copper extent of boards without an outline
const unboundedMargin = 1.0 // mm

// Geometry returns the routable area: the Edge.Cuts extent and outline,
// or the copper extent plus a margin when the board has no outline.
func (b *Board) Geometry() (primitives.BoardGeometry, error) {
	bbox := b.Edges.BoundingBox()
	var outline []Position
	if bbox.IsEmpty() {
		bbox = b.GetBoundingBox()
		if bbox.IsEmpty() {
			return primitives.BoardGeometry{}, errors.New(errors.ErrCodeInvalidInput, "board has no outline and no copper")
		}
		bbox = bbox.Inflate(unboundedMargin)
	} else if len(b.Edges.Arcs) == 0 && len(b.Edges.Circles) == 0 {
		if pts := b.Edges.Outline(); len(pts) >= 3 {
			outline = pts
		}
	}
	return primitives.BoardGeometry{
		Origin:  bbox.Min,
		Width:   bbox.Width(),
		Height:  bbox.Height(),
		Outline: outline,
	}, nil
}

// layerRank orders copper layers top to bottom
func layerRank(name string) int {
	switch name {
	case "F.Cu":
		return 0
	case "B.Cu":
		return math.MaxInt32
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "In"), ".Cu"))
	if err != nil {
		return math.MaxInt32 - 1
	}
	return n
}

// LayerStack builds a stack from the board's copper layers. A power layer
// becomes a plane bound to the net of its zone, or a mixed layer when no
// zone names a net.
func (b *Board) LayerStack() (*rules.LayerStack, error) {
	var copper []Layer
	for _, l := range b.Layers {
		if l.IsCopper() {
			copper = append(copper, l)
		}
	}
	sort.SliceStable(copper, func(i, j int) bool { return layerRank(copper[i].Name) < layerRank(copper[j].Name) })

	layers := make([]rules.Layer, 0, len(copper))
	for i, l := range copper {
		t, err := rules.ParseLayerType(l.Type)
		if err != nil {
			t = rules.LayerSignal
		}
		layer := rules.Layer{Index: i, Name: l.Name, Type: t}
		if t == rules.LayerPlane {
			if net := b.zoneNet(l.Name); net != "" {
				layer.PlaneNet = net
			} else {
				layer.Type = rules.LayerMixed
			}
		}
		layers = append(layers, layer)
	}
	return rules.NewLayerStack(fmt.Sprintf("board-%dlayer", len(layers)), layers)
}

// zoneNet returns the net of the largest copper zone on layer
func (b *Board) zoneNet(layer string) string {
	best, area := "", 0.0
	for _, z := range b.Zones {
		if z.Keepout || z.Net == nil || !containsLayer(z.Layers, layer) {
			continue
		}
		bb := z.Bounds()
		if a := bb.Width() * bb.Height(); a > area {
			best, area = z.Net.Name, a
		}
	}
	return best
}

func containsLayer(set LayerSet, layer string) bool {
	for _, l := range set {
		if l == layer || l == primitives.AllLayers || l == "F&B.Cu" {
			return true
		}
	}
	return false
}

// Job converts the board into a routing job for stack. Existing tracks
// and vias become fixed copper, keepout rule areas become keepouts and
// non-plated holes become obstacles on every layer. Copper on layers
// outside the stack is dropped with a warning.
func (b *Board) Job(stack *rules.LayerStack) (*router.Job, error) {
	geom, err := b.Geometry()
	if err != nil {
		return nil, err
	}
	job := &router.Job{Board: geom}

	inStack := func(layer string) bool {
		_, ok := stack.IndexOf(layer)
		return ok
	}

	pins := make(map[int][]primitives.PinRef)
	refs := make(map[string]int)
	for _, fp := range b.Footprints {
		ref := fp.Reference
		if ref == "" {
			ref = fp.Name
		}
		if n := refs[ref]; n > 0 {
			refs[ref]++
			ref = fmt.Sprintf("%s_%d", ref, n+1)
		} else {
			refs[ref] = 1
		}

		comp := primitives.Component{Ref: ref}
		seen := make(map[string]bool)
		for _, pad := range fp.Pads {
			abs := fp.TransformPosition(pad.Position)
			size := pad.AbsoluteSize()
			if pad.Type == "np_thru_hole" {
				d := math.Max(pad.Drill, math.Max(size.Width, size.Height))
				job.Obstacles = append(job.Obstacles, primitives.Obstacle{
					Bounds: sexp.RectAround(abs, Size{Width: d, Height: d}),
					Label:  ref + " hole",
				})
				continue
			}
			copper := pad.Layers.Copper()
			if len(copper) == 0 || pad.Number == "" || seen[pad.Number] {
				continue
			}
			layer := copper[0]
			if pad.ThroughHole() || strings.HasPrefix(layer, "*") || layer == "F&B.Cu" {
				layer = primitives.AllLayers
			} else if !inStack(layer) {
				return nil, errors.New(errors.ErrCodeInvalidLayer,
					"pad %s.%s is on %s which is not in stack %s", ref, pad.Number, layer, stack.Name())
			}
			seen[pad.Number] = true
			p := primitives.Pad{
				Number:      pad.Number,
				Position:    abs,
				Size:        size,
				Layer:       layer,
				ThroughHole: pad.ThroughHole(),
				Drill:       pad.Drill,
				Component:   ref,
			}
			if pad.Net != nil && pad.Net.Number > 0 {
				p.NetID, p.NetName = pad.Net.Number, pad.Net.Name
				pins[p.NetID] = append(pins[p.NetID], primitives.PinRef{Ref: ref, Pin: pad.Number})
			}
			comp.Pads = append(comp.Pads, p)
		}
		job.Components = append(job.Components, comp)
	}

	for _, n := range b.Nets {
		if n.Number <= 0 {
			continue
		}
		job.Nets = append(job.Nets, primitives.Net{ID: n.Number, Name: n.Name, Pins: pins[n.Number]})
	}

	for _, t := range b.Tracks {
		if !inStack(t.Layer) {
			logger.Warn("dropping track outside stack", "layer", t.Layer)
			continue
		}
		job.Obstacles = append(job.Obstacles, trackObstacles(t)...)
	}
	for _, v := range b.Vias {
		o := primitives.Obstacle{
			Bounds: sexp.RectAround(v.Position, Size{Width: v.Size, Height: v.Size}),
			Label:  "via",
		}
		if v.Net != nil {
			o.NetID = v.Net.Number
		}
		if v.Type != "" && len(v.Layers) == 2 {
			from, okF := stack.IndexOf(v.Layers[0])
			to, okT := stack.IndexOf(v.Layers[1])
			if okF && okT {
				if from > to {
					from, to = to, from
				}
				for i := from; i <= to; i++ {
					o.Layers = append(o.Layers, stack.LayerName(i))
				}
			}
		}
		job.Obstacles = append(job.Obstacles, o)
	}

	for _, z := range b.Zones {
		if !z.Keepout {
			continue
		}
		k := primitives.Obstacle{Bounds: z.Bounds(), Label: "keepout"}
		all := len(z.Layers) == 0
		for _, l := range z.Layers {
			if l == primitives.AllLayers || l == "F&B.Cu" {
				all = true
				break
			}
			if inStack(l) {
				k.Layers = append(k.Layers, l)
			}
		}
		if all {
			k.Layers = nil
		} else if len(k.Layers) == 0 {
			continue
		}
		job.Keepouts = append(job.Keepouts, k)
	}
	return job, nil
}

// trackObstacles covers a track with boxes no longer than its width so
// that diagonal tracks do not block their whole bounding rectangle.
func trackObstacles(t Track) []primitives.Obstacle {
	net := 0
	if t.Net != nil {
		net = t.Net.Number
	}
	w := math.Max(t.Width, 0.01)
	n := int(math.Ceil(t.Start.Dist(t.End) / w))
	if n < 1 {
		n = 1
	}
	out := make([]primitives.Obstacle, 0, n)
	for i := 0; i < n; i++ {
		a := t.Start.Add(t.End.Sub(t.Start).Scale(float64(i) / float64(n)))
		c := t.Start.Add(t.End.Sub(t.Start).Scale(float64(i+1) / float64(n)))
		bb := sexp.NewBoundingBox()
		bb.Expand(a)
		bb.Expand(c)
		out = append(out, primitives.Obstacle{
			Bounds: bb.Inflate(w / 2),
			Layers: []string{t.Layer},
			NetID:  net,
			Label:  "track",
		})
	}
	return out
}
