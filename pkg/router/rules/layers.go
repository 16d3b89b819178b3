package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
)

// LayerType classifies a copper layer
type LayerType int

const (
	LayerSignal LayerType = iota
	LayerPlane
	LayerMixed
)

func (t LayerType) String() string {
	switch t {
	case LayerSignal:
		return "signal"
	case LayerPlane:
		return "plane"
	case LayerMixed:
		return "mixed"
	}
	return fmt.Sprintf("LayerType(%d)", int(t))
}

// ParseLayerType converts a KiCad or config layer type name.
// KiCad writes "power" for plane layers.
func ParseLayerType(s string) (LayerType, error) {
	switch strings.ToLower(s) {
	case "signal", "":
		return LayerSignal, nil
	case "plane", "power":
		return LayerPlane, nil
	case "mixed":
		return LayerMixed, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidLayer, "unknown layer type %q", s)
}

// Layer is one copper layer of the stackup
type Layer struct {
	Index    int       // Position in the stack, 0 = top
	Name     string    // KiCad layer name (e.g., "F.Cu", "In1.Cu")
	Type     LayerType // signal, plane or mixed
	IsOuter  bool      // Top or bottom layer
	PlaneNet string    // Net bound to a plane layer (e.g., "GND")
}

// Routable reports whether traces may be placed on the layer.
func (l Layer) Routable() bool {
	return l.Type == LayerSignal || l.Type == LayerMixed
}

// LayerStack is an immutable, ordered set of copper layers
type LayerStack struct {
	name     string
	layers   []Layer
	byName   map[string]int
	routable []int
}

// NewLayerStack validates layers and builds a stack. Indices must be
// contiguous from 0 and at least one layer must be routable.
func NewLayerStack(name string, layers []Layer) (*LayerStack, error) {
	if len(layers) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidLayer, "layer stack %q has no layers", name)
	}

	sorted := make([]Layer, len(layers))
	copy(sorted, layers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	s := &LayerStack{
		name:   name,
		layers: sorted,
		byName: make(map[string]int, len(sorted)),
	}
	for i, l := range sorted {
		if l.Index != i {
			return nil, errors.New(errors.ErrCodeInvalidLayer,
				"layer stack %q: layer indices must be contiguous from 0, got %d at position %d", name, l.Index, i)
		}
		if l.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidLayer, "layer stack %q: layer %d has no name", name, i)
		}
		if _, dup := s.byName[l.Name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidLayer, "layer stack %q: duplicate layer %q", name, l.Name)
		}
		if l.Type == LayerPlane && l.PlaneNet == "" {
			return nil, errors.New(errors.ErrCodeInvalidLayer, "layer stack %q: plane layer %q has no net", name, l.Name)
		}
		s.byName[l.Name] = i
		if l.Routable() {
			s.routable = append(s.routable, i)
		}
	}
	s.layers[0].IsOuter = true
	s.layers[len(s.layers)-1].IsOuter = true

	if len(s.routable) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidLayer, "layer stack %q has no routable layer", name)
	}
	return s, nil
}

// Name returns the stack's name (preset name for presets)
func (s *LayerStack) Name() string { return s.name }

// Count returns the number of copper layers
func (s *LayerStack) Count() int { return len(s.layers) }

// Layers returns a copy of the layers in index order
func (s *LayerStack) Layers() []Layer {
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Layer returns the layer at idx
func (s *LayerStack) Layer(idx int) (Layer, bool) {
	if idx < 0 || idx >= len(s.layers) {
		return Layer{}, false
	}
	return s.layers[idx], true
}

// LayerName returns the name of layer idx, or "" when out of range
func (s *LayerStack) LayerName(idx int) string {
	if l, ok := s.Layer(idx); ok {
		return l.Name
	}
	return ""
}

// IndexOf resolves a layer name. The aliases "top"/"bottom" map to the
// outer layers so that callers need not know the inner layer count.
func (s *LayerStack) IndexOf(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "top", "front":
		return 0, true
	case "bottom", "back":
		return len(s.layers) - 1, true
	}
	idx, ok := s.byName[name]
	return idx, ok
}

// RoutableLayers returns the indices of signal and mixed layers
func (s *LayerStack) RoutableLayers() []int {
	out := make([]int, len(s.routable))
	copy(out, s.routable)
	return out
}

// IsRoutable reports whether traces may be placed on layer idx
func (s *LayerStack) IsRoutable(idx int) bool {
	l, ok := s.Layer(idx)
	return ok && l.Routable()
}

// PlaneFor returns the plane layer bound to net, if any
func (s *LayerStack) PlaneFor(net string) (Layer, bool) {
	if net == "" {
		return Layer{}, false
	}
	for _, l := range s.layers {
		if l.Type == LayerPlane && l.PlaneNet == net {
			return l, true
		}
	}
	return Layer{}, false
}

// Preset names
const (
	PresetTwoLayer        = "2layer"
	PresetFourLayer       = "4layer"
	PresetFourLayerPlanes = "4layer-sig-gnd-pwr-sig"
	PresetSixLayer        = "6layer"
	PresetSixLayerPlanes  = "6layer-sig-gnd-sig-sig-pwr-sig"
	DefaultGroundNet      = "GND"
	DefaultPowerNet       = "+3V3"
)

// AdaptiveSequence is the default escalation order of the adaptive router.
// Each step adds routable layers.
var AdaptiveSequence = []string{PresetTwoLayer, PresetFourLayer, PresetSixLayer}

var presets = map[string][]Layer{
	PresetTwoLayer: {
		{Index: 0, Name: "F.Cu", Type: LayerSignal},
		{Index: 1, Name: "B.Cu", Type: LayerSignal},
	},
	PresetFourLayer: {
		{Index: 0, Name: "F.Cu", Type: LayerSignal},
		{Index: 1, Name: "In1.Cu", Type: LayerMixed},
		{Index: 2, Name: "In2.Cu", Type: LayerMixed},
		{Index: 3, Name: "B.Cu", Type: LayerSignal},
	},
	PresetFourLayerPlanes: {
		{Index: 0, Name: "F.Cu", Type: LayerSignal},
		{Index: 1, Name: "In1.Cu", Type: LayerPlane, PlaneNet: DefaultGroundNet},
		{Index: 2, Name: "In2.Cu", Type: LayerPlane, PlaneNet: DefaultPowerNet},
		{Index: 3, Name: "B.Cu", Type: LayerSignal},
	},
	PresetSixLayer: {
		{Index: 0, Name: "F.Cu", Type: LayerSignal},
		{Index: 1, Name: "In1.Cu", Type: LayerMixed},
		{Index: 2, Name: "In2.Cu", Type: LayerMixed},
		{Index: 3, Name: "In3.Cu", Type: LayerMixed},
		{Index: 4, Name: "In4.Cu", Type: LayerMixed},
		{Index: 5, Name: "B.Cu", Type: LayerSignal},
	},
	PresetSixLayerPlanes: {
		{Index: 0, Name: "F.Cu", Type: LayerSignal},
		{Index: 1, Name: "In1.Cu", Type: LayerPlane, PlaneNet: DefaultGroundNet},
		{Index: 2, Name: "In2.Cu", Type: LayerSignal},
		{Index: 3, Name: "In3.Cu", Type: LayerSignal},
		{Index: 4, Name: "In4.Cu", Type: LayerPlane, PlaneNet: DefaultPowerNet},
		{Index: 5, Name: "B.Cu", Type: LayerSignal},
	},
}

// Preset returns a fresh copy of a named stack
func Preset(name string) (*LayerStack, error) {
	layers, ok := presets[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidLayer,
			"unknown layer stack preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return NewLayerStack(name, layers)
}

// MustPreset is Preset for known-good names; it panics on error.
func MustPreset(name string) *LayerStack {
	s, err := Preset(name)
	if err != nil {
		panic(err)
	}
	return s
}

// PresetNames lists the preset names in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CopperLayerName returns the KiCad name of copper layer i in an n-layer
// stack: F.Cu, In1.Cu ... In(n-2).Cu, B.Cu.
func CopperLayerName(i, n int) string {
	switch {
	case i == 0:
		return "F.Cu"
	case i == n-1:
		return "B.Cu"
	}
	return fmt.Sprintf("In%d.Cu", i)
}
