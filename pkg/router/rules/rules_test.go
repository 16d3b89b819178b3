package rules

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
)

func TestPresets(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		routable []int
		planes   map[string]string
	}{
		{PresetTwoLayer, 2, []int{0, 1}, nil},
		{PresetFourLayer, 4, []int{0, 1, 2, 3}, nil},
		{PresetFourLayerPlanes, 4, []int{0, 3}, map[string]string{"GND": "In1.Cu", "+3V3": "In2.Cu"}},
		{PresetSixLayer, 6, []int{0, 1, 2, 3, 4, 5}, nil},
		{PresetSixLayerPlanes, 6, []int{0, 2, 3, 5}, map[string]string{"GND": "In1.Cu", "+3V3": "In4.Cu"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Preset(tt.name)
			if err != nil {
				t.Fatalf("Preset(%q) error = %v", tt.name, err)
			}
			if s.Count() != tt.count {
				t.Errorf("Count() = %d, want %d", s.Count(), tt.count)
			}
			got := s.RoutableLayers()
			if len(got) != len(tt.routable) {
				t.Fatalf("RoutableLayers() = %v, want %v", got, tt.routable)
			}
			for i := range got {
				if got[i] != tt.routable[i] {
					t.Errorf("RoutableLayers() = %v, want %v", got, tt.routable)
				}
			}
			first, _ := s.Layer(0)
			last, _ := s.Layer(s.Count() - 1)
			if !first.IsOuter || !last.IsOuter {
				t.Errorf("outer layers not flagged: %+v %+v", first, last)
			}
			for net, layer := range tt.planes {
				l, ok := s.PlaneFor(net)
				if !ok || l.Name != layer {
					t.Errorf("PlaneFor(%q) = %v, %v, want %s", net, l.Name, ok, layer)
				}
			}
		})
	}
}

func TestAdaptiveSequenceAddsLayers(t *testing.T) {
	prev := 0
	for _, name := range AdaptiveSequence {
		n := len(MustPreset(name).RoutableLayers())
		if n <= prev {
			t.Errorf("%s has %d routable layers, previous stack had %d", name, n, prev)
		}
		prev = n
	}
}

func TestPresetUnknown(t *testing.T) {
	_, err := Preset("3layer")
	if !errors.Is(err, errors.ErrCodeInvalidLayer) {
		t.Errorf("Preset(3layer) error = %v, want INVALID_LAYER", err)
	}
}

func TestNewLayerStackValidation(t *testing.T) {
	tests := []struct {
		name   string
		layers []Layer
	}{
		{"empty", nil},
		{"gap", []Layer{{Index: 0, Name: "F.Cu"}, {Index: 2, Name: "B.Cu"}}},
		{"duplicate", []Layer{{Index: 0, Name: "F.Cu"}, {Index: 1, Name: "F.Cu"}}},
		{"unnamed", []Layer{{Index: 0}}},
		{"planes only", []Layer{
			{Index: 0, Name: "F.Cu", Type: LayerPlane, PlaneNet: "GND"},
			{Index: 1, Name: "B.Cu", Type: LayerPlane, PlaneNet: "VCC"},
		}},
		{"plane without net", []Layer{{Index: 0, Name: "F.Cu"}, {Index: 1, Name: "B.Cu", Type: LayerPlane}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLayerStack("x", tt.layers); !errors.Is(err, errors.ErrCodeInvalidLayer) {
				t.Errorf("NewLayerStack() error = %v, want INVALID_LAYER", err)
			}
		})
	}
}

func TestLayerStackIndexOf(t *testing.T) {
	s := MustPreset(PresetSixLayer)
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"F.Cu", 0, true},
		{"In3.Cu", 3, true},
		{"B.Cu", 5, true},
		{"top", 0, true},
		{"bottom", 5, true},
		{"In9.Cu", 0, false},
	}
	for _, tt := range tests {
		got, ok := s.IndexOf(tt.name)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("IndexOf(%q) = %d, %v, want %d, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCopperLayerName(t *testing.T) {
	tests := []struct {
		i, n int
		want string
	}{
		{0, 2, "F.Cu"},
		{1, 2, "B.Cu"},
		{1, 4, "In1.Cu"},
		{4, 6, "In4.Cu"},
		{5, 6, "B.Cu"},
	}
	for _, tt := range tests {
		if got := CopperLayerName(tt.i, tt.n); got != tt.want {
			t.Errorf("CopperLayerName(%d, %d) = %q, want %q", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestDesignRulesValidate(t *testing.T) {
	if err := DefaultDesignRules().Validate(); err != nil {
		t.Fatalf("DefaultDesignRules().Validate() = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*DesignRules)
	}{
		{"zero resolution", func(r *DesignRules) { r.GridResolution = 0 }},
		{"negative width", func(r *DesignRules) { r.TraceWidth = -0.1 }},
		{"drill over diameter", func(r *DesignRules) { r.ViaDrill = 1.0 }},
		{"shrinking present factor", func(r *DesignRules) { r.PresentCostGrowth = 0.5 }},
		{"negative edge", func(r *DesignRules) { r.EdgeClearance = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultDesignRules()
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Validate() = %v, want INVALID_CONFIG", err)
			}
		})
	}
}
