package rules

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
)

func TestGetBestViaSpan(t *testing.T) {
	stack := MustPreset(PresetSixLayer)
	vias := HDIViaRules(stack, DefaultDesignRules())

	// Exhaustive over layer pairs: a via is returned iff some definition
	// covers both layers, and it has the minimal multiplier among them.
	for a := 0; a < stack.Count(); a++ {
		for b := 0; b < stack.Count(); b++ {
			covering := false
			minCost := 1e9
			for _, d := range vias.Definitions {
				if d.Covers(a, b) {
					covering = true
					if d.CostMultiplier < minCost {
						minCost = d.CostMultiplier
					}
				}
			}
			got, ok := vias.GetBestVia(a, b)
			if ok != covering {
				t.Errorf("GetBestVia(%d, %d) ok = %v, want %v", a, b, ok, covering)
				continue
			}
			if ok && got.CostMultiplier != minCost {
				t.Errorf("GetBestVia(%d, %d) = %v, want multiplier %v", a, b, got, minCost)
			}
			if ok && !got.Covers(a, b) {
				t.Errorf("GetBestVia(%d, %d) = %v does not cover both layers", a, b, got)
			}
		}
	}
}

func TestGetBestViaSelection(t *testing.T) {
	stack := MustPreset(PresetSixLayer)
	vias := HDIViaRules(stack, DefaultDesignRules())

	tests := []struct {
		name string
		a, b int
		want ViaType
	}{
		{"top micro", 0, 1, ViaMicro},
		{"bottom micro", 4, 5, ViaMicro},
		{"blind top", 0, 2, ViaBlind},
		{"buried", 2, 3, ViaBuried},
		{"through", 0, 5, ViaThrough},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := vias.GetBestVia(tt.a, tt.b)
			if !ok || got.Type != tt.want {
				t.Errorf("GetBestVia(%d, %d) = %v, %v, want %v", tt.a, tt.b, got.Type, ok, tt.want)
			}
		})
	}
}

func TestGetBestViaMinDrill(t *testing.T) {
	stack := MustPreset(PresetTwoLayer)
	vias := StandardViaRules(stack, DefaultDesignRules())

	if _, ok := vias.GetBestVia(0, 1); !ok {
		t.Fatal("GetBestVia(0, 1) found no via")
	}
	vias.MinDrill = 0.6
	if d, ok := vias.GetBestVia(0, 1); ok {
		t.Errorf("GetBestVia(0, 1) = %v with MinDrill 0.6, want none", d)
	}
}

func TestViaRulesValidate(t *testing.T) {
	stack := MustPreset(PresetTwoLayer)
	tests := []struct {
		name string
		def  ViaDefinition
	}{
		{"inverted", ViaDefinition{Drill: 0.3, AnnularRing: 0.1, StartLayer: 1, EndLayer: 0, CostMultiplier: 1}},
		{"outside stack", ViaDefinition{Drill: 0.3, AnnularRing: 0.1, StartLayer: 0, EndLayer: 3, CostMultiplier: 1}},
		{"single layer", ViaDefinition{Drill: 0.3, AnnularRing: 0.1, StartLayer: 1, EndLayer: 1, CostMultiplier: 1}},
		{"no drill", ViaDefinition{AnnularRing: 0.1, StartLayer: 0, EndLayer: 1, CostMultiplier: 1}},
		{"free", ViaDefinition{Drill: 0.3, AnnularRing: 0.1, StartLayer: 0, EndLayer: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ViaRules{Definitions: []ViaDefinition{tt.def}}
			if err := v.Validate(stack); !errors.Is(err, errors.ErrCodeInvalidVia) {
				t.Errorf("Validate() = %v, want INVALID_VIA", err)
			}
		})
	}

	if err := HDIViaRules(MustPreset(PresetFourLayer), DefaultDesignRules()).Validate(MustPreset(PresetFourLayer)); err != nil {
		t.Errorf("HDIViaRules().Validate() = %v", err)
	}
}

func TestViaRulesForClass(t *testing.T) {
	stack := MustPreset(PresetFourLayer)
	vias := HDIViaRules(stack, DefaultDesignRules())

	same, err := vias.ForClass(NetClass{Name: "Default"})
	if err != nil {
		t.Fatalf("ForClass(no overrides) error = %v", err)
	}
	if len(same.Definitions) != len(vias.Definitions) || same.Definitions[0] != vias.Definitions[0] {
		t.Errorf("ForClass(no overrides) changed the catalogue: %v", same.Definitions)
	}

	power, err := vias.ForClass(NetClass{Name: "Power", ViaDrill: 0.5, ViaDiameter: 1.0})
	if err != nil {
		t.Fatalf("ForClass(Power) error = %v", err)
	}
	through, ok := power.GetBestVia(0, 3)
	if !ok || through.Type != ViaThrough {
		t.Fatalf("GetBestVia(0, 3) = %v, %v, want through via", through, ok)
	}
	if through.Drill != 0.5 || through.Diameter() != 1.0 {
		t.Errorf("through via = %v/%v, want 0.5/1.0", through.Drill, through.Diameter())
	}
	micro, _ := power.GetBestVia(0, 1)
	if micro.Type != ViaMicro || micro.Drill != 0.1 {
		t.Errorf("GetBestVia(0, 1) = %v, want untouched micro via", micro)
	}
	if vias.Definitions[0].Drill != DefaultDesignRules().ViaDrill {
		t.Errorf("ForClass modified the source catalogue: %v", vias.Definitions[0])
	}

	// Only the drill set: the diameter is kept and must still exceed it
	if _, err := vias.ForClass(NetClass{Name: "Big", ViaDrill: 0.9}); !errors.Is(err, errors.ErrCodeInvalidVia) {
		t.Errorf("ForClass(drill 0.9) error = %v, want INVALID_VIA", err)
	}
}
