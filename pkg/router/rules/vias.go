package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
)

// ViaType is the manufacturing class of a via
type ViaType int

const (
	ViaThrough ViaType = iota
	ViaBlind
	ViaBuried
	ViaMicro
)

func (t ViaType) String() string {
	switch t {
	case ViaThrough:
		return "through"
	case ViaBlind:
		return "blind"
	case ViaBuried:
		return "buried"
	case ViaMicro:
		return "micro"
	}
	return fmt.Sprintf("ViaType(%d)", int(t))
}

// KiCadKeyword returns the via type keyword KiCad writes after (via,
// empty for through vias.
func (t ViaType) KiCadKeyword() string {
	switch t {
	case ViaBlind, ViaBuried:
		return "blind"
	case ViaMicro:
		return "micro"
	}
	return ""
}

// ParseViaType converts a via type name
func ParseViaType(s string) (ViaType, error) {
	switch strings.ToLower(s) {
	case "through", "":
		return ViaThrough, nil
	case "blind":
		return ViaBlind, nil
	case "buried":
		return ViaBuried, nil
	case "micro", "microvia":
		return ViaMicro, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidVia, "unknown via type %q", s)
}

// ViaDefinition describes one via type available to the router
type ViaDefinition struct {
	Type           ViaType
	Drill          float64 // Finished hole diameter in mm
	AnnularRing    float64 // Copper ring width around the hole in mm
	StartLayer     int     // First layer spanned (inclusive)
	EndLayer       int     // Last layer spanned (inclusive)
	CostMultiplier float64 // Relative cost against the base via cost
}

// Diameter returns the via pad diameter
func (d ViaDefinition) Diameter() float64 {
	return d.Drill + 2*d.AnnularRing
}

// Covers reports whether the via spans both layers
func (d ViaDefinition) Covers(a, b int) bool {
	return a >= d.StartLayer && a <= d.EndLayer && b >= d.StartLayer && b <= d.EndLayer
}

func (d ViaDefinition) String() string {
	return fmt.Sprintf("%s %.3g/%.3g [%d..%d] x%.2g",
		d.Type, d.Drill, d.Diameter(), d.StartLayer, d.EndLayer, d.CostMultiplier)
}

// ViaRules is the via catalogue of a job
type ViaRules struct {
	Definitions []ViaDefinition
	MinDrill    float64 // Manufacturer minimum drill; smaller definitions are unusable
}

// Validate checks every definition against the stack. Spans outside the
// stack and inverted spans are configuration errors.
func (v ViaRules) Validate(stack *LayerStack) error {
	if v.MinDrill < 0 {
		return errors.New(errors.ErrCodeInvalidVia, "min_drill must not be negative, got %v", v.MinDrill)
	}
	for i, d := range v.Definitions {
		if d.StartLayer > d.EndLayer {
			return errors.New(errors.ErrCodeInvalidVia,
				"via %d (%s): start layer %d after end layer %d", i, d.Type, d.StartLayer, d.EndLayer)
		}
		if d.StartLayer < 0 || d.EndLayer >= stack.Count() {
			return errors.New(errors.ErrCodeInvalidVia,
				"via %d (%s): span [%d..%d] outside %d-layer stack", i, d.Type, d.StartLayer, d.EndLayer, stack.Count())
		}
		if d.StartLayer == d.EndLayer {
			return errors.New(errors.ErrCodeInvalidVia, "via %d (%s): span must cover two layers", i, d.Type)
		}
		if !(d.Drill > 0) || d.AnnularRing < 0 {
			return errors.New(errors.ErrCodeInvalidVia, "via %d (%s): invalid drill %v / ring %v", i, d.Type, d.Drill, d.AnnularRing)
		}
		if !(d.CostMultiplier > 0) {
			return errors.New(errors.ErrCodeInvalidVia, "via %d (%s): cost multiplier must be positive", i, d.Type)
		}
	}
	return nil
}

// Usable reports whether a definition can be manufactured
func (v ViaRules) Usable(d ViaDefinition) bool {
	return d.Drill >= v.MinDrill
}

// GetBestVia returns the lowest-cost usable definition whose span covers
// both a and b. Ties keep the first definition.
func (v ViaRules) GetBestVia(a, b int) (ViaDefinition, bool) {
	best := -1
	bestCost := math.Inf(1)
	for i, d := range v.Definitions {
		if !v.Usable(d) || !d.Covers(a, b) {
			continue
		}
		if d.CostMultiplier < bestCost {
			best, bestCost = i, d.CostMultiplier
		}
	}
	if best < 0 {
		return ViaDefinition{}, false
	}
	return v.Definitions[best], true
}

// ForClass applies the via drill and diameter overrides of a net class to
// the through vias of the catalogue. Blind, buried and micro vias keep
// their own dimensions.
func (v ViaRules) ForClass(c NetClass) (ViaRules, error) {
	if c.ViaDrill == 0 && c.ViaDiameter == 0 {
		return v, nil
	}
	out := ViaRules{MinDrill: v.MinDrill, Definitions: append([]ViaDefinition(nil), v.Definitions...)}
	for i, d := range out.Definitions {
		if d.Type != ViaThrough {
			continue
		}
		diameter := d.Diameter()
		if c.ViaDrill > 0 {
			d.Drill = c.ViaDrill
		}
		if c.ViaDiameter > 0 {
			diameter = c.ViaDiameter
		}
		if diameter <= d.Drill {
			return ViaRules{}, errors.New(errors.ErrCodeInvalidVia,
				"net class %q: via diameter %v must exceed drill %v", c.Name, diameter, d.Drill)
		}
		d.AnnularRing = (diameter - d.Drill) / 2
		out.Definitions[i] = d
	}
	return out, nil
}

// StandardViaRules returns a single through via built from the design rules
func StandardViaRules(stack *LayerStack, r DesignRules) ViaRules {
	return ViaRules{
		Definitions: []ViaDefinition{{
			Type:           ViaThrough,
			Drill:          r.ViaDrill,
			AnnularRing:    (r.ViaDiameter - r.ViaDrill) / 2,
			StartLayer:     0,
			EndLayer:       stack.Count() - 1,
			CostMultiplier: 1.0,
		}},
	}
}

// HDIViaRules adds blind, buried and micro vias to the through via.
// Micro vias connect adjacent outer pairs, blind vias reach from an outer
// layer to the middle of the stack and buried vias join the inner layers.
func HDIViaRules(stack *LayerStack, r DesignRules) ViaRules {
	v := StandardViaRules(stack, r)
	n := stack.Count()
	if n < 4 {
		return v
	}
	last := n - 1
	mid := n/2 - 1

	micro := ViaDefinition{Type: ViaMicro, Drill: 0.1, AnnularRing: 0.075, CostMultiplier: 0.5}
	top, bottom := micro, micro
	top.StartLayer, top.EndLayer = 0, 1
	bottom.StartLayer, bottom.EndLayer = last-1, last

	blind := ViaDefinition{Type: ViaBlind, Drill: 0.2, AnnularRing: 0.1, CostMultiplier: 0.7}
	blindTop, blindBottom := blind, blind
	blindTop.StartLayer, blindTop.EndLayer = 0, mid
	blindBottom.StartLayer, blindBottom.EndLayer = mid+1, last

	buried := ViaDefinition{
		Type: ViaBuried, Drill: 0.2, AnnularRing: 0.1,
		StartLayer: 1, EndLayer: last - 1, CostMultiplier: 0.8,
	}

	v.Definitions = append(v.Definitions, top, bottom, blindTop, blindBottom, buried)
	return v
}
