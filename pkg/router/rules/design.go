package rules

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
)

// DesignRules holds the numeric manufacturing thresholds and the congestion
// tuning of a routing job. All lengths are in millimetres.
type DesignRules struct {
	GridResolution float64 // Cell pitch of the routing grid
	TraceWidth     float64 // Default trace width
	TraceClearance float64 // Copper-to-copper clearance between nets
	ViaDrill       float64 // Default via drill
	ViaDiameter    float64 // Default via pad diameter
	ViaClearance   float64 // Clearance around via pads
	EdgeClearance  float64 // Keep copper this far from the board outline

	// Congestion negotiation
	ViaCost           float64 // Base cost of a layer change, in grid steps
	PresentCostFactor float64 // Initial weight of current cell usage
	PresentCostGrowth float64 // Multiplier applied to the present factor each iteration
	HistoryIncrement  float64 // History added per unit of overflow each iteration
}

// DefaultDesignRules returns rules matching a typical 2-layer prototype
// service (0.25 mm traces, 0.2 mm clearance, 0.4/0.8 mm vias).
func DefaultDesignRules() DesignRules {
	return DesignRules{
		GridResolution:    0.25,
		TraceWidth:        0.25,
		TraceClearance:    0.2,
		ViaDrill:          0.4,
		ViaDiameter:       0.8,
		ViaClearance:      0.2,
		EdgeClearance:     0.3,
		ViaCost:           10,
		PresentCostFactor: 1.0,
		PresentCostGrowth: 1.5,
		HistoryIncrement:  1.0,
	}
}

// Validate rejects rules that would make the grid or the cost model
// meaningless. EdgeClearance may be zero.
func (r DesignRules) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"grid_resolution", r.GridResolution},
		{"trace_width", r.TraceWidth},
		{"trace_clearance", r.TraceClearance},
		{"via_drill", r.ViaDrill},
		{"via_diameter", r.ViaDiameter},
		{"via_clearance", r.ViaClearance},
		{"present_cost_factor", r.PresentCostFactor},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return errors.New(errors.ErrCodeInvalidConfig, "%s must be positive, got %v", p.name, p.value)
		}
	}
	if r.EdgeClearance < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "edge_clearance must not be negative, got %v", r.EdgeClearance)
	}
	if r.ViaCost < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "via_cost must not be negative, got %v", r.ViaCost)
	}
	if r.HistoryIncrement < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "history_increment must not be negative, got %v", r.HistoryIncrement)
	}
	if r.PresentCostGrowth < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "present_cost_growth must be at least 1, got %v", r.PresentCostGrowth)
	}
	if r.ViaDrill >= r.ViaDiameter {
		return errors.New(errors.ErrCodeInvalidConfig,
			"via_drill (%v) must be smaller than via_diameter (%v)", r.ViaDrill, r.ViaDiameter)
	}
	return nil
}
