package router

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/heuristic"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// Defaults for Options
const (
	DefaultMaxIterations    = 30
	DefaultIntraICThreshold = 3.0 // mm
	DefaultCouplingPenalty  = 0.6
)

// Options configures an Autorouter. Zero values select defaults.
type Options struct {
	Rules      rules.DesignRules
	Stack      *rules.LayerStack  // nil = 2layer preset
	Vias       *rules.ViaRules    // nil = StandardViaRules(Stack, Rules)
	NetClasses *rules.NetClassMap // nil = classify nets by name

	Heuristic     heuristic.Heuristic // nil = admissible default for the move set
	Diagonal      bool                // Allow 45-degree moves
	MaxExpansions int                 // Per search, 0 = pathfinder default
	NetTimeout    time.Duration       // Per net wall-clock budget, 0 = none

	// Negotiate enables negotiated congestion. When false every route is
	// committed exclusively and later nets route around it.
	Negotiate     bool
	MaxIterations int // Negotiation rounds after the first pass

	IntraICThreshold float64 // Max pad distance for same-component shortcuts
	CouplingPenalty  float64 // Extra cost per cell outside a diff pair's band

	Shuffle bool   // Shuffle nets within each tier before the first pass
	Seed    uint64 // Seed for all shuffles

	Workers  int  // Concurrent searches during negotiation, <=1 = serial
	Optimize bool // Run the trace optimizer on every route
	UUIDs    bool // Emit (uuid ...) on serialised items

	Logger *log.Logger // nil = discard
}

// DefaultOptions returns the options used by the command line tool
func DefaultOptions() Options {
	return Options{
		Rules:            rules.DefaultDesignRules(),
		Negotiate:        true,
		MaxIterations:    DefaultMaxIterations,
		IntraICThreshold: DefaultIntraICThreshold,
		CouplingPenalty:  DefaultCouplingPenalty,
		Optimize:         true,
	}
}

// normalize fills defaults and validates the configuration. It never
// touches a grid.
func (o *Options) normalize() error {
	if o.Rules == (rules.DesignRules{}) {
		o.Rules = rules.DefaultDesignRules()
	}
	if err := o.Rules.Validate(); err != nil {
		return err
	}
	if o.Stack == nil {
		s, err := rules.Preset(rules.PresetTwoLayer)
		if err != nil {
			return err
		}
		o.Stack = s
	}
	if o.Vias == nil {
		v := rules.StandardViaRules(o.Stack, o.Rules)
		o.Vias = &v
	}
	if err := o.Vias.Validate(o.Stack); err != nil {
		return err
	}
	if o.NetClasses == nil {
		o.NetClasses = rules.NewNetClassMap()
	}
	if o.MaxIterations < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_iterations must not be negative, got %d", o.MaxIterations)
	}
	if o.MaxIterations == 0 && o.Negotiate {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.IntraICThreshold < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "intra_ic_threshold must not be negative")
	}
	if o.IntraICThreshold == 0 {
		o.IntraICThreshold = DefaultIntraICThreshold
	}
	if o.CouplingPenalty <= 0 {
		o.CouplingPenalty = DefaultCouplingPenalty
	}
	if o.Heuristic == nil {
		o.Heuristic = heuristic.Default(o.Diagonal)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}
