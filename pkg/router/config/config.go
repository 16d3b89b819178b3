// Package config reads routing jobs settings from TOML files.
//
// A file has up to five sections, each optional:
//
//	[rules]              # design rules in mm
//	grid_resolution = 0.25
//	trace_width = 0.25
//
//	[vias]
//	style = "hdi"        # standard, hdi or custom
//
//	[[net_class]]
//	name = "Power"
//	tier = "power"
//	trace_width = 0.5
//	nets = ["VBUS"]
//	patterns = ["^\\+\\d+V"]
//
//	[routing]
//	stack = "4layer"
//	negotiate = true
//
//	[output]
//	uuids = true
//
// Missing keys keep the values of Default. Unknown keys are errors.
package config

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/adaptive"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/heuristic"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// Via styles
const (
	ViaStandard = "standard"
	ViaHDI      = "hdi"
	ViaCustom   = "custom"
)

// Rules mirrors rules.DesignRules
type Rules struct {
	GridResolution    float64 `toml:"grid_resolution"`
	TraceWidth        float64 `toml:"trace_width"`
	TraceClearance    float64 `toml:"trace_clearance"`
	ViaDrill          float64 `toml:"via_drill"`
	ViaDiameter       float64 `toml:"via_diameter"`
	ViaClearance      float64 `toml:"via_clearance"`
	EdgeClearance     float64 `toml:"edge_clearance"`
	ViaCost           float64 `toml:"via_cost"`
	PresentCostFactor float64 `toml:"present_cost_factor"`
	PresentCostGrowth float64 `toml:"present_cost_growth"`
	HistoryIncrement  float64 `toml:"history_increment"`
}

// Via is one custom via definition. Layers are named.
type Via struct {
	Type        string  `toml:"type"`
	Drill       float64 `toml:"drill"`
	AnnularRing float64 `toml:"annular_ring"`
	Start       string  `toml:"start"`
	End         string  `toml:"end"`
	Cost        float64 `toml:"cost"`
}

// Vias selects the via definitions
type Vias struct {
	Style    string  `toml:"style"`
	MinDrill float64 `toml:"min_drill"`
	Custom   []Via   `toml:"via"`
}

// NetClass is a [[net_class]] table
type NetClass struct {
	Name        string   `toml:"name"`
	Tier        string   `toml:"tier"`
	TraceWidth  float64  `toml:"trace_width"`
	Clearance   float64  `toml:"clearance"`
	ViaDrill    float64  `toml:"via_drill"`
	ViaDiameter float64  `toml:"via_diameter"`
	Nets        []string `toml:"nets"`
	Patterns    []string `toml:"patterns"`
}

// Routing tunes the autorouter
type Routing struct {
	Stack            string        `toml:"stack"`
	Adaptive         bool          `toml:"adaptive"`
	Stacks           []string      `toml:"stacks"`
	Heuristic        string        `toml:"heuristic"`
	Diagonal         bool          `toml:"diagonal"`
	Negotiate        bool          `toml:"negotiate"`
	MaxIterations    int           `toml:"max_iterations"`
	MaxExpansions    int           `toml:"max_expansions"`
	NetTimeout       time.Duration `toml:"net_timeout"`
	IntraICThreshold float64       `toml:"intra_ic_threshold"`
	CouplingPenalty  float64       `toml:"coupling_penalty"`
	Shuffle          bool          `toml:"shuffle"`
	Seed             uint64        `toml:"seed"`
	Workers          int           `toml:"workers"`
	Optimize         bool          `toml:"optimize"`
}

// Output controls what is written after routing
type Output struct {
	UUIDs    bool    `toml:"uuids"`
	PNGScale float64 `toml:"png_scale"` // Pixels per mm of the preview
}

// Config is a complete job configuration
type Config struct {
	Rules      Rules      `toml:"rules"`
	Vias       Vias       `toml:"vias"`
	NetClasses []NetClass `toml:"net_class"`
	Routing    Routing    `toml:"routing"`
	Output     Output     `toml:"output"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	r := rules.DefaultDesignRules()
	o := router.DefaultOptions()
	return &Config{
		Rules: Rules{
			GridResolution:    r.GridResolution,
			TraceWidth:        r.TraceWidth,
			TraceClearance:    r.TraceClearance,
			ViaDrill:          r.ViaDrill,
			ViaDiameter:       r.ViaDiameter,
			ViaClearance:      r.ViaClearance,
			EdgeClearance:     r.EdgeClearance,
			ViaCost:           r.ViaCost,
			PresentCostFactor: r.PresentCostFactor,
			PresentCostGrowth: r.PresentCostGrowth,
			HistoryIncrement:  r.HistoryIncrement,
		},
		Vias: Vias{Style: ViaStandard},
		Routing: Routing{
			Stack:            rules.PresetTwoLayer,
			Heuristic:        "",
			Negotiate:        o.Negotiate,
			MaxIterations:    o.MaxIterations,
			IntraICThreshold: o.IntraICThreshold,
			CouplingPenalty:  o.CouplingPenalty,
			Optimize:         o.Optimize,
			Workers:          1,
		},
		Output: Output{PNGScale: 20},
	}
}

// Parse decodes TOML over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "config")
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses a config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "read config %s", path)
	}
	return Parse(data)
}

// Encode writes c as TOML
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Fingerprint is the canonical TOML text of c, used in cache keys
func (c *Config) Fingerprint() string {
	var b bytes.Buffer
	if err := c.Encode(&b); err != nil {
		return ""
	}
	return b.String()
}

// DesignRules converts the [rules] section
func (c *Config) DesignRules() rules.DesignRules {
	r := c.Rules
	return rules.DesignRules{
		GridResolution:    r.GridResolution,
		TraceWidth:        r.TraceWidth,
		TraceClearance:    r.TraceClearance,
		ViaDrill:          r.ViaDrill,
		ViaDiameter:       r.ViaDiameter,
		ViaClearance:      r.ViaClearance,
		EdgeClearance:     r.EdgeClearance,
		ViaCost:           r.ViaCost,
		PresentCostFactor: r.PresentCostFactor,
		PresentCostGrowth: r.PresentCostGrowth,
		HistoryIncrement:  r.HistoryIncrement,
	}
}

// Validate checks every section without building a router
func (c *Config) Validate() error {
	if err := c.DesignRules().Validate(); err != nil {
		return err
	}
	stack, err := rules.Preset(c.Routing.Stack)
	if err != nil {
		return err
	}
	for _, s := range c.Routing.Stacks {
		if _, err := rules.Preset(s); err != nil {
			return err
		}
	}
	if _, err := c.ViaRules(stack); err != nil {
		return err
	}
	if _, err := c.NetClassMap(); err != nil {
		return err
	}
	if c.Routing.Heuristic != "" {
		if _, err := heuristic.New(c.Routing.Heuristic); err != nil {
			return err
		}
	}
	switch {
	case c.Routing.MaxIterations < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "routing.max_iterations must not be negative")
	case c.Routing.MaxExpansions < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "routing.max_expansions must not be negative")
	case c.Routing.Workers < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "routing.workers must not be negative")
	case c.Routing.NetTimeout < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "routing.net_timeout must not be negative")
	case c.Output.PNGScale < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "output.png_scale must not be negative")
	}
	return nil
}

// ViaRules builds the via definitions for stack
func (c *Config) ViaRules(stack *rules.LayerStack) (rules.ViaRules, error) {
	r := c.DesignRules()
	var v rules.ViaRules
	switch strings.ToLower(c.Vias.Style) {
	case "", ViaStandard:
		v = rules.StandardViaRules(stack, r)
	case ViaHDI:
		v = rules.HDIViaRules(stack, r)
	case ViaCustom:
		if len(c.Vias.Custom) == 0 {
			return v, errors.New(errors.ErrCodeInvalidVia, "vias.style = custom needs at least one [[vias.via]]")
		}
		for i, cv := range c.Vias.Custom {
			t, err := rules.ParseViaType(cv.Type)
			if err != nil {
				return v, err
			}
			start, ok := stack.IndexOf(cv.Start)
			if !ok {
				return v, errors.New(errors.ErrCodeInvalidVia, "via %d: layer %q not in stack %s", i, cv.Start, stack.Name())
			}
			end, ok := stack.IndexOf(cv.End)
			if !ok {
				return v, errors.New(errors.ErrCodeInvalidVia, "via %d: layer %q not in stack %s", i, cv.End, stack.Name())
			}
			cost := cv.Cost
			if cost == 0 {
				cost = 1
			}
			v.Definitions = append(v.Definitions, rules.ViaDefinition{
				Type: t, Drill: cv.Drill, AnnularRing: cv.AnnularRing,
				StartLayer: start, EndLayer: end, CostMultiplier: cost,
			})
		}
	default:
		return v, errors.New(errors.ErrCodeInvalidConfig, "unknown via style %q", c.Vias.Style)
	}
	if c.Vias.MinDrill > 0 {
		v.MinDrill = c.Vias.MinDrill
	}
	return v, v.Validate(stack)
}

// NetClassMap builds the net class assignments
func (c *Config) NetClassMap() (*rules.NetClassMap, error) {
	m := rules.NewNetClassMap()
	for _, nc := range c.NetClasses {
		tier, err := rules.ParseTier(nc.Tier)
		if err != nil {
			return nil, err
		}
		class := rules.NetClass{
			Name:           nc.Name,
			Tier:           tier,
			TraceWidth:     nc.TraceWidth,
			TraceClearance: nc.Clearance,
			ViaDrill:       nc.ViaDrill,
			ViaDiameter:    nc.ViaDiameter,
		}
		if err := m.AddClass(class); err != nil {
			return nil, err
		}
		for _, n := range nc.Nets {
			if err := m.Assign(n, nc.Name); err != nil {
				return nil, err
			}
		}
		for _, p := range nc.Patterns {
			if err := m.AssignPattern(p, nc.Name); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// RouterOptions converts the configuration for stack, or for the
// configured stack when stack is nil.
func (c *Config) RouterOptions(stack *rules.LayerStack, logger *log.Logger) (router.Options, error) {
	var o router.Options
	if err := c.Validate(); err != nil {
		return o, err
	}
	if stack == nil {
		stack, _ = rules.Preset(c.Routing.Stack)
	}
	vias, err := c.ViaRules(stack)
	if err != nil {
		return o, err
	}
	classes, _ := c.NetClassMap()
	o = router.Options{
		Rules:            c.DesignRules(),
		Stack:            stack,
		Vias:             &vias,
		NetClasses:       classes,
		Diagonal:         c.Routing.Diagonal,
		MaxExpansions:    c.Routing.MaxExpansions,
		NetTimeout:       c.Routing.NetTimeout,
		Negotiate:        c.Routing.Negotiate,
		MaxIterations:    c.Routing.MaxIterations,
		IntraICThreshold: c.Routing.IntraICThreshold,
		CouplingPenalty:  c.Routing.CouplingPenalty,
		Shuffle:          c.Routing.Shuffle,
		Seed:             c.Routing.Seed,
		Workers:          c.Routing.Workers,
		Optimize:         c.Routing.Optimize,
		UUIDs:            c.Output.UUIDs,
		Logger:           logger,
	}
	if c.Routing.Heuristic != "" {
		o.Heuristic, _ = heuristic.New(c.Routing.Heuristic)
	}
	return o, nil
}

// AdaptiveOptions converts the configuration for an adaptive run
func (c *Config) AdaptiveOptions(logger *log.Logger) (adaptive.Options, error) {
	o, err := c.RouterOptions(nil, logger)
	if err != nil {
		return adaptive.Options{}, err
	}
	return adaptive.Options{
		Router: o,
		Stacks: c.Routing.Stacks,
		HDI:    strings.EqualFold(c.Vias.Style, ViaHDI),
	}, nil
}
