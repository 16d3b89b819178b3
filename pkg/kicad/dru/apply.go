package dru

import (
	"fmt"
	"math"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// Thresholds are the limits one rule sets, in millimetres. Zero is unset.
type Thresholds struct {
	Clearance     float64
	TrackWidth    float64 // opt when given, min otherwise
	ViaDiameter   float64
	HoleSize      float64
	EdgeClearance float64
}

func (t Thresholds) merge(o Thresholds) Thresholds {
	return Thresholds{
		Clearance:     math.Max(t.Clearance, o.Clearance),
		TrackWidth:    math.Max(t.TrackWidth, o.TrackWidth),
		ViaDiameter:   math.Max(t.ViaDiameter, o.ViaDiameter),
		HoleSize:      math.Max(t.HoleSize, o.HoleSize),
		EdgeClearance: math.Max(t.EdgeClearance, o.EdgeClearance),
	}
}

// Scope is the set of nets a rule selects. A rule without a condition is
// global.
type Scope struct {
	Global  bool
	Classes []string
	Nets    []string
}

// Resolved is a rule reduced to what the router can use
type Resolved struct {
	Name  string
	Layer string
	Scope Scope
	Thresholds
}

// Report lists what Apply did
type Report struct {
	Applied []string
	Skipped []string // rule name and reason
}

// Resolve reduces the rules of f. Rules whose condition selects something
// other than net classes or net names, and rules with no usable
// constraint, are reported as skipped.
func (p *Parser) Resolve(f *File) ([]Resolved, []string, error) {
	var out []Resolved
	var skipped []string
	for _, r := range f.Rules {
		res := Resolved{Name: r.Name, Scope: Scope{Global: true}}
		usable := false
		for _, item := range r.Items {
			switch {
			case item.Layer != nil:
				res.Layer = *item.Layer
			case item.Condition != nil:
				cond, err := p.ParseCondition(*item.Condition)
				if err != nil {
					return nil, nil, errors.Wrap(errors.ErrCodeParse, err, "rule %q", r.Name)
				}
				scope, ok := cond.scope()
				if !ok {
					skipped = append(skipped, fmt.Sprintf("%s: unsupported condition %q", r.Name, *item.Condition))
					res.Scope = Scope{}
					break
				}
				res.Scope = scope
			case item.Constraint != nil:
				t, ok, err := item.Constraint.thresholds()
				if err != nil {
					return nil, nil, errors.Wrap(errors.ErrCodeParse, err, "rule %q", r.Name)
				}
				if ok {
					res.Thresholds = res.Thresholds.merge(t)
					usable = true
				}
			}
		}
		switch {
		case !res.Scope.Global && len(res.Scope.Classes) == 0 && len(res.Scope.Nets) == 0:
			// reported above
		case !usable:
			skipped = append(skipped, r.Name+": no supported constraint")
		default:
			out = append(out, res)
		}
	}
	return out, skipped, nil
}

func (c *Constraint) thresholds() (Thresholds, bool, error) {
	var t Thresholds
	bounds := make(map[string]float64)
	for _, v := range c.Values {
		if v.Bound == "" {
			continue
		}
		q, err := ParseQuantity(v.Quantity)
		if err != nil {
			return t, false, err
		}
		bounds[v.Bound] = q
	}
	lo := bounds["min"]
	switch c.Kind {
	case "clearance":
		t.Clearance = lo
	case "track_width":
		t.TrackWidth = lo
		if opt, ok := bounds["opt"]; ok {
			t.TrackWidth = opt
		}
	case "via_diameter":
		t.ViaDiameter = lo
	case "hole_size":
		t.HoleSize = lo
	case "edge_clearance":
		t.EdgeClearance = lo
	default:
		return t, false, nil
	}
	return t, t != Thresholds{}, nil
}

// scope flattens the condition into the classes and nets it selects. Only
// equality tests on NetClass and NetName are understood. A conjunction must
// repeat the same test for both items.
func (c *Condition) scope() (Scope, bool) {
	var s Scope
	for _, and := range c.Or {
		var key string
		var part Scope
		for _, term := range and.Terms {
			var sub Scope
			var k string
			if term.Group != nil {
				g, ok := term.Group.scope()
				if !ok {
					return Scope{}, false
				}
				sub, k = g, fmt.Sprint(g.Classes, g.Nets)
			} else {
				cmp := term.Compare
				if cmp.Op != "==" || (cmp.Item != "A" && cmp.Item != "B") {
					return Scope{}, false
				}
				value := strings.Trim(cmp.Value, "'")
				switch cmp.Property {
				case "NetClass":
					sub.Classes = []string{value}
				case "NetName":
					sub.Nets = []string{value}
				default:
					return Scope{}, false
				}
				k = fmt.Sprint(sub.Classes, sub.Nets)
			}
			if key != "" && k != key {
				return Scope{}, false
			}
			key, part = k, sub
		}
		s.Classes = append(s.Classes, part.Classes...)
		s.Nets = append(s.Nets, part.Nets...)
	}
	return s, true
}

// Apply folds the resolved rules into the design rules and net classes.
// The strictest value of every threshold wins. Global rules raise the
// defaults; class rules raise the overrides of that class, creating it when
// absent; net rules move the net into a class of its own derived from its
// current class.
func Apply(resolved []Resolved, r *rules.DesignRules, m *rules.NetClassMap) (*Report, error) {
	rep := &Report{}
	for _, res := range resolved {
		t := res.Thresholds
		if res.Scope.Global {
			r.TraceClearance = math.Max(r.TraceClearance, t.Clearance)
			r.ViaClearance = math.Max(r.ViaClearance, t.Clearance)
			r.TraceWidth = math.Max(r.TraceWidth, t.TrackWidth)
			r.ViaDiameter = math.Max(r.ViaDiameter, t.ViaDiameter)
			r.ViaDrill = math.Max(r.ViaDrill, t.HoleSize)
			r.EdgeClearance = math.Max(r.EdgeClearance, t.EdgeClearance)
			rep.Applied = append(rep.Applied, res.Name)
			continue
		}
		for _, name := range res.Scope.Classes {
			c, ok := m.ByName(name)
			if !ok {
				c = rules.NetClass{Name: name, Tier: tierOf(name)}
			}
			if err := m.AddClass(raise(c, t)); err != nil {
				return nil, err
			}
		}
		for _, net := range res.Scope.Nets {
			c := m.Lookup(net)
			c.Name = res.Name + "/" + net
			if err := m.AddClass(raise(c, t)); err != nil {
				return nil, err
			}
			if err := m.Assign(net, c.Name); err != nil {
				return nil, err
			}
		}
		rep.Applied = append(rep.Applied, res.Name)
	}
	return rep, nil
}

func raise(c rules.NetClass, t Thresholds) rules.NetClass {
	c.TraceClearance = math.Max(c.TraceClearance, t.Clearance)
	c.TraceWidth = math.Max(c.TraceWidth, t.TrackWidth)
	c.ViaDiameter = math.Max(c.ViaDiameter, t.ViaDiameter)
	c.ViaDrill = math.Max(c.ViaDrill, t.HoleSize)
	return c
}

func tierOf(class string) rules.Tier {
	if t, err := rules.ParseTier(class); err == nil {
		return t
	}
	return rules.TierDefault
}

// Load parses a rule file and applies it
func Load(path string, r *rules.DesignRules, m *rules.NetClassMap) (*Report, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return p.apply(f, r, m)
}

// LoadString parses rule text and applies it
func LoadString(src string, r *rules.DesignRules, m *rules.NetClassMap) (*Report, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.ParseString(src)
	if err != nil {
		return nil, err
	}
	return p.apply(f, r, m)
}

func (p *Parser) apply(f *File, r *rules.DesignRules, m *rules.NetClassMap) (*Report, error) {
	resolved, skipped, err := p.Resolve(f)
	if err != nil {
		return nil, err
	}
	rep, err := Apply(resolved, r, m)
	if err != nil {
		return nil, err
	}
	rep.Skipped = skipped
	return rep, nil
}
