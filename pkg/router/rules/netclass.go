package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
)

// Tier is a routing priority. Lower values are routed first.
type Tier int

const (
	TierPower Tier = iota
	TierClock
	TierHighSpeed
	TierAudio
	TierDigital
	TierDebug
	TierDefault
)

var tierNames = [...]string{"power", "clock", "high_speed", "audio", "digital", "debug", "default"}

func (t Tier) String() string {
	if t >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// ParseTier converts a tier name. "differential" is an alias of
// high_speed since both share a priority.
func ParseTier(s string) (Tier, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch name {
	case "differential", "diff", "highspeed":
		return TierHighSpeed, nil
	case "":
		return TierDefault, nil
	}
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return 0, errors.New(errors.ErrCodeInvalidConfig, "unknown net class tier %q", s)
}

// NetClass is a named routing profile. Zero overrides fall back to the
// job's design rules.
type NetClass struct {
	Name           string
	Tier           Tier
	TraceWidth     float64
	TraceClearance float64
	ViaDrill       float64
	ViaDiameter    float64
}

// Width returns the class trace width or the default
func (c NetClass) Width(r DesignRules) float64 {
	if c.TraceWidth > 0 {
		return c.TraceWidth
	}
	return r.TraceWidth
}

// Clearance returns the class clearance or the default
func (c NetClass) Clearance(r DesignRules) float64 {
	if c.TraceClearance > 0 {
		return c.TraceClearance
	}
	return r.TraceClearance
}

// Validate rejects negative overrides
func (c NetClass) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "net class has no name")
	}
	if c.TraceWidth < 0 || c.TraceClearance < 0 || c.ViaDrill < 0 || c.ViaDiameter < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "net class %q: overrides must not be negative", c.Name)
	}
	return nil
}

// NetClassMap assigns classes to nets by exact name or by pattern
type NetClassMap struct {
	classes  map[string]NetClass
	nets     map[string]string // net name -> class name
	patterns []classPattern
}

type classPattern struct {
	re    *regexp.Regexp
	class string
}

// NewNetClassMap creates an empty map
func NewNetClassMap() *NetClassMap {
	return &NetClassMap{
		classes: make(map[string]NetClass),
		nets:    make(map[string]string),
	}
}

// AddClass registers or replaces a class
func (m *NetClassMap) AddClass(c NetClass) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.classes[c.Name] = c
	return nil
}

// Assign binds a net to a registered class
func (m *NetClassMap) Assign(net, class string) error {
	if _, ok := m.classes[class]; !ok {
		return errors.New(errors.ErrCodeInvalidConfig, "net %q assigned to unknown class %q", net, class)
	}
	m.nets[net] = class
	return nil
}

// AssignPattern binds every net matching the regular expression to class.
// Exact assignments win over patterns; earlier patterns win over later ones.
func (m *NetClassMap) AssignPattern(pattern, class string) error {
	if _, ok := m.classes[class]; !ok {
		return errors.New(errors.ErrCodeInvalidConfig, "pattern %q assigned to unknown class %q", pattern, class)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "net class pattern %q", pattern)
	}
	m.patterns = append(m.patterns, classPattern{re: re, class: class})
	return nil
}

// Class returns the class explicitly assigned to net
func (m *NetClassMap) Class(net string) (NetClass, bool) {
	if m == nil {
		return NetClass{}, false
	}
	if name, ok := m.nets[net]; ok {
		return m.classes[name], true
	}
	for _, p := range m.patterns {
		if p.re.MatchString(net) {
			return m.classes[p.class], true
		}
	}
	return NetClass{}, false
}

// Lookup returns the assigned class, or a class derived from the net name
// by ClassifyNet when none is assigned.
func (m *NetClassMap) Lookup(net string) NetClass {
	if c, ok := m.Class(net); ok {
		return c
	}
	return NetClass{Name: "Default", Tier: ClassifyNet(net)}
}

// ByName returns a registered class
func (m *NetClassMap) ByName(name string) (NetClass, bool) {
	c, ok := m.classes[name]
	return c, ok
}

// Classes returns the registered classes
func (m *NetClassMap) Classes() []NetClass {
	out := make([]NetClass, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, c)
	}
	return out
}

var (
	powerNet = regexp.MustCompile(`^(GND[A-Z0-9_]*|AGND|DGND|PGND|VCC[A-Z0-9_]*|VDD[A-Z0-9_]*|VSS[A-Z0-9_]*|VBUS|VBAT|VIN|VOUT|[+-]?\d+V\d*[A-Z0-9_]*|PWR[A-Z0-9_]*|V\d+V\d*)$`)
	clockNet = regexp.MustCompile(`(^|_)(CLK|SCK|SCLK|MCLK|BCLK|LRCLK|XTAL|OSC|XIN|XOUT)(\d*|_.*)$|CLK`)
	hsNet    = regexp.MustCompile(`(USB|D[+-]$|_DP$|_DM$|_P$|_N$|ETH|RGMII|RMII|MDI|HDMI|LVDS|PCIE|SATA|TX[PN]|RX[PN]|DDR|DQ\d*|DQS)`)
	audioNet = regexp.MustCompile(`(AUDIO|MIC|SPK|HP_|LINE_|I2S|AIN|AOUT|DAC|ADC)`)
	debugNet = regexp.MustCompile(`(^|_)(SWDIO|SWCLK|SWO|TDI|TDO|TMS|TCK|TRST|JTAG|NRST|RESET|UART_?DBG|DBG|TEST|TP\d+)(_|$)`)
)

// ClassifyNet derives a tier from common net naming conventions. It is
// called once per net during ordering, never in the search loop.
func ClassifyNet(name string) Tier {
	n := strings.ToUpper(strings.TrimPrefix(name, "/"))
	if i := strings.LastIndex(n, "/"); i >= 0 {
		n = n[i+1:]
	}
	switch {
	case n == "":
		return TierDefault
	case powerNet.MatchString(n):
		return TierPower
	case debugNet.MatchString(n):
		return TierDebug
	case clockNet.MatchString(n):
		return TierClock
	case hsNet.MatchString(n):
		return TierHighSpeed
	case audioNet.MatchString(n):
		return TierAudio
	case strings.HasPrefix(n, "NET-") || strings.HasPrefix(n, "UNCONNECTED"):
		return TierDefault
	}
	return TierDigital
}
