package pcb

import (
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
)

// Shared geometry types
type Position = sexp.Position
type Angle = sexp.Angle
type PositionAngle = sexp.PositionAngle
type Size = sexp.Size
type BoundingBox = sexp.BoundingBox
type Graphics = sexp.Graphics

// Layer represents a PCB layer
type Layer struct {
	Number int    // Layer number (ordinal)
	Name   string // Layer name (e.g., "F.Cu", "B.Cu", "F.SilkS")
	Type   string // Layer type (e.g., "signal", "power", "user")
}

// IsCopper reports whether the layer carries copper
func (l Layer) IsCopper() bool {
	return strings.HasSuffix(l.Name, ".Cu")
}

// Net represents an electrical net
type Net struct {
	Number int    // Net number (ordinal)
	Name   string // Net name
}

// LayerSet represents a set of layer names
type LayerSet []string

// Copper returns the copper layers of the set. A wildcard such as "*.Cu"
// is returned as is.
func (s LayerSet) Copper() []string {
	var out []string
	for _, l := range s {
		if strings.HasSuffix(l, ".Cu") {
			out = append(out, l)
		}
	}
	return out
}

// NetMap provides efficient lookup of nets by number or name
type NetMap struct {
	byNumber map[int]*Net
	byName   map[string]*Net
}

// NewNetMap creates a NetMap from a slice of nets
func NewNetMap(nets []Net) *NetMap {
	nm := &NetMap{
		byNumber: make(map[int]*Net),
		byName:   make(map[string]*Net),
	}
	for i := range nets {
		nm.add(&nets[i])
	}
	return nm
}

func (nm *NetMap) add(net *Net) {
	nm.byNumber[net.Number] = net
	// Only index non-empty names
	if net.Name != "" {
		nm.byName[net.Name] = net
	}
}

// GetByName retrieves a net by its name (e.g., "GND", "+5V")
func (nm *NetMap) GetByName(name string) (*Net, bool) {
	net, ok := nm.byName[name]
	return net, ok
}

// GetByNumber retrieves a net by its number
func (nm *NetMap) GetByNumber(num int) (*Net, bool) {
	net, ok := nm.byNumber[num]
	return net, ok
}

// IsUnconnected checks if a net number represents an unconnected net.
// In KiCad, net 0 is reserved for unconnected pins.
func (nm *NetMap) IsUnconnected(num int) bool {
	return num == 0
}

// Nets returns every known net ordered by number
func (nm *NetMap) Nets() []Net {
	out := make([]Net, 0, len(nm.byNumber))
	for _, n := range nm.byNumber {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// NewBoundingBox creates an empty bounding box
var NewBoundingBox = sexp.NewBoundingBox
