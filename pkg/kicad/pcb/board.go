package pcb

import "github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"

// Board represents the parts of a KiCad PCB the router reads
type Board struct {
	Version    int         // File format version
	Generator  string      // Generator info (e.g., "pcbnew")
	Thickness  float64     // Board thickness in mm
	Layers     []Layer     // Layer definitions
	Nets       []Net       // Electrical nets
	Footprints []Footprint // Component footprints
	Edges      Graphics    // Edge.Cuts drawings
	Tracks     []Track     // Track segments
	Vias       []Via       // Vias
	Zones      []Zone      // Copper zones and rule areas
}

// Footprint represents a placed component
type Footprint struct {
	Library   string        // Library name
	Name      string        // Footprint name
	Layer     string        // F.Cu or B.Cu
	Position  PositionAngle // Position and rotation
	Pads      []Pad         // Pads, positions relative to the footprint
	Reference string        // Reference designator (e.g., "R1")
	Value     string        // Component value
}

// Pad represents a footprint pad
type Pad struct {
	Number   string        // Pad number/name
	Type     string        // thru_hole, smd, connect, np_thru_hole
	Shape    string        // circle, rect, oval, roundrect, ...
	Position PositionAngle // Relative position, absolute rotation
	Size     Size          // Unrotated pad size
	Drill    float64       // Drill diameter (0 for SMD)
	Layers   LayerSet      // Layers the pad appears on
	Net      *Net          // Connected net (if any)
}

// ThroughHole reports whether the pad is drilled
func (p Pad) ThroughHole() bool {
	return p.Type == "thru_hole" || p.Type == "np_thru_hole"
}

// Track represents a copper track segment
type Track struct {
	Start  Position // Start point
	End    Position // End point
	Width  float64  // Track width in mm
	Layer  string   // Layer name
	Net    *Net     // Connected net
	Locked bool     // Whether track is locked
}

// Via represents a via
type Via struct {
	Type     string   // "", "blind" or "micro"
	Position Position // Via position
	Size     float64  // Via diameter
	Drill    float64  // Drill diameter
	Layers   LayerSet // Layer pair
	Net      *Net     // Connected net
	Locked   bool     // Whether via is locked
}

// Zone represents a copper zone or a rule area
type Zone struct {
	Net     *Net       // Connected net, nil for rule areas
	Layers  LayerSet   // Layer names
	Outline []Position // Zone outline polygon
	Keepout bool       // Rule area forbidding tracks or vias
}

// Bounds returns the bounding box of the zone outline
func (z Zone) Bounds() BoundingBox {
	bb := sexp.NewBoundingBox()
	for _, p := range z.Outline {
		bb.Expand(p)
	}
	return bb
}

// GetNet returns a net by name, or nil if not found
func (b *Board) GetNet(name string) *Net {
	for i := range b.Nets {
		if b.Nets[i].Name == name {
			return &b.Nets[i]
		}
	}
	return nil
}

// GetNetPads returns all pads connected to a specific net
func (b *Board) GetNetPads(netName string) []Pad {
	var pads []Pad
	for _, fp := range b.Footprints {
		for _, pad := range fp.Pads {
			if pad.Net != nil && pad.Net.Name == netName {
				pads = append(pads, pad)
			}
		}
	}
	return pads
}

// CopperLayers returns the names of the copper layers in stack order
func (b *Board) CopperLayers() []string {
	var out []string
	for _, l := range b.Layers {
		if l.IsCopper() {
			out = append(out, l.Name)
		}
	}
	return out
}
