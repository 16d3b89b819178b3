package pcb

import (
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
)

// parsePad extracts a pad definition from a footprint
// Expected format: (pad "number" type shape (at x y [angle]) (size w h) (layers ...) (net n) ...)
func parsePad(node *kicadsexp.List, netMap *NetMap) (*Pad, error) {
	number, ok := node.Atom(1)
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, "pad without number")
	}
	pad := &Pad{Number: number}
	pad.Type, _ = node.Atom(2)
	pad.Shape, _ = node.Atom(3)

	pos, err := atOf(node)
	if err != nil {
		return nil, err
	}
	pad.Position = pos

	size, ok := node.Find("size")
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, "pad %s: missing required 'size' field", number)
	}
	w, okW := size.Float(1)
	h, okH := size.Float(2)
	if !okW || !okH {
		return nil, errors.New(errors.ErrCodeParse, "pad %s: bad size", number)
	}
	pad.Size = Size{Width: w, Height: h}

	// Drill can be a diameter or (drill oval w h)
	if drill, ok := node.Find("drill"); ok {
		for i := 1; i < drill.Len(); i++ {
			if d, ok := drill.Float(i); ok {
				pad.Drill = d
				break
			}
		}
	}

	pad.Layers = layersOf(node)
	if len(pad.Layers) == 0 {
		return nil, errors.New(errors.ErrCodeParse, "pad %s: missing required 'layers' field", number)
	}
	pad.Net = netOf(node, netMap)
	return pad, nil
}

// parseFootprint extracts a footprint (component) definition
// Expected format: (footprint "library:name" (layer "layer") (at x y [angle]) ...)
func parseFootprint(node *kicadsexp.List, netMap *NetMap) (*Footprint, error) {
	fpName, ok := node.Atom(1)
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, "footprint without name")
	}
	footprint := &Footprint{Name: fpName}

	// Split library:name format
	// Example: "Resistor_SMD:R_0603_1608Metric"
	if lib, name, found := strings.Cut(fpName, ":"); found {
		footprint.Library, footprint.Name = lib, name
	}

	layer, ok := childString(node, "layer")
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, "footprint %s: missing required 'layer' field", fpName)
	}
	footprint.Layer = layer

	pos, err := atOf(node)
	if err != nil {
		return nil, err
	}
	footprint.Position = pos

	// KiCad 8 writes (property "Reference" "R1"), KiCad 6 and 7 write
	// (fp_text reference "R1" ...)
	for _, prop := range node.FindAll("property") {
		name, _ := prop.Atom(1)
		value, _ := prop.Atom(2)
		switch name {
		case "Reference":
			footprint.Reference = value
		case "Value":
			footprint.Value = value
		}
	}
	for _, text := range node.FindAll("fp_text") {
		kind, _ := text.Atom(1)
		value, _ := text.Atom(2)
		switch {
		case kind == "reference" && footprint.Reference == "":
			footprint.Reference = value
		case kind == "value" && footprint.Value == "":
			footprint.Value = value
		}
	}

	for _, padNode := range node.FindAll("pad") {
		pad, err := parsePad(padNode, netMap)
		if err != nil {
			logger.Warn("skipping pad", "footprint", footprint.Reference, "err", err)
			continue
		}
		footprint.Pads = append(footprint.Pads, *pad)
	}
	return footprint, nil
}

// parseFootprints extracts all footprint definitions from the root node
func parseFootprints(root *kicadsexp.List, netMap *NetMap) []Footprint {
	var footprints []Footprint
	for _, fpNode := range root.FindAll("footprint") {
		footprint, err := parseFootprint(fpNode, netMap)
		if err != nil {
			logger.Warn("skipping footprint", "err", err)
			continue
		}
		footprints = append(footprints, *footprint)
	}
	return footprints
}
