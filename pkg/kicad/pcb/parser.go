package pcb

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
)

// Minimum supported KiCad version (6.0 = 20211014)
const MinSupportedVersion = 20211014

var logger = log.New(io.Discard)

// SetLogger directs parse warnings to l
func SetLogger(l *log.Logger) {
	logger = l
}

// ParseFile reads and parses a KiCad board file
func ParseFile(filename string) (*Board, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "failed to open board")
	}
	defer file.Close()

	return Parse(file)
}

// ParseString parses a KiCad board held in memory
func ParseString(s string) (*Board, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads and parses a KiCad board from an io.Reader
func Parse(r io.Reader) (*Board, error) {
	nodes, err := kicadsexp.Parse(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "failed to parse s-expression")
	}
	if len(nodes) == 0 {
		return nil, errors.New(errors.ErrCodeParse, "empty file or no valid s-expressions found")
	}

	// The root should be a (kicad_pcb ...) expression
	root, ok := nodes[0].(*kicadsexp.List)
	if !ok || root.Name() != "kicad_pcb" {
		return nil, errors.New(errors.ErrCodeParse, "not a KiCad PCB file: expected 'kicad_pcb'")
	}

	version, generator, err := parseHeader(root)
	if err != nil {
		return nil, err
	}
	board := &Board{
		Version:   version,
		Generator: generator,
	}

	if general, found := root.Find("general"); found {
		board.Thickness, _ = childFloat(general, "thickness")
	}

	if layersNode, found := root.Find("layers"); found {
		layers, err := parseLayers(layersNode)
		if err != nil {
			return nil, err
		}
		board.Layers = layers
	}

	netMap := NewNetMap(parseNets(root))
	board.Edges = parseEdges(root)

	board.Tracks, err = parseTracks(root, netMap)
	if err != nil {
		return nil, err
	}
	board.Vias, err = parseVias(root, netMap)
	if err != nil {
		return nil, err
	}
	board.Footprints = parseFootprints(root, netMap)
	board.Zones = parseZones(root, netMap)

	// Pads may name nets the header did not declare
	board.Nets = netMap.Nets()

	logger.Debug("board parsed", "version", version, "footprints", len(board.Footprints),
		"nets", len(board.Nets), "tracks", len(board.Tracks), "vias", len(board.Vias), "zones", len(board.Zones))
	return board, nil
}

// parseHeader extracts version and generator information from the root node
// Expected format: (kicad_pcb (version 20221018) (generator pcbnew) ...)
func parseHeader(root *kicadsexp.List) (version int, generator string, err error) {
	versionNode, found := root.Find("version")
	if !found {
		return 0, "", errors.New(errors.ErrCodeParse, "missing required 'version' field")
	}
	ver, ok := versionNode.Int(1)
	if !ok {
		return 0, "", errors.New(errors.ErrCodeParse, "failed to parse version")
	}
	if ver < MinSupportedVersion {
		return 0, "", errors.New(errors.ErrCodeParse,
			"unsupported KiCad version: %d (minimum required: %d / KiCad 6.0)", ver, MinSupportedVersion)
	}

	gen := "unknown"
	if name, ok := childString(root, "generator"); ok {
		gen = name
	} else if name, ok := childString(root, "host"); ok {
		gen = name
	}
	return ver, gen, nil
}

// parseLayers extracts layer definitions
// Expected format: (layers (0 "F.Cu" signal) (31 "B.Cu" signal) ...)
func parseLayers(node *kicadsexp.List) ([]Layer, error) {
	var layers []Layer
	for _, item := range node.Items[1:] {
		l, ok := item.(*kicadsexp.List)
		if !ok {
			continue
		}
		number, okNum := l.Int(0)
		name, okName := l.Atom(1)
		if !okNum || !okName {
			return nil, errors.New(errors.ErrCodeParse, "bad layer definition %s", l)
		}
		layerType, ok := l.Atom(2)
		if !ok {
			layerType = "user"
		}
		layers = append(layers, Layer{Number: number, Name: name, Type: layerType})
	}
	if len(layers) == 0 {
		return nil, errors.New(errors.ErrCodeParse, "no layers defined")
	}
	return layers, nil
}

// parseNets extracts the top-level net declarations
// Expected format: (net 0 "") (net 1 "GND") (net 2 "+5V") ...
func parseNets(root *kicadsexp.List) []Net {
	var nets []Net
	for _, n := range root.FindAll("net") {
		number, ok := n.Int(1)
		if !ok {
			continue
		}
		name, _ := n.Atom(2)
		nets = append(nets, Net{Number: number, Name: name})
	}
	return nets
}

// parseTracks extracts (segment ...) records. Arc tracks are read as their
// chord.
func parseTracks(root *kicadsexp.List, netMap *NetMap) ([]Track, error) {
	var tracks []Track
	for _, kind := range []string{"segment", "arc"} {
		for _, node := range root.FindAll(kind) {
			start, err := xyOf(node, "start")
			if err != nil {
				return nil, err
			}
			end, err := xyOf(node, "end")
			if err != nil {
				return nil, err
			}
			width, _ := childFloat(node, "width")
			layer, _ := childString(node, "layer")
			tracks = append(tracks, Track{
				Start:  start,
				End:    end,
				Width:  width,
				Layer:  layer,
				Net:    netOf(node, netMap),
				Locked: node.HasSymbol("locked") || hasYes(node, "locked"),
			})
		}
	}
	return tracks, nil
}

// parseVias extracts (via [blind|micro] (at x y) (size d) (drill d) ...)
func parseVias(root *kicadsexp.List, netMap *NetMap) ([]Via, error) {
	var vias []Via
	for _, node := range root.FindAll("via") {
		pos, err := xyOf(node, "at")
		if err != nil {
			return nil, err
		}
		v := Via{
			Position: pos,
			Layers:   layersOf(node),
			Net:      netOf(node, netMap),
			Locked:   node.HasSymbol("locked") || hasYes(node, "locked"),
		}
		v.Size, _ = childFloat(node, "size")
		v.Drill, _ = childFloat(node, "drill")
		switch {
		case node.HasSymbol("micro"):
			v.Type = "micro"
		case node.HasSymbol("blind"):
			v.Type = "blind"
		}
		vias = append(vias, v)
	}
	return vias, nil
}

// parseZones extracts copper zones and keepout rule areas
func parseZones(root *kicadsexp.List, netMap *NetMap) []Zone {
	var zones []Zone
	for i, node := range root.FindAll("zone") {
		z := Zone{Layers: layersOf(node), Net: netOf(node, netMap)}
		if z.Net != nil && z.Net.Number == 0 {
			z.Net = nil
		}
		if ko, ok := node.Find("keepout"); ok {
			z.Keepout = notAllowed(ko, "tracks") || notAllowed(ko, "vias")
		}
		if poly, ok := node.Find("polygon"); ok {
			z.Outline = pointsOf(poly)
		}
		if len(z.Outline) < 3 {
			logger.Warn("zone without outline", "zone", i, "layers", z.Layers)
			continue
		}
		zones = append(zones, z)
	}
	return zones
}

func notAllowed(keepout *kicadsexp.List, item string) bool {
	v, ok := childString(keepout, item)
	return ok && v == "not_allowed"
}

// hasYes matches the (locked yes) form of newer files
func hasYes(node *kicadsexp.List, key string) bool {
	v, ok := childString(node, key)
	return ok && v == "yes"
}
