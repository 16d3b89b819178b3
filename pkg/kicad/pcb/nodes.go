package pcb

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
)

// childFloat returns the first number of the child list named key.
// Example: childFloat(pad, "drill") on (pad ... (drill 0.8)) returns 0.8.
func childFloat(node *kicadsexp.List, key string) (float64, bool) {
	child, ok := node.Find(key)
	if !ok {
		return 0, false
	}
	return child.Float(1)
}

// childString returns the first atom of the child list named key
func childString(node *kicadsexp.List, key string) (string, bool) {
	child, ok := node.Find(key)
	if !ok {
		return "", false
	}
	return child.Atom(1)
}

// xyOf reads a (key x y) child
func xyOf(node *kicadsexp.List, key string) (Position, error) {
	child, ok := node.Find(key)
	if !ok {
		return Position{}, errors.New(errors.ErrCodeParse, "%s: missing (%s x y)", node.Name(), key)
	}
	x, okX := child.Float(1)
	y, okY := child.Float(2)
	if !okX || !okY {
		return Position{}, errors.New(errors.ErrCodeParse, "%s: bad (%s) coordinates", node.Name(), key)
	}
	return Position{X: x, Y: y}, nil
}

// atOf reads (at x y [angle])
func atOf(node *kicadsexp.List) (PositionAngle, error) {
	pos, err := xyOf(node, "at")
	if err != nil {
		return PositionAngle{}, err
	}
	at, _ := node.Find("at")
	angle, _ := at.Float(3)
	return PositionAngle{Position: pos, Angle: Angle(angle)}, nil
}

// pointsOf reads (pts (xy x y) ...)
func pointsOf(node *kicadsexp.List) []Position {
	pts, ok := node.Find("pts")
	if !ok {
		return nil
	}
	var out []Position
	for _, xy := range pts.FindAll("xy") {
		x, okX := xy.Float(1)
		y, okY := xy.Float(2)
		if okX && okY {
			out = append(out, Position{X: x, Y: y})
		}
	}
	return out
}

// layersOf reads (layer "F.Cu") or (layers "F.Cu" "B.Cu")
func layersOf(node *kicadsexp.List) LayerSet {
	if l, ok := node.Find("layers"); ok {
		return LayerSet(l.Atoms())
	}
	if l, ok := childString(node, "layer"); ok {
		return LayerSet{l}
	}
	return nil
}

// netOf resolves (net 3 "VCC"), or (net "VCC") as written by newer
// versions, registering nets the header did not declare.
func netOf(node *kicadsexp.List, nets *NetMap) *Net {
	child, ok := node.Find("net")
	if !ok {
		return nil
	}
	if num, ok := child.Int(1); ok {
		if net, ok := nets.GetByNumber(num); ok {
			return net
		}
		name, _ := child.Atom(2)
		net := &Net{Number: num, Name: name}
		nets.add(net)
		return net
	}
	name, ok := child.Atom(1)
	if !ok || name == "" {
		return nil
	}
	if net, ok := nets.GetByName(name); ok {
		return net
	}
	net := &Net{Number: 1, Name: name}
	for num := range nets.byNumber {
		if num >= net.Number {
			net.Number = num + 1
		}
	}
	nets.add(net)
	return net
}
