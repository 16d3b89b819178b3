package pcb

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
)

// EdgeLayer is the layer holding the board outline
const EdgeLayer = "Edge.Cuts"

func strokeWidth(node *kicadsexp.List) float64 {
	if stroke, ok := node.Find("stroke"); ok {
		w, _ := childFloat(stroke, "width")
		return w
	}
	w, _ := childFloat(node, "width")
	return w
}

// parseEdges collects the gr_* drawings on Edge.Cuts. Drawings on other
// layers do not affect routing and are skipped.
func parseEdges(root *kicadsexp.List) Graphics {
	var g Graphics
	onEdge := func(node *kicadsexp.List) bool {
		l, _ := childString(node, "layer")
		return l == EdgeLayer
	}

	for _, node := range root.FindAll("gr_line") {
		start, err1 := xyOf(node, "start")
		end, err2 := xyOf(node, "end")
		if err1 != nil || err2 != nil || !onEdge(node) {
			continue
		}
		g.Lines = append(g.Lines, sexp.GrLine{Start: start, End: end, Width: strokeWidth(node), Layer: EdgeLayer})
	}
	for _, node := range root.FindAll("gr_arc") {
		start, err1 := xyOf(node, "start")
		mid, err2 := xyOf(node, "mid")
		end, err3 := xyOf(node, "end")
		if err1 != nil || err2 != nil || err3 != nil || !onEdge(node) {
			continue
		}
		g.Arcs = append(g.Arcs, sexp.GrArc{Start: start, Mid: mid, End: end, Width: strokeWidth(node), Layer: EdgeLayer})
	}
	for _, node := range root.FindAll("gr_rect") {
		start, err1 := xyOf(node, "start")
		end, err2 := xyOf(node, "end")
		if err1 != nil || err2 != nil || !onEdge(node) {
			continue
		}
		g.Rects = append(g.Rects, sexp.GrRect{Start: start, End: end, Width: strokeWidth(node), Layer: EdgeLayer})
	}
	for _, node := range root.FindAll("gr_circle") {
		center, err1 := xyOf(node, "center")
		end, err2 := xyOf(node, "end")
		if err1 != nil || err2 != nil || !onEdge(node) {
			continue
		}
		g.Circles = append(g.Circles, sexp.GrCircle{Center: center, End: end, Width: strokeWidth(node), Layer: EdgeLayer})
	}
	for _, node := range root.FindAll("gr_poly") {
		pts := pointsOf(node)
		if len(pts) < 3 || !onEdge(node) {
			continue
		}
		g.Polys = append(g.Polys, sexp.GrPoly{Points: pts, Width: strokeWidth(node), Layer: EdgeLayer})
	}
	return g
}
