package pcb

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

const testBoard = `(kicad_pcb (version 20240108) (generator "pcbnew")
  (general (thickness 1.6))
  (layers
    (0 "F.Cu" signal)
    (1 "In1.Cu" power)
    (2 "In2.Cu" signal)
    (31 "B.Cu" signal)
    (44 "Edge.Cuts" user))
  (net 0 "")
  (net 1 "GND")
  (net 2 "SIG")
  (footprint "Resistor_SMD:R_0603" (layer "F.Cu") (at 10 10 90)
    (property "Reference" "R1")
    (property "Value" "10k")
    (pad "1" smd roundrect (at -0.8 0 90) (size 0.8 0.9) (layers "F.Cu" "F.Paste" "F.Mask") (net 2 "SIG"))
    (pad "2" smd roundrect (at 0.8 0 90) (size 0.8 0.9) (layers "F.Cu" "F.Paste" "F.Mask") (net 1 "GND")))
  (footprint "Connector:Pin" (layer "F.Cu") (at 20 10)
    (fp_text reference "J1" (at 0 0) (layer "F.SilkS"))
    (pad "1" thru_hole circle (at 0 0) (size 1.7 1.7) (drill 1.0) (layers "*.Cu" "*.Mask") (net 2 "SIG"))
    (pad "" np_thru_hole circle (at 3 0) (size 2 2) (drill 2) (layers "*.Cu")))
  (gr_rect (start 0 0) (end 30 20) (stroke (width 0.1) (type default)) (layer "Edge.Cuts"))
  (gr_line (start 1 1) (end 5 1) (layer "F.SilkS"))
  (segment (start 12 12) (end 15 12) (width 0.25) (layer "B.Cu") (net 1))
  (via (at 15 12) (size 0.8) (drill 0.4) (layers "F.Cu" "B.Cu") (net 1))
  (zone (net 1) (net_name "GND") (layer "In1.Cu")
    (polygon (pts (xy 0 0) (xy 30 0) (xy 30 20) (xy 0 20))))
  (zone (net 0) (net_name "") (layers "F.Cu" "B.Cu")
    (keepout (tracks not_allowed) (vias not_allowed) (pads allowed))
    (polygon (pts (xy 2 2) (xy 4 2) (xy 4 4))))
)
`

var approx = cmpopts.EquateApprox(0, 1e-9)

func mustParse(t *testing.T, s string) *Board {
	t.Helper()
	b, err := ParseString(s)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return b
}

func TestParseBoard(t *testing.T) {
	b := mustParse(t, testBoard)

	if b.Version != 20240108 || b.Generator != "pcbnew" || b.Thickness != 1.6 {
		t.Errorf("header = %d %q %v", b.Version, b.Generator, b.Thickness)
	}
	if diff := cmp.Diff([]string{"F.Cu", "In1.Cu", "In2.Cu", "B.Cu"}, b.CopperLayers()); diff != "" {
		t.Errorf("copper layers (-want +got):\n%s", diff)
	}
	wantNets := []Net{{0, ""}, {1, "GND"}, {2, "SIG"}}
	if diff := cmp.Diff(wantNets, b.Nets); diff != "" {
		t.Errorf("nets (-want +got):\n%s", diff)
	}

	if len(b.Footprints) != 2 {
		t.Fatalf("footprints = %d, want 2", len(b.Footprints))
	}
	r1 := b.Footprints[0]
	if r1.Reference != "R1" || r1.Value != "10k" || r1.Library != "Resistor_SMD" || r1.Name != "R_0603" {
		t.Errorf("R1 = %+v", r1)
	}
	if r1.Pads[0].Net == nil || r1.Pads[0].Net.Name != "SIG" {
		t.Errorf("R1.1 net = %v", r1.Pads[0].Net)
	}
	j1 := b.Footprints[1]
	if j1.Reference != "J1" {
		t.Errorf("fp_text reference = %q, want J1", j1.Reference)
	}
	if !j1.Pads[0].ThroughHole() || j1.Pads[0].Drill != 1.0 {
		t.Errorf("J1.1 = %+v", j1.Pads[0])
	}

	if len(b.Edges.Rects) != 1 || len(b.Edges.Lines) != 0 {
		t.Errorf("edges = %+v, want only the Edge.Cuts rectangle", b.Edges)
	}
	if len(b.Tracks) != 1 || b.Tracks[0].Layer != "B.Cu" || b.Tracks[0].Net.Name != "GND" {
		t.Errorf("tracks = %+v", b.Tracks)
	}
	if len(b.Vias) != 1 || b.Vias[0].Size != 0.8 || b.Vias[0].Type != "" {
		t.Errorf("vias = %+v", b.Vias)
	}
	if len(b.Zones) != 2 || b.Zones[0].Keepout || !b.Zones[1].Keepout || b.Zones[1].Net != nil {
		t.Errorf("zones = %+v", b.Zones)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong root", `(kicad_sch (version 20231120))`},
		{"no version", `(kicad_pcb (generator pcbnew))`},
		{"too old", `(kicad_pcb (version 20171130))`},
		{"unbalanced", `(kicad_pcb (version 20240108)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			if !errors.Is(err, errors.ErrCodeParse) {
				t.Errorf("err = %v, want PARSE_ERROR", err)
			}
		})
	}
}

func TestNetByName(t *testing.T) {
	b := mustParse(t, `(kicad_pcb (version 20250114)
  (net 0 "")
  (net 1 "GND")
  (footprint "X" (layer "F.Cu") (at 0 0)
    (property "Reference" "U1")
    (pad "1" smd rect (at 0 0) (size 1 1) (layers "F.Cu") (net "GND"))
    (pad "2" smd rect (at 2 0) (size 1 1) (layers "F.Cu") (net "VBUS"))))`)
	pads := b.Footprints[0].Pads
	if pads[0].Net.Number != 1 {
		t.Errorf("GND resolved to %+v", pads[0].Net)
	}
	if pads[1].Net == nil || pads[1].Net.Name != "VBUS" || pads[1].Net.Number != 2 {
		t.Errorf("VBUS resolved to %+v", pads[1].Net)
	}
	if len(b.Nets) != 3 {
		t.Errorf("nets = %+v, want VBUS registered", b.Nets)
	}

	// New nets go after the highest declared number
	b = mustParse(t, `(kicad_pcb (version 20250114)
  (net 0 "")
  (net 7 "GND")
  (footprint "X" (layer "F.Cu") (at 0 0)
    (property "Reference" "U1")
    (pad "1" smd rect (at 0 0) (size 1 1) (layers "F.Cu") (net "VBUS"))
    (pad "2" smd rect (at 2 0) (size 1 1) (layers "F.Cu") (net "VIN"))))`)
	pads = b.Footprints[0].Pads
	if pads[0].Net.Number != 8 || pads[1].Net.Number != 9 {
		t.Errorf("VBUS, VIN resolved to %+v, %+v, want 8, 9", pads[0].Net, pads[1].Net)
	}
}

func TestPadTransform(t *testing.T) {
	b := mustParse(t, testBoard)
	r1 := b.Footprints[0]

	got := r1.TransformPosition(r1.Pads[0].Position)
	if diff := cmp.Diff(Position{X: 10, Y: 10.8}, got, approx); diff != "" {
		t.Errorf("R1.1 position (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Size{Width: 0.9, Height: 0.8}, r1.Pads[0].AbsoluteSize()); diff != "" {
		t.Errorf("R1.1 size (-want +got):\n%s", diff)
	}

	p := Pad{Size: Size{Width: 2, Height: 1}, Position: PositionAngle{Angle: 45}}
	s := p.AbsoluteSize()
	want := 3 / math.Sqrt2
	if math.Abs(s.Width-want) > 1e-9 || math.Abs(s.Height-want) > 1e-9 {
		t.Errorf("45 degree size = %+v, want %v square", s, want)
	}
}

func TestLayerStack(t *testing.T) {
	b := mustParse(t, testBoard)
	stack, err := b.LayerStack()
	if err != nil {
		t.Fatalf("LayerStack: %v", err)
	}
	if stack.Count() != 4 || stack.Name() != "board-4layer" {
		t.Fatalf("stack = %s with %d layers", stack.Name(), stack.Count())
	}
	plane, ok := stack.PlaneFor("GND")
	if !ok || plane.Name != "In1.Cu" {
		t.Errorf("GND plane = %+v, %v", plane, ok)
	}
	if got := stack.LayerName(3); got != "B.Cu" {
		t.Errorf("bottom layer = %q", got)
	}
}

func TestJob(t *testing.T) {
	b := mustParse(t, testBoard)
	job, err := b.Job(rules.MustPreset(rules.PresetTwoLayer))
	if err != nil {
		t.Fatalf("Job: %v", err)
	}

	if diff := cmp.Diff(primitives.Point{}, job.Board.Origin); diff != "" {
		t.Errorf("origin (-want +got):\n%s", diff)
	}
	if job.Board.Width != 30 || job.Board.Height != 20 || len(job.Board.Outline) != 4 {
		t.Errorf("board = %+v", job.Board)
	}

	if len(job.Components) != 2 {
		t.Fatalf("components = %d", len(job.Components))
	}
	r1 := job.Components[0]
	if r1.Ref != "R1" || len(r1.Pads) != 2 {
		t.Fatalf("R1 = %+v", r1)
	}
	if r1.Pads[0].Layer != "F.Cu" || r1.Pads[0].NetName != "SIG" || r1.Pads[0].Component != "R1" {
		t.Errorf("R1.1 = %+v", r1.Pads[0])
	}
	j1 := job.Components[1]
	if len(j1.Pads) != 1 || j1.Pads[0].Layer != primitives.AllLayers || !j1.Pads[0].ThroughHole {
		t.Errorf("J1 pads = %+v", j1.Pads)
	}

	wantNets := []primitives.Net{
		{ID: 1, Name: "GND", Pins: []primitives.PinRef{{Ref: "R1", Pin: "2"}}},
		{ID: 2, Name: "SIG", Pins: []primitives.PinRef{{Ref: "R1", Pin: "1"}, {Ref: "J1", Pin: "1"}}},
	}
	if diff := cmp.Diff(wantNets, job.Nets); diff != "" {
		t.Errorf("nets (-want +got):\n%s", diff)
	}
	if job.RoutableNets() != 1 {
		t.Errorf("routable nets = %d, want 1", job.RoutableNets())
	}

	// hole + 12 track boxes + via
	if len(job.Obstacles) != 14 {
		t.Errorf("obstacles = %d, want 14", len(job.Obstacles))
	}
	for _, o := range job.Obstacles {
		if o.Label == "track" && (o.NetID != 1 || o.Bounds.Width() > 0.5+1e-9) {
			t.Errorf("track obstacle = %+v", o)
		}
	}
	if len(job.Keepouts) != 1 {
		t.Fatalf("keepouts = %+v", job.Keepouts)
	}
	if diff := cmp.Diff([]string{"F.Cu", "B.Cu"}, job.Keepouts[0].Layers); diff != "" {
		t.Errorf("keepout layers (-want +got):\n%s", diff)
	}
}

func TestJobRejectsLayerOutsideStack(t *testing.T) {
	b := mustParse(t, `(kicad_pcb (version 20240108)
  (net 1 "A")
  (footprint "X" (layer "F.Cu") (at 5 5)
    (property "Reference" "U1")
    (pad "1" smd rect (at 0 0) (size 1 1) (layers "In1.Cu") (net 1 "A"))))`)
	_, err := b.Job(rules.MustPreset(rules.PresetTwoLayer))
	if !errors.Is(err, errors.ErrCodeInvalidLayer) {
		t.Errorf("err = %v, want INVALID_LAYER", err)
	}
}

func TestGeometryWithoutOutline(t *testing.T) {
	b := mustParse(t, `(kicad_pcb (version 20240108)
  (footprint "X" (layer "F.Cu") (at 5 5)
    (property "Reference" "U1")
    (pad "1" smd rect (at 0 0) (size 2 2) (layers "F.Cu"))))`)
	g, err := b.Geometry()
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	want := primitives.BoardGeometry{Origin: primitives.Point{X: 3, Y: 3}, Width: 4, Height: 4}
	if diff := cmp.Diff(want, g, approx, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("geometry (-want +got):\n%s", diff)
	}

	empty := mustParse(t, `(kicad_pcb (version 20240108))`)
	if _, err := empty.Geometry(); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("empty board err = %v, want INVALID_INPUT", err)
	}
}

func TestInsertRoutes(t *testing.T) {
	seg := kicadsexp.NewList("segment",
		kicadsexp.NewList("start", kicadsexp.Num(1), kicadsexp.Num(2)),
		kicadsexp.NewList("net", kicadsexp.Int(3)))

	got, err := InsertRoutes("(kicad_pcb (version 20240108)\n  (net 0 \"\")\n)\n", []*kicadsexp.List{seg})
	if err != nil {
		t.Fatalf("InsertRoutes: %v", err)
	}
	want := "(kicad_pcb (version 20240108)\n  (net 0 \"\")\n  (segment (start 1.0000 2.0000) (net 3))\n)\n"
	if got != want {
		t.Errorf("InsertRoutes =\n%s\nwant\n%s", got, want)
	}

	if _, err := InsertRoutes("hello", nil); !errors.Is(err, errors.ErrCodeParse) {
		t.Errorf("err = %v, want PARSE_ERROR", err)
	}
}

func TestInsertRoutesFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.kicad_pcb")
	dst := filepath.Join(dir, "out.kicad_pcb")
	if err := os.WriteFile(src, []byte(testBoard), 0o644); err != nil {
		t.Fatal(err)
	}
	seg := kicadsexp.NewList("segment",
		kicadsexp.NewList("start", kicadsexp.Num(10), kicadsexp.Num(10.8)),
		kicadsexp.NewList("end", kicadsexp.Num(20), kicadsexp.Num(10)),
		kicadsexp.NewList("width", kicadsexp.Num(0.25)),
		kicadsexp.NewList("layer", kicadsexp.Str("F.Cu")),
		kicadsexp.NewList("net", kicadsexp.Int(2)))
	if err := InsertRoutesFile(src, dst, []*kicadsexp.List{seg}); err != nil {
		t.Fatalf("InsertRoutesFile: %v", err)
	}
	b, err := ParseFile(dst)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(b.Tracks) != 2 || b.Tracks[1].Net.Name != "SIG" {
		t.Errorf("tracks = %+v", b.Tracks)
	}
}

func TestParseFragment(t *testing.T) {
	fragment := "(segment (start 1.0000 2.0000) (end 3.0000 2.0000) (width 0.2500) (layer \"F.Cu\") (net 1))\n" +
		"(via (at 3.0000 2.0000) (size 0.6000) (drill 0.3000) (layers \"F.Cu\" \"B.Cu\") (net 1))\n"
	items, err := ParseFragment(fragment)
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.String())
		b.WriteByte('\n')
	}
	if b.String() != fragment {
		t.Errorf("round trip =\n%s\nwant\n%s", b.String(), fragment)
	}

	if _, err := ParseFragment("segment"); !errors.Is(err, errors.ErrCodeParse) {
		t.Errorf("bare atom err = %v, want PARSE_ERROR", err)
	}
	if _, err := ParseFragment("(segment"); !errors.Is(err, errors.ErrCodeParse) {
		t.Errorf("unterminated err = %v, want PARSE_ERROR", err)
	}
}
