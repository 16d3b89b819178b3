package dru

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

const sample = `(version 1)
# Board house minimums
(rule "Fab minimums"
	(constraint clearance (min 0.15mm))
	(constraint track_width (min 6mil))
	(constraint edge_clearance (min 0.5mm)))

(rule "Power"
	(condition "A.NetClass == 'Power'")
	(constraint track_width (min 0.4mm) (opt 0.5mm))
	(constraint clearance (min 0.3mm)))

(rule "USB pair"
	(layer outer)
	(condition "A.NetName == 'USB_DP' || (A.NetName == 'USB_DM' && B.NetName == 'USB_DM')")
	(severity error)
	(constraint clearance (min 0.25)))

(rule "Courtyards"
	(condition "A.Type == 'Pad'")
	(constraint clearance (min 1mm)))

(rule "No vias"
	(constraint disallow via))
`

func mustParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser()
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

func TestParseSample(t *testing.T) {
	p := mustParser(t)
	f, err := p.ParseString(sample)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if f.Version != 1 {
		t.Errorf("version = %d, want 1", f.Version)
	}
	var names []string
	for _, r := range f.Rules {
		names = append(names, r.Name)
	}
	want := []string{"Fab minimums", "Power", "USB pair", "Courtyards", "No vias"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("rule names (-want +got):\n%s", diff)
	}
	usb := f.Rules[2]
	if usb.Items[0].Layer == nil || *usb.Items[0].Layer != "outer" {
		t.Errorf("layer clause not parsed: %+v", usb.Items[0])
	}
	if c := usb.Items[1].Condition; c == nil || *c != "A.NetName == 'USB_DP' || (A.NetName == 'USB_DM' && B.NetName == 'USB_DM')" {
		t.Errorf("condition = %v", c)
	}
}

func TestParseErrors(t *testing.T) {
	p := mustParser(t)
	tests := []struct {
		name  string
		input string
	}{
		{"unbalanced", `(rule "x" (constraint clearance (min 1mm))`},
		{"unknown clause", `(rule "x" (colour red))`},
		{"bound without value", `(rule "x" (constraint clearance (min)))`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseString(tt.input)
			if !errors.Is(err, errors.ErrCodeParse) {
				t.Errorf("err = %v, want PARSE_ERROR", err)
			}
		})
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		err  bool
	}{
		{"0.2mm", 0.2, false},
		{"0.2", 0.2, false},
		{"10mil", 0.254, false},
		{"1in", 25.4, false},
		{"150um", 0.15, false},
		{"45deg", 45, false},
		{".5mm", 0.5, false},
		{"2ft", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseQuantity(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseQuantity(%q) err = %v", tt.in, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseQuantity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConditionScope(t *testing.T) {
	p := mustParser(t)
	tests := []struct {
		expr string
		want Scope
		ok   bool
	}{
		{"A.NetClass == 'Power'", Scope{Classes: []string{"Power"}}, true},
		{"A.NetClass == 'HS' && B.NetClass == 'HS'", Scope{Classes: []string{"HS"}}, true},
		{"A.NetName == 'CLK' || B.NetClass == 'Audio'", Scope{Classes: []string{"Audio"}, Nets: []string{"CLK"}}, true},
		{"(A.NetName == 'X')", Scope{Nets: []string{"X"}}, true},
		{"A.NetClass == 'Power' && B.NetClass == 'Signal'", Scope{}, false},
		{"A.NetClass != 'Power'", Scope{}, false},
		{"A.Type == 'Via'", Scope{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := p.ParseCondition(tt.expr)
			if err != nil {
				t.Fatalf("ParseCondition: %v", err)
			}
			got, ok := c.scope()
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); ok && diff != "" {
				t.Errorf("scope (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	p := mustParser(t)
	f, err := p.ParseString(sample)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	resolved, skipped, err := p.Resolve(f)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []Resolved{
		{Name: "Fab minimums", Scope: Scope{Global: true},
			Thresholds: Thresholds{Clearance: 0.15, TrackWidth: 0.1524, EdgeClearance: 0.5}},
		{Name: "Power", Scope: Scope{Classes: []string{"Power"}},
			Thresholds: Thresholds{Clearance: 0.3, TrackWidth: 0.5}},
		{Name: "USB pair", Layer: "outer", Scope: Scope{Nets: []string{"USB_DP", "USB_DM"}},
			Thresholds: Thresholds{Clearance: 0.25}},
	}
	if diff := cmp.Diff(want, resolved, cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("resolved (-want +got):\n%s", diff)
	}
	if len(skipped) != 2 {
		t.Errorf("skipped = %v, want the courtyard and disallow rules", skipped)
	}
}

func TestApply(t *testing.T) {
	p := mustParser(t)
	f, err := p.ParseString(sample)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	resolved, _, err := p.Resolve(f)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	r := rules.DefaultDesignRules()
	m := rules.NewNetClassMap()
	if err := m.AddClass(rules.NetClass{Name: "Power", Tier: rules.TierPower, TraceWidth: 0.8}); err != nil {
		t.Fatal(err)
	}
	rep, err := Apply(resolved, &r, m)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(rep.Applied) != 3 {
		t.Errorf("applied = %v", rep.Applied)
	}

	// Defaults were already stricter except for the edge clearance
	def := rules.DefaultDesignRules()
	if r.TraceClearance != def.TraceClearance || r.TraceWidth != def.TraceWidth {
		t.Errorf("defaults lowered: %+v", r)
	}
	if r.EdgeClearance != 0.5 {
		t.Errorf("edge clearance = %v, want 0.5", r.EdgeClearance)
	}

	power, _ := m.ByName("Power")
	if power.TraceWidth != 0.8 || power.TraceClearance != 0.3 || power.Tier != rules.TierPower {
		t.Errorf("power class = %+v", power)
	}

	usb := m.Lookup("USB_DP")
	if usb.Name != "USB pair/USB_DP" || usb.TraceClearance != 0.25 {
		t.Errorf("USB_DP class = %+v", usb)
	}
	if usb.Tier != rules.TierHighSpeed {
		t.Errorf("USB_DP tier = %v, want high_speed", usb.Tier)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.kicad_dru")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	r := rules.DefaultDesignRules()
	m := rules.NewNetClassMap()
	rep, err := Load(path, &r, m)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rep.Skipped) != 2 {
		t.Errorf("skipped = %v", rep.Skipped)
	}
	if _, ok := m.ByName("Power"); !ok {
		t.Error("Power class not created")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing"), &r, m); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing file err = %v, want NOT_FOUND", err)
	}
}

func TestLoadString(t *testing.T) {
	r := rules.DefaultDesignRules()
	m := rules.NewNetClassMap()
	rep, err := LoadString(sample, &r, m)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if len(rep.Applied) == 0 {
		t.Error("no rules applied")
	}
	if _, err := LoadString("(rule", &r, m); !errors.Is(err, errors.ErrCodeParse) {
		t.Errorf("malformed rules err = %v, want PARSE_ERROR", err)
	}
}
