package kicadsexp

import (
	"testing"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{name: "single list", input: `(net 1 "GND")`, wantLen: 1},
		{name: "two lists", input: "(a 1)\n(b 2)", wantLen: 2},
		{name: "comment skipped", input: "# header\n(a 1)", wantLen: 1},
		{name: "nested", input: `(kicad_pcb (version 20221018) (net 0 ""))`, wantLen: 1},
		{name: "unbalanced", input: "(a (b 1)", wantErr: true},
		{name: "stray close", input: ")", wantErr: true},
		{name: "unterminated string", input: `(a "oops)`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseString(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseString() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseString() unexpected error: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("ParseString() returned %d expressions, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestListAccessors(t *testing.T) {
	exprs, err := ParseString(`(pad "1" smd rect (at 1.5 -2 90) (size 1 0.6) (layers "F.Cu" "F.Mask") (net 3 "SDA") locked)`)
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}
	pad := exprs[0].(*List)

	if pad.Name() != "pad" {
		t.Errorf("Name() = %q, want pad", pad.Name())
	}
	if num, _ := pad.Atom(1); num != "1" {
		t.Errorf("Atom(1) = %q, want 1", num)
	}
	at, ok := pad.Find("at")
	if !ok {
		t.Fatal("Find(at) not found")
	}
	if x, _ := at.Float(1); x != 1.5 {
		t.Errorf("at x = %v, want 1.5", x)
	}
	if y, _ := at.Float(2); y != -2 {
		t.Errorf("at y = %v, want -2", y)
	}
	layers, _ := pad.Find("layers")
	if got := layers.Atoms(); len(got) != 2 || got[0] != "F.Cu" {
		t.Errorf("layers = %v, want [F.Cu F.Mask]", got)
	}
	net, _ := pad.Find("net")
	if id, _ := net.Int(1); id != 3 {
		t.Errorf("net id = %d, want 3", id)
	}
	if !pad.HasSymbol("locked") {
		t.Error("HasSymbol(locked) = false, want true")
	}
	if _, ok := pad.Find("drill"); ok {
		t.Error("Find(drill) should not match")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	seg := NewList("segment",
		NewList("start", Num(10), Num(20.125)),
		NewList("end", Num(15), Num(-0.00001)),
		NewList("layer", Str("F.Cu")),
		NewList("net", Int(2)),
	)
	want := `(segment (start 10.0000 20.1250) (end 15.0000 0.0000) (layer "F.Cu") (net 2))`
	if got := seg.String(); got != want {
		t.Fatalf("String() = %s, want %s", got, want)
	}

	back, err := ParseString(seg.String())
	if err != nil {
		t.Fatalf("re-parse error: %v", err)
	}
	if got := back[0].String(); got != want {
		t.Errorf("round trip = %s, want %s", got, want)
	}
}

func TestStrEscapes(t *testing.T) {
	s := Str(`say "hi" \ now`)
	back, err := ParseString("(x " + s.String() + ")")
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}
	got, _ := back[0].(*List).Atom(1)
	if got != string(s) {
		t.Errorf("escaped string = %q, want %q", got, string(s))
	}
}
