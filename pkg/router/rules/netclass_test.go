package rules

import "testing"

func TestClassifyNet(t *testing.T) {
	tests := []struct {
		net  string
		want Tier
	}{
		{"GND", TierPower},
		{"+3V3", TierPower},
		{"/power/VCC", TierPower},
		{"+5V", TierPower},
		{"SPI_CLK", TierClock},
		{"XTAL_IN", TierClock},
		{"USB_DP", TierHighSpeed},
		{"USB_D-", TierHighSpeed},
		{"ETH_TXP", TierHighSpeed},
		{"I2S_DATA", TierAudio},
		{"MIC_IN", TierAudio},
		{"SWDIO", TierDebug},
		{"SWCLK", TierDebug},
		{"LED1", TierDigital},
		{"Net-(R1-Pad1)", TierDefault},
		{"", TierDefault},
	}
	for _, tt := range tests {
		if got := ClassifyNet(tt.net); got != tt.want {
			t.Errorf("ClassifyNet(%q) = %v, want %v", tt.net, got, tt.want)
		}
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in   string
		want Tier
	}{
		{"power", TierPower},
		{"Clock", TierClock},
		{"differential", TierHighSpeed},
		{"high-speed", TierHighSpeed},
		{"debug", TierDebug},
		{"", TierDefault},
	}
	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseTier(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseTier("urgent"); err == nil {
		t.Error("ParseTier(urgent) expected error")
	}
}

func TestNetClassMap(t *testing.T) {
	m := NewNetClassMap()
	if err := m.AddClass(NetClass{Name: "Power", Tier: TierPower, TraceWidth: 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddClass(NetClass{Name: "Fast", Tier: TierHighSpeed, TraceClearance: 0.15}); err != nil {
		t.Fatal(err)
	}
	if err := m.Assign("VMOTOR", "Power"); err != nil {
		t.Fatal(err)
	}
	if err := m.AssignPattern(`^HS_`, "Fast"); err != nil {
		t.Fatal(err)
	}
	if err := m.Assign("X", "Missing"); err == nil {
		t.Error("Assign() to unknown class expected error")
	}

	r := DefaultDesignRules()
	tests := []struct {
		net       string
		tier      Tier
		width     float64
		clearance float64
	}{
		{"VMOTOR", TierPower, 0.5, r.TraceClearance},
		{"HS_LINK", TierHighSpeed, r.TraceWidth, 0.15},
		{"SPI_MOSI", TierDigital, r.TraceWidth, r.TraceClearance},
	}
	for _, tt := range tests {
		c := m.Lookup(tt.net)
		if c.Tier != tt.tier || c.Width(r) != tt.width || c.Clearance(r) != tt.clearance {
			t.Errorf("Lookup(%q) = %+v, want tier %v width %v clearance %v", tt.net, c, tt.tier, tt.width, tt.clearance)
		}
	}
}
