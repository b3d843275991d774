package enrich

import "testing"

func TestSubnetMatcherDefaultsIdentifyRFC1918(t *testing.T) {
	m := NewSubnetMatcher(DefaultLocalSubnets())
	if !m.IsLocal("192.168.1.5") {
		t.Error("expected 192.168.1.5 to be local")
	}
	if !m.IsLocal("10.1.2.3") {
		t.Error("expected 10.1.2.3 to be local")
	}
	if m.IsLocal("8.8.8.8") {
		t.Error("expected 8.8.8.8 to be remote")
	}
}

func TestVendorLookupKnownOUI(t *testing.T) {
	v := NewVendorLookup()
	if vendor := v.Lookup("B8:27:EB:12:34:56"); vendor != "Raspberry Pi" {
		t.Errorf("expected Raspberry Pi, got %q", vendor)
	}
	if vendor := v.Lookup("AA:BB:CC:DD:EE:FF"); vendor != "" {
		t.Errorf("expected empty vendor for unknown OUI, got %q", vendor)
	}
}
