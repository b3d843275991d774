package enrich

import "testing"

func TestClassifyByDomainSuffix(t *testing.T) {
	ja3 := NewJA3Table()
	app := Classify(ja3, "", "cdn.netflix.com", "TCP", 443, 0)
	if app != "netflix" {
		t.Errorf("expected netflix, got %q", app)
	}
}

func TestClassifyByPortFallback(t *testing.T) {
	ja3 := NewJA3Table()
	app := Classify(ja3, "", "", "TCP", 22, 0)
	if app != "ssh" {
		t.Errorf("expected ssh, got %q", app)
	}
}

// The service port can land on either canonical endpoint since ordering
// is by IP, not by port; a flow whose ephemeral port sorted into portA
// must still classify by the service port sitting in portB.
func TestClassifyByServicePortInSecondSlot(t *testing.T) {
	ja3 := NewJA3Table()
	app := Classify(ja3, "", "", "TCP", 51000, 80)
	if app != "http" {
		t.Errorf("expected http, got %q", app)
	}
}

func TestClassifyUnknown(t *testing.T) {
	ja3 := NewJA3Table()
	app := Classify(ja3, "", "", "TCP", 54321, 54322)
	if app != "unknown" {
		t.Errorf("expected unknown, got %q", app)
	}
}

func TestClassifyJA3TakesPriority(t *testing.T) {
	ja3 := NewJA3Table()
	ja3.Add("deadbeef", "custom-client")
	app := Classify(ja3, "deadbeef", "netflix.com", "TCP", 443, 0)
	if app != "custom-client" {
		t.Errorf("expected JA3 match to win, got %q", app)
	}
}
