package device

import (
	"testing"
	"time"
)

func TestObserveCreatesDevice(t *testing.T) {
	r := New()
	d := r.Observe("AA:BB:CC:DD:EE:FF", "192.168.1.10", "Apple", time.Now(), 100, 200)

	if d.DeviceID != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("expected DeviceID to be MAC, got %s", d.DeviceID)
	}
	if d.FlowCount != 1 {
		t.Errorf("expected FlowCount 1, got %d", d.FlowCount)
	}
}

func TestObserveAccumulates(t *testing.T) {
	r := New()
	now := time.Now()
	r.Observe("AA:BB:CC:DD:EE:FF", "192.168.1.10", "Apple", now, 100, 200)
	d := r.Observe("AA:BB:CC:DD:EE:FF", "192.168.1.11", "", now.Add(time.Second), 50, 75)

	if d.BytesIn != 150 || d.BytesOut != 275 {
		t.Errorf("expected accumulated bytes, got in=%d out=%d", d.BytesIn, d.BytesOut)
	}
	if d.FlowCount != 2 {
		t.Errorf("expected FlowCount 2, got %d", d.FlowCount)
	}
	if _, ok := d.AllIPs["192.168.1.11"]; !ok {
		t.Error("expected second IP to be recorded")
	}
}

func TestDeviceIDFallsBackToIP(t *testing.T) {
	r := New()
	d := r.Observe("", "203.0.113.5", "", time.Now(), 0, 0)
	if d.DeviceID != "ip:203.0.113.5" {
		t.Errorf("expected ip: prefix fallback, got %s", d.DeviceID)
	}
}

func TestSnapshotIsIndependentOfWriter(t *testing.T) {
	r := New()
	r.Observe("AA:BB:CC:DD:EE:FF", "192.168.1.10", "Apple", time.Now(), 10, 10)

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 device, got %d", len(snap))
	}

	r.Observe("AA:BB:CC:DD:EE:FF", "192.168.1.10", "Apple", time.Now(), 10, 10)
	if snap[0].BytesIn != 10 {
		t.Error("expected prior snapshot to remain unchanged after further writes")
	}
}
