/**
 * SQLite Storage Tests.
 *
 * Verifies the full persistence API (devices, flows, threats, buckets)
 * against a temporary SQLite database file.
 */

package storage

import (
	"os"
	"testing"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := t.TempDir() + "/netscope_test.db"

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		os.Remove(dbPath)
	})
	return store
}

func TestSaveAndGetDevice(t *testing.T) {
	store := newTestStorage(t)

	device := &model.Device{
		DeviceID:  "AA:BB:CC:DD:EE:FF",
		MAC:       "AA:BB:CC:DD:EE:FF",
		PrimaryIP: "192.168.1.100",
		AllIPs:    map[string]struct{}{"192.168.1.100": {}},
		Vendor:    "Test Vendor",
		Hostname:  "test-device",
		FirstSeen: time.Now(),
		LastSeen:  time.Now(),
	}
	if err := store.SaveDevice(device); err != nil {
		t.Fatalf("failed to save device: %v", err)
	}

	fetched, err := store.GetDevice("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("failed to get device: %v", err)
	}
	if fetched == nil {
		t.Fatal("device not found")
	}
	if fetched.Hostname != "test-device" {
		t.Errorf("expected hostname test-device, got %s", fetched.Hostname)
	}
	if _, ok := fetched.AllIPs["192.168.1.100"]; !ok {
		t.Error("expected all_ips to round-trip 192.168.1.100")
	}
}

func TestSaveDeviceUpsertsOnConflict(t *testing.T) {
	store := newTestStorage(t)

	device := &model.Device{DeviceID: "AA:BB:CC", MAC: "AA:BB:CC", Hostname: "first", FirstSeen: time.Now(), LastSeen: time.Now()}
	if err := store.SaveDevice(device); err != nil {
		t.Fatalf("save: %v", err)
	}
	device.Hostname = "second"
	device.LastSeen = time.Now()
	if err := store.SaveDevice(device); err != nil {
		t.Fatalf("upsert save: %v", err)
	}

	devices, err := store.ListDevices()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected 1 device after upsert, got %d", len(devices))
	}
	if devices[0].Hostname != "second" {
		t.Errorf("expected upserted hostname 'second', got %s", devices[0].Hostname)
	}
}

func TestSaveAndListFlows(t *testing.T) {
	store := newTestStorage(t)

	flow := &model.Flow{
		Key: model.FlowKey{Protocol: "UDP", IPA: "192.168.1.100", PortA: 12345, IPB: "8.8.8.8", PortB: 53},
		FirstSeen:     time.Now(),
		LastSeen:      time.Now(),
		State:         model.StateClosed,
		LocalDeviceID: "AA:BB:CC",
		ServerName:    "google.com",
	}
	flow.A.Bytes = 100
	flow.A.Packets = 1

	if err := store.SaveFlows([]*model.Flow{flow}); err != nil {
		t.Fatalf("failed to save flow: %v", err)
	}

	flows, err := store.ListFlows(FlowFilter{DeviceID: "AA:BB:CC"})
	if err != nil {
		t.Fatalf("failed to list flows: %v", err)
	}
	if len(flows) != 1 {
		t.Fatalf("expected 1 flow, got %d", len(flows))
	}
	if flows[0].Key.IPA != "192.168.1.100" {
		t.Errorf("expected IPA 192.168.1.100, got %s", flows[0].Key.IPA)
	}
	if flows[0].ServerName != "google.com" {
		t.Errorf("expected server_name google.com, got %s", flows[0].ServerName)
	}
}

func TestSaveThreatsAndDismiss(t *testing.T) {
	store := newTestStorage(t)

	threat := &model.Threat{
		ID:        "threat-1",
		CreatedAt: time.Now(),
		Severity:  model.SeverityHigh,
		Category:  model.CategoryExfiltration,
		DeviceID:  "AA:BB:CC",
		Score:     80,
		Summary:   "large outbound transfer",
		Evidence:  map[string]string{"bytes": "123456"},
	}
	if err := store.SaveThreats([]*model.Threat{threat}); err != nil {
		t.Fatalf("failed to save threat: %v", err)
	}

	threats, err := store.ListThreats(ThreatFilter{DeviceID: "AA:BB:CC"})
	if err != nil {
		t.Fatalf("failed to list threats: %v", err)
	}
	if len(threats) != 1 {
		t.Fatalf("expected 1 threat, got %d", len(threats))
	}
	if threats[0].Evidence["bytes"] != "123456" {
		t.Errorf("expected evidence to round-trip, got %v", threats[0].Evidence)
	}

	if err := store.DismissThreat("threat-1"); err != nil {
		t.Fatalf("failed to dismiss: %v", err)
	}
	threats, err = store.ListThreats(ThreatFilter{DeviceID: "AA:BB:CC"})
	if err != nil {
		t.Fatalf("list after dismiss: %v", err)
	}
	if len(threats) != 0 {
		t.Error("expected dismissed threat to be excluded by default")
	}

	threats, err = store.ListThreats(ThreatFilter{DeviceID: "AA:BB:CC", IncludeDismiss: true})
	if err != nil {
		t.Fatalf("list including dismissed: %v", err)
	}
	if len(threats) != 1 {
		t.Fatal("expected dismissed threat to be visible with IncludeDismiss")
	}
}

func TestSaveBucketsSumsOnConflict(t *testing.T) {
	store := newTestStorage(t)

	epoch := time.Now().Unix() / 60
	b1 := &model.MinuteBucket{MinuteEpoch: epoch, DeviceID: "AA:BB:CC", Protocol: "TCP", BytesIn: 100, Packets: 1, FlowCount: 1}
	b2 := &model.MinuteBucket{MinuteEpoch: epoch, DeviceID: "AA:BB:CC", Protocol: "TCP", BytesIn: 50, Packets: 1, FlowCount: 1}

	if err := store.SaveBuckets([]*model.MinuteBucket{b1}); err != nil {
		t.Fatalf("save b1: %v", err)
	}
	if err := store.SaveBuckets([]*model.MinuteBucket{b2}); err != nil {
		t.Fatalf("save b2: %v", err)
	}

	top, err := store.TopBuckets(time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("top buckets: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("expected 1 merged bucket, got %d", len(top))
	}
	if top[0].BytesIn != 150 {
		t.Errorf("expected summed bytes_in 150, got %d", top[0].BytesIn)
	}
}

func TestTrimOlderThan(t *testing.T) {
	store := newTestStorage(t)

	old := &model.Flow{
		Key:           model.FlowKey{Protocol: "TCP", IPA: "1.1.1.1", PortA: 1, IPB: "2.2.2.2", PortB: 2},
		FirstSeen:     time.Now().Add(-60 * 24 * time.Hour),
		LastSeen:      time.Now().Add(-60 * 24 * time.Hour),
		LocalDeviceID: "AA:BB:CC",
	}
	recent := &model.Flow{
		Key:           model.FlowKey{Protocol: "TCP", IPA: "1.1.1.1", PortA: 3, IPB: "2.2.2.2", PortB: 4},
		FirstSeen:     time.Now(),
		LastSeen:      time.Now(),
		LocalDeviceID: "AA:BB:CC",
	}
	if err := store.SaveFlows([]*model.Flow{old, recent}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.TrimOlderThan(time.Now().Add(-24 * time.Hour)); err != nil {
		t.Fatalf("trim: %v", err)
	}

	flows, err := store.ListFlows(FlowFilter{DeviceID: "AA:BB:CC", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(flows) != 1 {
		t.Fatalf("expected 1 flow to survive trim, got %d", len(flows))
	}
	if flows[0].Key.PortA != 3 {
		t.Errorf("expected the recent flow to survive, got port_a=%d", flows[0].Key.PortA)
	}
}
