package query

import (
	"testing"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
	"github.com/netscope-observatory/netscope-observatory/internal/storage"
)

type fakeStore struct {
	flows   []*model.Flow
	threats []*model.Threat
}

func (f *fakeStore) Close() error   { return nil }
func (f *fakeStore) Migrate() error { return nil }

func (f *fakeStore) SaveDevice(*model.Device) error          { return nil }
func (f *fakeStore) GetDevice(string) (*model.Device, error) { return nil, nil }
func (f *fakeStore) ListDevices() ([]*model.Device, error)   { return nil, nil }

func (f *fakeStore) SaveFlows([]*model.Flow) error { return nil }
func (f *fakeStore) ListFlows(storage.FlowFilter) ([]*model.Flow, error) {
	return f.flows, nil
}

func (f *fakeStore) SaveThreats([]*model.Threat) error { return nil }
func (f *fakeStore) ListThreats(storage.ThreatFilter) ([]*model.Threat, error) {
	return f.threats, nil
}
func (f *fakeStore) DismissThreat(string) error { return nil }

func (f *fakeStore) SaveBuckets([]*model.MinuteBucket) error { return nil }
func (f *fakeStore) TopBuckets(time.Time, int) ([]*model.MinuteBucket, error) {
	return nil, nil
}

func (f *fakeStore) TrimOlderThan(time.Time) error { return nil }

func TestListFlowsAppliesApplicationFilter(t *testing.T) {
	store := &fakeStore{flows: []*model.Flow{
		{Application: "youtube", Key: model.FlowKey{Protocol: "TCP"}},
		{Application: "netflix", Key: model.FlowKey{Protocol: "TCP"}},
	}}
	svc := New(store, nil)

	flows, err := svc.ListFlows(FlowFilter{Application: "netflix"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flows) != 1 || flows[0].Application != "netflix" {
		t.Errorf("expected 1 netflix flow, got %+v", flows)
	}
}

func TestListFlowsAppliesSNISubstringFilter(t *testing.T) {
	store := &fakeStore{flows: []*model.Flow{
		{ServerName: "api.github.com"},
		{ServerName: "googlevideo.com"},
	}}
	svc := New(store, nil)

	flows, err := svc.ListFlows(FlowFilter{SNIContains: "github"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flows) != 1 || flows[0].ServerName != "api.github.com" {
		t.Errorf("expected 1 github flow, got %+v", flows)
	}
}

func TestCaptureHealthWithNoSourceReturnsZeroValue(t *testing.T) {
	svc := New(&fakeStore{}, nil)
	h := svc.CaptureHealth()
	if h.Running {
		t.Error("expected zero-value health when no source is wired")
	}
}
