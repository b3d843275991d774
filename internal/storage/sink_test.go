package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// fakeStorage records saved batches without touching a real database, so
// the sink's batching/flush timing can be tested independently of SQLite.
type fakeStorage struct {
	mu        sync.Mutex
	flowCalls [][]*model.Flow
}

func (f *fakeStorage) Close() error   { return nil }
func (f *fakeStorage) Migrate() error { return nil }

func (f *fakeStorage) SaveDevice(*model.Device) error         { return nil }
func (f *fakeStorage) GetDevice(string) (*model.Device, error) { return nil, nil }
func (f *fakeStorage) ListDevices() ([]*model.Device, error)  { return nil, nil }

func (f *fakeStorage) SaveFlows(flows []*model.Flow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]*model.Flow, len(flows))
	copy(batch, flows)
	f.flowCalls = append(f.flowCalls, batch)
	return nil
}
func (f *fakeStorage) ListFlows(FlowFilter) ([]*model.Flow, error) { return nil, nil }

func (f *fakeStorage) SaveThreats([]*model.Threat) error                { return nil }
func (f *fakeStorage) ListThreats(ThreatFilter) ([]*model.Threat, error) { return nil, nil }
func (f *fakeStorage) DismissThreat(string) error                       { return nil }

func (f *fakeStorage) SaveBuckets([]*model.MinuteBucket) error { return nil }
func (f *fakeStorage) TopBuckets(time.Time, int) ([]*model.MinuteBucket, error) {
	return nil, nil
}

func (f *fakeStorage) TrimOlderThan(time.Time) error { return nil }

func (f *fakeStorage) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.flowCalls)
}

func TestSinkFlushesOnSizeThreshold(t *testing.T) {
	store := &fakeStorage{}
	sink := NewSink(store)

	for i := 0; i < sinkBatchSize; i++ {
		sink.EnqueueFlow(&model.Flow{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for store.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a size-triggered flush within 1s")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestSinkOverflowBufferDropsOldest(t *testing.T) {
	store := &fakeStorage{}
	sink := NewSink(store)

	for i := 0; i < sinkOverflowCap+10; i++ {
		sink.EnqueueFlow(&model.Flow{})
	}

	flowsDropped, _, _ := sink.Dropped()
	if flowsDropped != 10 {
		t.Errorf("expected 10 dropped flows, got %d", flowsDropped)
	}
	if sink.flows.len() != sinkOverflowCap {
		t.Errorf("expected buffer capped at %d, got %d", sinkOverflowCap, sink.flows.len())
	}
}
