/**
 * Persistence Sink.
 *
 * Batches finalized flows, threats and minute-bucket rollups off the hot
 * path and flushes them to Storage on whichever comes first: 500
 * accumulated rows or a 2-second tick. A write that fails with
 * PersistenceTransient is retried with exponential backoff; repeated
 * failure degrades the sink (counted, not fatal) unless Storage itself
 * reports PersistenceFatal, which bubbles to the caller's Run.
 */

package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/metrics"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

const (
	sinkBatchSize   = 500
	sinkFlushPeriod = 2 * time.Second
	sinkOverflowCap = 10_000

	retryBaseDelay = 100 * time.Millisecond
	retryMaxTries  = 5 // 100,200,400,800,1600ms
)

// overflowBuffer is a FIFO-bounded queue of pending rows of one kind; the
// sink keeps a separate buffer per row kind, so a burst in one kind drops
// only that kind's oldest rows.
type overflowBuffer[T any] struct {
	mu      sync.Mutex
	items   []T
	dropped atomic.Uint64
}

func (b *overflowBuffer[T]) push(item T, kind string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
	if len(b.items) > sinkOverflowCap {
		b.items = b.items[1:]
		b.dropped.Add(1)
		metrics.Get().PersistenceDropped.WithLabelValues(kind).Inc()
	}
}

func (b *overflowBuffer[T]) drainBatch(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil
	}
	n := max
	if n > len(b.items) {
		n = len(b.items)
	}
	batch := b.items[:n]
	b.items = b.items[n:]
	return batch
}

func (b *overflowBuffer[T]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Sink is the pipeline's single persistence-writer goroutine.
type Sink struct {
	store Storage

	flows   overflowBuffer[*model.Flow]
	threats overflowBuffer[*model.Threat]
	buckets overflowBuffer[*model.MinuteBucket]

	degraded atomic.Bool
}

// NewSink builds a Sink writing to store.
func NewSink(store Storage) *Sink {
	return &Sink{store: store}
}

// EnqueueFlow queues a finalized flow for persistence.
func (s *Sink) EnqueueFlow(f *model.Flow) { s.flows.push(f, "flow") }

// EnqueueThreat queues a new or updated threat for persistence.
func (s *Sink) EnqueueThreat(t *model.Threat) { s.threats.push(t, "threat") }

// EnqueueBucket queues a minute-bucket rollup for persistence.
func (s *Sink) EnqueueBucket(b *model.MinuteBucket) { s.buckets.push(b, "bucket") }

// Degraded reports whether the sink has exhausted retries on a recent
// batch and is now shedding persistence rather than blocking the pipeline.
func (s *Sink) Degraded() bool { return s.degraded.Load() }

// Dropped reports the number of rows discarded by each kind's bounded
// overflow buffer since startup.
func (s *Sink) Dropped() (flows, threats, buckets uint64) {
	return s.flows.dropped.Load(), s.threats.dropped.Load(), s.buckets.dropped.Load()
}

// sinkPollInterval bounds how quickly a size-triggered flush (500 rows)
// can happen between the 2-second time-triggered ticks.
const sinkPollInterval = 100 * time.Millisecond

// Run drains the sink's queues until ctx is cancelled, flushing on the
// 500-row or 2-second boundary, whichever comes first. It returns only on
// a PersistenceFatal error or context cancellation; the caller should
// treat a returned error as grounds for the supervisor's exit 4.
func (s *Sink) Run(ctx context.Context) error {
	poll := time.NewTicker(sinkPollInterval)
	defer poll.Stop()
	lastFlush := time.Now()

	for {
		select {
		case <-ctx.Done():
			s.flush() // best-effort final flush; caller bounds this with its own deadline
			return nil
		case now := <-poll.C:
			if s.readyForSizeFlush() || now.Sub(lastFlush) >= sinkFlushPeriod {
				if err := s.flush(); err != nil {
					return err
				}
				lastFlush = now
			}
		}
	}
}

func (s *Sink) readyForSizeFlush() bool {
	return s.flows.len() >= sinkBatchSize || s.threats.len() >= sinkBatchSize || s.buckets.len() >= sinkBatchSize
}

// flush drains and persists one batch of each row kind, retrying
// transient failures with exponential backoff before degrading.
func (s *Sink) flush() error {
	if err := s.flushFlows(); err != nil {
		return err
	}
	if err := s.flushThreats(); err != nil {
		return err
	}
	if err := s.flushBuckets(); err != nil {
		return err
	}
	metrics.Get().PersistenceBatches.Inc()
	return nil
}

func (s *Sink) flushFlows() error {
	batch := s.flows.drainBatch(sinkBatchSize)
	if batch == nil {
		return nil
	}
	return s.withRetry(func() error { return s.store.SaveFlows(batch) })
}

func (s *Sink) flushThreats() error {
	batch := s.threats.drainBatch(sinkBatchSize)
	if batch == nil {
		return nil
	}
	return s.withRetry(func() error { return s.store.SaveThreats(batch) })
}

func (s *Sink) flushBuckets() error {
	batch := s.buckets.drainBatch(sinkBatchSize)
	if batch == nil {
		return nil
	}
	return s.withRetry(func() error { return s.store.SaveBuckets(batch) })
}

// withRetry retries a transient-failing write with exponential backoff
// (100ms,200ms,400ms,800ms,1.6s). A PersistenceFatal error is returned
// immediately. Exhausting retries on a transient error marks the sink
// degraded and swallows the error, per spec.md §7's "fall back to
// PersistenceDegraded" policy.
func (s *Sink) withRetry(write func() error) error {
	delay := retryBaseDelay
	for attempt := 0; attempt < retryMaxTries; attempt++ {
		err := write()
		if err == nil {
			s.setDegraded(false)
			return nil
		}

		var kerr *model.KindError
		if errors.As(err, &kerr) && kerr.Kind == model.ErrPersistenceFatal {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	s.setDegraded(true)
	return nil
}

func (s *Sink) setDegraded(v bool) {
	s.degraded.Store(v)
	if v {
		metrics.Get().PersistenceDegraded.Set(1)
	} else {
		metrics.Get().PersistenceDegraded.Set(0)
	}
}
