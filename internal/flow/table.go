/**
 * Flow Table.
 *
 * Sharded, lock-striped concurrent map from canonical flow key to flow
 * state. Each shard owns its own mutex so packets belonging to different
 * flows never contend on the same lock, matching spec.md's concurrency
 * model for line-rate ingestion.
 */

package flow

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// Config bounds the table's size and idle-timeout behavior.
type Config struct {
	ShardCount         int
	MaxFlows           int
	IdleTimeoutTCP     time.Duration
	IdleTimeoutUDP     time.Duration
	IdleTimeoutHandshake time.Duration
	MaxDuration        time.Duration
}

type shard struct {
	mu    sync.Mutex
	flows map[model.FlowKey]*model.Flow
}

// Table is the sharded flow table.
type Table struct {
	cfg    Config
	shards []*shard

	size int64 // approximate, updated via atomic-free best-effort counting under shard locks
	szMu sync.Mutex
}

// NewTable builds a Table with cfg.ShardCount shards (at least 1).
func NewTable(cfg Config) *Table {
	if cfg.ShardCount < 1 {
		cfg.ShardCount = 1
	}
	t := &Table{cfg: cfg, shards: make([]*shard, cfg.ShardCount)}
	for i := range t.shards {
		t.shards[i] = &shard{flows: make(map[model.FlowKey]*model.Flow)}
	}
	return t
}

func (t *Table) shardFor(key model.FlowKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.String()))
	return t.shards[h.Sum32()%uint32(len(t.shards))]
}

// UpdateResult reports what Update did, for caller-side metrics and
// enrichment triggers.
type UpdateResult struct {
	Flow       *model.Flow
	IsNew      bool
	SrcIsA     bool
	Finalized  bool
}

// Update applies pp to its flow, creating the flow if this is its first
// packet. It returns the touched flow and whether it was just created.
func (t *Table) Update(pp *model.ParsedPacket) (UpdateResult, bool) {
	if pp.SrcIP == "" || pp.DstIP == "" {
		return UpdateResult{}, false
	}
	key, srcIsA := model.CanonicalKey(pp.Protocol, pp.SrcIP, pp.SrcPort, pp.DstIP, pp.DstPort)

	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	f, exists := s.flows[key]
	isNew := !exists
	if !exists {
		if t.atCapacity() {
			t.evictOneForSpace(s)
		}
		f = &model.Flow{
			Key:              key,
			FirstSeen:        pp.Timestamp,
			State:            model.StateNew,
			ThreatCategories: make(map[string]struct{}),
		}
		s.flows[key] = f
		t.incSize()
	}

	f.LastSeen = pp.Timestamp
	applyDirectionStats(f, pp, srcIsA)
	applyTCPState(f, pp, srcIsA)
	sampleRTT(f, pp, srcIsA)

	return UpdateResult{Flow: f, IsNew: isNew, SrcIsA: srcIsA}, true
}

// Get returns the flow for key without mutating it, or nil if absent.
func (t *Table) Get(key model.FlowKey) *model.Flow {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flows[key]
}

// Delete removes key from the table, returning the removed flow if present.
func (t *Table) Delete(key model.FlowKey) *model.Flow {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[key]
	if ok {
		delete(s.flows, key)
		t.decSize()
	}
	return f
}

// Snapshot returns a point-in-time copy of every flow pointer currently in
// the table. Callers must not mutate the returned flows' fields directly;
// treat them as read-only (the table may still be writing to them).
func (t *Table) Snapshot() []*model.Flow {
	out := make([]*model.Flow, 0, t.Size())
	for _, s := range t.shards {
		s.mu.Lock()
		for _, f := range s.flows {
			out = append(out, f)
		}
		s.mu.Unlock()
	}
	return out
}

// Size reports the approximate number of tracked flows.
func (t *Table) Size() int {
	t.szMu.Lock()
	defer t.szMu.Unlock()
	return int(t.size)
}

func (t *Table) incSize() {
	t.szMu.Lock()
	t.size++
	t.szMu.Unlock()
}

func (t *Table) decSize() {
	t.szMu.Lock()
	t.size--
	t.szMu.Unlock()
}

func (t *Table) atCapacity() bool {
	return t.cfg.MaxFlows > 0 && t.Size() >= t.cfg.MaxFlows
}

// evictOneForSpace drops the oldest non-ESTABLISHED flow in s to make room,
// falling back to the oldest flow overall (preferring to keep ESTABLISHED
// flows alive per spec.md's eviction preference). Must be called with
// s.mu held.
func (t *Table) evictOneForSpace(s *shard) {
	var oldestKey model.FlowKey
	var oldestTime time.Time
	var oldestEstablishedKey model.FlowKey
	var oldestEstablishedTime time.Time
	haveOldest := false
	haveEstablished := false

	for k, f := range s.flows {
		if f.State == model.StateEstablished {
			if !haveEstablished || f.LastSeen.Before(oldestEstablishedTime) {
				oldestEstablishedKey, oldestEstablishedTime = k, f.LastSeen
				haveEstablished = true
			}
			continue
		}
		if !haveOldest || f.LastSeen.Before(oldestTime) {
			oldestKey, oldestTime = k, f.LastSeen
			haveOldest = true
		}
	}

	if haveOldest {
		delete(s.flows, oldestKey)
		t.decSize()
		return
	}
	if haveEstablished {
		delete(s.flows, oldestEstablishedKey)
		t.decSize()
	}
}
