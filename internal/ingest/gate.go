/**
 * Ingest Gate.
 *
 * Combines deduplication and sampling into the single pre-flow-table stage
 * sitting between the parser and the flow table. The pipeline gives each
 * worker its own gate; since workers share one packet queue, duplicates
 * handled by different workers are not detected, and sampling counts
 * packets per worker rather than across the whole capture.
 */

package ingest

import (
	"sync/atomic"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// Gate is the combined dedup+sample admission stage.
type Gate struct {
	dedup   *Deduplicator
	sampler *Sampler

	dedupDrops  atomic.Uint64
	sampleDrops atomic.Uint64
}

// NewGate builds a Gate at the given sampling rate.
func NewGate(samplingRate float64) *Gate {
	return &Gate{
		dedup:   NewDeduplicator(),
		sampler: NewSampler(samplingRate),
	}
}

// Admit applies dedup then sampling, in that order: a duplicate is dropped
// before it can consume a sampling slot.
func (g *Gate) Admit(pp *model.ParsedPacket) bool {
	if !g.dedup.Admit(pp) {
		g.dedupDrops.Add(1)
		return false
	}
	if !g.sampler.Admit() {
		g.sampleDrops.Add(1)
		return false
	}
	return true
}

// Stats reports cumulative drop counts for capture-health reporting.
func (g *Gate) Stats() (dedupDrops, sampleDrops uint64) {
	return g.dedupDrops.Load(), g.sampleDrops.Load()
}
