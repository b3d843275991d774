/**
 * Flow Janitor.
 *
 * Ticker-driven sweep that finalizes idle, closed, reset and over-age
 * flows. Runs once per second; each finalized flow is removed from the
 * table and handed to the caller's sink function (enrichment + threat
 * evaluation + persistence happen downstream, not here).
 */

package flow

import (
	"context"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

const janitorInterval = time.Second

// SinkFunc receives a flow the instant the janitor decides it is done.
type SinkFunc func(*model.Flow)

// Janitor periodically scans a Table for flows ready to finalize.
type Janitor struct {
	table *Table
	cfg   Config
	sink  SinkFunc
}

// NewJanitor builds a Janitor over table using cfg's idle-timeout policy.
func NewJanitor(table *Table, cfg Config, sink SinkFunc) *Janitor {
	return &Janitor{table: table, cfg: cfg, sink: sink}
}

// Run blocks, sweeping every second until ctx is canceled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.sweep(now)
		}
	}
}

// sweep finalizes every flow in the table that is ready, per spec.md's
// trigger set: TCP closed/reset, protocol/state idle timeout, or a
// flow_max_duration cap.
func (j *Janitor) sweep(now time.Time) {
	for _, f := range j.table.Snapshot() {
		if !j.ready(f, now) {
			continue
		}
		if removed := j.table.Delete(f.Key); removed != nil {
			removed.FinalizedAt = now
			if j.sink != nil {
				j.sink(removed)
			}
		}
	}
}

func (j *Janitor) ready(f *model.Flow, now time.Time) bool {
	if f.State == model.StateClosed || f.State == model.StateReset {
		return true
	}

	if j.cfg.MaxDuration > 0 && now.Sub(f.FirstSeen) >= j.cfg.MaxDuration {
		return true
	}

	idle := now.Sub(f.LastSeen)
	switch {
	case f.Key.Protocol == "UDP":
		return idle >= j.cfg.IdleTimeoutUDP
	case f.State == model.StateNew || f.State == model.StateHandshake:
		return idle >= j.cfg.IdleTimeoutHandshake
	default:
		return idle >= j.cfg.IdleTimeoutTCP
	}
}
