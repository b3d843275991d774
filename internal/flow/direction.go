/**
 * Per-Direction Statistics.
 *
 * Updates byte/packet counters, retransmission detection and inter-arrival
 * jitter for whichever side of the flow pp belongs to.
 */

package flow

import (
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

const jitterAlpha = 0.125

// applyDirectionStats updates the A or B side of f for an arriving packet.
func applyDirectionStats(f *model.Flow, pp *model.ParsedPacket, srcIsA bool) {
	dir := &f.A
	if !srcIsA {
		dir = &f.B
	}

	dir.Bytes += uint64(pp.Length)
	dir.Packets++
	f.FlagsUnion |= pp.Flags

	if pp.IsTCP() && len(pp.Payload) > 0 {
		if dir.SeqInitialized && pp.Seq <= dir.MaxSeqSeen {
			dir.Retransmissions++
		}
		if !dir.SeqInitialized || pp.Seq > dir.MaxSeqSeen {
			dir.MaxSeqSeen = pp.Seq
			dir.SeqInitialized = true
		}
		dir.LastSeq = pp.Seq
	}

	if pp.Window > 0 {
		if dir.WindowMin == 0 || pp.Window < dir.WindowMin {
			dir.WindowMin = pp.Window
		}
		if pp.Window > dir.WindowMax {
			dir.WindowMax = pp.Window
		}
	}

	if !dir.LastArrival.IsZero() {
		interArrival := pp.Timestamp.Sub(dir.LastArrival).Seconds()
		if interArrival < 0 {
			interArrival = 0
		}
		if dir.JitterEWMA == 0 {
			dir.JitterEWMA = interArrival
		} else {
			dir.JitterEWMA = jitterAlpha*interArrival + (1-jitterAlpha)*dir.JitterEWMA
		}
	}
	dir.LastArrival = pp.Timestamp
}
