/**
 * RTT Sampling.
 *
 * Opportunistically pairs a data segment's terminal sequence number with
 * the peer's ACK of that sequence, within a 2s correlation window.
 * TCP-only: UDP/ICMP carry no acknowledgment signal to correlate against.
 */

package flow

import (
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

const (
	rttMaxSamples  = 32
	rttCorrelation = 2 * time.Second
)

// sampleRTT records a pending segment or resolves one into an RTT sample.
func sampleRTT(f *model.Flow, pp *model.ParsedPacket, srcIsA bool) {
	if !pp.IsTCP() {
		return
	}

	// A data-carrying segment creates a pending entry keyed by the sequence
	// number just past its payload (the ack the peer must eventually send).
	if len(pp.Payload) > 0 {
		expectAck := pp.Seq + uint32(len(pp.Payload))
		f.SetPendingRTT(expectAck, pp.Timestamp)
	}

	if pp.Flags.Has(model.FlagACK) {
		if sentAt, ok := f.TakePendingRTT(pp.Ack); ok {
			if pp.Timestamp.After(sentAt) && pp.Timestamp.Sub(sentAt) <= rttCorrelation {
				recordRTTSample(f, sentAt, pp.Timestamp.Sub(sentAt))
			}
		}
	}
}

func recordRTTSample(f *model.Flow, observed time.Time, value time.Duration) {
	f.RTTSamples = append(f.RTTSamples, model.RTTSample{Observed: observed, Value: value})
	if len(f.RTTSamples) > rttMaxSamples {
		f.RTTSamples = f.RTTSamples[len(f.RTTSamples)-rttMaxSamples:]
	}

	var sum, max time.Duration
	for _, s := range f.RTTSamples {
		sum += s.Value
		if s.Value > max {
			max = s.Value
		}
	}
	f.RTTAvg = sum / time.Duration(len(f.RTTSamples))
	f.RTTMax = max
}
