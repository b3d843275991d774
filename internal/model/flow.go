/**
 * Flow Model.
 *
 * Defines the canonical flow key and the long-lived aggregate that the
 * flow table maintains for each bidirectional transport conversation.
 */

package model

import (
	"fmt"
	"time"
)

// TCPState is the union TCP connection state tracked across both directions.
type TCPState string

const (
	StateNew         TCPState = "NEW"
	StateHandshake   TCPState = "HANDSHAKE"
	StateEstablished TCPState = "ESTABLISHED"
	StateClosing     TCPState = "CLOSING"
	StateClosed      TCPState = "CLOSED"
	StateReset       TCPState = "RESET"
)

// FlowKey canonically identifies a bidirectional flow: protocol plus the
// two (ip, port) endpoints ordered lexicographically so that either
// direction of the same exchange maps to the same key.
type FlowKey struct {
	Protocol string
	IPA      string
	PortA    uint16
	IPB      string
	PortB    uint16
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%s:%d<->%s:%d", k.Protocol, k.IPA, k.PortA, k.IPB, k.PortB)
}

// CanonicalKey builds the canonical FlowKey for an observed packet's 5-tuple
// and reports whether the packet's source endpoint is side A (true) or side
// B (false) of the canonical key — i.e. the observed direction.
func CanonicalKey(protocol, srcIP string, srcPort uint16, dstIP string, dstPort uint16) (FlowKey, bool) {
	if srcIP < dstIP || (srcIP == dstIP && srcPort <= dstPort) {
		return FlowKey{Protocol: protocol, IPA: srcIP, PortA: srcPort, IPB: dstIP, PortB: dstPort}, true
	}
	return FlowKey{Protocol: protocol, IPA: dstIP, PortA: dstPort, IPB: srcIP, PortB: srcPort}, false
}

// DirectionStats accumulates per-direction counters for one side of a flow.
type DirectionStats struct {
	Bytes           uint64
	Packets         uint64
	Retransmissions uint64
	LastSeq         uint32
	MaxSeqSeen      uint32
	SeqInitialized  bool
	WindowMin       uint16
	WindowMax       uint16
	LastArrival     time.Time
	JitterEWMA      float64 // seconds
}

// RTTSample is one opportunistic TCP round-trip measurement.
type RTTSample struct {
	Observed time.Time
	Value    time.Duration
}

// Flow is the in-memory aggregate owned exclusively by the flow table
// until FinalizedAt is set, at which point ownership transfers to the
// persistence sink and no field may change again.
type Flow struct {
	Key FlowKey

	FirstSeen   time.Time
	LastSeen    time.Time
	FinalizedAt time.Time // zero until finalized

	// A is the canonical side whose (ip, port) sorts first (see
	// CanonicalKey); B is the other side.
	A DirectionStats
	B DirectionStats

	State      TCPState
	FlagsUnion TCPFlags

	RTTSamples  []RTTSample
	RTTAvg      time.Duration
	RTTMax      time.Duration

	ServerName     string // first SNI or HTTP Host seen wins; DNS-reverse name only until then
	Application    string
	JA3            string
	JA3Application string
	RemoteCountry  string
	RemoteCity     string
	RemoteASN      string

	LocalDeviceID  string
	RemoteDeviceID string

	ThreatScore      float64
	ThreatCategories map[string]struct{}

	// pendingRTT tracks an unacked data segment awaiting RTT correlation,
	// keyed by the sequence number just past its payload.
	pendingRTT map[uint32]time.Time

	// finSeenA/finSeenB record whether each side has sent a FIN, so the
	// state machine can detect full (both-sided) teardown.
	finSeenA bool
	finSeenB bool
}

// MarkFIN records that side A (if srcIsA) or B sent a FIN, returning
// whether both sides have now done so.
func (f *Flow) MarkFIN(srcIsA bool) bool {
	if srcIsA {
		f.finSeenA = true
	} else {
		f.finSeenB = true
	}
	return f.finSeenA && f.finSeenB
}

// SetPendingRTT records a data segment awaiting acknowledgment at seq.
func (f *Flow) SetPendingRTT(seq uint32, sentAt time.Time) {
	if f.pendingRTT == nil {
		f.pendingRTT = make(map[uint32]time.Time)
	}
	f.pendingRTT[seq] = sentAt

	// Bound the correlation map: a peer that never acks leaves a stale
	// entry behind forever otherwise.
	if len(f.pendingRTT) > 64 {
		var oldestSeq uint32
		var oldestTime time.Time
		first := true
		for s, t := range f.pendingRTT {
			if first || t.Before(oldestTime) {
				oldestSeq, oldestTime = s, t
				first = false
			}
		}
		delete(f.pendingRTT, oldestSeq)
	}
}

// TakePendingRTT removes and returns the send time recorded for ack, if any.
func (f *Flow) TakePendingRTT(ack uint32) (time.Time, bool) {
	if f.pendingRTT == nil {
		return time.Time{}, false
	}
	sentAt, ok := f.pendingRTT[ack]
	if ok {
		delete(f.pendingRTT, ack)
	}
	return sentAt, ok
}

// Finalized reports whether the flow has been handed off to storage.
func (f *Flow) Finalized() bool { return !f.FinalizedAt.IsZero() }

// Duration returns the observed lifetime of the flow (LastSeen minus
// FirstSeen); it is not capped at flow_max_duration.
func (f *Flow) Duration() time.Duration { return f.LastSeen.Sub(f.FirstSeen) }

// TotalBytes is the sum of both directions' byte counts.
func (f *Flow) TotalBytes() uint64 { return f.A.Bytes + f.B.Bytes }

// AddThreatCategory records that a category has contributed to this flow's
// running score; idempotent across repeated evaluation (see threat engine).
func (f *Flow) AddThreatCategory(cat string) {
	if f.ThreatCategories == nil {
		f.ThreatCategories = make(map[string]struct{})
	}
	f.ThreatCategories[cat] = struct{}{}
}

// MinuteBucket is one persisted, append-only rollup row.
type MinuteBucket struct {
	MinuteEpoch int64
	DeviceID    string
	Protocol    string
	BytesIn     uint64
	BytesOut    uint64
	Packets     uint64
	FlowCount   uint64
}
