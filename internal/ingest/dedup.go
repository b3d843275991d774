/**
 * Packet Deduplicator.
 *
 * Drops packets identical to one seen within a 1ms window, hashed from the
 * 5-tuple, total length and IP identification field. Bounded at 10,000
 * entries with FIFO eviction: this is a rolling window, not an exact set.
 */

package ingest

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

const (
	dedupMaxEntries = 10000
	dedupWindow     = time.Millisecond
)

type dedupEntry struct {
	hash   uint64
	seenAt time.Time
}

// Deduplicator tracks recently admitted packet hashes. Admit is
// serialized by an internal mutex, so concurrent calls are safe.
type Deduplicator struct {
	mu      sync.Mutex
	entries map[uint64]time.Time
	order   []dedupEntry
}

// NewDeduplicator returns an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{entries: make(map[uint64]time.Time, dedupMaxEntries)}
}

// Admit reports whether pp is new within the current 1ms window. A true
// return also records pp's hash; a false return means pp is a duplicate
// and should be dropped without reaching the flow table.
func (d *Deduplicator) Admit(pp *model.ParsedPacket) bool {
	h := dedupHash(pp)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictExpired(pp.Timestamp)

	if seenAt, ok := d.entries[h]; ok && pp.Timestamp.Sub(seenAt) < dedupWindow {
		return false
	}

	d.entries[h] = pp.Timestamp
	d.order = append(d.order, dedupEntry{hash: h, seenAt: pp.Timestamp})
	if len(d.order) > dedupMaxEntries {
		oldest := d.order[0]
		d.order = d.order[1:]
		if d.entries[oldest.hash] == oldest.seenAt {
			delete(d.entries, oldest.hash)
		}
	}

	return true
}

// evictExpired drops entries older than the dedup window, bounding lookup
// cost and keeping the set a true rolling window rather than a sticky one.
func (d *Deduplicator) evictExpired(now time.Time) {
	cut := 0
	for cut < len(d.order) && now.Sub(d.order[cut].seenAt) >= dedupWindow {
		if d.entries[d.order[cut].hash] == d.order[cut].seenAt {
			delete(d.entries, d.order[cut].hash)
		}
		cut++
	}
	if cut > 0 {
		d.order = d.order[cut:]
	}
}

func dedupHash(pp *model.ParsedPacket) uint64 {
	h := fnv.New64a()
	h.Write([]byte(pp.Protocol))
	h.Write([]byte(pp.SrcIP))
	h.Write([]byte(strconv.Itoa(int(pp.SrcPort))))
	h.Write([]byte(pp.DstIP))
	h.Write([]byte(strconv.Itoa(int(pp.DstPort))))
	h.Write([]byte(strconv.Itoa(pp.Length)))
	h.Write([]byte(strconv.Itoa(int(pp.IPID))))
	return h.Sum64()
}
