/**
 * Prometheus Metrics.
 *
 * A single process-wide registry of capture-health and pipeline gauges
 * and counters, built once via Get() and threaded through every stage
 * that needs to record something.
 */

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds every metric the daemon exports.
type Registry struct {
	PacketsReceived prometheus.Counter
	PacketsDropped  *prometheus.CounterVec // reason: malformed, parse_rejected

	DedupDrops  prometheus.Counter
	SampleDrops prometheus.Counter

	QueueDepth *prometheus.GaugeVec   // queue: packet, flow
	QueueDrops *prometheus.CounterVec // queue: packet, flow

	FlowsActive    prometheus.Gauge
	FlowsFinalized *prometheus.CounterVec // state: the flow's TCPState at finalization (CLOSED, RESET, NEW, ...)

	ThreatsRaised *prometheus.CounterVec // category, severity

	PersistenceBatches prometheus.Counter
	PersistenceDropped *prometheus.CounterVec // kind: flow, threat, bucket
	PersistenceDegraded prometheus.Gauge

	CaptureInterfaceUp prometheus.Gauge
}

// Get returns the global metrics registry, creating it on first use.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.PacketsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netscope_packets_received_total",
		Help: "Total packets read off the capture interface",
	})

	r.PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netscope_packets_dropped_total",
		Help: "Packets dropped before or during parsing",
	}, []string{"reason"})

	r.DedupDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netscope_ingest_dedup_drops_total",
		Help: "Packets dropped by the ingest deduplicator",
	})

	r.SampleDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netscope_ingest_sample_drops_total",
		Help: "Packets dropped by the ingest sampler",
	})

	r.QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netscope_queue_depth",
		Help: "Current depth of a bounded pipeline queue",
	}, []string{"queue"})

	r.QueueDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netscope_queue_drops_total",
		Help: "Items dropped from a bounded pipeline queue under backpressure",
	}, []string{"queue"})

	r.FlowsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netscope_flows_active",
		Help: "Number of flows currently held in the flow table",
	})

	r.FlowsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netscope_flows_finalized_total",
		Help: "Flows finalized and handed to the persistence sink",
	}, []string{"state"})

	r.ThreatsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netscope_threats_raised_total",
		Help: "Threats raised by the rule engine",
	}, []string{"category", "severity"})

	r.PersistenceBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netscope_persistence_batches_total",
		Help: "Batches successfully committed by the persistence sink",
	})

	r.PersistenceDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netscope_persistence_overflow_dropped_total",
		Help: "Rows dropped by the sink's bounded overflow buffer",
	}, []string{"kind"})

	r.PersistenceDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netscope_persistence_degraded",
		Help: "1 when the persistence sink has exhausted retries on its last batch",
	})

	r.CaptureInterfaceUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netscope_capture_interface_up",
		Help: "1 when the capture interface is open and reading",
	})

	return r
}
