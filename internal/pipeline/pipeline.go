/**
 * Capture Pipeline.
 *
 * Wires the reader, parser, ingest gate, flow table, enrichment, threat
 * engine and persistence sink into the daemon's steady-state concurrency
 * model: one reader goroutine, a worker pool that shares one bounded packet
 * queue (frames are not routed by flow, so packets of one flow may be
 * handled by different workers and are not guaranteed to reach the flow
 * table in arrival order), one feeder goroutine
 * draining a bounded flow queue into the persistence sink, and a
 * one-second janitor sweep. Both bounded queues drop the oldest entry
 * under sustained backpressure rather than growing or blocking the reader.
 */

package pipeline

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/capture"
	"github.com/netscope-observatory/netscope-observatory/internal/config"
	"github.com/netscope-observatory/netscope-observatory/internal/device"
	"github.com/netscope-observatory/netscope-observatory/internal/enrich"
	"github.com/netscope-observatory/netscope-observatory/internal/flow"
	"github.com/netscope-observatory/netscope-observatory/internal/ingest"
	"github.com/netscope-observatory/netscope-observatory/internal/metrics"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
	"github.com/netscope-observatory/netscope-observatory/internal/notify"
	"github.com/netscope-observatory/netscope-observatory/internal/parser"
	"github.com/netscope-observatory/netscope-observatory/internal/query"
	"github.com/netscope-observatory/netscope-observatory/internal/storage"
)

// shutdownGrace bounds how long Run waits for in-flight work to drain once
// its context is canceled, per spec.md §8's graceful-shutdown deadline.
const shutdownGrace = 10 * time.Second

// degradedDropThreshold is the fraction of packets dropped over a rolling
// window past which the pipeline publishes a CaptureDegraded notification.
const degradedDropThreshold = 0.01

// ThreatEngine is the one method pipeline needs from internal/threat's
// Engine; kept as a local interface so this package doesn't need to import
// internal/threat just to name its type.
type ThreatEngine interface {
	Evaluate(f *model.Flow, now time.Time) []model.Threat
}

// Pipeline owns every moving part of one capture session.
type Pipeline struct {
	cfg    *config.Config
	reader *capture.Reader
	parser *parser.Parser

	gates []*ingest.Gate // one per worker, avoids cross-worker dedup/sample contention
	table *flow.Table
	jan   *flow.Janitor

	enricher *enrich.Enricher
	devices  *device.Registry
	threats  ThreatEngine
	store    storage.Storage
	sink     *storage.Sink
	hub      *notify.Hub

	packetQueue chan capture.Frame
	flowQueue   chan *model.Flow

	metrics *metrics.Registry

	packetsReceived uint64
	queueDrops      uint64
	statsMu         sync.Mutex
}

// New builds a Pipeline from cfg. reader must already be open; store must
// already be migrated. geo may be nil to disable geo enrichment. threats
// may be nil to run capture/flow-tracking without threat evaluation.
func New(cfg *config.Config, reader *capture.Reader, store storage.Storage, geo enrich.GeoResolver, threats ThreatEngine, hub *notify.Hub) *Pipeline {
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}

	gates := make([]*ingest.Gate, workers)
	for i := range gates {
		gates[i] = ingest.NewGate(cfg.SamplingRate)
	}

	tableCfg := flow.Config{
		ShardCount:           cfg.ShardCount,
		MaxFlows:             cfg.MaxFlows,
		IdleTimeoutTCP:       cfg.FlowIdleTimeoutTCP,
		IdleTimeoutUDP:       cfg.FlowIdleTimeoutUDP,
		IdleTimeoutHandshake: cfg.FlowIdleTimeoutHandshake,
		MaxDuration:          cfg.FlowMaxDuration,
	}
	table := flow.NewTable(tableCfg)

	p := &Pipeline{
		cfg:         cfg,
		reader:      reader,
		parser:      parser.New(reader.LinkType(), parser.DefaultPorts()),
		gates:       gates,
		table:       table,
		enricher:    enrich.New(geo, cfg.LocalSubnets),
		devices:     device.New(),
		threats:     threats,
		store:       store,
		sink:        storage.NewSink(store),
		hub:         hub,
		packetQueue: make(chan capture.Frame, cfg.PacketQueueDepth),
		flowQueue:   make(chan *model.Flow, cfg.FlowQueueDepth),
		metrics:     metrics.Get(),
	}
	p.jan = flow.NewJanitor(table, tableCfg, p.onFlowFinalized)
	return p
}

// Run drives the pipeline until ctx is canceled, the capture handle is
// lost, or the sink fails fatally, then drains in-flight work within
// shutdownGrace before returning. It returns InterfaceUnavailable when the
// capture handle was lost while ctx was still live, or a PersistenceFatal
// bubbled up from the sink, which the supervisor treats as grounds for
// exit code 4.
func (p *Pipeline) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readLoop(runCtx)
		// readLoop returning while the parent ctx is still live means the
		// capture handle itself died; tear the rest of the pipeline down
		// so Run can report it to the supervisor instead of hanging.
		if ctx.Err() == nil {
			cancel()
		}
	}()

	for i := 0; i < len(p.gates); i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.workerLoop(workerID)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.jan.Run(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.sinkFeederLoop(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.sink.Run(runCtx); err != nil {
			select {
			case errCh <- err:
			default:
			}
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.degradedWatchLoop(runCtx)
	}()

	<-runCtx.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
	}

	p.finalizeRemaining()

	if ctx.Err() == nil && p.reader.Lost() {
		return model.NewError(model.ErrInterfaceUnavailable, "capture handle lost", nil)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// readLoop pulls frames off the capture reader and fans them into the
// bounded packet queue, dropping the oldest queued frame under
// backpressure rather than blocking the reader.
func (p *Pipeline) readLoop(ctx context.Context) {
	p.metrics.CaptureInterfaceUp.Set(1)
	defer p.metrics.CaptureInterfaceUp.Set(0)
	defer close(p.packetQueue)

	for frame := range p.reader.Frames(ctx) {
		p.statsMu.Lock()
		p.packetsReceived++
		p.statsMu.Unlock()
		p.metrics.PacketsReceived.Inc()

		select {
		case p.packetQueue <- frame:
		default:
			select {
			case <-p.packetQueue:
				p.recordQueueDrop("packet")
			default:
			}
			select {
			case p.packetQueue <- frame:
			default:
				p.recordQueueDrop("packet")
			}
		}
		p.metrics.QueueDepth.WithLabelValues("packet").Set(float64(len(p.packetQueue)))
	}
}

// workerLoop is one of the fixed-size worker pool, each with its own
// dedup/sample gate so workers never contend on shared gate state.
func (p *Pipeline) workerLoop(workerID int) {
	gate := p.gates[workerID]
	for frame := range p.packetQueue {
		p.processFrame(gate, frame)
	}
}

func (p *Pipeline) processFrame(gate *ingest.Gate, frame capture.Frame) {
	pp, ok := p.parser.Parse(frame.Timestamp, frame.Data)
	if !ok {
		p.metrics.PacketsDropped.WithLabelValues("malformed").Inc()
		return
	}

	if !gate.Admit(&pp) {
		return
	}

	result, ok := p.table.Update(&pp)
	if !ok {
		p.metrics.PacketsDropped.WithLabelValues("parse_rejected").Inc()
		return
	}

	f := result.Flow
	p.enricher.ObservePacket(f, &pp)
	p.attributeDevice(f, &pp)

	if result.IsNew {
		p.metrics.FlowsActive.Inc()
	}

	if f.State == model.StateClosed || f.State == model.StateReset {
		if removed := p.table.Delete(f.Key); removed != nil {
			removed.FinalizedAt = frame.Timestamp
			p.onFlowFinalized(removed)
		}
	}
}

// attributeDevice resolves which end of the flow is local and records a
// sighting against the device registry for that end only.
func (p *Pipeline) attributeDevice(f *model.Flow, pp *model.ParsedPacket) {
	localIP, localMAC, bytesIn, bytesOut := p.localEndpoint(pp)
	if localIP == "" {
		return
	}

	vendor := p.enricher.Vendor.Lookup(localMAC)
	d := p.devices.Observe(localMAC, localIP, vendor, pp.Timestamp, bytesIn, bytesOut)
	f.LocalDeviceID = d.DeviceID

	if d.FlowCount == 1 {
		if d.DeviceType == "generic" && vendor != "" {
			p.devices.SetDeviceType(d.DeviceID, enrich.ClassifyDeviceType(vendor, "", nil))
		}
		p.hub.Publish(notify.Event{Type: notify.NewDevice, Time: pp.Timestamp, DeviceID: d.DeviceID})
	}
}

// localEndpoint decides which side of the packet is the local device, per
// the configured subnet matcher, and reports that side's IP/MAC and the
// byte counts to attribute (this packet's length, directional).
func (p *Pipeline) localEndpoint(pp *model.ParsedPacket) (ip, mac string, bytesIn, bytesOut uint64) {
	srcLocal := p.enricher.Subnets.IsLocal(pp.SrcIP)
	dstLocal := p.enricher.Subnets.IsLocal(pp.DstIP)

	switch {
	case srcLocal && !dstLocal:
		return pp.SrcIP, pp.SrcMAC, 0, uint64(pp.Length)
	case dstLocal && !srcLocal:
		return pp.DstIP, pp.DstMAC, uint64(pp.Length), 0
	case srcLocal && dstLocal:
		// Both local (LAN-internal traffic): attribute to the packet's
		// source side, the only one of the two we have a MAC for here.
		return pp.SrcIP, pp.SrcMAC, 0, uint64(pp.Length)
	default:
		return "", "", 0, 0
	}
}

// onFlowFinalized runs finalization enrichment and threat evaluation on a
// flow the janitor or a state-transition just removed from the table, then
// queues it for persistence.
func (p *Pipeline) onFlowFinalized(f *model.Flow) {
	p.metrics.FlowsActive.Dec()
	p.metrics.FlowsFinalized.WithLabelValues(string(f.State)).Inc()

	p.enricher.Finalize(f)

	now := f.FinalizedAt
	if now.IsZero() {
		now = time.Now()
	}

	if p.threats != nil {
		for _, t := range p.threats.Evaluate(f, now) {
			stored := t
			p.sink.EnqueueThreat(&stored)
			p.metrics.ThreatsRaised.WithLabelValues(string(t.Category), string(t.Severity)).Inc()
			p.devices.SetThreatScore(t.DeviceID, t.Score)
			p.hub.Publish(notify.Event{Type: notify.NewThreat, Time: now, DeviceID: t.DeviceID, ThreatID: t.ID, Detail: t.Summary})
		}
	}

	p.enqueueBucket(f, now)

	select {
	case p.flowQueue <- f:
	default:
		select {
		case <-p.flowQueue:
			p.recordQueueDrop("flow")
		default:
		}
		select {
		case p.flowQueue <- f:
		default:
			p.recordQueueDrop("flow")
		}
	}
	p.metrics.QueueDepth.WithLabelValues("flow").Set(float64(len(p.flowQueue)))

	p.hub.Publish(notify.Event{Type: notify.FlowFinalized, Time: now, FlowKey: f.Key.String()})
}

// sinkFeederLoop drains the bounded flow queue into the persistence sink's
// own (larger, overflow-tolerant) buffer, decoupling the janitor/worker
// producers from the sink's batching cadence.
func (p *Pipeline) sinkFeederLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drainFlowQueue()
			return
		case f, ok := <-p.flowQueue:
			if !ok {
				return
			}
			p.sink.EnqueueFlow(f)
		}
	}
}

func (p *Pipeline) drainFlowQueue() {
	for {
		select {
		case f := <-p.flowQueue:
			p.sink.EnqueueFlow(f)
		default:
			return
		}
	}
}

// enqueueBucket rolls a finalized flow's byte/packet counts into its
// minute-epoch bucket for the flow's attributed local device.
func (p *Pipeline) enqueueBucket(f *model.Flow, now time.Time) {
	if f.LocalDeviceID == "" {
		return
	}
	// A/B track bytes sent by that side; the local device's bytesIn is
	// whatever the remote side sent.
	bytesIn, bytesOut := f.A.Bytes, f.B.Bytes
	if p.enricher.Subnets.IsLocal(f.Key.IPA) {
		bytesIn, bytesOut = f.B.Bytes, f.A.Bytes
	}
	p.sink.EnqueueBucket(&model.MinuteBucket{
		MinuteEpoch: now.Unix() / 60,
		DeviceID:    f.LocalDeviceID,
		Protocol:    f.Key.Protocol,
		BytesIn:     bytesIn,
		BytesOut:    bytesOut,
		Packets:     f.A.Packets + f.B.Packets,
		FlowCount:   1,
	})
}

// degradedWatchLoop samples the reader's pcap-level drop counter every
// five seconds and publishes CaptureDegraded once sustained drops exceed
// degradedDropThreshold of packets received in the window.
func (p *Pipeline) degradedWatchLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var lastReceived, lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			received, dropped := p.reader.Stats()
			deltaReceived := received - lastReceived
			deltaDropped := dropped - lastDropped
			lastReceived, lastDropped = received, dropped

			if deltaReceived == 0 {
				continue
			}
			if float64(deltaDropped)/float64(deltaReceived) > degradedDropThreshold {
				p.hub.Publish(notify.Event{Type: notify.CaptureDegraded, Time: time.Now(), Detail: "sustained capture drops above threshold"})
			}
		}
	}
}

func (p *Pipeline) recordQueueDrop(queue string) {
	p.statsMu.Lock()
	p.queueDrops++
	p.statsMu.Unlock()
	p.metrics.QueueDrops.WithLabelValues(queue).Inc()
}

// finalizeRemaining forces every still-active flow in the table to
// finalize at shutdown, so nothing in progress is silently lost.
func (p *Pipeline) finalizeRemaining() {
	now := time.Now()
	for _, f := range p.table.Snapshot() {
		if removed := p.table.Delete(f.Key); removed != nil {
			removed.FinalizedAt = now
			p.onFlowFinalized(removed)
		}
	}
	p.drainFlowQueue()

	for _, d := range p.devices.Snapshot() {
		_ = p.store.SaveDevice(d)
	}
}

// Health implements query.HealthSource.
func (p *Pipeline) Health() query.Health {
	p.statsMu.Lock()
	received, queueDrops := p.packetsReceived, p.queueDrops
	p.statsMu.Unlock()

	_, pcapDropped := p.reader.Stats()

	return query.Health{
		Running:         true,
		PacketsCaptured: received,
		PacketsDropped:  pcapDropped,
		QueueDrops:      queueDrops,
		ActiveFlows:     p.table.Size(),
	}
}
