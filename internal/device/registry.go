/**
 * Device Registry.
 *
 * Tracks every locally-attributed device seen on the network. Single
 * writer: only the pipeline's flow-finalization goroutine calls Observe,
 * so the registry needs no lock around its write path. Readers (the query
 * surface) get a cloned snapshot so they never race the writer or hold a
 * reference into state that keeps mutating underneath them.
 */

package device

import (
	"sync/atomic"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// Registry is the single-writer, copy-on-read device table.
type Registry struct {
	devices atomic.Pointer[map[string]*model.Device]
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	empty := make(map[string]*model.Device)
	r.devices.Store(&empty)
	return r
}

// Observe records a sighting of (mac, ip) at timestamp ts, creating the
// device record on first sight. Must only be called from the single
// writer goroutine.
func (r *Registry) Observe(mac, ip, vendor string, ts time.Time, bytesIn, bytesOut uint64) *model.Device {
	id := model.DeviceIDFor(mac, ip)
	current := *r.devices.Load()

	existing, ok := current[id]
	if !ok {
		d := &model.Device{
			DeviceID:   id,
			MAC:        mac,
			PrimaryIP:  ip,
			Vendor:     vendor,
			DeviceType: "generic",
			AllIPs:     map[string]struct{}{ip: {}},
			FirstSeen:  ts,
			LastSeen:   ts,
			BytesIn:    bytesIn,
			BytesOut:   bytesOut,
			FlowCount:  1,
		}
		r.publish(current, id, d)
		return d
	}

	updated := existing.Clone()
	updated.LastSeen = ts
	updated.BytesIn += bytesIn
	updated.BytesOut += bytesOut
	updated.FlowCount++
	if ip != "" {
		updated.AllIPs[ip] = struct{}{}
	}
	if vendor != "" && updated.Vendor == "" {
		updated.Vendor = vendor
	}
	r.publish(current, id, updated)
	return updated
}

// SetDeviceType records a device-type classification for id, if present.
func (r *Registry) SetDeviceType(id, deviceType string) {
	current := *r.devices.Load()
	existing, ok := current[id]
	if !ok {
		return
	}
	updated := existing.Clone()
	updated.DeviceType = deviceType
	r.publish(current, id, updated)
}

// SetThreatScore updates id's running threat score, taking the max of the
// existing and the new score (scores are monotonic per spec.md's threat
// dedup semantics).
func (r *Registry) SetThreatScore(id string, score float64) {
	current := *r.devices.Load()
	existing, ok := current[id]
	if !ok {
		return
	}
	if score <= existing.ThreatScore {
		return
	}
	updated := existing.Clone()
	updated.ThreatScore = score
	r.publish(current, id, updated)
}

// publish installs a new immutable map with id replaced by d, copy-on-write.
func (r *Registry) publish(current map[string]*model.Device, id string, d *model.Device) {
	next := make(map[string]*model.Device, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[id] = d
	r.devices.Store(&next)
}

// Get returns a cloned snapshot of the device with id, or nil if unknown.
func (r *Registry) Get(id string) *model.Device {
	current := *r.devices.Load()
	d, ok := current[id]
	if !ok {
		return nil
	}
	return d.Clone()
}

// Snapshot returns cloned copies of every tracked device.
func (r *Registry) Snapshot() []*model.Device {
	current := *r.devices.Load()
	out := make([]*model.Device, 0, len(current))
	for _, d := range current {
		out = append(out, d.Clone())
	}
	return out
}
