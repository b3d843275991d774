/**
 * Query Surface.
 *
 * A narrow read contract over the flow/device/threat store, consumed by
 * (but not implementing) an external HTTP layer. Nothing here mutates
 * live state except DismissThreat, which forwards to storage.
 */

package query

import (
	"strings"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
	"github.com/netscope-observatory/netscope-observatory/internal/storage"
)

// FlowFilter narrows ListFlows per spec.md §6: time range, device,
// protocol, country, application, minimum bytes, SNI substring, state.
type FlowFilter struct {
	Since       time.Time
	Until       time.Time
	DeviceID    string
	Protocol    string
	Country     string
	Application string
	MinBytes    uint64
	SNIContains string
	State       model.TCPState
	Limit       int
}

// ThreatFilter narrows ListThreats.
type ThreatFilter struct {
	DeviceID       string
	IncludeDismiss bool
	Limit          int
}

// Health reports capture and pipeline health, per spec.md §6.
type Health struct {
	Running         bool
	PacketsCaptured uint64
	PacketsDropped  uint64
	QueueDrops      uint64
	ActiveFlows     int
	AvgProcessNS    float64
}

// HealthSource is implemented by the pipeline to report live counters;
// the query Service reads through it rather than owning the counters.
type HealthSource interface {
	Health() Health
}

// Service is the query surface's single entry point.
type Service struct {
	store  storage.Storage
	health HealthSource
}

// New builds a Service backed by store for persisted data and health for
// live capture/pipeline counters.
func New(store storage.Storage, health HealthSource) *Service {
	return &Service{store: store, health: health}
}

// ListDevices returns every known device, most recently seen first.
func (s *Service) ListDevices() ([]*model.Device, error) {
	return s.store.ListDevices()
}

// GetDevice returns one device by its stable ID, or nil if unknown.
func (s *Service) GetDevice(deviceID string) (*model.Device, error) {
	return s.store.GetDevice(deviceID)
}

// ListFlows returns persisted flows matching filter, newest first.
func (s *Service) ListFlows(filter FlowFilter) ([]*model.Flow, error) {
	flows, err := s.store.ListFlows(storage.FlowFilter{
		DeviceID: filter.DeviceID,
		Since:    filter.Since,
		Limit:    filter.Limit,
	})
	if err != nil {
		return nil, err
	}

	out := flows[:0]
	for _, f := range flows {
		if !matchesFlowFilter(f, filter) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func matchesFlowFilter(f *model.Flow, filter FlowFilter) bool {
	if filter.Protocol != "" && f.Key.Protocol != filter.Protocol {
		return false
	}
	if filter.Country != "" && f.RemoteCountry != filter.Country {
		return false
	}
	if filter.Application != "" && f.Application != filter.Application {
		return false
	}
	if filter.MinBytes > 0 && f.TotalBytes() < filter.MinBytes {
		return false
	}
	if filter.SNIContains != "" && !strings.Contains(f.ServerName, filter.SNIContains) {
		return false
	}
	if filter.State != "" && f.State != filter.State {
		return false
	}
	if !filter.Until.IsZero() && f.FirstSeen.After(filter.Until) {
		return false
	}
	return true
}

// TopBuckets returns the highest-traffic minute buckets since the given
// time, capped at limit rows.
func (s *Service) TopBuckets(since time.Time, limit int) ([]*model.MinuteBucket, error) {
	return s.store.TopBuckets(since, limit)
}

// ListThreats returns persisted threats matching filter, newest first.
func (s *Service) ListThreats(filter ThreatFilter) ([]*model.Threat, error) {
	return s.store.ListThreats(storage.ThreatFilter{
		DeviceID:       filter.DeviceID,
		IncludeDismiss: filter.IncludeDismiss,
		Limit:          filter.Limit,
	})
}

// DismissThreat acknowledges a threat by ID.
func (s *Service) DismissThreat(id string) error {
	return s.store.DismissThreat(id)
}

// CaptureHealth reports the live capture/pipeline health snapshot.
func (s *Service) CaptureHealth() Health {
	if s.health == nil {
		return Health{}
	}
	return s.health.Health()
}
