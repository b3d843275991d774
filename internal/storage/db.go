/**
 * Storage Interface.
 *
 * Defines the contract for the persistence sink, so the pipeline depends
 * on a narrow interface rather than the SQLite implementation directly.
 */

package storage

import (
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// FlowFilter narrows ListFlows; zero values mean "no filter" on that field.
type FlowFilter struct {
	DeviceID string
	Since    time.Time
	Limit    int
}

// ThreatFilter narrows ListThreats; zero values mean "no filter" on that field.
type ThreatFilter struct {
	DeviceID        string
	IncludeDismiss  bool
	Limit           int
}

// Storage is the contract for persisting network data.
type Storage interface {
	// Lifecycle
	Close() error
	Migrate() error

	// Devices
	SaveDevice(device *model.Device) error
	GetDevice(deviceID string) (*model.Device, error)
	ListDevices() ([]*model.Device, error)

	// Flows
	SaveFlows(flows []*model.Flow) error
	ListFlows(filter FlowFilter) ([]*model.Flow, error)

	// Threats
	SaveThreats(threats []*model.Threat) error
	ListThreats(filter ThreatFilter) ([]*model.Threat, error)
	DismissThreat(id string) error

	// Minute rollups
	SaveBuckets(buckets []*model.MinuteBucket) error
	TopBuckets(since time.Time, limit int) ([]*model.MinuteBucket, error)

	// Retention
	TrimOlderThan(cutoff time.Time) error
}
