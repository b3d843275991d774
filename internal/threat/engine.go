/**
 * Threat Rule Engine.
 *
 * Evaluates every rule against a finalized (or long-lived, still-active)
 * flow, folding in per-device sliding-window state for the rules that
 * need more than one flow to decide anything. Findings are deduplicated
 * per (device, category) within a 5-minute bucket: repeat observations
 * raise the bucket's score (monotonic max) and merge evidence rather than
 * creating a new threat.
 */

package threat

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/config"
	"github.com/netscope-observatory/netscope-observatory/internal/enrich"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// Engine evaluates threat rules and owns all per-device rule state.
type Engine struct {
	thresholds        config.RuleThresholds
	highRiskCountries map[string]struct{}
	subnets           *enrich.SubnetMatcher

	mu      sync.Mutex
	devices map[string]*deviceState
	buckets map[bucketKey]*model.Threat

	nextID func() string
}

type bucketKey struct {
	deviceID string
	category model.Category
	bucket   int64
}

// NewEngine builds an Engine from configured thresholds, the high-risk
// country list and the local-subnet boundary used to find each flow's
// remote side (falling back to enrich.DefaultLocalSubnets when empty).
// idGen generates Threat IDs (typically uuid.NewString).
func NewEngine(thresholds config.RuleThresholds, highRiskCountries []string, localSubnets []string, idGen func() string) *Engine {
	set := make(map[string]struct{}, len(highRiskCountries))
	for _, c := range highRiskCountries {
		set[c] = struct{}{}
	}
	if len(localSubnets) == 0 {
		localSubnets = enrich.DefaultLocalSubnets()
	}
	return &Engine{
		thresholds:        thresholds,
		highRiskCountries: set,
		subnets:           enrich.NewSubnetMatcher(localSubnets),
		devices:           make(map[string]*deviceState),
		buckets:           make(map[bucketKey]*model.Threat),
		nextID:            idGen,
	}
}

// Evaluate runs every rule against f for its local device, returning the
// threats that are new or updated as a result. Flows with no resolved
// local device (neither end attributable) are skipped.
func (e *Engine) Evaluate(f *model.Flow, now time.Time) []model.Threat {
	if f.LocalDeviceID == "" {
		return nil
	}

	var candidates []model.Threat

	if t, ok := exfiltrationRule(f, f.LocalDeviceID, e.thresholds, e.subnets); ok {
		candidates = append(candidates, t)
	}
	if t, ok := suspiciousPortRule(f, f.LocalDeviceID, e.thresholds, e.subnets); ok {
		candidates = append(candidates, t)
	}
	if t, ok := geoHighRiskRule(f, f.LocalDeviceID, e.highRiskCountries, e.subnets); ok {
		candidates = append(candidates, t)
	}
	if t, ok := malformedRule(f, f.LocalDeviceID, e.thresholds); ok {
		candidates = append(candidates, t)
	}

	e.mu.Lock()
	state := e.devices[f.LocalDeviceID]
	if state == nil {
		state = newDeviceState()
		e.devices[f.LocalDeviceID] = state
	}

	if t, ok := e.portScanRule(state, f, now); ok {
		candidates = append(candidates, t)
	}
	if t, ok := e.hostScanRule(state, f, now); ok {
		candidates = append(candidates, t)
	}
	if t, ok := e.beaconingRule(state, f, now); ok {
		candidates = append(candidates, t)
	}
	if t, ok := e.rareApplicationRule(state, f); ok {
		candidates = append(candidates, t)
	}
	e.mu.Unlock()

	return e.dedup(candidates, now)
}

func (e *Engine) portScanRule(state *deviceState, f *model.Flow, now time.Time) (model.Threat, bool) {
	_, port := remoteSide(f, e.subnets)
	distinct := state.recordPort(port, now)
	if distinct < e.thresholds.PortScanDistinctPorts {
		return model.Threat{}, false
	}
	return model.Threat{
		DeviceID: f.LocalDeviceID,
		Category: model.CategoryPortScan,
		Score:    50,
		Summary:  fmt.Sprintf("%d distinct ports contacted within %s", distinct, scanWindow),
		Evidence: map[string]string{"distinct_ports": fmt.Sprintf("%d", distinct)},
	}, true
}

func (e *Engine) hostScanRule(state *deviceState, f *model.Flow, now time.Time) (model.Threat, bool) {
	ip, _ := remoteSide(f, e.subnets)
	distinct := state.recordHost(ip, now)
	if distinct < e.thresholds.HostScanDistinctHosts {
		return model.Threat{}, false
	}
	return model.Threat{
		DeviceID: f.LocalDeviceID,
		Category: model.CategoryHostScan,
		Score:    50,
		Summary:  fmt.Sprintf("%d distinct hosts contacted within %s", distinct, scanWindow),
		Evidence: map[string]string{"distinct_hosts": fmt.Sprintf("%d", distinct)},
	}, true
}

func (e *Engine) beaconingRule(state *deviceState, f *model.Flow, now time.Time) (model.Threat, bool) {
	ip, _ := remoteSide(f, e.subnets)
	times := state.recordBeacon(ip, now)
	if len(times) < e.thresholds.BeaconingMinFlows {
		return model.Threat{}, false
	}

	mean, stddev := intervalStats(times)
	if mean <= 0 {
		return model.Threat{}, false
	}
	ratio := stddev / mean
	if ratio > e.thresholds.BeaconingStddevRatio {
		return model.Threat{}, false
	}

	return model.Threat{
		DeviceID: f.LocalDeviceID,
		Category: model.CategoryBeaconing,
		Score:    35,
		Summary:  fmt.Sprintf("regular-interval traffic to %s (interval stddev/mean=%.3f)", ip, ratio),
		Evidence: map[string]string{
			"remote_ip":     ip,
			"flow_count":    fmt.Sprintf("%d", len(times)),
			"interval_mean": fmt.Sprintf("%.2fs", mean),
		},
	}, true
}

func (e *Engine) rareApplicationRule(state *deviceState, f *model.Flow) (model.Threat, bool) {
	if f.Application == "" || f.Application == "unknown" {
		return model.Threat{}, false
	}
	count := state.recordApplication(f.Application)
	totalFlows := 0
	for _, c := range state.seenApps {
		totalFlows += c
	}
	if totalFlows < e.thresholds.RareApplicationWindow || count > 1 {
		return model.Threat{}, false
	}
	return model.Threat{
		DeviceID: f.LocalDeviceID,
		Category: model.CategoryRareApplication,
		Score:    10,
		Summary:  fmt.Sprintf("first use of application %q for this device", f.Application),
		Evidence: map[string]string{"application": f.Application},
	}, true
}

// dedup merges candidates into the 5-minute (device, category) bucket,
// returning the threats that changed (new buckets or raised scores).
func (e *Engine) dedup(candidates []model.Threat, now time.Time) []model.Threat {
	if len(candidates) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var changed []model.Threat
	for _, c := range candidates {
		key := bucketKey{deviceID: c.DeviceID, category: c.Category, bucket: now.Unix() / 300}
		existing, ok := e.buckets[key]
		if !ok {
			c.ID = e.nextID()
			c.CreatedAt = now
			c.Severity = model.SeverityForScore(c.Score)
			stored := c
			e.buckets[key] = &stored
			changed = append(changed, stored)
			continue
		}

		raised := false
		if c.Score > existing.Score {
			existing.Score = c.Score
			existing.Severity = model.SeverityForScore(existing.Score)
			raised = true
		}
		for k, v := range c.Evidence {
			if existing.Evidence == nil {
				existing.Evidence = make(map[string]string)
			}
			existing.Evidence[k] = v
		}
		if raised {
			changed = append(changed, *existing)
		}
	}
	return changed
}

func intervalStats(times []time.Time) (mean, stddev float64) {
	if len(times) < 2 {
		return 0, 0
	}
	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals = append(intervals, times[i].Sub(times[i-1]).Seconds())
	}
	var sum float64
	for _, v := range intervals {
		sum += v
	}
	mean = sum / float64(len(intervals))

	var variance float64
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))
	stddev = math.Sqrt(variance)
	return mean, stddev
}
