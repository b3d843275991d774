/**
 * Threat Rules.
 *
 * The rules in this file are pure functions over a single flow; the
 * windowed rules in engine.go also record the flow into the device's
 * sliding-window state. A rule returns a candidate Threat (and true)
 * when its condition fires, or false when it has nothing to report.
 */

package threat

import (
	"fmt"

	"github.com/netscope-observatory/netscope-observatory/internal/config"
	"github.com/netscope-observatory/netscope-observatory/internal/enrich"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// exfiltrationRule fires when a single flow's outbound byte count crosses
// the configured threshold, scoring higher again past the critical mark.
func exfiltrationRule(f *model.Flow, deviceID string, thresholds config.RuleThresholds, subnets *enrich.SubnetMatcher) (model.Threat, bool) {
	outbound := localOutboundBytes(f, subnets)

	if outbound < thresholds.ExfiltrationBytes {
		return model.Threat{}, false
	}

	score := 40.0
	if outbound >= thresholds.ExfiltrationCritBytes {
		// spec.md's own +70 for this tier lands in the "high" bucket
		// (<75), not the "critical" severity scenario 4 requires; bumped
		// to 75 to actually clear the critical boundary (see DESIGN.md).
		score = 75.0
	}

	remoteIP, _ := remoteSide(f, subnets)
	return model.Threat{
		DeviceID: deviceID,
		Category: model.CategoryExfiltration,
		Score:    score,
		Summary:  fmt.Sprintf("outbound transfer of %d bytes to %s", outbound, f.RemoteCountry),
		Evidence: map[string]string{
			"bytes":       fmt.Sprintf("%d", outbound),
			"remote_ip":   remoteIP,
			"server_name": f.ServerName,
		},
	}, true
}

// suspiciousPortRule fires when the flow's remote port is in the
// configured watch list (commonly abused ports for C2 or lateral movement).
func suspiciousPortRule(f *model.Flow, deviceID string, thresholds config.RuleThresholds, subnets *enrich.SubnetMatcher) (model.Threat, bool) {
	remoteIP, remotePort := remoteSide(f, subnets)
	for _, p := range thresholds.SuspiciousPorts {
		if int(remotePort) == p {
			return model.Threat{
				DeviceID: deviceID,
				Category: model.CategorySuspiciousPort,
				Score:    30,
				Summary:  fmt.Sprintf("connection to suspicious port %d", remotePort),
				Evidence: map[string]string{
					"port":      fmt.Sprintf("%d", remotePort),
					"remote_ip": remoteIP,
				},
			}, true
		}
	}
	return model.Threat{}, false
}

// geoHighRiskRule fires when the flow's remote country is in the
// configured high-risk list.
func geoHighRiskRule(f *model.Flow, deviceID string, highRiskCountries map[string]struct{}, subnets *enrich.SubnetMatcher) (model.Threat, bool) {
	if f.RemoteCountry == "" {
		return model.Threat{}, false
	}
	if _, ok := highRiskCountries[f.RemoteCountry]; !ok {
		return model.Threat{}, false
	}
	remoteIP, _ := remoteSide(f, subnets)
	return model.Threat{
		DeviceID: deviceID,
		Category: model.CategoryGeoHighRisk,
		Score:    20,
		Summary:  fmt.Sprintf("connection to high-risk country %s", f.RemoteCountry),
		Evidence: map[string]string{
			"country":   f.RemoteCountry,
			"remote_ip": remoteIP,
		},
	}, true
}

// malformedRule fires when a flow shows a pathologically high
// retransmission ratio over a large enough sample to be meaningful,
// suggesting a malformed or adversarial sender rather than normal loss.
func malformedRule(f *model.Flow, deviceID string, thresholds config.RuleThresholds) (model.Threat, bool) {
	total := f.A.Packets + f.B.Packets
	if total < thresholds.MalformedMinPackets {
		return model.Threat{}, false
	}
	retrans := f.A.Retransmissions + f.B.Retransmissions
	ratio := float64(retrans) / float64(total)
	if ratio < thresholds.MalformedRetransRatio {
		return model.Threat{}, false
	}
	return model.Threat{
		DeviceID: deviceID,
		Category: model.CategoryMalformed,
		Score:    15,
		Summary:  fmt.Sprintf("retransmission ratio %.2f exceeds threshold", ratio),
		Evidence: map[string]string{
			"retransmissions": fmt.Sprintf("%d", retrans),
			"packets":         fmt.Sprintf("%d", total),
		},
	}, true
}

// remoteSide returns the flow's remote IP and port, determined by the
// subnet matcher rather than assumed from canonical side A/B — the local
// device can land on either side of the canonical (IP-ordered) key.
func remoteSide(f *model.Flow, subnets *enrich.SubnetMatcher) (ip string, port uint16) {
	if subnets.IsLocal(f.Key.IPA) {
		return f.Key.IPB, f.Key.PortB
	}
	return f.Key.IPA, f.Key.PortA
}

// localOutboundBytes returns the bytes sent by the flow's local side,
// mirroring the direction attribution internal/pipeline.enqueueBucket
// and internal/enrich.Enricher.Finalize already use.
func localOutboundBytes(f *model.Flow, subnets *enrich.SubnetMatcher) uint64 {
	if subnets.IsLocal(f.Key.IPA) {
		return f.A.Bytes
	}
	return f.B.Bytes
}
