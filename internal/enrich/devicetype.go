/**
 * Device Type Classification.
 *
 * Rule-based guess at what kind of device sits behind a MAC/IP: hostname
 * pattern first, then vendor, then observed port set. Defaults to
 * "generic" when nothing matches.
 */

package enrich

import (
	"regexp"
	"strings"
)

var hostnamePatterns = []struct {
	re          *regexp.Regexp
	deviceType string
}{
	{regexp.MustCompile(`(?i)iphone|ipad`), "mobile-ios"},
	{regexp.MustCompile(`(?i)android`), "mobile-android"},
	{regexp.MustCompile(`(?i)macbook|imac`), "desktop-mac"},
	{regexp.MustCompile(`(?i)desktop|pc-`), "desktop"},
	{regexp.MustCompile(`(?i)roku|chromecast|firetv|appletv`), "media-streamer"},
	{regexp.MustCompile(`(?i)printer|hp-`), "printer"},
	{regexp.MustCompile(`(?i)cam|nvr|dvr`), "camera"},
}

var vendorDeviceTypes = map[string]string{
	"Raspberry Pi": "embedded",
	"Espressif":    "iot",
	"Ubiquiti":     "network-infra",
	"Cisco":        "network-infra",
	"VMware":       "virtual-machine",
}

// ClassifyDeviceType guesses a device category from vendor, hostname and
// the set of ports it has been observed using as a server (listening).
func ClassifyDeviceType(vendor, hostname string, observedServerPorts map[uint16]struct{}) string {
	if hostname != "" {
		normalized := normalizeHostname(hostname)
		for _, p := range hostnamePatterns {
			if p.re.MatchString(normalized) {
				return p.deviceType
			}
		}
	}

	if vendor != "" {
		if dt, ok := vendorDeviceTypes[vendor]; ok {
			return dt
		}
	}

	if _, ok := observedServerPorts[3389]; ok {
		return "desktop-windows"
	}
	if _, ok := observedServerPorts[22]; ok {
		return "server"
	}
	if _, ok := observedServerPorts[9100]; ok {
		return "printer"
	}

	return "generic"
}

// GuessOS passively fingerprints the remote OS from its initial TTL: the
// value observed on the wire has already been decremented by each hop, so
// this only narrows to the nearest common initial TTL (64, 128, 255)
// rather than naming an exact OS.
func GuessOS(ttl uint8) string {
	switch {
	case ttl > 128:
		return "network-device"
	case ttl > 64:
		return "windows"
	case ttl > 32:
		return "linux-or-macos"
	default:
		return "unknown"
	}
}

// normalizeHostname lowercases and trims a hostname for pattern matching.
func normalizeHostname(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
