/**
 * Application Classification.
 *
 * Names the application protocol/service running over a flow. Signals
 * are tried in order of specificity: a known JA3 fingerprint (identifies
 * the client library regardless of destination), then the SNI/HTTP Host
 * against a domain-suffix table, then destination port/protocol, falling
 * back to "unknown".
 */

package enrich

import (
	"strconv"
	"strings"
)

// JA3Table maps known JA3 fingerprints to the application they identify.
type JA3Table struct {
	known map[string]string
}

// NewJA3Table returns a table seeded with a handful of widely-documented
// client fingerprints; callers may Add more from their own observations.
func NewJA3Table() *JA3Table {
	t := &JA3Table{known: map[string]string{
		"e7d705a3286e19ea42f587b344ee6865": "curl",
		"b32309a26951912be7dba376398abc3b": "go-http-client",
		"579ccef312d18482fc42e2b822ca2430": "firefox",
	}}
	return t
}

// Add records a fingerprint-to-application mapping, overwriting any prior
// entry for the same hash.
func (t *JA3Table) Add(ja3, application string) {
	t.known[ja3] = application
}

// Lookup returns the application for a known fingerprint, or "" if unseen.
func (t *JA3Table) Lookup(ja3 string) string {
	if ja3 == "" {
		return ""
	}
	return t.known[ja3]
}

// domainSuffixes maps a lowercase domain suffix to an application name;
// matched against SNI/HTTP Host values.
var domainSuffixes = map[string]string{
	"googlevideo.com":  "youtube",
	"netflix.com":       "netflix",
	"nflxvideo.net":     "netflix",
	"spotify.com":       "spotify",
	"zoom.us":           "zoom",
	"teams.microsoft.com": "teams",
	"slack.com":         "slack",
	"github.com":        "github",
	"amazonaws.com":     "aws",
	"cloudfront.net":    "aws-cdn",
	"akamai.net":        "akamai-cdn",
	"googleapis.com":    "google-api",
}

// portTable maps (protocol, port) to an application name.
var portTable = map[string]string{
	"TCP:22":   "ssh",
	"TCP:23":   "telnet",
	"TCP:25":   "smtp",
	"TCP:53":   "dns",
	"UDP:53":   "dns",
	"TCP:80":   "http",
	"TCP:443":  "https",
	"TCP:3306": "mysql",
	"TCP:5432": "postgres",
	"TCP:6379": "redis",
	"TCP:8080": "http-alt",
	"TCP:8443": "https-alt",
	"UDP:123":  "ntp",
	"UDP:67":   "dhcp",
	"UDP:68":   "dhcp",
	"UDP:1900": "ssdp",
	"UDP:5353": "mdns",
}

// Classify names the application for a flow given its resolved signals.
// portA and portB are the flow's two canonical endpoint ports; canonical
// ordering is by IP, not by port, so the service port can land on either
// one and both are tried against the port table.
func Classify(ja3Table *JA3Table, ja3, serverName, protocol string, portA, portB uint16) string {
	if app := ja3Table.Lookup(ja3); app != "" {
		return app
	}

	if serverName != "" {
		host := strings.ToLower(serverName)
		for suffix, app := range domainSuffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return app
			}
		}
	}

	if app, ok := portTable[portKey(protocol, portA)]; ok {
		return app
	}
	if app, ok := portTable[portKey(protocol, portB)]; ok {
		return app
	}

	return "unknown"
}

func portKey(protocol string, port uint16) string {
	return protocol + ":" + strconv.Itoa(int(port))
}
