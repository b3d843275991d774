/**
 * Local/Remote Attribution.
 *
 * Classifies an IP as local or remote against the configured set of
 * local subnets (default RFC1918 + loopback + link-local), used to decide
 * which side of a flow gets device-registry treatment versus geo
 * enrichment.
 */

package enrich

import "net"

// SubnetMatcher reports whether an IP falls inside a configured local range.
type SubnetMatcher struct {
	nets []*net.IPNet
}

// DefaultLocalSubnets returns RFC1918, loopback and link-local ranges.
func DefaultLocalSubnets() []string {
	return []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
}

// NewSubnetMatcher parses cidrs, skipping any that fail to parse (config
// validation should already have rejected those, but the matcher itself
// never errors on Contains).
func NewSubnetMatcher(cidrs []string) *SubnetMatcher {
	m := &SubnetMatcher{}
	for _, c := range cidrs {
		_, ipNet, err := net.ParseCIDR(c)
		if err != nil {
			continue
		}
		m.nets = append(m.nets, ipNet)
	}
	return m
}

// IsLocal reports whether ipStr falls within any configured local subnet.
func (m *SubnetMatcher) IsLocal(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range m.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
