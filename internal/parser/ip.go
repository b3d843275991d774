/**
 * IP Protocol Parser.
 *
 * Extracts Network Layer (Layer 3) fields for both IPv4 and IPv6,
 * walking IPv6 extension headers until a transport header is found.
 */

package parser

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// maxIPv6ExtensionDepth bounds the IPv6 extension-header walk (spec.md §4.2).
const maxIPv6ExtensionDepth = 8

type ipInfo struct {
	version  int
	srcIP    string
	dstIP    string
	ttl      uint8
	ipID     uint16
	protocol string // decoded transport layer name, "" if none found
}

// parseIP extracts Layer 3 fields. ok is false when the frame carries
// neither an IPv4 nor an IPv6 layer (callers reject it unless it's ARP).
func parseIP(packet gopacket.Packet) (ipInfo, bool) {
	if ipv4Layer := packet.Layer(layers.LayerTypeIPv4); ipv4Layer != nil {
		ip, _ := ipv4Layer.(*layers.IPv4)
		return ipInfo{
			version:  4,
			srcIP:    ip.SrcIP.String(),
			dstIP:    ip.DstIP.String(),
			ttl:      ip.TTL,
			ipID:     ip.Id,
			protocol: ip.Protocol.String(),
		}, true
	}

	if ipv6Layer := packet.Layer(layers.LayerTypeIPv6); ipv6Layer != nil {
		ip, _ := ipv6Layer.(*layers.IPv6)

		// gopacket's default decoder already walks extension headers for us
		// when decoding with DecodeOptions{Lazy:false}; we only need to
		// bound our own re-derivation of the terminal transport protocol
		// in case it stopped early, matching spec.md's depth-8 cap.
		protocol := ip.NextHeader.String()
		depth := 0
		for _, l := range packet.Layers() {
			if depth > maxIPv6ExtensionDepth {
				protocol = ""
				break
			}
			switch l.LayerType() {
			case layers.LayerTypeTCP, layers.LayerTypeUDP, layers.LayerTypeICMPv6:
				protocol = l.LayerType().String()
			}
			depth++
		}

		return ipInfo{
			version:  6,
			srcIP:    ip.SrcIP.String(),
			dstIP:    ip.DstIP.String(),
			ttl:      ip.HopLimit,
			protocol: protocol,
		}, true
	}

	return ipInfo{}, false
}
