/**
 * Parser Orchestrator.
 *
 * Decodes one raw link-layer frame into a model.ParsedPacket. Frames
 * shorter than minFrameLength are rejected outright; everything else
 * is decoded best-effort, layer by layer, with application-layer peeks
 * gated to configured ports. Parsing never panics and never blocks: a
 * frame gopacket cannot decode sensibly becomes a minimal ParsedPacket
 * rather than an error, except for the one outright-reject case below.
 */

package parser

import (
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// minFrameLength is the smallest frame accepted (20 bytes); anything
// shorter is rejected as malformed per spec.md §7 (MalformedShort).
const minFrameLength = 20

// Ports gates which application-layer peeks run against a segment's ports.
// Zero value falls back to DefaultPorts.
type Ports struct {
	DNS  []uint16
	TLS  []uint16
	HTTP []uint16
}

// DefaultPorts matches spec.md §4.2's port table.
func DefaultPorts() Ports {
	return Ports{
		DNS:  []uint16{53},
		TLS:  []uint16{443, 8443, 993, 995, 465},
		HTTP: []uint16{80, 8080, 8000},
	}
}

// Parser decodes frames for one link type with a fixed port table.
type Parser struct {
	linkType layers.LinkType
	ports    Ports
}

// New builds a Parser for the given capture link type.
func New(linkType layers.LinkType, ports Ports) *Parser {
	return &Parser{linkType: linkType, ports: ports}
}

// Parse decodes a single captured frame. ok is false only for frames below
// minFrameLength; every other input yields a best-effort ParsedPacket.
func (p *Parser) Parse(timestamp time.Time, data []byte) (model.ParsedPacket, bool) {
	if len(data) < minFrameLength {
		return model.ParsedPacket{}, false
	}

	packet := gopacket.NewPacket(data, p.linkType, gopacket.DecodeOptions{
		Lazy:   false,
		NoCopy: true,
	})

	pp := model.ParsedPacket{
		Timestamp: timestamp,
		Length:    len(data),
	}

	pp.SrcMAC, pp.DstMAC = ethernetAddrs(packet)

	if arpLayer := packet.Layer(layers.LayerTypeARP); arpLayer != nil {
		pp.Protocol = "ARP"
		arp, _ := arpLayer.(*layers.ARP)
		pp.SrcIP = ipv4BytesToString(arp.SourceProtAddress)
		pp.DstIP = ipv4BytesToString(arp.DstProtAddress)
		return pp, true
	}

	ip, ok := parseIP(packet)
	if !ok {
		// Neither IPv4, IPv6, nor ARP: not routable traffic this system
		// tracks flows for, but still a validly-decoded frame.
		return pp, true
	}
	pp.IPVersion = ip.version
	pp.SrcIP = ip.srcIP
	pp.DstIP = ip.dstIP
	pp.TTL = ip.ttl
	pp.IPID = ip.ipID

	if icmpLayer := packet.Layer(layers.LayerTypeICMPv4); icmpLayer != nil {
		pp.Protocol = "ICMPv4"
		return pp, true
	}
	if icmpLayer := packet.Layer(layers.LayerTypeICMPv6); icmpLayer != nil {
		pp.Protocol = "ICMPv6"
		return pp, true
	}

	transport, ok := parseTransport(packet)
	if !ok {
		pp.Protocol = ip.protocol
		return pp, true
	}

	pp.Protocol = transport.protocol
	pp.SrcPort = transport.srcPort
	pp.DstPort = transport.dstPort
	pp.Flags = transport.flags
	pp.Seq = transport.seq
	pp.Ack = transport.ack
	pp.Window = transport.window
	pp.Payload = transport.payload

	p.peekApplication(&pp, packet, transport)

	return pp, true
}

// peekApplication runs the application-layer peeks that are gated to
// configured ports, populating pp.Hints best-effort.
func (p *Parser) peekApplication(pp *model.ParsedPacket, packet gopacket.Packet, t transportInfo) {
	if pp.Protocol == "UDP" && (portIn(pp.SrcPort, p.ports.DNS) || portIn(pp.DstPort, p.ports.DNS)) {
		if query, answers, ok := peekDNS(packet); ok {
			pp.Hints.DNSQuery = query
			pp.Hints.DNSAnswers = answers
		}
	}

	if pp.Protocol == "TCP" && len(t.payload) > 0 {
		if portIn(pp.SrcPort, p.ports.TLS) || portIn(pp.DstPort, p.ports.TLS) {
			hint := peekTLS(t.payload)
			if hint.Handshake {
				pp.Hints.TLSSNI = hint.SNI
				pp.Hints.JA3 = hint.JA3
			}
		}

		if portIn(pp.SrcPort, p.ports.HTTP) || portIn(pp.DstPort, p.ports.HTTP) {
			hint := peekHTTP(t.payload)
			if hint.Method != "" {
				pp.Hints.HTTPMethod = hint.Method
				pp.Hints.HTTPHost = hint.Host
			}
		}
	}
}

func portIn(port uint16, set []uint16) bool {
	for _, p := range set {
		if p == port {
			return true
		}
	}
	return false
}

func ipv4BytesToString(b []byte) string {
	if len(b) != 4 {
		return ""
	}
	return net.IP(b).String()
}
