/**
 * Transport Layer Parser.
 *
 * Decodes TCP/UDP, extracting ports, the TCP flag bitmask, sequence/ack
 * numbers and window size.
 */

package parser

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

type transportInfo struct {
	protocol string
	srcPort  uint16
	dstPort  uint16
	flags    model.TCPFlags
	seq      uint32
	ack      uint32
	window   uint16
	payload  []byte
}

// parseTransport extracts Layer 4 fields. ok is false for non-TCP/UDP
// packets (ICMP, ARP); callers handle those separately.
func parseTransport(packet gopacket.Packet) (transportInfo, bool) {
	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp, _ := tcpLayer.(*layers.TCP)
		return transportInfo{
			protocol: "TCP",
			srcPort:  uint16(tcp.SrcPort),
			dstPort:  uint16(tcp.DstPort),
			flags:    tcpFlagMask(tcp),
			seq:      tcp.Seq,
			ack:      tcp.Ack,
			window:   tcp.Window,
			payload:  tcp.Payload,
		}, true
	}

	if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp, _ := udpLayer.(*layers.UDP)
		return transportInfo{
			protocol: "UDP",
			srcPort:  uint16(udp.SrcPort),
			dstPort:  uint16(udp.DstPort),
			payload:  udp.Payload,
		}, true
	}

	return transportInfo{}, false
}

// tcpFlagMask packs the TCP control bits into a single word.
func tcpFlagMask(tcp *layers.TCP) model.TCPFlags {
	var f model.TCPFlags
	if tcp.FIN {
		f |= model.FlagFIN
	}
	if tcp.SYN {
		f |= model.FlagSYN
	}
	if tcp.RST {
		f |= model.FlagRST
	}
	if tcp.PSH {
		f |= model.FlagPSH
	}
	if tcp.ACK {
		f |= model.FlagACK
	}
	if tcp.URG {
		f |= model.FlagURG
	}
	if tcp.ECE {
		f |= model.FlagECE
	}
	if tcp.CWR {
		f |= model.FlagCWR
	}
	if tcp.NS {
		f |= model.FlagNS
	}
	return f
}
