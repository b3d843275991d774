/**
 * Parsed Packet Model.
 *
 * Defines the fixed, transient record produced by the parser for every
 * admitted frame. Never persisted; consumed once by the flow table and
 * discarded.
 */

package model

import "time"

// TCPFlags is a bitmask of observed TCP control bits for a single segment.
type TCPFlags uint16

const (
	FlagFIN TCPFlags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
	FlagNS
)

// Has reports whether all bits in mask are set.
func (f TCPFlags) Has(mask TCPFlags) bool { return f&mask == mask }

// ApplicationHints holds best-effort application-layer peeks. A zero value
// means the peek was not attempted or failed to parse; it is never an error.
type ApplicationHints struct {
	DNSAnswers []DNSAnswer
	DNSQuery   string
	TLSSNI     string
	HTTPHost   string
	HTTPMethod string
	JA3        string
}

// DNSAnswer is a single resolved record from a DNS response.
type DNSAnswer struct {
	Name string
	IP   string
	TTL  uint32
}

// ParsedPacket is the fixed-shape record the parser produces per frame.
// Payload borrows the decoder's backing buffer; callers must not retain it
// past the processing of the packet that produced it.
type ParsedPacket struct {
	Timestamp time.Time
	Length    int

	SrcMAC string
	DstMAC string

	IPVersion int // 4 or 6, 0 if non-IP (ARP)
	SrcIP     string
	DstIP     string
	TTL       uint8
	IPID      uint16 // IPv4 identification field; 0 for IPv6 (no direct equivalent)
	Protocol  string // "TCP", "UDP", "ICMPv4", "ICMPv6", "ARP"

	SrcPort uint16
	DstPort uint16
	Flags   TCPFlags
	Seq     uint32
	Ack     uint32
	Window  uint16

	Payload []byte

	Hints ApplicationHints
}

// IsTCP reports whether the packet carries a TCP segment.
func (p *ParsedPacket) IsTCP() bool { return p.Protocol == "TCP" }

// IsUDP reports whether the packet carries a UDP datagram.
func (p *ParsedPacket) IsUDP() bool { return p.Protocol == "UDP" }
