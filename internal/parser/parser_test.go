/**
 * Parser Orchestrator Tests.
 *
 * Verifies end-to-end frame decoding for Ethernet/IPv4/TCP and the
 * malformed-short rejection path.
 */

package parser

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

func serializeTCP(t *testing.T, tcp *layers.TCP, ipv4 *layers.IPv4, payload []byte) []byte {
	t.Helper()
	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	tcp.SetNetworkLayerForChecksum(ipv4)
	err := gopacket.SerializeLayers(buffer, opts,
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			DstMAC:       net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
			EthernetType: layers.EthernetTypeIPv4,
		},
		ipv4,
		tcp,
		gopacket.Payload(payload),
	)
	if err != nil {
		t.Fatal(err)
	}
	return buffer.Bytes()
}

func TestParseRejectsShortFrame(t *testing.T) {
	p := New(layers.LinkTypeEthernet, DefaultPorts())
	_, ok := p.Parse(time.Now(), []byte{0x00, 0x01, 0x02})
	if ok {
		t.Fatal("expected short frame to be rejected")
	}
}

func TestParseTCP(t *testing.T) {
	ipv4 := &layers.IPv4{
		SrcIP: net.IP{192, 168, 1, 10}, DstIP: net.IP{192, 168, 1, 20},
		Protocol: layers.IPProtocolTCP, TTL: 64, Version: 4, IHL: 5,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(12345), DstPort: layers.TCPPort(443),
		SYN: true, Seq: 100,
	}
	data := serializeTCP(t, tcp, ipv4, nil)

	p := New(layers.LinkTypeEthernet, DefaultPorts())
	pp, ok := p.Parse(time.Now(), data)
	if !ok {
		t.Fatal("expected frame to parse")
	}
	if pp.Protocol != "TCP" {
		t.Errorf("expected TCP, got %s", pp.Protocol)
	}
	if pp.SrcIP != "192.168.1.10" || pp.DstIP != "192.168.1.20" {
		t.Errorf("unexpected IPs: %s -> %s", pp.SrcIP, pp.DstIP)
	}
	if pp.DstPort != 443 {
		t.Errorf("expected port 443, got %d", pp.DstPort)
	}
	if !pp.Flags.Has(model.FlagSYN) {
		t.Error("expected SYN flag set")
	}
}
