/**
 * TLS Parser Tests.
 *
 * Validates ClientHello SNI and JA3 extraction against a hand-built
 * handshake record.
 */

package parser

import (
	"encoding/binary"
	"testing"
)

// buildClientHello assembles a minimal but well-formed TLS 1.2 ClientHello
// carrying one cipher suite and a server_name extension for host.
func buildClientHello(host string) []byte {
	var body []byte
	body = append(body, 0x03, 0x03)           // client version
	body = append(body, make([]byte, 32)...) // random
	body = append(body, 0x00)                 // session id len
	body = append(body, 0x00, 0x02, 0x00, 0x2F) // cipher suites len + 1 suite
	body = append(body, 0x01, 0x00)           // compression methods

	sniName := []byte(host)
	nameEntry := append([]byte{0x00}, u16(uint16(len(sniName)))...)
	nameEntry = append(nameEntry, sniName...)
	serverNameList := append(u16(uint16(len(nameEntry))), nameEntry...)
	sniExt := append([]byte{0x00, 0x00}, u16(uint16(len(serverNameList)))...)
	sniExt = append(sniExt, serverNameList...)

	extensions := sniExt
	body = append(body, u16(uint16(len(extensions)))...)
	body = append(body, extensions...)

	handshake := append([]byte{0x01}, u24(uint32(len(body)))...)
	handshake = append(handshake, body...)

	record := append([]byte{22, 0x03, 0x01}, u16(uint16(len(handshake)))...)
	record = append(record, handshake...)
	return record
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u24(v uint32) []byte {
	b := make([]byte, 3)
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
	return b
}

func TestPeekTLSExtractsSNI(t *testing.T) {
	payload := buildClientHello("example.com")
	hint := peekTLS(payload)
	if !hint.Handshake {
		t.Fatal("expected handshake to be recognized")
	}
	if hint.SNI != "example.com" {
		t.Errorf("expected SNI example.com, got %q", hint.SNI)
	}
	if hint.JA3 == "" {
		t.Error("expected non-empty JA3 hash")
	}
}

func TestPeekTLSNonHandshake(t *testing.T) {
	hint := peekTLS([]byte{0x17, 0x03, 0x03, 0x00, 0x01, 0xAA})
	if hint.Handshake {
		t.Error("expected application-data record to yield no handshake hint")
	}
}

func TestPeekTLSShortPayload(t *testing.T) {
	hint := peekTLS([]byte{0x16, 0x03})
	if hint.Handshake {
		t.Error("expected truncated record to yield zero hint")
	}
}

func TestIsValidDNSNameRejectsControlChars(t *testing.T) {
	if isValidDNSName("evil\x00host.com") {
		t.Error("expected name with control byte to be rejected")
	}
	if !isValidDNSName("sub.example-1.com") {
		t.Error("expected valid hostname to be accepted")
	}
}
