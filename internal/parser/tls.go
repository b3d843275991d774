/**
 * TLS Protocol Parser.
 *
 * Extracts the unencrypted Server Name Indication from a TLS ClientHello,
 * and the JA3 fingerprint of the handshake. Never inspects payload beyond
 * the handshake: this is the one permitted peek into encrypted traffic
 * spec.md allows.
 */

package parser

import "encoding/binary"

// TLSHint holds what could be recovered from a ClientHello record.
type TLSHint struct {
	Handshake bool
	SNI       string
	JA3       string
}

// peekTLS attempts to parse a TLS ClientHello from a TCP payload. It never
// returns an error: a malformed or absent handshake simply yields a zero
// TLSHint, matching spec.md §4.2's best-effort peek policy.
func peekTLS(payload []byte) TLSHint {
	if len(payload) < 5 {
		return TLSHint{}
	}

	// Content Type: Handshake (22)
	if payload[0] != 22 {
		return TLSHint{}
	}
	// Major version 3 covers SSLv3 through TLS 1.3 (which retains a 3.3
	// record-layer version for middlebox compatibility).
	if payload[1] != 3 {
		return TLSHint{}
	}

	recordLen := int(binary.BigEndian.Uint16(payload[3:5]))
	if recordLen+5 > len(payload) {
		return TLSHint{}
	}

	if len(payload) < 6 || payload[5] != 1 { // Handshake Type: ClientHello
		return TLSHint{}
	}

	hint := TLSHint{Handshake: true, JA3: calculateJA3(payload)}

	offset := 5 + 4 // past handshake header (type + 3-byte length)
	offset += 2     // client version
	offset += 32    // random
	if offset >= len(payload) {
		return hint
	}

	if offset+1 > len(payload) {
		return hint
	}
	sessionIDLen := int(payload[offset])
	offset += 1 + sessionIDLen
	if offset+2 > len(payload) {
		return hint
	}

	cipherSuitesLen := int(binary.BigEndian.Uint16(payload[offset : offset+2]))
	offset += 2 + cipherSuitesLen
	if offset+1 > len(payload) {
		return hint
	}

	compMethodsLen := int(payload[offset])
	offset += 1 + compMethodsLen
	if offset+2 > len(payload) {
		return hint
	}

	extensionsLen := int(binary.BigEndian.Uint16(payload[offset : offset+2]))
	offset += 2

	end := offset + extensionsLen
	if end > len(payload) {
		end = len(payload)
	}

	for offset+4 <= end {
		extType := binary.BigEndian.Uint16(payload[offset : offset+2])
		extLen := int(binary.BigEndian.Uint16(payload[offset+2 : offset+4]))
		offset += 4

		if offset+extLen > end {
			break
		}

		if extType == 0 { // server_name
			if sni, ok := parseSNIExtension(payload[offset : offset+extLen]); ok {
				hint.SNI = sni
				return hint
			}
		}

		offset += extLen
	}

	return hint
}

// parseSNIExtension walks a server_name extension's ServerNameList for the
// first host_name (type 0) entry, rejecting names with non-DNS characters.
func parseSNIExtension(ext []byte) (string, bool) {
	if len(ext) < 2 {
		return "", false
	}
	pos := 2 // list length prefix
	for pos+3 <= len(ext) {
		nameType := ext[pos]
		nameLen := int(binary.BigEndian.Uint16(ext[pos+1 : pos+3]))
		pos += 3
		if pos+nameLen > len(ext) {
			break
		}
		if nameType == 0 {
			name := string(ext[pos : pos+nameLen])
			if !isValidDNSName(name) {
				return "", false
			}
			return name, true
		}
		pos += nameLen
	}
	return "", false
}

// isValidDNSName rejects SNI values containing characters a DNS hostname
// cannot legally carry, guarding against malformed or adversarial input.
func isValidDNSName(name string) bool {
	if name == "" || len(name) > 253 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return false
		}
	}
	return true
}
