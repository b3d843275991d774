/**
 * JA3 TLS Fingerprinting.
 *
 * Computes the JA3 hash of a ClientHello's SSL version, cipher suites,
 * extensions, elliptic curves and point formats, identifying TLS clients
 * independent of destination. Supplements spec.md's application
 * classification as a higher-priority signal than port tables.
 */

package parser

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

type ja3Data struct {
	sslVersion     uint16
	cipherSuites   []uint16
	extensions     []uint16
	ellipticCurves []uint16
	ecPointFormats []uint8
}

// calculateJA3 computes the JA3 hash from a raw ClientHello record. Returns
// empty string if the payload is too short or malformed; never errors.
func calculateJA3(payload []byte) string {
	data := extractJA3Data(payload)
	if data == nil {
		return ""
	}
	s := buildJA3String(data)
	if s == "" {
		return ""
	}
	hash := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", hash)
}

func extractJA3Data(payload []byte) *ja3Data {
	if len(payload) < 43 || payload[0] != 22 || payload[5] != 1 {
		return nil
	}

	data := &ja3Data{}
	offset := 9 // record header (5) + handshake header (4)

	if offset+2 > len(payload) {
		return nil
	}
	data.sslVersion = binary.BigEndian.Uint16(payload[offset : offset+2])
	offset += 2

	offset += 32 // random
	if offset > len(payload) {
		return nil
	}

	if offset+1 > len(payload) {
		return nil
	}
	sessionIDLen := int(payload[offset])
	offset += 1 + sessionIDLen
	if offset > len(payload) {
		return nil
	}

	if offset+2 > len(payload) {
		return nil
	}
	cipherSuitesLen := int(binary.BigEndian.Uint16(payload[offset : offset+2]))
	offset += 2
	if offset+cipherSuitesLen > len(payload) {
		return nil
	}
	for i := 0; i < cipherSuitesLen; i += 2 {
		if offset+2 > len(payload) {
			break
		}
		cipher := binary.BigEndian.Uint16(payload[offset : offset+2])
		if !isGREASE(cipher) {
			data.cipherSuites = append(data.cipherSuites, cipher)
		}
		offset += 2
	}

	if offset+1 > len(payload) {
		return nil
	}
	compMethodsLen := int(payload[offset])
	offset += 1 + compMethodsLen
	if offset > len(payload) {
		return nil
	}

	if offset+2 > len(payload) {
		return data
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

		if !isGREASE(extType) {
			data.extensions = append(data.extensions, extType)
			switch extType {
			case 10:
				data.ellipticCurves = parseEllipticCurves(payload[offset : offset+extLen])
			case 11:
				data.ecPointFormats = parseECPointFormats(payload[offset : offset+extLen])
			}
		}

		offset += extLen
	}

	return data
}

func buildJA3String(data *ja3Data) string {
	u16join := func(vals []uint16) string {
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = strconv.Itoa(int(v))
		}
		return strings.Join(parts, "-")
	}
	u8join := func(vals []uint8) string {
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = strconv.Itoa(int(v))
		}
		return strings.Join(parts, "-")
	}

	return strings.Join([]string{
		strconv.Itoa(int(data.sslVersion)),
		u16join(data.cipherSuites),
		u16join(data.extensions),
		u16join(data.ellipticCurves),
		u8join(data.ecPointFormats),
	}, ",")
}

func parseEllipticCurves(data []byte) []uint16 {
	if len(data) < 2 {
		return nil
	}
	listLen := int(binary.BigEndian.Uint16(data[0:2]))
	offset := 2
	var curves []uint16
	for offset+2 <= len(data) && offset < 2+listLen {
		curve := binary.BigEndian.Uint16(data[offset : offset+2])
		if !isGREASE(curve) {
			curves = append(curves, curve)
		}
		offset += 2
	}
	return curves
}

func parseECPointFormats(data []byte) []uint8 {
	if len(data) < 1 {
		return nil
	}
	listLen := int(data[0])
	offset := 1
	var formats []uint8
	for offset < len(data) && offset < 1+listLen {
		formats = append(formats, data[offset])
		offset++
	}
	return formats
}

// isGREASE reports whether value follows the 0x?a?a GREASE pattern used to
// prevent protocol ossification; such values are excluded from the hash.
func isGREASE(value uint16) bool {
	return (value&0x0f0f) == 0x0a0a && ((value>>8)&0xf0) == (value&0xf0)
}
