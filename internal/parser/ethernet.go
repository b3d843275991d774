/**
 * Ethernet Parser.
 *
 * Extracts Data Link Layer (Layer 2) source/destination MAC addresses.
 */

package parser

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ethernetAddrs returns the source and destination MAC addresses, or empty
// strings if the frame carries no Ethernet layer (e.g. loopback).
func ethernetAddrs(packet gopacket.Packet) (src, dst string) {
	ethLayer := packet.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return "", ""
	}
	eth, _ := ethLayer.(*layers.Ethernet)
	return eth.SrcMAC.String(), eth.DstMAC.String()
}
