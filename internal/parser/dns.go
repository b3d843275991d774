/**
 * DNS Protocol Parser.
 *
 * Best-effort extraction of query name and answer (name, IP, TTL) triples
 * from a DNS response, feeding the enrichment DNS cache. Parse failure
 * never surfaces as an error: it simply leaves the hint empty.
 */

package parser

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// peekDNS extracts query name and, for responses, resolved answers.
// Returns ok=false if the packet carries no DNS layer.
func peekDNS(packet gopacket.Packet) (query string, answers []model.DNSAnswer, ok bool) {
	dnsLayer := packet.Layer(layers.LayerTypeDNS)
	if dnsLayer == nil {
		return "", nil, false
	}
	dns, _ := dnsLayer.(*layers.DNS)

	if len(dns.Questions) > 0 {
		query = string(dns.Questions[0].Name)
	}

	if !dns.QR {
		return query, nil, true
	}

	for _, a := range dns.Answers {
		switch a.Type {
		case layers.DNSTypeA, layers.DNSTypeAAAA:
			if a.IP != nil {
				answers = append(answers, model.DNSAnswer{
					Name: query,
					IP:   a.IP.String(),
					TTL:  a.TTL,
				})
			}
		}
	}

	return query, answers, true
}
