/**
 * Enrichment Orchestrator.
 *
 * Wires the DNS cache, name cache, application classifier, geo cache,
 * vendor lookup and subnet matcher into the single entry point the
 * pipeline calls on every packet and again at flow finalization.
 */

package enrich

import (
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// Enricher holds every enrichment backend, shared across all flows.
type Enricher struct {
	DNS     *DNSCache
	Names   *NameCache
	JA3     *JA3Table
	Geo     *GeoCache
	Vendor  *VendorLookup
	Subnets *SubnetMatcher
}

// New builds an Enricher. geoResolver may be nil to disable geo enrichment
// (e.g. no mmdb configured).
func New(geoResolver GeoResolver, localSubnets []string) *Enricher {
	return &Enricher{
		DNS:     NewDNSCache(),
		Names:   NewNameCache(),
		JA3:     NewJA3Table(),
		Geo:     NewGeoCache(geoResolver),
		Vendor:  NewVendorLookup(),
		Subnets: NewSubnetMatcher(localSubnets),
	}
}

// ObservePacket feeds a packet's application hints into the DNS and name
// caches and updates the flow's resolved ServerName/Application fields.
// Called once per packet, after the flow table update.
func (e *Enricher) ObservePacket(f *model.Flow, pp *model.ParsedPacket) {
	if len(pp.Hints.DNSAnswers) > 0 {
		e.DNS.Add(pp.Hints.DNSQuery, pp.Hints.DNSAnswers)
	}

	name := pp.Hints.TLSSNI
	if name == "" {
		name = pp.Hints.HTTPHost
	}
	if name != "" {
		f.ServerName = e.Names.Observe(f.Key, name)
	} else if f.ServerName == "" {
		if resolved, ok := e.resolveEitherEnd(f.Key); ok {
			f.ServerName = resolved
		}
	}

	if pp.Hints.JA3 != "" && f.JA3 == "" {
		f.JA3 = pp.Hints.JA3
		f.JA3Application = e.JA3.Lookup(f.JA3)
	}

	if app := Classify(e.JA3, f.JA3, f.ServerName, f.Key.Protocol, f.Key.PortA, f.Key.PortB); app != "unknown" || f.Application == "" {
		f.Application = app
	}
}

func (e *Enricher) resolveEitherEnd(key model.FlowKey) (string, bool) {
	if name, ok := e.DNS.Resolve(key.IPA); ok {
		return name, true
	}
	if name, ok := e.DNS.Resolve(key.IPB); ok {
		return name, true
	}
	return "", false
}

// Finalize applies geo and local/remote attribution once a flow is done,
// avoiding per-packet geo lookups for flows that never get to speak.
func (e *Enricher) Finalize(f *model.Flow) {
	remoteIP := f.Key.IPB
	if e.Subnets.IsLocal(f.Key.IPB) && !e.Subnets.IsLocal(f.Key.IPA) {
		remoteIP = f.Key.IPA
	}

	if geo, ok := e.Geo.Lookup(remoteIP); ok {
		f.RemoteCountry = geo.Country
		f.RemoteCity = geo.City
		f.RemoteASN = geo.ASN
	}

	e.Names.Forget(f.Key)
}
