/**
 * Geo Enrichment.
 *
 * Resolves an IP to coarse geographic and network-ownership data through a
 * pluggable GeoResolver, caching results per /24 (IPv4) or /48 (IPv6) for
 * 24h since routing-level geolocation rarely changes at finer granularity.
 */

package enrich

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
)

// GeoData is the resolved location/network-ownership record for an IP.
type GeoData struct {
	Country string
	City    string
	ASN     string
	Org     string
}

// GeoResolver abstracts the geolocation backend so the cache and callers
// never depend on a concrete database format.
type GeoResolver interface {
	Resolve(ip net.IP) (GeoData, error)
}

// MaxMindResolver resolves via local MaxMind City/ASN mmdb files.
type MaxMindResolver struct {
	cityDB *geoip2.Reader
	asnDB  *geoip2.Reader
}

// OpenMaxMindResolver opens the configured mmdb files. Either path may be
// empty to skip that database; a resolver with both empty always returns
// a zero GeoData.
func OpenMaxMindResolver(cityPath, asnPath string) (*MaxMindResolver, error) {
	r := &MaxMindResolver{}
	if cityPath != "" {
		db, err := geoip2.Open(cityPath)
		if err != nil {
			return nil, err
		}
		r.cityDB = db
	}
	if asnPath != "" {
		db, err := geoip2.Open(asnPath)
		if err != nil {
			if r.cityDB != nil {
				r.cityDB.Close()
			}
			return nil, err
		}
		r.asnDB = db
	}
	return r, nil
}

// Close releases the underlying mmdb file handles.
func (r *MaxMindResolver) Close() {
	if r.cityDB != nil {
		r.cityDB.Close()
	}
	if r.asnDB != nil {
		r.asnDB.Close()
	}
}

// Resolve looks up ip against whichever databases were opened.
func (r *MaxMindResolver) Resolve(ip net.IP) (GeoData, error) {
	var data GeoData

	if r.cityDB != nil {
		record, err := r.cityDB.City(ip)
		if err == nil {
			data.Country = record.Country.IsoCode
			if name := record.City.Names["en"]; name != "" {
				data.City = name
			}
		}
	}

	if r.asnDB != nil {
		record, err := r.asnDB.ASN(ip)
		if err == nil && record.AutonomousSystemNumber != 0 {
			data.ASN = fmt.Sprintf("AS%d", record.AutonomousSystemNumber)
			data.Org = record.AutonomousSystemOrganization
		}
	}

	return data, nil
}

type geoCacheEntry struct {
	data     GeoData
	cachedAt time.Time
}

const geoCacheTTL = 24 * time.Hour

// GeoCache wraps a GeoResolver with a /24 (v4) or /48 (v6) keyed cache so
// repeated lookups within the same network block cost one resolver call.
type GeoCache struct {
	resolver GeoResolver
	mu       sync.Mutex
	entries  map[string]geoCacheEntry
}

// NewGeoCache wraps resolver with a 24h /24-or-/48 cache.
func NewGeoCache(resolver GeoResolver) *GeoCache {
	return &GeoCache{resolver: resolver, entries: make(map[string]geoCacheEntry)}
}

// Lookup resolves ipStr, serving from cache when the covering block was
// resolved within the last 24h.
func (c *GeoCache) Lookup(ipStr string) (GeoData, bool) {
	if c.resolver == nil {
		return GeoData{}, false
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return GeoData{}, false
	}

	key := blockKey(ip)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && time.Since(entry.cachedAt) < geoCacheTTL {
		c.mu.Unlock()
		return entry.data, true
	}
	c.mu.Unlock()

	data, err := c.resolver.Resolve(ip)
	if err != nil {
		return GeoData{}, false
	}

	c.mu.Lock()
	c.entries[key] = geoCacheEntry{data: data, cachedAt: time.Now()}
	c.mu.Unlock()

	return data, true
}

// blockKey returns the /24 mask for IPv4 or /48 mask for IPv6, the
// granularity at which MaxMind-style databases generally agree on
// location, so finer-grained cache keys would just waste memory.
func blockKey(ip net.IP) string {
	if v4 := ip.To4(); v4 != nil {
		mask := net.CIDRMask(24, 32)
		return v4.Mask(mask).String()
	}
	mask := net.CIDRMask(48, 128)
	return ip.Mask(mask).String()
}
