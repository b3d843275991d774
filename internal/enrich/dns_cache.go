/**
 * DNS Answer Cache.
 *
 * Maps a resolved IP back to the query name that produced it, so later
 * packets to that IP can be attributed to a domain even without their own
 * DNS exchange. Clamps TTL into [60s, 1h] to bound memory held by both
 * very short-lived and absurdly long-lived records, and evicts via LRU
 * once the cache reaches 50,000 entries.
 */

package enrich

import (
	"container/list"
	"sync"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

const (
	dnsCacheCapacity = 50000
	dnsTTLMin        = 60 * time.Second
	dnsTTLMax        = time.Hour
)

type dnsCacheEntry struct {
	ip        string
	name      string
	expiresAt time.Time
	elem      *list.Element
}

// DNSCache is an LRU cache from resolved IP to query name.
type DNSCache struct {
	mu      sync.Mutex
	entries map[string]*dnsCacheEntry
	order   *list.List // front = most recently used
}

// NewDNSCache returns an empty DNS answer cache.
func NewDNSCache() *DNSCache {
	return &DNSCache{
		entries: make(map[string]*dnsCacheEntry),
		order:   list.New(),
	}
}

// Add records every answer in answers under its query name, clamping TTL.
func (c *DNSCache) Add(query string, answers []model.DNSAnswer) {
	if query == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range answers {
		if a.IP == "" {
			continue
		}
		ttl := time.Duration(a.TTL) * time.Second
		if ttl < dnsTTLMin {
			ttl = dnsTTLMin
		} else if ttl > dnsTTLMax {
			ttl = dnsTTLMax
		}

		if existing, ok := c.entries[a.IP]; ok {
			existing.name = query
			existing.expiresAt = time.Now().Add(ttl)
			c.order.MoveToFront(existing.elem)
			continue
		}

		entry := &dnsCacheEntry{ip: a.IP, name: query, expiresAt: time.Now().Add(ttl)}
		entry.elem = c.order.PushFront(entry)
		c.entries[a.IP] = entry

		if len(c.entries) > dnsCacheCapacity {
			c.evictOldest()
		}
	}
}

// Resolve returns the cached query name for ip, if present and unexpired.
func (c *DNSCache) Resolve(ip string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[ip]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(entry)
		return "", false
	}
	c.order.MoveToFront(entry.elem)
	return entry.name, true
}

func (c *DNSCache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeLocked(oldest.Value.(*dnsCacheEntry))
}

func (c *DNSCache) removeLocked(entry *dnsCacheEntry) {
	c.order.Remove(entry.elem)
	delete(c.entries, entry.ip)
}
