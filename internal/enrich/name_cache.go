/**
 * Server Name Cache.
 *
 * Remembers the first SNI or HTTP Host observed for a flow key, so a
 * later packet of the same flow that lacks the header (e.g. a resumed
 * TLS session) still inherits the name. First observation wins and is
 * never overwritten for the life of the flow.
 */

package enrich

import (
	"sync"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// NameCache maps a flow key to the first server name observed for it.
type NameCache struct {
	mu    sync.Mutex
	names map[model.FlowKey]string
}

// NewNameCache returns an empty server-name cache.
func NewNameCache() *NameCache {
	return &NameCache{names: make(map[model.FlowKey]string)}
}

// Observe records name for key if no name has been recorded yet. Returns
// the name now associated with key (either the new one or a prior one).
func (c *NameCache) Observe(key model.FlowKey, name string) string {
	if name == "" {
		c.mu.Lock()
		existing := c.names[key]
		c.mu.Unlock()
		return existing
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.names[key]; ok {
		return existing
	}
	c.names[key] = name
	return name
}

// Forget removes key's cached name once the flow finalizes.
func (c *NameCache) Forget(key model.FlowKey) {
	c.mu.Lock()
	delete(c.names, key)
	c.mu.Unlock()
}
