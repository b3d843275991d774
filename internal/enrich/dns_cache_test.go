package enrich

import (
	"testing"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

func TestDNSCacheAddAndResolve(t *testing.T) {
	c := NewDNSCache()
	c.Add("example.com", []model.DNSAnswer{{Name: "example.com", IP: "93.184.216.34", TTL: 300}})

	name, ok := c.Resolve("93.184.216.34")
	if !ok || name != "example.com" {
		t.Errorf("expected example.com, got %q ok=%v", name, ok)
	}
}

func TestDNSCacheMissReturnsFalse(t *testing.T) {
	c := NewDNSCache()
	if _, ok := c.Resolve("1.2.3.4"); ok {
		t.Error("expected miss for unseen IP")
	}
}

func TestDNSCacheClampsTTL(t *testing.T) {
	c := NewDNSCache()
	c.Add("short.com", []model.DNSAnswer{{IP: "10.0.0.1", TTL: 1}})
	entry, ok := c.entries["10.0.0.1"]
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if time.Until(entry.expiresAt) < 59*time.Second {
		t.Errorf("expected TTL clamped to at least 60s, got %v", entry.expiresAt)
	}
}
