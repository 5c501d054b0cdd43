package delivery

import (
	"log/slog"
	"sync"
	"time"
)

// dnsCache caches resolver answers with TTL expiry and LRU eviction so a
// dispatch touching many recipients in one domain does not hammer DNS.
type dnsCache struct {
	config  *Config
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	entries map[string]*cacheEntry

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
	lastHit   time.Time
}

func newDNSCache(config *Config) *dnsCache {
	return &dnsCache{
		config:  config,
		logger:  slog.Default().With("component", "dns-cache"),
		metrics: GetMetrics(),
		entries: make(map[string]*cacheEntry),
	}
}

// get returns the cached value for key, or nil if absent or expired.
func (c *dnsCache) get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		c.metrics.DNSCacheMisses.Inc()
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		c.evictions++
		c.misses++
		c.metrics.DNSCacheMisses.Inc()
		c.logger.Debug("cache entry expired", "key", key)
		return nil
	}
	entry.lastHit = time.Now()
	c.hits++
	c.metrics.DNSCacheHits.Inc()
	return entry.value
}

// put stores a value under key, evicting the least recently used entry
// when the cache is full.
func (c *dnsCache) put(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.config.DNSCacheSize {
		c.evictLRU()
	}
	now := time.Now()
	c.entries[key] = &cacheEntry{
		value:     value,
		expiresAt: now.Add(c.config.DNSCacheTTL),
		lastHit:   now,
	}
}

// evictLRU removes the least recently hit entry. Caller holds the lock.
func (c *dnsCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastHit.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastHit
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evictions++
		c.logger.Debug("cache entry evicted", "key", oldestKey)
	}
}

// Stats returns cache counters for diagnostics.
func (c *dnsCache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]interface{}{
		"size":      len(c.entries),
		"max_size":  c.config.DNSCacheSize,
		"hits":      c.hits,
		"misses":    c.misses,
		"evictions": c.evictions,
	}
}
