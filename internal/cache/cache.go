// Package cache provides a time-bounded key/value store used to shield
// upstream providers from repeated calls within a freshness window.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the freshness window applied when Config.TTL is zero.
const DefaultTTL = 5 * time.Minute

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// Entry is a cached value together with the time it was fetched.
type Entry struct {
	Value     any
	FetchedAt time.Time

	// Version orders writes for the same key; see PutVersion.
	Version uint64
}

// Config holds configuration for a Cache.
type Config struct {
	// TTL is how long an entry stays fresh (default: 5 minutes).
	TTL time.Duration

	// Clock overrides time.Now.
	Clock Clock
}

// Cache maps logical query keys to their most recent result.
// Expired entries are ignored on read but never proactively evicted;
// the key space is one entry per distinct query signature.
type Cache struct {
	ttl   time.Duration
	clock Clock

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates a new Cache.
func New(cfg Config) *Cache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]Entry),
	}
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the value stored under key if it is still fresh.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.clock().Sub(entry.FetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.Value, true
}

// Put stores value under key, stamped with the current time.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.entries[key]
	c.entries[key] = Entry{
		Value:     value,
		FetchedAt: c.clock(),
		Version:   prev.Version,
	}
}

// PutVersion stores value under key unless a write with a higher version
// already landed. It reports whether the value was stored.
func (c *Cache) PutVersion(key string, value any, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.entries[key]; ok && prev.Version > version {
		return false
	}

	c.entries[key] = Entry{
		Value:     value,
		FetchedAt: c.clock(),
		Version:   version,
	}
	return true
}

// Peek returns the raw entry regardless of freshness.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Invalidate removes key. Subsequent reads miss until the next Put.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateAll clears every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Stats describes the cache contents at a point in time.
type Stats struct {
	Entries      int
	FreshEntries int
	TTL          time.Duration
}

// Stats returns entry counts.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock()
	fresh := 0
	for _, e := range c.entries {
		if now.Sub(e.FetchedAt) < c.ttl {
			fresh++
		}
	}

	return Stats{
		Entries:      len(c.entries),
		FreshEntries: fresh,
		TTL:          c.ttl,
	}
}

// Lookup is a typed Get. A present value of the wrong type is a miss.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
