package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_DefaultTTL(t *testing.T) {
	c := cache.New(cache.Config{})
	assert.Equal(t, 5*time.Minute, c.TTL())
}

func TestCache_HitWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := cache.New(cache.Config{TTL: 5 * time.Minute, Clock: clock.Now})

	c.Put("stations:all", []string{"a"})
	clock.Advance(4*time.Minute + 59*time.Second)

	v, ok := c.Get("stations:all")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, v)
}

func TestCache_MissAtTTLBoundary(t *testing.T) {
	clock := newFakeClock()
	c := cache.New(cache.Config{TTL: 5 * time.Minute, Clock: clock.Now})

	c.Put("k", 1)
	clock.Advance(5 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok, "entry exactly TTL old must be a miss")

	// Lazy expiry: the entry is still physically present.
	entry, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, 1, entry.Value)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := cache.New(cache.Config{})
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCache_PutVersion_RejectsStaleWrite(t *testing.T) {
	clock := newFakeClock()
	c := cache.New(cache.Config{Clock: clock.Now})

	assert.True(t, c.PutVersion("k", "cycle-2", 2))
	assert.False(t, c.PutVersion("k", "cycle-1", 1))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "cycle-2", v)

	assert.True(t, c.PutVersion("k", "cycle-3", 3))
	v, _ = c.Get("k")
	assert.Equal(t, "cycle-3", v)
}

func TestCache_Invalidate(t *testing.T) {
	c := cache.New(cache.Config{})
	c.Put("a", 1)
	c.Put("b", 2)

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.InvalidateAll()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_Stats(t *testing.T) {
	clock := newFakeClock()
	c := cache.New(cache.Config{TTL: time.Minute, Clock: clock.Now})

	c.Put("old", 1)
	clock.Advance(2 * time.Minute)
	c.Put("new", 2)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 1, stats.FreshEntries)
	assert.Equal(t, time.Minute, stats.TTL)
}

func TestLookup_Typed(t *testing.T) {
	c := cache.New(cache.Config{})
	c.Put("n", 42)

	n, ok := cache.Lookup[int](c, "n")
	require.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = cache.Lookup[string](c, "n")
	assert.False(t, ok, "wrong type is a miss")
}
