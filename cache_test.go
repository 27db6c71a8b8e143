package ulet

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

// fakeClock lets cache tests control time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache() (*MemoryCache, *fakeClock) {
	cache := NewMemoryCache()
	clock := newFakeClock()
	cache.now = clock.Now
	return cache, clock
}

func testEntry(body string) *CacheEntry {
	return &CacheEntry{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}
}

func TestMemoryCacheSetGet(t *testing.T) {
	cache, _ := newTestCache()

	cache.Set("key1", testEntry("value1"), 1*time.Minute)

	entry, ok := cache.Get("key1")
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if string(entry.Body) != "value1" {
		t.Errorf("Expected 'value1', got %q", string(entry.Body))
	}
	if entry.TTL != 1*time.Minute {
		t.Errorf("Expected TTL=1m, got %v", entry.TTL)
	}

	if _, ok := cache.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}
}

func TestMemoryCacheGetIsPureRead(t *testing.T) {
	cache, clock := newTestCache()

	cache.Set("key1", testEntry("value1"), 1*time.Minute)
	clock.Advance(2 * time.Minute)

	if _, ok := cache.Get("key1"); ok {
		t.Error("Expected expired entry to behave as a miss")
	}
	// Lookups never evict; the entry stays until a sweep pass.
	if cache.Len() != 1 {
		t.Errorf("Expected expired entry to remain stored, Len=%d", cache.Len())
	}
}

func TestCacheEntryExpiryBoundary(t *testing.T) {
	cache, clock := newTestCache()

	ttl := 30 * time.Second
	cache.Set("key1", testEntry("v"), ttl)

	clock.Advance(ttl - 1*time.Nanosecond)
	if _, ok := cache.Get("key1"); !ok {
		t.Error("Expected hit just before expiry")
	}

	clock.Advance(1 * time.Nanosecond)
	if _, ok := cache.Get("key1"); ok {
		t.Error("Expected entry aged exactly TTL to be dead")
	}
}

func TestMemoryCacheOverwrite(t *testing.T) {
	cache, _ := newTestCache()

	cache.Set("key1", testEntry("old"), 1*time.Minute)
	cache.Set("key1", testEntry("new"), 1*time.Minute)

	entry, ok := cache.Get("key1")
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if string(entry.Body) != "new" {
		t.Errorf("Expected last write to win, got %q", string(entry.Body))
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", cache.Len())
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	cache, _ := newTestCache()

	cache.Set("key1", testEntry("v"), 1*time.Minute)
	cache.Delete("key1")

	if _, ok := cache.Get("key1"); ok {
		t.Error("Expected miss after delete")
	}
	// Deleting a missing key is a no-op.
	cache.Delete("missing")
}

func TestMemoryCacheSweep(t *testing.T) {
	cache, clock := newTestCache()

	cache.Set("short1", testEntry("a"), 10*time.Second)
	cache.Set("short2", testEntry("b"), 10*time.Second)
	cache.Set("long", testEntry("c"), 10*time.Minute)

	clock.Advance(1 * time.Minute)

	evicted := cache.Sweep()
	if evicted != 2 {
		t.Errorf("Expected 2 evictions, got %d", evicted)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 surviving entry, got %d", cache.Len())
	}
	if _, ok := cache.Get("long"); !ok {
		t.Error("Expected live entry to survive the sweep")
	}
}

func TestMemoryCacheSweepNothingExpired(t *testing.T) {
	cache, _ := newTestCache()

	cache.Set("key1", testEntry("v"), 1*time.Hour)
	if evicted := cache.Sweep(); evicted != 0 {
		t.Errorf("Expected 0 evictions, got %d", evicted)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected entry untouched, Len=%d", cache.Len())
	}
}

func TestMemoryCacheClear(t *testing.T) {
	cache, _ := newTestCache()

	for i := 0; i < 20; i++ {
		cache.Set(fmt.Sprintf("key%d", i), testEntry("v"), 1*time.Minute)
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, Len=%d", cache.Len())
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key%d-%d", g, i%10)
				cache.Set(key, testEntry("v"), 1*time.Millisecond)
				cache.Get(key)
				if i%25 == 0 {
					cache.Sweep()
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestDefaultCacheKeyFunc(t *testing.T) {
	key1 := DefaultCacheKeyFunc("GET", "http://example.com/a", nil)
	key2 := DefaultCacheKeyFunc("GET", "http://example.com/a", nil)
	if key1 != key2 {
		t.Error("Expected identical requests to derive identical keys")
	}

	if DefaultCacheKeyFunc("POST", "http://example.com/a", nil) == key1 {
		t.Error("Expected method to contribute to the key")
	}
	if DefaultCacheKeyFunc("GET", "http://example.com/b", nil) == key1 {
		t.Error("Expected URL to contribute to the key")
	}
	if DefaultCacheKeyFunc("GET", "http://example.com/a", []byte(`{"x":1}`)) == key1 {
		t.Error("Expected body to contribute to the key")
	}
}

func TestDefaultCacheCondition(t *testing.T) {
	if !DefaultCacheCondition("GET") {
		t.Error("Expected GET to be cacheable")
	}
	for _, m := range []string{"POST", "PUT", "DELETE"} {
		if DefaultCacheCondition(m) {
			t.Errorf("Expected %s to not be cacheable", m)
		}
	}
}
