package ulet

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

const memoryCacheShards = 16

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
}

// MemoryCache is the default in-memory Cache: a sharded map keyed by the
// derived cache key. Lookups are pure reads; expired entries linger until
// Sweep removes them.
type MemoryCache struct {
	shards [memoryCacheShards]*cacheShard
	now    func() time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{now: time.Now}
	for i := range c.shards {
		c.shards[i] = &cacheShard{store: make(map[string]*CacheEntry)}
	}
	return c
}

func (c *MemoryCache) shard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%memoryCacheShards]
}

// Get returns the entry for key only while it is live. It never mutates the
// cache, so concurrent lookups stay cheap; dead entries are Sweep's job.
func (c *MemoryCache) Get(key string) (*CacheEntry, bool) {
	shard := c.shard(key)
	shard.mu.RLock()
	entry, ok := shard.store[key]
	shard.mu.RUnlock()

	if !ok || !entry.Live(c.now()) {
		return nil, false
	}
	return entry, true
}

// Set stores entry under key, stamping StoredAt with the current time.
// Overwriting an existing key is last-writer-wins.
func (c *MemoryCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	entry.StoredAt = c.now()
	entry.TTL = ttl

	shard := c.shard(key)
	shard.mu.Lock()
	shard.store[key] = entry
	shard.mu.Unlock()
}

// Delete removes key.
func (c *MemoryCache) Delete(key string) {
	shard := c.shard(key)
	shard.mu.Lock()
	delete(shard.store, key)
	shard.mu.Unlock()
}

// Sweep removes all entries that are no longer live and reports how many it
// evicted. Expired keys are collected under a read lock first and each is
// re-checked before deletion, so a Set racing with the pass is never lost.
func (c *MemoryCache) Sweep() int {
	evicted := 0
	for _, shard := range c.shards {
		now := c.now()

		shard.mu.RLock()
		var dead []string
		for key, entry := range shard.store {
			if !entry.Live(now) {
				dead = append(dead, key)
			}
		}
		shard.mu.RUnlock()

		if len(dead) == 0 {
			continue
		}

		shard.mu.Lock()
		for _, key := range dead {
			if entry, ok := shard.store[key]; ok && !entry.Live(c.now()) {
				delete(shard.store, key)
				evicted++
			}
		}
		shard.mu.Unlock()
	}
	return evicted
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*CacheEntry)
		shard.mu.Unlock()
	}
}

// Len reports the number of stored entries, live or not.
func (c *MemoryCache) Len() int {
	n := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		n += len(shard.store)
		shard.mu.RUnlock()
	}
	return n
}

// DefaultCacheKeyFunc derives a deterministic key from the method, resolved
// URL and serialized body.
func DefaultCacheKeyFunc(method, url string, body []byte) string {
	h := fnv.New64a()
	h.Write([]byte(method))
	h.Write([]byte{':'})
	h.Write([]byte(url))
	if len(body) > 0 {
		h.Write([]byte{':'})
		h.Write(body)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// DefaultCacheCondition permits caching for GET only.
func DefaultCacheCondition(method string) bool {
	return method == "GET"
}
