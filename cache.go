package lumengo

import (
	"hash/fnv"
	"sync"
	"time"
)

// InMemoryCache is a sharded in-memory ResultCache. Expiry is enforced lazily
// on Get; an optional background sweep bounds memory by removing entries that
// are never looked up again.
type InMemoryCache struct {
	shards    []*cacheShard
	numShards int

	sweepStop chan struct{}
	sweepOnce sync.Once
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
}

// NewInMemoryCache creates an empty cache. Call StartSweeper to enable the
// background sweep; Stop tears it down.
func NewInMemoryCache() *InMemoryCache {
	numShards := 16
	shards := make([]*cacheShard, numShards)
	for i := range shards {
		shards[i] = &cacheShard{
			store: make(map[string]*CacheEntry),
		}
	}
	return &InMemoryCache{
		shards:    shards,
		numShards: numShards,
		sweepStop: make(chan struct{}),
	}
}

func (c *InMemoryCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(c.numShards)]
}

// Get returns the entry for key if present and unexpired. An expired entry is
// purged as a side effect.
func (c *InMemoryCache) Get(key string) (*CacheEntry, bool) {
	shard := c.getShard(key)

	shard.mu.RLock()
	entry, exists := shard.store[key]
	shard.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		shard.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// replaced the expired entry.
		if cur, ok := shard.store[key]; ok && cur == entry {
			delete(shard.store, key)
		}
		shard.mu.Unlock()
		return nil, false
	}

	return entry, true
}

// Set stores result under key, overwriting any existing entry.
func (c *InMemoryCache) Set(key string, result Result, ttl time.Duration) {
	now := time.Now()
	entry := &CacheEntry{
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	shard.store[key] = entry
	shard.mu.Unlock()
}

// Delete removes the entry for key.
func (c *InMemoryCache) Delete(key string) {
	shard := c.getShard(key)
	shard.mu.Lock()
	delete(shard.store, key)
	shard.mu.Unlock()
}

// Clear removes all entries.
func (c *InMemoryCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*CacheEntry)
		shard.mu.Unlock()
	}
}

// Len reports the current number of entries across all shards, including any
// expired entries the sweep has not reached yet.
func (c *InMemoryCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}

// StartSweeper launches the background sweep loop. The sweep is purely a
// memory bound; the lazy check in Get is what guarantees correctness.
func (c *InMemoryCache) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep(time.Now())
			case <-c.sweepStop:
				return
			}
		}
	}()
}

// Stop terminates the background sweep, if running. Safe to call more than
// once.
func (c *InMemoryCache) Stop() {
	c.sweepOnce.Do(func() {
		close(c.sweepStop)
	})
}

func (c *InMemoryCache) sweep(now time.Time) {
	for _, shard := range c.shards {
		shard.mu.Lock()
		for key, entry := range shard.store {
			if now.After(entry.ExpiresAt) {
				delete(shard.store, key)
			}
		}
		shard.mu.Unlock()
	}
}

// DefaultCacheCondition caches every request. Generation calls are expensive
// and deterministic for identical payloads, so opting out is the exception.
func DefaultCacheCondition(req *Request) bool {
	return true
}
