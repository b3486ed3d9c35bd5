package cache

import (
	"context"
	"crypto/sha1" //nolint:gosec // G505: sha1 for cache keys, not security
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"imagegen/internal/core"
)

// LRUCache is a thread-safe LRU cache with expiration
type LRUCache struct {
	capacity int
	items    map[string]*CacheItem
	mu       sync.RWMutex
	head     *CacheItem
	tail     *CacheItem
	ctx      context.Context
	cancel   context.CancelFunc
}

// CacheItem represents an item in the cache with LRU links
type CacheItem struct {
	Value      any
	Expiration int64
	key        string
	prev       *CacheItem
	next       *CacheItem
}

// NewCache creates a new LRU Cache
func NewCache() *LRUCache {
	return NewCacheWithCapacity(core.CacheDefaultCapacity)
}

// NewCacheWithCapacity creates an LRU cache holding at most capacity items.
func NewCacheWithCapacity(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = core.CacheDefaultCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &LRUCache{
		capacity: capacity,
		items:    make(map[string]*CacheItem),
		ctx:      ctx,
		cancel:   cancel,
	}

	c.head = &CacheItem{}
	c.tail = &CacheItem{}
	c.head.next = c.tail
	c.tail.prev = c.head

	go c.startCleanupWorker()
	return c
}

func (c *LRUCache) startCleanupWorker() {
	ticker := time.NewTicker(core.CacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.ctx.Done():
			return
		}
	}
}

// Stop terminates the cache cleanup worker goroutine.
func (c *LRUCache) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Set stores a value in the cache with the given TTL.
func (c *LRUCache) Set(key string, value any, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		item.Value = value
		item.Expiration = time.Now().Add(duration).UnixNano()
		c.moveToFront(item)
		return
	}

	item := &CacheItem{
		Value:      value,
		Expiration: time.Now().Add(duration).UnixNano(),
		key:        key,
	}

	c.addToFront(item)
	c.items[key] = item

	if len(c.items) > c.capacity {
		c.evict()
	}
}

// Get retrieves a value from the cache, returning false if not found or expired.
func (c *LRUCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return nil, false
	}

	if time.Now().UnixNano() > item.Expiration {
		c.remove(item)
		delete(c.items, key)
		return nil, false
	}

	c.moveToFront(item)
	return item.Value, true
}

func (c *LRUCache) addToFront(item *CacheItem) {
	item.next = c.head.next
	item.prev = c.head
	c.head.next.prev = item
	c.head.next = item
}

func (c *LRUCache) moveToFront(item *CacheItem) {
	c.remove(item)
	c.addToFront(item)
}

func (c *LRUCache) remove(item *CacheItem) {
	item.prev.next = item.next
	item.next.prev = item.prev
}

func (c *LRUCache) evict() {
	if c.tail.prev == c.head {
		return
	}
	item := c.tail.prev
	c.remove(item)
	delete(c.items, item.key)
}

func (c *LRUCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	for key, item := range c.items {
		if now > item.Expiration {
			c.remove(item)
			delete(c.items, key)
		}
	}
}

var _ core.Cache = (*LRUCache)(nil)

// EnhancementCache remembers successful prompt rewrites.
type EnhancementCache struct {
	lru core.Cache
	ttl time.Duration
}

// NewEnhancementCache creates an enhancement cache with the given TTL.
func NewEnhancementCache(ttl time.Duration) *EnhancementCache {
	if ttl <= 0 {
		ttl = core.EnhancementCacheTTL
	}
	return &EnhancementCache{lru: NewCache(), ttl: ttl}
}

// Get returns the cached rewrite for prompt and suffix.
func (ec *EnhancementCache) Get(prompt, suffix string) (string, bool) {
	cached, found := ec.lru.Get(GenerateEnhancementCacheKey(prompt, suffix))
	if !found {
		return "", false
	}
	rewritten, ok := cached.(string)
	return rewritten, ok
}

// Set stores a rewrite. Empty rewrites are ignored.
func (ec *EnhancementCache) Set(prompt, suffix, rewritten string) {
	if rewritten == "" {
		return
	}
	ec.lru.Set(GenerateEnhancementCacheKey(prompt, suffix), rewritten, ec.ttl)
}

// Stop terminates the cleanup worker.
func (ec *EnhancementCache) Stop() {
	ec.lru.Stop()
}

// Close stops the cache and releases resources.
func (ec *EnhancementCache) Close() error {
	ec.Stop()
	return nil
}

// GenerateEnhancementCacheKey creates a cache key from a prompt and style suffix
func GenerateEnhancementCacheKey(prompt, suffix string) string {
	h := sha1.New() //nolint:gosec // G401: sha1 for cache keys, not security
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(suffix))
	return fmt.Sprintf("enhance:%s:%s", core.CacheKeyVersion, hex.EncodeToString(h.Sum(nil)))
}

// TruncateCacheKey safely truncates cache key for log display
func TruncateCacheKey(key string, maxLen int) string {
	if len(key) <= maxLen {
		return key
	}
	return key[:maxLen]
}
