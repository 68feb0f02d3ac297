package cache

import (
	"sync"
	"time"
)

// Cache is a simple thread-safe key-value store using sync.Map.
// Used for short-lived availability snapshots; mutating handlers delete the
// affected keys so readers never see stale stock for longer than the TTL.
type Cache struct {
	m sync.Map
}

var (
	once     sync.Once
	instance *Cache
)

func GetInstance() *Cache {
	once.Do(func() {
		instance = NewCache()
	})
	return instance
}

// NewCache creates a new Cache instance.
func NewCache() *Cache {
	return &Cache{}
}

// cacheItem holds a value and its expiration time.
type cacheItem struct {
	Value     interface{}
	ExpiresAt int64 // Unix timestamp in nanoseconds; 0 means no expiration
}

// Set stores a value without expiration.
func (c *Cache) Set(key interface{}, value interface{}) {
	c.m.Store(key, cacheItem{Value: value})
}

// SetWithTTL stores a value that expires after ttl.
func (c *Cache) SetWithTTL(key interface{}, value interface{}, ttl time.Duration) {
	c.m.Store(key, cacheItem{Value: value, ExpiresAt: time.Now().Add(ttl).UnixNano()})
}

// Get returns the value and whether it is present and unexpired. Expired
// entries are removed on read.
func (c *Cache) Get(key interface{}) (interface{}, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		return nil, false
	}
	item := v.(cacheItem)
	if item.ExpiresAt != 0 && time.Now().UnixNano() > item.ExpiresAt {
		c.m.Delete(key)
		return nil, false
	}
	return item.Value, true
}

// Delete removes a key.
func (c *Cache) Delete(key interface{}) {
	c.m.Delete(key)
}

// Flush removes all keys.
func (c *Cache) Flush() {
	c.m.Range(func(k, _ interface{}) bool {
		c.m.Delete(k)
		return true
	})
}
