package cache

import (
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultMaxEntries = 1024

// Cache is a bounded in-process LRU whose entries expire after ttl.
type Cache[V any] struct {
	lru *lru.LRU[string, V]
}

func New[V any](maxEntries int, ttl time.Duration) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Cache[V]{lru: lru.NewLRU[string, V](maxEntries, nil, ttl)}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

func (c *Cache[V]) Set(key string, val V) {
	c.lru.Add(key, val)
}

func (c *Cache[V]) Delete(key string) {
	c.lru.Remove(key)
}

func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

func (c *Cache[V]) Clear() {
	c.lru.Purge()
}

// InventoryKey is the cache key for one inventory's details.
func InventoryKey(inventoryID int64) string {
	return "inv:" + strconv.FormatInt(inventoryID, 10)
}
