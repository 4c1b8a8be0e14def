package server

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TileCache is a TTL'd LRU store for encoded tile responses. A disabled
// cache accepts writes and never hits.
type TileCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewTileCache builds a cache holding up to size tiles for at most ttl.
// With enabled=false every lookup misses.
func NewTileCache(enabled bool, size int, ttl time.Duration) *TileCache {
	if !enabled || size <= 0 {
		return &TileCache{}
	}
	return &TileCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns the cached response bytes for the key.
func (c *TileCache) Get(key string) ([]byte, bool) {
	if c.lru == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

// Put stores the response bytes. Safe for concurrent fire-and-forget use.
func (c *TileCache) Put(key string, data []byte) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, data)
}

// Len reports the number of cached tiles.
func (c *TileCache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
