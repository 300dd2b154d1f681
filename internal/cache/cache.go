package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is the byte cache used for upstream icon assets. Get returns the
// cached value if present; Set stores unconditionally. Implementations must be
// safe for concurrent use. At-most-one-fetch-per-key is not part of the
// contract: concurrent misses for one key may each fetch upstream.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// LRUCache implements Cache with a fixed-capacity least-recently-used map.
// Icons are identical for identical URLs, so entries never expire; the LRU
// bound alone keeps memory constant.
type LRUCache struct {
	entries *lru.Cache[string, []byte]
}

// NewLRUCache creates an LRUCache holding at most capacity entries.
func NewLRUCache(capacity int) (*LRUCache, error) {
	entries, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, fmt.Errorf("lru cache: %w", err)
	}
	return &LRUCache{entries: entries}, nil
}

// Get retrieves the cached bytes for key and marks the entry recently used.
func (c *LRUCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	val, ok := c.entries.Get(key)
	return val, ok, nil
}

// Set stores value under key, evicting the least recently used entry when the
// cache is at capacity.
func (c *LRUCache) Set(ctx context.Context, key string, value []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.entries.Add(key, value)
	return nil
}

// Len returns the number of cached entries. Used by tests and the health handler.
func (c *LRUCache) Len() int {
	return c.entries.Len()
}
