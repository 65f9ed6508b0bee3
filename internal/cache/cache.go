package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the in-memory entry cap used when the configured size is not positive.
const DefaultSize = 10000

// PlaceCache memoizes reverse-geocoded place names keyed by rounded coordinate ("lat,lng").
// Get returns ok=false on a miss. Entries are idempotent: re-resolving a key yields the
// same name, so concurrent writers may race without harm.
type PlaceCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, name string) error
}

// LRUCache implements PlaceCache with a bounded least-recently-used map.
// Safe for concurrent use. Entries never expire; the least recently used entry
// is evicted once the cache is full.
type LRUCache struct {
	entries *lru.Cache[string, string]
}

// NewLRUCache creates an LRUCache holding at most size entries (DefaultSize if size <= 0).
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRUCache{entries: entries}, nil
}

// Get returns the cached name for key and marks it recently used.
func (c *LRUCache) Get(ctx context.Context, key string) (string, bool, error) {
	name, ok := c.entries.Get(key)
	return name, ok, nil
}

// Set stores name under key, evicting the least recently used entry when full.
func (c *LRUCache) Set(ctx context.Context, key string, name string) error {
	c.entries.Add(key, name)
	return nil
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	return c.entries.Len()
}
