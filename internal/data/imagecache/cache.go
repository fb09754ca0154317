// Package imagecache holds decoded thumbnails behind a bounded cache and a
// loader with deduplicated, cancellable, retrying fetches.
package imagecache

import (
	"sync"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

// DefaultCapacity bounds the thumbnail cache.
const DefaultCapacity = 800

// Cache is a fixed-capacity thumbnail cache keyed by event identity.
// Eviction is insertion-order FIFO, not access-order LRU: thumbnails are
// immutable and re-fetchable, so an aged-out hot key simply costs one
// refetch. Entries are never invalidated individually.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]model.Thumbnail
	order    []string // insertion order, oldest first
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]model.Thumbnail, capacity),
	}
}

func (c *Cache) Get(key string) (model.Thumbnail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.entries[key]
	return t, ok
}

// Put stores a thumbnail, evicting the oldest entry when the key is new and
// the cache is at capacity.
func (c *Cache) Put(key string, thumb model.Thumbnail) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = thumb
		return
	}

	if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = thumb
	c.order = append(c.order, key)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry. Process-wide reset only.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]model.Thumbnail, c.capacity)
	c.order = c.order[:0]
}
