package versatiles

import (
	"container/list"
	"sync"

	"github.com/versatiles-org/versatiles/internal/coord"
)

// DefaultIndexCacheEntries bounds the tile-index cache of a reader. A
// decompressed index is at most 768 KiB (65536 slots of 12 bytes), in
// practice far smaller, so the default stays in the tens of megabytes.
const DefaultIndexCacheEntries = 2048

// indexCache is a bounded LRU of decoded per-block tile indexes, shared
// by all concurrent users of a reader. Concurrent misses for the same block are
// deduplicated: the first caller loads, later callers wait for that
// result.
type indexCache struct {
	mu      sync.Mutex
	entries map[coord.TileCoord]*list.Element
	order   *list.List // front = most recently used
	max     int
}

type cacheSlot struct {
	key   coord.TileCoord
	index *TileIndex
	err   error
	ready chan struct{}
}

func newIndexCache(maxEntries int) *indexCache {
	if maxEntries <= 0 {
		maxEntries = DefaultIndexCacheEntries
	}
	return &indexCache{
		entries: make(map[coord.TileCoord]*list.Element),
		order:   list.New(),
		max:     maxEntries,
	}
}

// getOrLoad returns the cached index for a block, loading it via load on
// a miss. Only one load per block runs at a time.
func (c *indexCache) getOrLoad(key coord.TileCoord, load func() (*TileIndex, error)) (*TileIndex, error) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		slot := el.Value.(*cacheSlot)
		c.mu.Unlock()

		<-slot.ready
		if slot.err != nil {
			return nil, slot.err
		}
		return slot.index, nil
	}

	slot := &cacheSlot{key: key, ready: make(chan struct{})}
	el := c.order.PushFront(slot)
	c.entries[key] = el
	c.evictLocked()
	c.mu.Unlock()

	slot.index, slot.err = load()
	close(slot.ready)

	if slot.err != nil {
		// Failed loads do not stay cached.
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == el {
			c.order.Remove(el)
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, slot.err
	}
	return slot.index, nil
}

// evictLocked trims the cache to its bound from the least recently used
// end. It stops at the first entry that is still loading, so the cache
// can exceed its bound until that load completes.
func (c *indexCache) evictLocked() {
	for len(c.entries) > c.max {
		el := c.order.Back()
		if el == nil {
			return
		}
		slot := el.Value.(*cacheSlot)
		select {
		case <-slot.ready:
		default:
			return // oldest entry still loading, leave it
		}
		c.order.Remove(el)
		delete(c.entries, slot.key)
	}
}

// len returns the number of cached entries.
func (c *indexCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
