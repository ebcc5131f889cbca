package pipeline

import (
	"encoding/hex"
	"hash/fnv"
	"os"
	"sync"

	"github.com/versatiles-org/versatiles/internal/container"
	"github.com/versatiles-org/versatiles/internal/container/versatiles"
	"github.com/versatiles-org/versatiles/internal/stream"
)

// Runtime carries the shared services a pipeline needs: the container
// registry, the event bus, progress reporting, a cache, and the memory
// budget advisory. It is created explicitly and threaded through
// constructors; there is no global instance.
type Runtime struct {
	Registry *container.Registry
	Bus      *EventBus
	Progress *ProgressFactory

	// Dir is the base directory against which relative paths in
	// pipeline definitions resolve.
	Dir string

	// MaxMemory is the advisory budget in bytes for reorder buffers;
	// zero selects the default.
	MaxMemory int64

	cache *Cache
}

// NewRuntime builds a runtime with the standard container formats
// registered and an in-memory cache.
func NewRuntime() *Runtime {
	registry := container.NewRegistry()
	versatiles.Register(registry)

	bus := NewEventBus()
	return &Runtime{
		Registry: registry,
		Bus:      bus,
		Progress: NewProgressFactory(bus),
		Dir:      ".",
		cache:    NewMemoryCache(),
	}
}

// Cache returns the runtime's tile cache.
func (rt *Runtime) Cache() *Cache {
	return rt.cache
}

// UseDiskCache switches the cache to keyed files below dir; an empty dir
// selects a fresh temp directory.
func (rt *Runtime) UseDiskCache(dir string) error {
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "versatiles-cache-*")
		if err != nil {
			return err
		}
	}
	rt.cache = NewDiskCache(dir)
	return nil
}

// TraversalBudget returns the byte budget for traversal caches.
func (rt *Runtime) TraversalBudget() int64 {
	if rt.MaxMemory > 0 {
		return rt.MaxMemory
	}
	return stream.DefaultTraversalBudget
}

// Cache stores keyed byte payloads either in memory or as files below a
// directory. Pipelines use it for build-time artifacts and memoized
// tiles.
type Cache struct {
	dir string // empty = in-memory

	mu  sync.RWMutex
	mem map[string][]byte
}

// NewMemoryCache returns an in-memory cache.
func NewMemoryCache() *Cache {
	return &Cache{mem: make(map[string][]byte)}
}

// NewDiskCache returns a cache storing entries as files below dir.
func NewDiskCache(dir string) *Cache {
	return &Cache{dir: dir, mem: make(map[string][]byte)}
}

// Get returns a cached payload.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c.dir != "" {
		data, err := os.ReadFile(c.path(key))
		if err != nil {
			return nil, false
		}
		return data, true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.mem[key]
	return data, ok
}

// Put stores a payload.
func (c *Cache) Put(key string, data []byte) error {
	if c.dir != "" {
		return os.WriteFile(c.path(key), data, 0644)
	}
	c.mu.Lock()
	c.mem[key] = data
	c.mu.Unlock()
	return nil
}

func (c *Cache) path(key string) string {
	return c.dir + string(os.PathSeparator) + CacheKey(key)
}

// CacheKey maps an arbitrary string to a filename-safe key.
func CacheKey(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
