package versatiles

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/versatiles-org/versatiles/internal/coord"
)

func TestCacheNeverExceedsCapacity(t *testing.T) {
	c := newIndexCache(4)
	for i := 0; i < 20; i++ {
		key := coord.TileCoord{X: uint32(i), Z: 8}
		_, err := c.getOrLoad(key, func() (*TileIndex, error) {
			return NewTileIndex(1), nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if c.len() > 4 {
			t.Fatalf("cache holds %d entries after insert %d", c.len(), i)
		}
	}
}

func TestCacheFreshEntryNotEvictedNext(t *testing.T) {
	c := newIndexCache(2)
	loads := 0
	load := func() (*TileIndex, error) {
		loads++
		return NewTileIndex(1), nil
	}
	a := coord.TileCoord{X: 1, Z: 8}
	b := coord.TileCoord{X: 2, Z: 8}
	d := coord.TileCoord{X: 3, Z: 8}

	c.getOrLoad(a, load) // cache: a
	c.getOrLoad(b, load) // cache: b, a
	c.getOrLoad(a, load) // touch a -> cache: a, b
	c.getOrLoad(d, load) // evicts b, not the freshly touched a

	if loads != 3 {
		t.Fatalf("loads = %d, want 3", loads)
	}
	c.getOrLoad(a, load)
	if loads != 3 {
		t.Errorf("a was evicted although freshly accessed")
	}
	c.getOrLoad(b, load)
	if loads != 4 {
		t.Errorf("b survived although it was the eviction candidate")
	}
}

func TestCacheSingleFlight(t *testing.T) {
	c := newIndexCache(8)
	key := coord.TileCoord{X: 7, Z: 9}

	var loadCount atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.getOrLoad(key, func() (*TileIndex, error) {
				loadCount.Add(1)
				close(started)
				<-release
				return NewTileIndex(1), nil
			})
		}()
	}

	<-started
	close(release)
	wg.Wait()

	if got := loadCount.Load(); got != 1 {
		t.Errorf("load ran %d times for concurrent misses of one block", got)
	}
}

func TestCacheFailedLoadNotCached(t *testing.T) {
	c := newIndexCache(8)
	key := coord.TileCoord{X: 1, Z: 1}
	calls := 0
	load := func() (*TileIndex, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("transient read failure")
		}
		return NewTileIndex(1), nil
	}
	if _, err := c.getOrLoad(key, load); err == nil {
		t.Fatal("first load should fail")
	}
	if _, err := c.getOrLoad(key, load); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
