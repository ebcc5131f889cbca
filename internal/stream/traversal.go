package stream

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/lanrat/extsort"
	"golang.org/x/sync/errgroup"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/coord"
)

// DefaultTraversalBudget bounds the in-memory phase of a traversal cache
// before it spills to disk.
const DefaultTraversalBudget = int64(256 << 20)

// slotItem is one buffered tile keyed by its destination slot. It
// serializes itself for external sorting.
type slotItem struct {
	slot uint64
	c    coord.TileCoord
	data []byte
}

func (s slotItem) ToBytes() []byte {
	buf := make([]byte, 0, 2*binary.MaxVarintLen64+2*binary.MaxVarintLen32+1+len(s.data))
	buf = binary.AppendUvarint(buf, s.slot)
	buf = append(buf, s.c.Z)
	buf = binary.AppendUvarint(buf, uint64(s.c.X))
	buf = binary.AppendUvarint(buf, uint64(s.c.Y))
	buf = binary.AppendUvarint(buf, uint64(len(s.data)))
	buf = append(buf, s.data...)
	return buf
}

func slotItemFromBytes(b []byte) extsort.SortType {
	slot, pos := binary.Uvarint(b)
	z := b[pos]
	pos++
	x, n := binary.Uvarint(b[pos:])
	pos += n
	y, n := binary.Uvarint(b[pos:])
	pos += n
	length, n := binary.Uvarint(b[pos:])
	pos += n
	data := make([]byte, length)
	copy(data, b[pos:pos+int(length)])
	return slotItem{
		slot: slot,
		c:    coord.TileCoord{X: uint32(x), Y: uint32(y), Z: z},
		data: data,
	}
}

func slotItemLess(a, b extsort.SortType) bool {
	return a.(slotItem).slot < b.(slotItem).slot
}

// TraversalCache reorders tiles from producer order into consumer order.
// During the push phase items are appended at their destination slot;
// the pop phase drains slots in ascending order. Until the memory budget
// is reached everything stays in an in-memory buffer; beyond it the
// cache routes all items through an external sorter that spills to disk.
type TraversalCache struct {
	budget int64
	used   int64

	mem []slotItem

	spilling bool
	in       chan extsort.SortType
	out      chan extsort.SortType
	errs     chan error
	group    *errgroup.Group
}

// NewTraversalCache creates a cache with the given in-memory byte
// budget; zero selects the default.
func NewTraversalCache(budget int64) *TraversalCache {
	if budget <= 0 {
		budget = DefaultTraversalBudget
	}
	return &TraversalCache{budget: budget}
}

// Push appends an item at its slot. ctx only matters once the cache has
// started spilling.
func (tc *TraversalCache) Push(ctx context.Context, slot uint64, c coord.TileCoord, b binio.Blob) error {
	it := slotItem{slot: slot, c: c, data: b.AsBytes()}

	if !tc.spilling {
		tc.mem = append(tc.mem, it)
		tc.used += int64(len(it.data)) + 32
		if tc.used > tc.budget {
			tc.startSpill(ctx)
		}
		return nil
	}

	select {
	case tc.in <- it:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startSpill switches to the external sorter and streams the buffered
// items into it.
func (tc *TraversalCache) startSpill(ctx context.Context) {
	tc.spilling = true
	tc.in = make(chan extsort.SortType, chanBuffer)
	config := extsort.DefaultConfig()
	sorter, outChan, errChan := extsort.New(tc.in, slotItemFromBytes, slotItemLess, config)
	tc.out = outChan
	tc.errs = errChan

	tc.group, _ = errgroup.WithContext(ctx)
	tc.group.Go(func() error {
		sorter.Sort(ctx)
		return nil
	})

	for _, it := range tc.mem {
		tc.in <- it
	}
	tc.mem = nil
	tc.used = 0
}

// Drain emits every pushed item in ascending slot order and resets the
// cache.
func (tc *TraversalCache) Drain(ctx context.Context, emit func(coord.TileCoord, binio.Blob) error) error {
	if !tc.spilling {
		sort.Slice(tc.mem, func(i, j int) bool { return tc.mem[i].slot < tc.mem[j].slot })
		for _, it := range tc.mem {
			if err := emit(it.c, binio.NewBlob(it.data)); err != nil {
				return err
			}
		}
		tc.mem = nil
		tc.used = 0
		return nil
	}

	close(tc.in)
	for data := range tc.out {
		it := data.(slotItem)
		if err := emit(it.c, binio.NewBlob(it.data)); err != nil {
			return err
		}
	}
	if err := <-tc.errs; err != nil {
		return err
	}
	if err := tc.group.Wait(); err != nil {
		return err
	}
	tc.spilling = false
	return nil
}

// Reorder buffers the whole input stream in a traversal cache and
// re-emits it ordered by slotOf. Producers that emit in one documented
// order use this to satisfy writers that need another.
func Reorder(ctx context.Context, in *Stream[binio.Blob], slotOf func(coord.TileCoord) uint64, budget int64) *Stream[binio.Blob] {
	return Generate(ctx, func(emit func(Item[binio.Blob]) bool) error {
		tc := NewTraversalCache(budget)
		if err := in.Each(func(it Item[binio.Blob]) {
			tc.Push(ctx, slotOf(it.Coord), it.Coord, it.Value)
		}); err != nil {
			return err
		}
		return tc.Drain(ctx, func(c coord.TileCoord, b binio.Blob) error {
			if !emit(Item[binio.Blob]{Coord: c, Value: b}) {
				return context.Canceled
			}
			return nil
		})
	})
}
