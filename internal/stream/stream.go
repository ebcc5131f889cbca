// Package stream implements bounded, cancellable streams of
// (coordinate, value) pairs with parallel map stages, plus the traversal
// cache that reorders a stream from producer order into consumer order.
package stream

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/versatiles-org/versatiles/internal/coord"
)

// Item pairs a tile coordinate with a payload.
type Item[T any] struct {
	Coord coord.TileCoord
	Value T
}

// Stream is a bounded asynchronous sequence of items. Emission order is
// defined only where the producer documents it; parallel stages may
// interleave. Dropping the consumer cancels upstream work through the
// stream's context.
type Stream[T any] struct {
	ctx   context.Context
	items chan Item[T]

	mu  sync.Mutex
	err error
}

const chanBuffer = 64

func newStream[T any](ctx context.Context) *Stream[T] {
	return &Stream[T]{ctx: ctx, items: make(chan Item[T], chanBuffer)}
}

// emit sends an item unless the stream was cancelled. It is safe to call
// from multiple producer goroutines.
func (s *Stream[T]) emit(it Item[T]) bool {
	select {
	case s.items <- it:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Stream[T]) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Err returns the first error a producer reported. Valid after the
// stream is drained.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// drain discards remaining items in the background so an abandoned
// upstream producer can run to completion.
func (s *Stream[T]) drain() {
	go func() {
		for range s.items {
		}
	}()
}

// cpuParallelism bounds CPU-heavy stages.
func cpuParallelism() int {
	return runtime.NumCPU()
}

// Generate runs a producer function in its own goroutine. The producer
// emits items via the callback, which reports false once the stream is
// cancelled.
func Generate[T any](ctx context.Context, run func(emit func(Item[T]) bool) error) *Stream[T] {
	s := newStream[T](ctx)
	go func() {
		defer close(s.items)
		if err := run(s.emit); err != nil {
			s.setErr(err)
		}
	}()
	return s
}

// FromVec emits the given items in order.
func FromVec[T any](ctx context.Context, items []Item[T]) *Stream[T] {
	return Generate(ctx, func(emit func(Item[T]) bool) error {
		for _, it := range items {
			if !emit(it) {
				return nil
			}
		}
		return nil
	})
}

// FromBBoxParallel maps fn over every coordinate of the bbox on the CPU
// pool and emits the hits. Every coordinate appears at most once; order
// is arbitrary.
func FromBBoxParallel[T any](ctx context.Context, bbox coord.TileBBox, fn func(coord.TileCoord) (T, bool, error)) *Stream[T] {
	s := newStream[T](ctx)
	go func() {
		defer close(s.items)

		coords := make(chan coord.TileCoord, chanBuffer)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer close(coords)
			var stop bool
			bbox.EachCoord(func(c coord.TileCoord) {
				if stop {
					return
				}
				select {
				case coords <- c:
				case <-gctx.Done():
					stop = true
				}
			})
			return nil
		})
		for i := 0; i < cpuParallelism(); i++ {
			g.Go(func() error {
				for c := range coords {
					v, ok, err := fn(c)
					if err != nil {
						return err
					}
					if ok && !s.emit(Item[T]{Coord: c, Value: v}) {
						return nil
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			s.setErr(err)
		}
	}()
	return s
}

// MapItemParallel transforms every item on the CPU pool. Order is not
// preserved.
func MapItemParallel[T, U any](s *Stream[T], fn func(coord.TileCoord, T) (U, error)) *Stream[U] {
	out := newStream[U](s.ctx)
	go func() {
		defer close(out.items)
		g, _ := errgroup.WithContext(s.ctx)
		for i := 0; i < cpuParallelism(); i++ {
			g.Go(func() error {
				for it := range s.items {
					v, err := fn(it.Coord, it.Value)
					if err != nil {
						return err
					}
					if !out.emit(Item[U]{Coord: it.Coord, Value: v}) {
						return nil
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			s.drain()
			out.setErr(err)
		} else if err := s.Err(); err != nil {
			out.setErr(err)
		}
	}()
	return out
}

// FilterMapParallel transforms every item on the CPU pool, dropping
// items the function rejects. Order is not preserved.
func FilterMapParallel[T any](s *Stream[T], fn func(coord.TileCoord, T) (T, bool, error)) *Stream[T] {
	out := newStream[T](s.ctx)
	go func() {
		defer close(out.items)
		g, _ := errgroup.WithContext(s.ctx)
		for i := 0; i < cpuParallelism(); i++ {
			g.Go(func() error {
				for it := range s.items {
					v, ok, err := fn(it.Coord, it.Value)
					if err != nil {
						return err
					}
					if ok && !out.emit(Item[T]{Coord: it.Coord, Value: v}) {
						return nil
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			s.drain()
			out.setErr(err)
		} else if err := s.Err(); err != nil {
			out.setErr(err)
		}
	}()
	return out
}

// FilterCoord drops items whose coordinate fails the predicate. Order is
// preserved.
func (s *Stream[T]) FilterCoord(pred func(coord.TileCoord) bool) *Stream[T] {
	out := newStream[T](s.ctx)
	go func() {
		defer close(out.items)
		for it := range s.items {
			if pred(it.Coord) && !out.emit(it) {
				return
			}
		}
		if err := s.Err(); err != nil {
			out.setErr(err)
		}
	}()
	return out
}

// FromStreams awaits child streams with bounded concurrency and
// interleaves their items into one stream. Used for I/O-parallel reads
// where each child covers one block or chunk.
func FromStreams[T any](ctx context.Context, makers []func(context.Context) (*Stream[T], error), ioParallel int) *Stream[T] {
	if ioParallel <= 0 {
		ioParallel = 4
	}
	out := newStream[T](ctx)
	go func() {
		defer close(out.items)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(ioParallel)
		for _, maker := range makers {
			maker := maker
			g.Go(func() error {
				child, err := maker(gctx)
				if err != nil {
					return err
				}
				for it := range child.items {
					if !out.emit(it) {
						return nil
					}
				}
				return child.Err()
			})
		}
		if err := g.Wait(); err != nil {
			out.setErr(err)
		}
	}()
	return out
}

// Next returns the next item, or ok=false when the stream is exhausted.
func (s *Stream[T]) Next(ctx context.Context) (Item[T], bool, error) {
	select {
	case it, ok := <-s.items:
		if !ok {
			return Item[T]{}, false, s.Err()
		}
		return it, true, nil
	case <-ctx.Done():
		return Item[T]{}, false, ctx.Err()
	}
}

// ForEachBuffered collects up to n items per batch and hands each batch
// to fn; the final partial batch is flushed.
func (s *Stream[T]) ForEachBuffered(n int, fn func([]Item[T]) error) error {
	if n <= 0 {
		n = 1
	}
	batch := make([]Item[T], 0, n)
	for it := range s.items {
		batch = append(batch, it)
		if len(batch) == n {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return err
		}
	}
	return s.Err()
}

// Each drains the stream, calling fn per item.
func (s *Stream[T]) Each(fn func(Item[T])) error {
	for it := range s.items {
		fn(it)
	}
	return s.Err()
}

// ToVec drains the stream into a slice.
func (s *Stream[T]) ToVec() ([]Item[T], error) {
	var out []Item[T]
	err := s.Each(func(it Item[T]) { out = append(out, it) })
	return out, err
}

// ToMap drains the stream into a map. When a coordinate appears more
// than once the last item wins.
func (s *Stream[T]) ToMap() (map[coord.TileCoord]T, error) {
	out := make(map[coord.TileCoord]T)
	err := s.Each(func(it Item[T]) { out[it.Coord] = it.Value })
	return out, err
}
