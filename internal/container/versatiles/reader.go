package versatiles

import (
	"context"
	"fmt"
	"strings"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/container"
	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/stream"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// ReaderOptions tune a container reader.
type ReaderOptions struct {
	// IndexCacheEntries bounds the per-block tile index cache; zero
	// selects the default.
	IndexCacheEntries int
	// IOParallel bounds concurrent block reads in TileStream; zero
	// selects a small default.
	IOParallel int
}

// Reader provides random and bulk access to a VersaTiles container over
// any DataReader. All concurrent callers of one Reader share its
// tile-index cache.
type Reader struct {
	src        binio.DataReader
	header     *FileHeader
	meta       binio.Blob
	blockIndex *BlockIndex
	params     container.Parameters
	cache      *indexCache
	opts       ReaderOptions
}

// Open reads and validates the header and the block index.
func Open(ctx context.Context, src binio.DataReader, opts ReaderOptions) (*Reader, error) {
	headerBlob, err := src.ReadRange(ctx, binio.ByteRange{Offset: 0, Length: HeaderLength})
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", src.Name(), err)
	}
	header, err := ParseFileHeader(headerBlob)
	if err != nil {
		return nil, fmt.Errorf("parsing header of %s: %w", src.Name(), err)
	}

	var meta binio.Blob
	if header.MetaRange.Length > 0 {
		compressed, err := src.ReadRange(ctx, header.MetaRange)
		if err != nil {
			return nil, fmt.Errorf("reading metadata of %s: %w", src.Name(), err)
		}
		meta, err = tile.Decompress(compressed, header.Compression)
		if err != nil {
			return nil, fmt.Errorf("decompressing metadata of %s: %w", src.Name(), err)
		}
	}

	indexBlob, err := src.ReadRange(ctx, header.BlocksRange)
	if err != nil {
		return nil, fmt.Errorf("reading block index of %s: %w", src.Name(), err)
	}
	blockIndex, err := BlockIndexFromBrotliBlob(indexBlob)
	if err != nil {
		return nil, fmt.Errorf("block index of %s: %w", src.Name(), err)
	}

	return &Reader{
		src:        src,
		header:     header,
		meta:       meta,
		blockIndex: blockIndex,
		params: container.Parameters{
			Format:      header.Format,
			Compression: header.Compression,
			Pyramid:     blockIndex.Pyramid(),
		},
		cache: newIndexCache(opts.IndexCacheEntries),
		opts:  opts,
	}, nil
}

// OpenFile opens a container on the local filesystem.
func OpenFile(ctx context.Context, path string, opts ReaderOptions) (*Reader, error) {
	src, err := binio.OpenDataReaderFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Open(ctx, src, opts)
	if err != nil {
		src.Close()
		return nil, err
	}
	return r, nil
}

// OpenAny opens a container from a local path or an http(s) URL.
func OpenAny(ctx context.Context, name string, opts ReaderOptions) (*Reader, error) {
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		src, err := binio.OpenDataReaderHTTP(ctx, name)
		if err != nil {
			return nil, err
		}
		r, err := Open(ctx, src, opts)
		if err != nil {
			src.Close()
			return nil, err
		}
		return r, nil
	}
	return OpenFile(ctx, name, opts)
}

// Register wires the format into a container registry.
func Register(reg *container.Registry) {
	reg.RegisterReader(".versatiles", func(ctx context.Context, name string) (container.TilesReader, error) {
		return OpenAny(ctx, name, ReaderOptions{})
	})
	reg.RegisterWriter(".versatiles", func(name string) (container.TilesWriter, error) {
		return CreateFile(name)
	})
}

func (r *Reader) Name() string {
	return r.src.Name()
}

func (r *Reader) ContainerName() string {
	return "versatiles"
}

func (r *Reader) Parameters() *container.Parameters {
	return &r.params
}

// Header exposes the parsed file header.
func (r *Reader) Header() *FileHeader {
	return r.header
}

func (r *Reader) Meta(context.Context) (binio.Blob, error) {
	return r.meta, nil
}

// blockCoordOf maps a tile coordinate to its block coordinate.
func blockCoordOf(c coord.TileCoord) coord.TileCoord {
	return coord.TileCoord{X: c.X >> 8, Y: c.Y >> 8, Z: c.Z}
}

// tileIndexOf returns the block's tile index, absolute offsets applied,
// going through the shared cache.
func (r *Reader) tileIndexOf(ctx context.Context, block BlockDefinition) (*TileIndex, error) {
	return r.cache.getOrLoad(block.Coord, func() (*TileIndex, error) {
		blob, err := r.src.ReadRange(ctx, block.IndexRange)
		if err != nil {
			return nil, fmt.Errorf("reading tile index of block %s: %w", block.Coord, err)
		}
		ti, err := TileIndexFromBrotliBlob(blob)
		if err != nil {
			return nil, fmt.Errorf("tile index of block %s: %w", block.Coord, err)
		}
		if uint64(ti.Len()) != block.CountTiles() {
			return nil, fmt.Errorf("tile index of block %s has %d slots, coverage needs %d",
				block.Coord, ti.Len(), block.CountTiles())
		}
		ti.AddOffset(block.TilesRange.Offset)
		return ti, nil
	})
}

// Tile fetches one tile: block lookup, coverage check, tile index (via
// cache), then a single range read for the bytes.
func (r *Reader) Tile(ctx context.Context, c coord.TileCoord) (binio.Blob, bool, error) {
	block, ok := r.blockIndex.Get(blockCoordOf(c))
	if !ok {
		return binio.Blob{}, false, nil
	}

	tileX := c.X & 0xFF
	tileY := c.Y & 0xFF
	if !block.Coverage.ContainsXY(tileX, tileY) {
		return binio.Blob{}, false, nil
	}

	ti, err := r.tileIndexOf(ctx, block)
	if err != nil {
		return binio.Blob{}, false, err
	}

	rng := ti.Get(block.Coverage.TileIndex(tileX, tileY))
	if rng.Length == 0 {
		return binio.Blob{}, false, nil
	}

	blob, err := r.src.ReadRange(ctx, rng)
	if err != nil {
		return binio.Blob{}, false, fmt.Errorf("reading tile %s: %w", c, err)
	}
	return blob, true, nil
}

// TileStream emits all tiles intersecting the bbox, block by block in
// coverage order. Each block's index is read once; block reads run with
// bounded I/O parallelism.
func (r *Reader) TileStream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[binio.Blob] {
	var makers []func(context.Context) (*stream.Stream[binio.Blob], error)
	for _, block := range r.blockIndex.Blocks() {
		if block.Coord.Z != bbox.Level {
			continue
		}
		clip := block.GlobalBBox().Intersect(bbox)
		if clip.IsEmpty() {
			continue
		}
		block := block
		makers = append(makers, func(ctx context.Context) (*stream.Stream[binio.Blob], error) {
			return r.blockStream(ctx, block, clip)
		})
	}
	ioParallel := r.opts.IOParallel
	if ioParallel <= 0 {
		ioParallel = 4
	}
	return stream.FromStreams(ctx, makers, ioParallel)
}

// blockStream reads one block's index and emits the clipped tiles in
// coverage order.
func (r *Reader) blockStream(ctx context.Context, block BlockDefinition, clip coord.TileBBox) (*stream.Stream[binio.Blob], error) {
	ti, err := r.tileIndexOf(ctx, block)
	if err != nil {
		return nil, err
	}
	return stream.Generate(ctx, func(emit func(stream.Item[binio.Blob]) bool) error {
		var failed error
		clip.EachCoord(func(c coord.TileCoord) {
			if failed != nil {
				return
			}
			rng := ti.Get(block.Coverage.TileIndex(c.X&0xFF, c.Y&0xFF))
			if rng.Length == 0 {
				return
			}
			blob, err := r.src.ReadRange(ctx, rng)
			if err != nil {
				failed = fmt.Errorf("reading tile %s: %w", c, err)
				return
			}
			if !emit(stream.Item[binio.Blob]{Coord: c, Value: blob}) {
				failed = context.Canceled
			}
		})
		if failed == context.Canceled {
			return nil
		}
		return failed
	}), nil
}

func (r *Reader) Close() error {
	return r.src.Close()
}
