package versatiles

import (
	"context"
	"fmt"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/container"
	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/stream"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// dedupMaxSize is the size below which identical tile blobs are stored
// once and referenced many times. Larger tiles rarely repeat, and
// hashing them would cost more than it saves.
const dedupMaxSize = 1000

// Writer streams a reader's tiles into a VersaTiles container, block by
// block, bottom-up: a placeholder header first, then metadata, then one
// data region per non-empty block, then the block index, and finally the
// header again with the ranges filled in. No level is ever held in
// memory as a whole.
type Writer struct {
	w binio.DataWriter
}

// NewWriter writes a container through the given DataWriter.
func NewWriter(w binio.DataWriter) *Writer {
	return &Writer{w: w}
}

// CreateFile creates a container file on the local filesystem.
func CreateFile(path string) (*Writer, error) {
	w, err := binio.CreateDataWriterFile(path)
	if err != nil {
		return nil, err
	}
	return NewWriter(w), nil
}

// WriteFrom consumes the reader and writes the complete container.
func (wr *Writer) WriteFrom(ctx context.Context, reader container.TilesReader) error {
	params := reader.Parameters()
	pyramid := params.Pyramid

	zoomMin, ok := pyramid.ZoomMin()
	if !ok {
		return fmt.Errorf("writing %s: source pyramid is empty", reader.Name())
	}
	zoomMax, _ := pyramid.ZoomMax()

	header, err := NewFileHeader(params.Format, params.Compression, zoomMin, zoomMax, pyramid.GeoBBox())
	if err != nil {
		return err
	}

	// Placeholder header keeps all downstream offsets correct.
	if _, err := wr.w.Append(header.Serialize()); err != nil {
		return err
	}

	if header.MetaRange, err = wr.writeMeta(ctx, reader, params.Compression); err != nil {
		return err
	}

	if header.BlocksRange, err = wr.writeBlocks(ctx, reader, &pyramid); err != nil {
		return err
	}

	return wr.w.WriteStart(header.Serialize())
}

func (wr *Writer) writeMeta(ctx context.Context, reader container.TilesReader, c tile.Compression) (binio.ByteRange, error) {
	meta, err := reader.Meta(ctx)
	if err != nil {
		return binio.ByteRange{}, fmt.Errorf("reading metadata: %w", err)
	}
	compressed, err := tile.Compress(meta, c)
	if err != nil {
		return binio.ByteRange{}, fmt.Errorf("compressing metadata: %w", err)
	}
	return wr.w.Append(compressed)
}

func (wr *Writer) writeBlocks(ctx context.Context, reader container.TilesReader, pyramid *coord.TileBBoxPyramid) (binio.ByteRange, error) {
	blockIndex := NewBlockIndex()

	for _, level := range pyramid.Levels() {
		for _, chunk := range level.SplitGrid(BlockSize) {
			block := NewBlockDefinition(chunk)
			written, err := wr.writeBlock(ctx, reader, &block, chunk)
			if err != nil {
				return binio.ByteRange{}, fmt.Errorf("writing block %s: %w", block.Coord, err)
			}
			if written == 0 {
				continue // blocks without tiles are dropped
			}
			blockIndex.Add(block)
		}
	}

	indexBlob, err := blockIndex.ToBrotliBlob()
	if err != nil {
		return binio.ByteRange{}, err
	}
	return wr.w.Append(indexBlob)
}

// writeBlock consumes the block's tile stream, appends the payloads with
// small-blob deduplication, then appends the block's tile index. It
// returns the number of tile slots filled.
func (wr *Writer) writeBlock(ctx context.Context, reader container.TilesReader, block *BlockDefinition, chunk coord.TileBBox) (int, error) {
	offset0 := wr.w.Position()
	tileIndex := NewTileIndex(int(chunk.CountTiles()))
	dedup := make(map[string]binio.ByteRange)
	written := 0

	var appendErr error
	tiles := reader.TileStream(ctx, chunk)
	err := tiles.Each(func(it stream.Item[binio.Blob]) {
		if appendErr != nil {
			return
		}
		slot := chunk.TileIndex(it.Coord.X, it.Coord.Y)

		key := ""
		if it.Value.Len() < dedupMaxSize {
			key = it.Value.String()
			if rng, ok := dedup[key]; ok {
				tileIndex.Set(slot, rng)
				written++
				return
			}
		}

		rng, err := wr.w.Append(it.Value)
		if err != nil {
			appendErr = err
			return
		}
		rng.Offset -= offset0
		tileIndex.Set(slot, rng)
		written++
		if key != "" {
			dedup[key] = rng
		}
	})
	if err != nil {
		return 0, err
	}
	if appendErr != nil {
		return 0, appendErr
	}
	if written == 0 {
		return 0, nil
	}

	block.TilesRange = binio.ByteRange{Offset: offset0, Length: wr.w.Position() - offset0}

	indexBlob, err := tileIndex.ToBrotliBlob()
	if err != nil {
		return 0, err
	}
	indexRange, err := wr.w.Append(indexBlob)
	if err != nil {
		return 0, err
	}
	block.IndexRange = indexRange
	return written, nil
}
