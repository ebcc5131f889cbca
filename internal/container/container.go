// Package container defines the universal reader and writer contracts
// that all tile container formats implement, plus the registry that maps
// file extensions to their constructors.
package container

import (
	"context"
	"io"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/stream"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// Parameters describes what a reader serves: the payload format, the
// transport compression of the stored blobs, and the pyramid of tiles
// the source knows about.
type Parameters struct {
	Format      tile.Format
	Compression tile.Compression
	Pyramid     coord.TileBBoxPyramid
}

// TilesReader is the random-access and bulk contract over a tile source.
// Tile blobs are returned as stored; callers decompress according to
// Parameters().Compression.
type TilesReader interface {
	// Name identifies the source, e.g. the filename or URL.
	Name() string
	// ContainerName names the format, e.g. "versatiles".
	ContainerName() string
	// Parameters returns format, compression and pyramid.
	Parameters() *Parameters
	// Meta returns the uncompressed metadata payload, which may be empty.
	Meta(ctx context.Context) (binio.Blob, error)
	// Tile returns the stored blob for a coordinate. A missing tile is
	// reported as ok == false, not as an error.
	Tile(ctx context.Context, c coord.TileCoord) (binio.Blob, bool, error)
	// TileStream emits all stored tiles intersecting the bbox. The
	// emission order is whatever the container documents.
	TileStream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[binio.Blob]
	io.Closer
}

// TilesWriter consumes a reader and persists its tiles.
type TilesWriter interface {
	WriteFrom(ctx context.Context, reader TilesReader) error
}
