package versatiles

import (
	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/tile"
)

func compressBrotliForTest(raw []byte) (binio.Blob, error) {
	return tile.Compress(binio.NewBlob(raw), tile.CompressionBrotli)
}
