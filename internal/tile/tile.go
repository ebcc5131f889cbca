package tile

import (
	"fmt"
	"image"

	"github.com/versatiles-org/versatiles/internal/binio"
)

// Tile owns up to three synchronized representations of one map tile:
// the encoded (and possibly compressed) bytes, the decoded raster image,
// and the decoded vector tile. At least one representation is always
// present; the others are materialized on demand.
//
// When both an encoded and a decoded form are present they are
// equivalent under the declared format and compression. Mutating
// accessors therefore drop the blob.
type Tile struct {
	format      Format
	compression Compression

	blob    *binio.Blob
	image   image.Image
	vector  *VectorTile
	quality int
	speed   int
}

// FromBlob wraps encoded bytes.
func FromBlob(b binio.Blob, f Format, c Compression) *Tile {
	return &Tile{format: f, compression: c, blob: &b}
}

// FromImage wraps decoded pixels for a raster format.
func FromImage(img image.Image, f Format) *Tile {
	if f.Category() != CategoryRaster {
		panic(fmt.Sprintf("FromImage with non-raster format %s", f))
	}
	return &Tile{format: f, compression: CompressionNone, image: img}
}

// FromVector wraps a decoded vector tile.
func FromVector(vt *VectorTile) *Tile {
	return &Tile{format: FormatMVT, compression: CompressionNone, vector: vt}
}

// Format returns the declared payload format.
func (t *Tile) Format() Format {
	return t.format
}

// Compression returns the declared transport compression of the blob.
func (t *Tile) Compression() Compression {
	return t.compression
}

// SetEncoderHints stores the quality/speed knobs used by the next encode.
func (t *Tile) SetEncoderHints(quality, speed int) {
	t.quality = quality
	t.speed = speed
}

// HasBlob reports whether the encoded form is present.
func (t *Tile) HasBlob() bool { return t.blob != nil }

// HasImage reports whether the decoded raster form is present.
func (t *Tile) HasImage() bool { return t.image != nil }

// HasVector reports whether the decoded vector form is present.
func (t *Tile) HasVector() bool { return t.vector != nil }

// Blob materializes and returns the encoded bytes under the tile's
// current compression. Encoding from a decoded form yields uncompressed
// bytes and sets the compression accordingly.
func (t *Tile) Blob() (binio.Blob, error) {
	if err := t.materializeBlob(); err != nil {
		return binio.Blob{}, err
	}
	return *t.blob, nil
}

func (t *Tile) materializeBlob() error {
	if t.blob != nil {
		return nil
	}
	switch {
	case t.image != nil:
		b, err := EncodeImage(t.image, t.format, t.quality, t.speed)
		if err != nil {
			return err
		}
		t.blob = &b
		t.compression = CompressionNone
	case t.vector != nil:
		b, err := t.vector.Blob()
		if err != nil {
			return err
		}
		t.blob = &b
		t.compression = CompressionNone
	default:
		return fmt.Errorf("tile has no representation")
	}
	return nil
}

// Image materializes and returns the decoded pixels. The format must be
// a raster format.
func (t *Tile) Image() (image.Image, error) {
	if t.image != nil {
		return t.image, nil
	}
	if t.format.Category() != CategoryRaster {
		return nil, fmt.Errorf("accessing pixels of %s tile", t.format)
	}
	if t.blob == nil {
		return nil, fmt.Errorf("tile has no blob to decode")
	}
	raw, err := Decompress(*t.blob, t.compression)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(raw, t.format)
	if err != nil {
		return nil, err
	}
	t.image = img
	return img, nil
}

// Vector materializes and returns the decoded vector tile. The format
// must be MVT.
func (t *Tile) Vector() (*VectorTile, error) {
	if t.vector != nil {
		return t.vector, nil
	}
	if t.format != FormatMVT {
		return nil, fmt.Errorf("accessing features of %s tile", t.format)
	}
	if t.blob == nil {
		return nil, fmt.Errorf("tile has no blob to decode")
	}
	raw, err := Decompress(*t.blob, t.compression)
	if err != nil {
		return nil, err
	}
	vt, err := ParseVectorTile(raw)
	if err != nil {
		return nil, err
	}
	t.vector = vt
	return vt, nil
}

// ImageMut returns the decoded pixels for mutation and drops the blob,
// since the cached encoding would go stale.
func (t *Tile) ImageMut() (image.Image, error) {
	img, err := t.Image()
	if err != nil {
		return nil, err
	}
	t.blob = nil
	return img, nil
}

// VectorMut returns the decoded vector tile for mutation and drops the
// blob, since the cached encoding would go stale.
func (t *Tile) VectorMut() (*VectorTile, error) {
	vt, err := t.Vector()
	if err != nil {
		return nil, err
	}
	t.blob = nil
	return vt, nil
}

// RecompressTo converts the blob to the given compression. Without a
// blob the decoded form is encoded first (uncompressed) and then
// recompressed.
func (t *Tile) RecompressTo(c Compression) error {
	if t.compression == c && t.blob != nil {
		return nil
	}
	if t.blob == nil {
		if err := t.materializeBlob(); err != nil {
			return err
		}
	}
	b, err := Recompress(*t.blob, t.compression, c)
	if err != nil {
		return err
	}
	t.blob = &b
	t.compression = c
	return nil
}

// ChangeCompression records the target compression. A present blob is
// recompressed immediately; otherwise only the recorded compression
// changes. Blob() on such a tile still encodes uncompressed bytes and
// resets the compression to none; IntoBlob and RecompressTo encode and
// then compress to their target.
func (t *Tile) ChangeCompression(c Compression) error {
	if t.blob != nil {
		return t.RecompressTo(c)
	}
	t.compression = c
	return nil
}

// ChangeFormat switches the tile to another format of the same category.
// The decoded form is materialized first, the stale blob dropped, and
// the encoder hints updated.
func (t *Tile) ChangeFormat(f Format, quality, speed int) error {
	if t.format == f {
		t.quality = quality
		t.speed = speed
		return nil
	}
	oldCat, newCat := t.format.Category(), f.Category()
	if oldCat != newCat || oldCat == CategoryUnknown {
		return fmt.Errorf("cannot change format %s to %s", t.format, f)
	}
	switch newCat {
	case CategoryRaster:
		if _, err := t.Image(); err != nil {
			return err
		}
	case CategoryVector:
		if _, err := t.Vector(); err != nil {
			return err
		}
	}
	t.blob = nil
	t.format = f
	t.quality = quality
	t.speed = speed
	t.compression = CompressionNone
	return nil
}

// IntoBlob returns bytes ready for transport under the target
// compression. The tile must not be used afterwards.
func (t *Tile) IntoBlob(c Compression) (binio.Blob, error) {
	if err := t.RecompressTo(c); err != nil {
		return binio.Blob{}, err
	}
	return *t.blob, nil
}

func (t *Tile) String() string {
	return fmt.Sprintf("Tile(%s/%s blob=%v image=%v vector=%v)",
		t.format, t.compression, t.HasBlob(), t.HasImage(), t.HasVector())
}
