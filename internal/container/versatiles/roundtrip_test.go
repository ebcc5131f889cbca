package versatiles

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/container"
	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/stream"
	"github.com/versatiles-org/versatiles/internal/tile"
)

func writeTestContainer(t *testing.T, f tile.Format, c tile.Compression, zoomMax uint8) (string, *container.MockReader) {
	t.Helper()
	pyramid := coord.NewPyramidFull(0, zoomMax)
	mock := container.NewMockReader(f, c, pyramid)

	path := filepath.Join(t.TempDir(), "out.versatiles")
	w, err := CreateFile(path)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := w.WriteFrom(context.Background(), mock); err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}
	return path, mock
}

func TestContainerRoundTripPBFGzip(t *testing.T) {
	ctx := context.Background()
	path, mock := writeTestContainer(t, tile.FormatMVT, tile.CompressionGzip, 4)

	r, err := OpenFile(ctx, path, ReaderOptions{})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer r.Close()

	if r.Header().ZoomMax != 4 {
		t.Errorf("zoom_max = %d, want 4", r.Header().ZoomMax)
	}
	if r.Header().Format != tile.FormatMVT || r.Header().Compression != tile.CompressionGzip {
		t.Errorf("header format/compression = %s/%s", r.Header().Format, r.Header().Compression)
	}

	meta, err := r.Meta(ctx)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	wantMeta, _ := mock.Meta(ctx)
	if !meta.Equal(wantMeta) {
		t.Errorf("meta = %q, want %q", meta.String(), wantMeta.String())
	}

	// Every coordinate in the pyramid reads back bit-identical.
	for _, level := range mock.Parameters().Pyramid.Levels() {
		level.EachCoord(func(c coord.TileCoord) {
			want, ok, err := mock.Tile(ctx, c)
			if err != nil || !ok {
				t.Fatalf("mock tile %s: ok=%v err=%v", c, ok, err)
			}
			got, ok, err := r.Tile(ctx, c)
			if err != nil {
				t.Fatalf("Tile(%s): %v", c, err)
			}
			if !ok {
				t.Fatalf("tile %s missing", c)
			}
			if !got.Equal(want) {
				t.Fatalf("tile %s differs: %d vs %d bytes", c, got.Len(), want.Len())
			}
		})
	}
}

func TestContainerRoundTripPNG(t *testing.T) {
	ctx := context.Background()
	path, mock := writeTestContainer(t, tile.FormatPNG, tile.CompressionNone, 2)

	r, err := OpenFile(ctx, path, ReaderOptions{})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer r.Close()

	c := coord.TileCoord{X: 2, Y: 1, Z: 2}
	want, _, _ := mock.Tile(ctx, c)
	got, ok, err := r.Tile(ctx, c)
	if err != nil || !ok {
		t.Fatalf("Tile: ok=%v err=%v", ok, err)
	}
	if !got.Equal(want) {
		t.Error("png tile not bit-identical")
	}
	if _, err := tile.DecodeImage(got, tile.FormatPNG); err != nil {
		t.Errorf("stored tile does not decode: %v", err)
	}
}

func TestMissingTileIsNotAnError(t *testing.T) {
	ctx := context.Background()
	path, _ := writeTestContainer(t, tile.FormatBin, tile.CompressionNone, 2)

	r, err := OpenFile(ctx, path, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// Outside every block.
	if _, ok, err := r.Tile(ctx, coord.TileCoord{X: 100, Y: 100, Z: 7}); ok || err != nil {
		t.Errorf("missing tile: ok=%v err=%v", ok, err)
	}
}

func TestTileStreamMatchesRandomAccess(t *testing.T) {
	ctx := context.Background()
	path, _ := writeTestContainer(t, tile.FormatBin, tile.CompressionNone, 3)

	r, err := OpenFile(ctx, path, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	bbox := coord.NewBBoxFull(3)
	got, err := r.TileStream(ctx, bbox).ToMap()
	if err != nil {
		t.Fatalf("TileStream: %v", err)
	}
	if len(got) != 64 {
		t.Fatalf("stream yielded %d tiles, want 64", len(got))
	}
	for c, blob := range got {
		want, ok, err := r.Tile(ctx, c)
		if err != nil || !ok {
			t.Fatalf("Tile(%s): ok=%v err=%v", c, ok, err)
		}
		if !blob.Equal(want) {
			t.Errorf("stream tile %s differs from random access", c)
		}
	}
}

func TestDedupStoresIdenticalTilesOnce(t *testing.T) {
	// 1024 identical 300-byte tiles: the payload lands in the file once.
	ctx := context.Background()
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}

	pyramid := coord.NewPyramidEmpty()
	level, _ := coord.NewBBox(5, 0, 0, 31, 31) // 1024 identical tiles, one block
	pyramid.SetLevel(level)
	src := &constReader{
		params: container.Parameters{
			Format:      tile.FormatBin,
			Compression: tile.CompressionNone,
			Pyramid:     pyramid,
		},
		payload: binio.NewBlob(payload),
	}

	path := filepath.Join(t.TempDir(), "dedup.versatiles")
	w, err := CreateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrom(ctx, src); err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// Header + one payload + compressed indexes stay far below two copies.
	if info.Size() > 2*300+HeaderLength+4096 {
		t.Errorf("file size %d suggests dedup is not active", info.Size())
	}

	// Every tile still reads back.
	r, err := OpenFile(ctx, path, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for _, c := range []coord.TileCoord{{X: 0, Y: 0, Z: 5}, {X: 31, Y: 31, Z: 5}, {X: 15, Y: 7, Z: 5}} {
		got, ok, err := r.Tile(ctx, c)
		if err != nil || !ok {
			t.Fatalf("Tile(%s): ok=%v err=%v", c, ok, err)
		}
		if !got.Equal(binio.NewBlob(payload)) {
			t.Errorf("tile %s corrupted", c)
		}
	}
}

// constReader serves the same payload for every coordinate of its pyramid.
type constReader struct {
	params  container.Parameters
	payload binio.Blob
}

func (r *constReader) Name() string                     { return "const" }
func (r *constReader) ContainerName() string            { return "const" }
func (r *constReader) Parameters() *container.Parameters { return &r.params }
func (r *constReader) Meta(context.Context) (binio.Blob, error) {
	return binio.EmptyBlob(), nil
}
func (r *constReader) Tile(_ context.Context, c coord.TileCoord) (binio.Blob, bool, error) {
	if !r.params.Pyramid.Contains(c) {
		return binio.Blob{}, false, nil
	}
	return r.payload, true, nil
}
func (r *constReader) TileStream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[binio.Blob] {
	clipped := bbox.Intersect(r.params.Pyramid.Level(bbox.Level))
	return stream.Generate(ctx, func(emit func(stream.Item[binio.Blob]) bool) error {
		clipped.EachCoord(func(c coord.TileCoord) {
			emit(stream.Item[binio.Blob]{Coord: c, Value: r.payload})
		})
		return nil
	})
}
func (r *constReader) Close() error { return nil }

func TestHTTPReaderUsesTwoRangeReadsPerTile(t *testing.T) {
	ctx := context.Background()
	path, _ := writeTestContainer(t, tile.FormatBin, tile.CompressionNone, 8)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var rangeReads atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			return
		}
		rangeReads.Add(1)
		http.ServeContent(w, req, "c.versatiles", time.Time{}, bytes.NewReader(data))
	}))
	defer ts.Close()

	r, err := OpenAny(ctx, ts.URL+"/c.versatiles", ReaderOptions{})
	if err != nil {
		t.Fatalf("OpenAny: %v", err)
	}
	defer r.Close()

	opened := rangeReads.Load() // header + block index (+ meta)

	// First access: one read for the block's tile index, one for the bytes.
	c := coord.TileCoord{X: 137, Y: 91, Z: 8}
	if _, ok, err := r.Tile(ctx, c); !ok || err != nil {
		t.Fatalf("Tile: ok=%v err=%v", ok, err)
	}
	if got := rangeReads.Load() - opened; got != 2 {
		t.Errorf("first tile access used %d range reads, want 2", got)
	}

	// Second access in the same block: the index is cached.
	before := rangeReads.Load()
	if _, ok, err := r.Tile(ctx, coord.TileCoord{X: 138, Y: 91, Z: 8}); !ok || err != nil {
		t.Fatalf("Tile: ok=%v err=%v", ok, err)
	}
	if got := rangeReads.Load() - before; got != 1 {
		t.Errorf("cached tile access used %d range reads, want 1", got)
	}
}
