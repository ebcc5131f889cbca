package tile

import (
	"bytes"
	"testing"

	"github.com/versatiles-org/versatiles/internal/binio"
)

func TestCompressionRoundTrip(t *testing.T) {
	payload := binio.NewBlob(bytes.Repeat([]byte("versatiles "), 100))
	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionBrotli} {
		compressed, err := Compress(payload, c)
		if err != nil {
			t.Fatalf("Compress(%s): %v", c, err)
		}
		if c != CompressionNone && compressed.Len() >= payload.Len() {
			t.Errorf("%s did not shrink repetitive payload: %d >= %d", c, compressed.Len(), payload.Len())
		}
		back, err := Decompress(compressed, c)
		if err != nil {
			t.Fatalf("Decompress(%s): %v", c, err)
		}
		if !back.Equal(payload) {
			t.Errorf("%s round trip lost bytes", c)
		}
	}
}

func TestRecompressBetweenAll(t *testing.T) {
	payload := binio.NewBlobString("a payload that survives any compression chain, twice over, twice over")
	from := CompressionGzip
	b, err := Compress(payload, from)
	if err != nil {
		t.Fatal(err)
	}
	for _, to := range []Compression{CompressionBrotli, CompressionNone, CompressionGzip} {
		if b, err = Recompress(b, from, to); err != nil {
			t.Fatalf("Recompress(%s -> %s): %v", from, to, err)
		}
		from = to
	}
	back, err := Decompress(b, from)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(payload) {
		t.Error("recompression chain lost bytes")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	garbage := binio.NewBlobString("this is not gzip")
	if _, err := Decompress(garbage, CompressionGzip); err == nil {
		t.Error("garbage accepted as gzip")
	}
}

func TestCompressionBytes(t *testing.T) {
	for _, tc := range []struct {
		c Compression
		b uint8
	}{
		{CompressionNone, 0}, {CompressionGzip, 1}, {CompressionBrotli, 2},
	} {
		if tc.c.Byte() != tc.b {
			t.Errorf("%s byte = %d, want %d", tc.c, tc.c.Byte(), tc.b)
		}
		back, err := CompressionFromByte(tc.b)
		if err != nil || back != tc.c {
			t.Errorf("CompressionFromByte(%d) = %v, %v", tc.b, back, err)
		}
	}
	if _, err := CompressionFromByte(9); err == nil {
		t.Error("unknown compression byte accepted")
	}
}

func TestFormatTypeBytes(t *testing.T) {
	// The container encoding of every format survives the round trip.
	for _, f := range []Format{
		FormatBin, FormatPNG, FormatJPG, FormatWEBP, FormatAVIF,
		FormatSVG, FormatMVT, FormatGeoJSON, FormatTopoJSON, FormatJSON,
	} {
		back, err := FormatFromTypeByte(f.TypeByte())
		if err != nil || back != f {
			t.Errorf("FormatFromTypeByte(%#02x) = %v, %v", f.TypeByte(), back, err)
		}
	}
	if _, err := FormatFromTypeByte(0x99); err == nil {
		t.Error("unknown type byte accepted")
	}
}

func TestFormatCategories(t *testing.T) {
	for _, f := range []Format{FormatPNG, FormatJPG, FormatWEBP, FormatAVIF} {
		if f.Category() != CategoryRaster {
			t.Errorf("%s category = %v", f, f.Category())
		}
	}
	if FormatMVT.Category() != CategoryVector {
		t.Error("mvt is not vector")
	}
	if FormatJSON.Category() != CategoryUnknown {
		t.Error("json has a decoded category")
	}
}

func TestParseFormatAliases(t *testing.T) {
	for _, tc := range []struct {
		s string
		f Format
	}{
		{"jpeg", FormatJPG}, {"jpg", FormatJPG}, {"pbf", FormatMVT}, {"mvt", FormatMVT},
	} {
		got, err := ParseFormat(tc.s)
		if err != nil || got != tc.f {
			t.Errorf("ParseFormat(%q) = %v, %v", tc.s, got, err)
		}
	}
	if _, err := ParseFormat("bitmap"); err == nil {
		t.Error("unknown format accepted")
	}
}
