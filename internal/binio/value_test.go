package binio

import (
	"bytes"
	"testing"
)

func TestValueRoundTripBE(t *testing.T) {
	w := NewValueWriterBE()
	w.WriteU8(0x42)
	w.WriteU16(0xBEEF)
	w.WriteU32(0xDEADBEEF)
	w.WriteU64(314159265358979323)
	w.WriteI32(-12345)
	w.WriteVarint(0)
	w.WriteVarint(300)
	w.WriteVarint(1<<56 + 7)
	w.WriteString("versatiles")
	w.WriteByteRange(ByteRange{Offset: 29, Length: 97})

	r := NewValueReaderBE(w.Blob().AsBytes())
	if v, _ := r.ReadU8(); v != 0x42 {
		t.Errorf("u8 = %#x", v)
	}
	if v, _ := r.ReadU16(); v != 0xBEEF {
		t.Errorf("u16 = %#x", v)
	}
	if v, _ := r.ReadU32(); v != 0xDEADBEEF {
		t.Errorf("u32 = %#x", v)
	}
	if v, _ := r.ReadU64(); v != 314159265358979323 {
		t.Errorf("u64 = %d", v)
	}
	if v, _ := r.ReadI32(); v != -12345 {
		t.Errorf("i32 = %d", v)
	}
	for _, want := range []uint64{0, 300, 1<<56 + 7} {
		if v, _ := r.ReadVarint(); v != want {
			t.Errorf("varint = %d, want %d", v, want)
		}
	}
	if s, _ := r.ReadString(); s != "versatiles" {
		t.Errorf("string = %q", s)
	}
	rng, _ := r.ReadByteRange()
	if rng.Offset != 29 || rng.Length != 97 {
		t.Errorf("range = %v", rng)
	}
	if r.Remaining() != 0 {
		t.Errorf("remaining = %d bytes", r.Remaining())
	}
}

func TestValueReaderBounds(t *testing.T) {
	r := NewValueReaderBE([]byte{1, 2})
	if _, err := r.ReadU32(); err == nil {
		t.Error("reading past end succeeded")
	}
	if err := r.SetPosition(3); err == nil {
		t.Error("setting position past end succeeded")
	}
	if err := r.SetPosition(1); err != nil {
		t.Errorf("SetPosition(1): %v", err)
	}
	if v, err := r.ReadU8(); err != nil || v != 2 {
		t.Errorf("ReadU8 after SetPosition = %d, %v", v, err)
	}
}

func TestSubReader(t *testing.T) {
	r := NewValueReaderBE([]byte{1, 2, 3, 4, 5})
	sub, err := r.SubReader(3)
	if err != nil {
		t.Fatalf("SubReader: %v", err)
	}
	if sub.Remaining() != 3 {
		t.Errorf("sub remaining = %d", sub.Remaining())
	}
	if v, _ := r.ReadU8(); v != 4 {
		t.Errorf("parent continues at %d, want 4", v)
	}
}

func TestPBFHelpers(t *testing.T) {
	w := NewValueWriterLE()
	w.WritePBFKey(3, 2)
	w.WritePBFString("layer")
	w.WritePBFPackedUint32([]uint32{1, 128, 70000})

	r := NewValueReaderLE(w.Blob().AsBytes())
	field, wire, err := r.ReadPBFKey()
	if err != nil || field != 3 || wire != 2 {
		t.Errorf("pbf key = (%d, %d), err %v", field, wire, err)
	}
	if s, _ := r.ReadPBFString(); s != "layer" {
		t.Errorf("pbf string = %q", s)
	}
	vals, err := r.ReadPBFPackedUint32()
	if err != nil || len(vals) != 3 || vals[2] != 70000 {
		t.Errorf("packed = %v, err %v", vals, err)
	}
}

func TestBlobSemantics(t *testing.T) {
	b := NewBlob([]byte("hello world"))
	if b.Len() != 11 {
		t.Errorf("len = %d", b.Len())
	}
	sub := b.GetRange(6, 5)
	if sub.String() != "world" {
		t.Errorf("sub = %q", sub.String())
	}
	if !b.Equal(NewBlobString("hello world")) {
		t.Error("equal blobs not equal")
	}
	// Clipping, not panicking.
	if got := b.GetRange(6, 100); got.String() != "world" {
		t.Errorf("clipped = %q", got.String())
	}
	if got := b.GetRange(100, 5); !got.IsEmpty() {
		t.Errorf("out of range = %q", got.String())
	}
	// Copies share storage.
	c := b
	if &c.AsBytes()[0] != &b.AsBytes()[0] {
		t.Error("copy does not share storage")
	}
}

func TestBlobRangeOfWriterOutput(t *testing.T) {
	w := NewValueWriterBE()
	w.WriteBytes(bytes.Repeat([]byte{0xAB}, 16))
	if w.Len() != 16 {
		t.Errorf("len = %d", w.Len())
	}
}
