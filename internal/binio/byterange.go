package binio

import "fmt"

// ByteRange addresses a slice of a logical byte stream.
type ByteRange struct {
	Offset uint64
	Length uint64
}

// EmptyByteRange is the zero range.
func EmptyByteRange() ByteRange {
	return ByteRange{}
}

// Shift moves the range by delta bytes.
func (r ByteRange) Shift(delta uint64) ByteRange {
	r.Offset += delta
	return r
}

// End returns the first offset past the range.
func (r ByteRange) End() uint64 {
	return r.Offset + r.Length
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Offset, r.Length)
}
