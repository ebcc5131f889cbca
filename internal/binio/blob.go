// Package binio provides the byte-level building blocks shared by the
// container formats: immutable blobs, byte ranges, fixed-byte-order value
// readers and writers, and random-access data readers over files and HTTP.
package binio

import "bytes"

// Blob is an immutable, cheaply copyable byte buffer. Copies share the
// underlying array; callers must not mutate the bytes behind a Blob.
type Blob struct {
	data []byte
}

// NewBlob wraps a byte slice. The slice is adopted, not copied.
func NewBlob(data []byte) Blob {
	return Blob{data: data}
}

// NewBlobString wraps the bytes of a string.
func NewBlobString(s string) Blob {
	return Blob{data: []byte(s)}
}

// EmptyBlob returns a blob of length zero.
func EmptyBlob() Blob {
	return Blob{}
}

// AsBytes returns the underlying byte slice. The result must be treated
// as read-only.
func (b Blob) AsBytes() []byte {
	return b.data
}

// Len returns the number of bytes.
func (b Blob) Len() uint64 {
	return uint64(len(b.data))
}

// IsEmpty reports whether the blob has no bytes.
func (b Blob) IsEmpty() bool {
	return len(b.data) == 0
}

// GetRange returns a sub-blob sharing the same storage. Out-of-bounds
// ranges are clipped to the blob.
func (b Blob) GetRange(offset, length uint64) Blob {
	if offset >= uint64(len(b.data)) {
		return Blob{}
	}
	end := offset + length
	if end > uint64(len(b.data)) {
		end = uint64(len(b.data))
	}
	return Blob{data: b.data[offset:end]}
}

// Equal reports byte-for-byte equality.
func (b Blob) Equal(other Blob) bool {
	return bytes.Equal(b.data, other.data)
}

// String interprets the bytes as UTF-8 text.
func (b Blob) String() string {
	return string(b.data)
}
