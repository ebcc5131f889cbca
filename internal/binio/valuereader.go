package binio

import (
	"encoding/binary"
	"fmt"
)

// ValueReader decodes primitive values from a blob at an explicit byte
// order. All reads advance the position; reading past the end returns an
// error rather than panicking.
type ValueReader struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

// NewValueReaderBE reads big-endian values, the byte order of the
// container format.
func NewValueReaderBE(data []byte) *ValueReader {
	return &ValueReader{data: data, order: binary.BigEndian}
}

// NewValueReaderLE reads little-endian values.
func NewValueReaderLE(data []byte) *ValueReader {
	return &ValueReader{data: data, order: binary.LittleEndian}
}

// Position returns the current read offset.
func (r *ValueReader) Position() int {
	return r.pos
}

// SetPosition moves the read offset.
func (r *ValueReader) SetPosition(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return fmt.Errorf("position %d outside buffer of %d bytes", pos, len(r.data))
	}
	r.pos = pos
	return nil
}

// Remaining returns the number of unread bytes.
func (r *ValueReader) Remaining() int {
	return len(r.data) - r.pos
}

// SubReader returns a reader over the next length bytes, sharing storage,
// and advances past them.
func (r *ValueReader) SubReader(length int) (*ValueReader, error) {
	b, err := r.take(length)
	if err != nil {
		return nil, err
	}
	return &ValueReader{data: b, order: r.order}, nil
}

func (r *ValueReader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("reading %d bytes at position %d exceeds buffer of %d bytes", n, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *ValueReader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *ValueReader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *ValueReader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *ValueReader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *ValueReader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadVarint reads an unsigned LEB128 value.
func (r *ValueReader) ReadVarint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := r.ReadU8()
		if err != nil {
			return 0, fmt.Errorf("truncated varint: %w", err)
		}
		if shift >= 64 {
			return 0, fmt.Errorf("varint exceeds 64 bits")
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
}

// ReadBytes reads exactly length raw bytes.
func (r *ValueReader) ReadBytes(length int) ([]byte, error) {
	return r.take(length)
}

// ReadBlob reads a varint length prefix followed by that many bytes.
func (r *ValueReader) ReadBlob() (Blob, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return Blob{}, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return Blob{}, err
	}
	return NewBlob(b), nil
}

// ReadString reads a varint length prefix followed by UTF-8 bytes.
func (r *ValueReader) ReadString() (string, error) {
	b, err := r.ReadBlob()
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// ReadByteRange reads two u64 values: offset, then length.
func (r *ValueReader) ReadByteRange() (ByteRange, error) {
	offset, err := r.ReadU64()
	if err != nil {
		return ByteRange{}, err
	}
	length, err := r.ReadU64()
	if err != nil {
		return ByteRange{}, err
	}
	return ByteRange{Offset: offset, Length: length}, nil
}

// ReadPBFKey reads a protobuf field key: varint of (field<<3 | wire).
func (r *ValueReader) ReadPBFKey() (field uint32, wire uint8, err error) {
	v, err := r.ReadVarint()
	if err != nil {
		return 0, 0, err
	}
	return uint32(v >> 3), uint8(v & 0x07), nil
}

// ReadPBFString reads a length-delimited protobuf string.
func (r *ValueReader) ReadPBFString() (string, error) {
	return r.ReadString()
}

// ReadPBFPackedUint32 reads a length-delimited packed run of varints.
func (r *ValueReader) ReadPBFPackedUint32() ([]uint32, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}
	sub, err := r.SubReader(int(n))
	if err != nil {
		return nil, err
	}
	var out []uint32
	for sub.Remaining() > 0 {
		v, err := sub.ReadVarint()
		if err != nil {
			return nil, err
		}
		out = append(out, uint32(v))
	}
	return out, nil
}
