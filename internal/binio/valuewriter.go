package binio

import (
	"encoding/binary"
)

// ValueWriter encodes primitive values into a growing buffer at an
// explicit byte order.
type ValueWriter struct {
	buf   []byte
	order binary.AppendByteOrder
}

// NewValueWriterBE writes big-endian values.
func NewValueWriterBE() *ValueWriter {
	return &ValueWriter{order: binary.BigEndian}
}

// NewValueWriterLE writes little-endian values.
func NewValueWriterLE() *ValueWriter {
	return &ValueWriter{order: binary.LittleEndian}
}

// Blob returns everything written so far.
func (w *ValueWriter) Blob() Blob {
	return NewBlob(w.buf)
}

// Len returns the number of bytes written.
func (w *ValueWriter) Len() int {
	return len(w.buf)
}

func (w *ValueWriter) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *ValueWriter) WriteU16(v uint16) {
	w.buf = w.order.AppendUint16(w.buf, v)
}

func (w *ValueWriter) WriteU32(v uint32) {
	w.buf = w.order.AppendUint32(w.buf, v)
}

func (w *ValueWriter) WriteU64(v uint64) {
	w.buf = w.order.AppendUint64(w.buf, v)
}

func (w *ValueWriter) WriteI32(v int32) {
	w.buf = w.order.AppendUint32(w.buf, uint32(v))
}

// WriteVarint writes an unsigned LEB128 value.
func (w *ValueWriter) WriteVarint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

// WriteBytes appends raw bytes without a length prefix.
func (w *ValueWriter) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteBlob writes a varint length prefix followed by the bytes.
func (w *ValueWriter) WriteBlob(b Blob) {
	w.WriteVarint(b.Len())
	w.buf = append(w.buf, b.AsBytes()...)
}

// WriteString writes a varint length prefix followed by UTF-8 bytes.
func (w *ValueWriter) WriteString(s string) {
	w.WriteVarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteByteRange writes offset then length as u64 values.
func (w *ValueWriter) WriteByteRange(r ByteRange) {
	w.WriteU64(r.Offset)
	w.WriteU64(r.Length)
}

// WritePBFKey writes a protobuf field key.
func (w *ValueWriter) WritePBFKey(field uint32, wire uint8) {
	w.WriteVarint(uint64(field)<<3 | uint64(wire&0x07))
}

// WritePBFString writes a length-delimited protobuf string.
func (w *ValueWriter) WritePBFString(s string) {
	w.WriteString(s)
}

// WritePBFPackedUint32 writes a length-delimited packed run of varints.
func (w *ValueWriter) WritePBFPackedUint32(values []uint32) {
	var packed []byte
	for _, v := range values {
		packed = binary.AppendUvarint(packed, uint64(v))
	}
	w.WriteVarint(uint64(len(packed)))
	w.buf = append(w.buf, packed...)
}
