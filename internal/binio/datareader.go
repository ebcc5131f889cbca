package binio

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DataReader reads byte ranges from a seekable data source: a local file
// or a remote file behind HTTP range requests.
type DataReader interface {
	// ReadRange returns exactly range.Length bytes starting at range.Offset.
	ReadRange(ctx context.Context, r ByteRange) (Blob, error)
	// ReadAll returns the entire content.
	ReadAll(ctx context.Context) (Blob, error)
	// Name identifies the source, e.g. a filename or URL.
	Name() string
	// Size returns the total length in bytes.
	Size() uint64
	io.Closer
}

// DataReaderFile reads ranges from a local file using pread semantics;
// a single handle is shared and ReadAt needs no extra locking.
type DataReaderFile struct {
	file *os.File
	name string
	size uint64
}

// OpenDataReaderFile opens a file for random range access.
func OpenDataReaderFile(path string) (*DataReaderFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &DataReaderFile{file: f, name: path, size: uint64(info.Size())}, nil
}

func (r *DataReaderFile) ReadRange(_ context.Context, rng ByteRange) (Blob, error) {
	if rng.End() > r.size {
		return Blob{}, fmt.Errorf("range %s of %s exceeds file size %d", rng, r.name, r.size)
	}
	buf := make([]byte, rng.Length)
	if _, err := r.file.ReadAt(buf, int64(rng.Offset)); err != nil {
		return Blob{}, fmt.Errorf("reading range %s of %s: %w", rng, r.name, err)
	}
	return NewBlob(buf), nil
}

func (r *DataReaderFile) ReadAll(ctx context.Context) (Blob, error) {
	return r.ReadRange(ctx, ByteRange{Offset: 0, Length: r.size})
}

func (r *DataReaderFile) Name() string {
	return r.name
}

func (r *DataReaderFile) Size() uint64 {
	return r.size
}

func (r *DataReaderFile) Close() error {
	return r.file.Close()
}

// DataReaderBlob serves ranges from an in-memory blob; used for tests and
// for sources that were already fully loaded.
type DataReaderBlob struct {
	blob Blob
	name string
}

// NewDataReaderBlob wraps a blob as a DataReader.
func NewDataReaderBlob(name string, b Blob) *DataReaderBlob {
	return &DataReaderBlob{blob: b, name: name}
}

func (r *DataReaderBlob) ReadRange(_ context.Context, rng ByteRange) (Blob, error) {
	if rng.End() > r.blob.Len() {
		return Blob{}, fmt.Errorf("range %s of %s exceeds size %d", rng, r.name, r.blob.Len())
	}
	return r.blob.GetRange(rng.Offset, rng.Length), nil
}

func (r *DataReaderBlob) ReadAll(context.Context) (Blob, error) {
	return r.blob, nil
}

func (r *DataReaderBlob) Name() string {
	return r.name
}

func (r *DataReaderBlob) Size() uint64 {
	return r.blob.Len()
}

func (r *DataReaderBlob) Close() error {
	return nil
}
