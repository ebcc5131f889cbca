package binio

import (
	"fmt"
	"io"
	"os"

	"github.com/orcaman/writerseeker"
)

// DataWriter appends blobs to a byte sink and can rewrite the start of
// the stream, which container writers use to finalize headers whose
// ranges are only known at the end of a job.
type DataWriter interface {
	// Append writes the blob at the current end and returns where it landed.
	Append(b Blob) (ByteRange, error)
	// WriteStart overwrites the beginning of the stream. The write
	// position for Append is unaffected.
	WriteStart(b Blob) error
	// Position returns the current append offset.
	Position() uint64
	io.Closer
}

// DataWriterFile writes to a local file.
type DataWriterFile struct {
	file *os.File
	pos  uint64
	name string
}

// CreateDataWriterFile creates (or truncates) a file for writing.
func CreateDataWriterFile(path string) (*DataWriterFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &DataWriterFile{file: f, name: path}, nil
}

func (w *DataWriterFile) Append(b Blob) (ByteRange, error) {
	n, err := w.file.WriteAt(b.AsBytes(), int64(w.pos))
	if err != nil {
		return ByteRange{}, fmt.Errorf("appending %d bytes to %s: %w", b.Len(), w.name, err)
	}
	r := ByteRange{Offset: w.pos, Length: uint64(n)}
	w.pos += uint64(n)
	return r, nil
}

func (w *DataWriterFile) WriteStart(b Blob) error {
	if _, err := w.file.WriteAt(b.AsBytes(), 0); err != nil {
		return fmt.Errorf("rewriting start of %s: %w", w.name, err)
	}
	return nil
}

func (w *DataWriterFile) Position() uint64 {
	return w.pos
}

func (w *DataWriterFile) Close() error {
	return w.file.Close()
}

// DataWriterMem collects writes in memory; used by tests and by writers
// that assemble small payloads before flushing them elsewhere.
type DataWriterMem struct {
	ws  *writerseeker.WriterSeeker
	pos uint64
}

// NewDataWriterMem returns an empty in-memory writer.
func NewDataWriterMem() *DataWriterMem {
	return &DataWriterMem{ws: &writerseeker.WriterSeeker{}}
}

func (w *DataWriterMem) Append(b Blob) (ByteRange, error) {
	if _, err := w.ws.Seek(int64(w.pos), io.SeekStart); err != nil {
		return ByteRange{}, err
	}
	n, err := w.ws.Write(b.AsBytes())
	if err != nil {
		return ByteRange{}, err
	}
	r := ByteRange{Offset: w.pos, Length: uint64(n)}
	w.pos += uint64(n)
	return r, nil
}

func (w *DataWriterMem) WriteStart(b Blob) error {
	if _, err := w.ws.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := w.ws.Write(b.AsBytes())
	return err
}

func (w *DataWriterMem) Position() uint64 {
	return w.pos
}

// Blob returns everything written so far.
func (w *DataWriterMem) Blob() (Blob, error) {
	data, err := io.ReadAll(w.ws.BytesReader())
	if err != nil {
		return Blob{}, err
	}
	return NewBlob(data), nil
}

func (w *DataWriterMem) Close() error {
	return nil
}
