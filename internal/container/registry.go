package container

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
)

// OpenReaderFunc opens a source by filename or URL.
type OpenReaderFunc func(ctx context.Context, name string) (TilesReader, error)

// CreateWriterFunc creates a writer targeting a filename.
type CreateWriterFunc func(name string) (TilesWriter, error)

// Registry maps file extensions to container constructors. Formats
// register themselves explicitly; there is no global registry.
type Registry struct {
	readers map[string]OpenReaderFunc
	writers map[string]CreateWriterFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[string]OpenReaderFunc),
		writers: make(map[string]CreateWriterFunc),
	}
}

// RegisterReader binds an extension (with dot, e.g. ".versatiles") to a
// reader constructor.
func (r *Registry) RegisterReader(ext string, fn OpenReaderFunc) {
	r.readers[ext] = fn
}

// RegisterWriter binds an extension to a writer constructor.
func (r *Registry) RegisterWriter(ext string, fn CreateWriterFunc) {
	r.writers[ext] = fn
}

// extensionOf extracts the extension of a filename or URL, ignoring any
// query string.
func extensionOf(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(path.Ext(name))
}

// OpenReader opens a source by filename or http(s) URL, picking the
// format by extension. An unknown extension is an input error.
func (r *Registry) OpenReader(ctx context.Context, name string) (TilesReader, error) {
	ext := extensionOf(name)
	fn, ok := r.readers[ext]
	if !ok {
		return nil, fmt.Errorf("opening %q: unknown container extension %q (supported: %s)",
			name, ext, strings.Join(r.ReaderExtensions(), ", "))
	}
	reader, err := fn(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", name, err)
	}
	return reader, nil
}

// CreateWriter creates a writer by target filename extension.
func (r *Registry) CreateWriter(name string) (TilesWriter, error) {
	ext := extensionOf(name)
	fn, ok := r.writers[ext]
	if !ok {
		return nil, fmt.Errorf("creating %q: unknown container extension %q (supported: %s)",
			name, ext, strings.Join(r.WriterExtensions(), ", "))
	}
	w, err := fn(name)
	if err != nil {
		return nil, fmt.Errorf("creating %q: %w", name, err)
	}
	return w, nil
}

// ReaderExtensions lists the registered reader extensions, sorted.
func (r *Registry) ReaderExtensions() []string {
	out := make([]string, 0, len(r.readers))
	for ext := range r.readers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// WriterExtensions lists the registered writer extensions, sorted.
func (r *Registry) WriterExtensions() []string {
	out := make([]string, 0, len(r.writers))
	for ext := range r.writers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
