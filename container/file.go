// Package container reads and writes sonata containers: immutable blobs
// holding a tree of groups and typed, chunked datasets with scalar attributes.
//
// A container blob is laid out as
//
//	[chunk payloads ...][manifest][footer: manifest offset u64, length u64, "SONATAC1"]
//
// The manifest is a JSON document describing groups, datasets, attributes and
// chunk locations. Dataset rows are chunked along the first dimension; each
// chunk is stored raw, LZ4 or Zstandard compressed. Reads never load more than
// the chunks overlapping the requested rows.
package container

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hupe1980/sonata/blobstore"
	"github.com/hupe1980/sonata/codec"
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/internal/conv"
)

// File is an open container. It is safe for concurrent use.
type File struct {
	name string
	blob blobstore.Blob
	root *node
	opts options

	reads     atomic.Int64
	readBytes atomic.Int64
}

// ReadStats counts the backend reads issued by a File.
type ReadStats struct {
	Reads int64
	Bytes int64
}

// Open opens the named container blob from store.
func Open(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*File, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, &PathError{File: name, Path: "/", Err: err}
	}
	f, err := newFile(ctx, name, blob, optFns...)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	return f, nil
}

// OpenFile opens a container on the local file system.
func OpenFile(ctx context.Context, path string, optFns ...Option) (*File, error) {
	return Open(ctx, blobstore.NewLocalStore(filepath.Dir(path)), filepath.Base(path), optFns...)
}

// OpenBlob reads the manifest of an already opened blob. The File takes
// ownership of blob.
func OpenBlob(ctx context.Context, name string, blob blobstore.Blob, optFns ...Option) (*File, error) {
	return newFile(ctx, name, blob, optFns...)
}

func newFile(ctx context.Context, name string, blob blobstore.Blob, optFns ...Option) (*File, error) {
	opts := options{codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}

	f := &File{name: name, blob: blob, opts: opts}

	size := blob.Size()
	if size < footerSize {
		return nil, &PathError{File: name, Path: "/", Err: fmt.Errorf("%w: blob too small", ErrFormat)}
	}
	footer, err := f.readAt(ctx, uint64(size-footerSize), footerSize)
	if err != nil {
		return nil, &PathError{File: name, Path: "/", Err: err}
	}
	off, length, err := decodeFooter(footer, size)
	if err != nil {
		return nil, &PathError{File: name, Path: "/", Err: err}
	}
	raw, err := f.readAt(ctx, off, length)
	if err != nil {
		return nil, &PathError{File: name, Path: "/", Err: err}
	}

	var m manifest
	if err := opts.codec.Unmarshal(raw, &m); err != nil {
		return nil, &PathError{File: name, Path: "/", Err: fmt.Errorf("%w: manifest: %w", ErrFormat, err)}
	}
	if m.Format != formatName || m.Version != formatVersion || m.Root == nil {
		return nil, &PathError{File: name, Path: "/", Err: fmt.Errorf("%w: unsupported manifest %q v%d", ErrFormat, m.Format, m.Version)}
	}
	f.root = m.Root
	return f, nil
}

// readAt issues exactly one backend read.
func (f *File) readAt(ctx context.Context, off, length uint64) ([]byte, error) {
	pos, n, err := conv.Span(off, length, f.blob.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	buf := make([]byte, n)
	start := time.Now()
	err = blobstore.ReadFull(ctx, f.blob, buf, pos)
	f.reads.Add(1)
	f.readBytes.Add(int64(n))
	if f.opts.observer != nil {
		f.opts.observer.ObserveRead(f.name, n, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Name returns the blob name the container was opened from.
func (f *File) Name() string {
	return f.name
}

// Stats returns the number of backend reads issued so far.
func (f *File) Stats() ReadStats {
	return ReadStats{Reads: f.reads.Load(), Bytes: f.readBytes.Load()}
}

// Close releases the underlying blob.
func (f *File) Close() error {
	return f.blob.Close()
}

func (f *File) notFound(path, what string) error {
	return &PathError{File: f.name, Path: path, Err: errs.Errorf(errs.ErrNotFound, "no such %s", what)}
}

// Exists reports whether path names a group or dataset.
func (f *File) Exists(path string) bool {
	_, ok := f.root.lookup(path)
	return ok
}

// IsGroup reports whether path names a group.
func (f *File) IsGroup(path string) bool {
	n, ok := f.root.lookup(path)
	return ok && n.Dataset == nil
}

// IsDataset reports whether path names a dataset.
func (f *File) IsDataset(path string) bool {
	n, ok := f.root.lookup(path)
	return ok && n.Dataset != nil
}

func (f *File) group(path string) (*node, error) {
	n, ok := f.root.lookup(path)
	if !ok || n.Dataset != nil {
		return nil, f.notFound(path, "group")
	}
	return n, nil
}

// Children returns the sorted names of all members of the group at path.
func (f *File) Children(path string) ([]string, error) {
	return f.members(path, func(*node) bool { return true })
}

// Groups returns the sorted names of the subgroups of the group at path.
func (f *File) Groups(path string) ([]string, error) {
	return f.members(path, func(n *node) bool { return n.Dataset == nil })
}

// Datasets returns the sorted names of the datasets in the group at path.
func (f *File) Datasets(path string) ([]string, error) {
	return f.members(path, func(n *node) bool { return n.Dataset != nil })
}

func (f *File) members(path string, keep func(*node) bool) ([]string, error) {
	g, err := f.group(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(g.Children))
	for name, child := range g.Children {
		if keep(child) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// HasAttribute reports whether the object at path carries attribute name.
func (f *File) HasAttribute(path, name string) bool {
	n, ok := f.root.lookup(path)
	if !ok {
		return false
	}
	_, ok = n.Attrs[name]
	return ok
}

// Attribute returns attribute name of the group or dataset at path.
func (f *File) Attribute(path, name string) (Attribute, error) {
	n, ok := f.root.lookup(path)
	if !ok {
		return Attribute{}, f.notFound(path, "group or dataset")
	}
	a, ok := n.Attrs[name]
	if !ok {
		return Attribute{}, f.notFound(path, fmt.Sprintf("attribute %q", name))
	}
	return a, nil
}

// AttributeNames returns the sorted attribute names of the object at path.
func (f *File) AttributeNames(path string) ([]string, error) {
	n, ok := f.root.lookup(path)
	if !ok {
		return nil, f.notFound(path, "group or dataset")
	}
	names := make([]string, 0, len(n.Attrs))
	for name := range n.Attrs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Dataset returns the dataset at path.
func (f *File) Dataset(path string) (*Dataset, error) {
	n, ok := f.root.lookup(path)
	if !ok || n.Dataset == nil {
		return nil, f.notFound(path, "dataset")
	}
	return &Dataset{f: f, path: path, n: n}, nil
}
