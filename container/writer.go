package container

import (
	"bytes"
	"errors"
	"io"

	"github.com/hupe1980/sonata/codec"
	"github.com/hupe1980/sonata/errs"
)

// ErrClosed is returned when a closed Writer is used.
var ErrClosed = errors.New("container: writer closed")

// defaultChunkBytes bounds the raw size of chunks of multi-column datasets.
const defaultChunkBytes = 1 << 20

// Writer builds a container by streaming chunk payloads to an io.Writer.
// The manifest and footer are written by Close. A Writer is not safe for
// concurrent use.
type Writer struct {
	w      io.Writer
	off    uint64
	root   *node
	opts   writeOptions
	closed bool
}

// NewWriter returns a Writer appending to w. The options become the defaults
// for every dataset written.
func NewWriter(w io.Writer, optFns ...WriteOption) *Writer {
	opts := writeOptions{codec: codec.Default, compression: CompressionNone}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Writer{w: w, root: newGroup(), opts: opts}
}

// Build runs fn against an in-memory Writer and returns the finished blob.
func Build(fn func(w *Writer) error, optFns ...WriteOption) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf, optFns...)
	if err := fn(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CreateGroup creates the group at path and any missing parents.
func (w *Writer) CreateGroup(path string) error {
	_, err := w.mkdirAll(path)
	return err
}

func (w *Writer) mkdirAll(path string) (*node, error) {
	if w.closed {
		return nil, ErrClosed
	}
	cur := w.root
	for _, p := range splitPath(path) {
		next, ok := cur.Children[p]
		if !ok {
			next = newGroup()
			cur.Children[p] = next
		}
		if next.Dataset != nil {
			return nil, errs.Errorf(errs.ErrInvalidArgument, "%s: %q is a dataset", path, p)
		}
		cur = next
	}
	return cur, nil
}

// SetAttribute attaches a scalar attribute to the group or dataset at path.
// Missing groups are created.
func (w *Writer) SetAttribute(path, name string, value any) error {
	if w.closed {
		return ErrClosed
	}
	a, err := NewAttribute(value)
	if err != nil {
		return err
	}
	n, ok := w.root.lookup(path)
	if !ok {
		if n, err = w.mkdirAll(path); err != nil {
			return err
		}
	}
	if n.Attrs == nil {
		n.Attrs = map[string]Attribute{}
	}
	n.Attrs[name] = a
	return nil
}

func (w *Writer) newDataset(path string) (*node, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, errs.Errorf(errs.ErrInvalidArgument, "empty dataset path")
	}
	parent, err := w.mkdirAll(joinPath(parts[:len(parts)-1]))
	if err != nil {
		return nil, err
	}
	name := parts[len(parts)-1]
	if _, ok := parent.Children[name]; ok {
		return nil, errs.Errorf(errs.ErrInvalidArgument, "%s already exists", path)
	}
	n := &node{}
	parent.Children[name] = n
	return n, nil
}

func joinPath(parts []string) string {
	var b bytes.Buffer
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(p)
	}
	return b.String()
}

func (w *Writer) datasetOptions(optFns []WriteOption) writeOptions {
	opts := w.opts
	opts.shape = nil
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

func resolveShape(shape []uint64, n uint64) ([]uint64, error) {
	if len(shape) == 0 {
		return []uint64{n}, nil
	}
	total := uint64(1)
	for _, d := range shape {
		total *= d
	}
	if total != n {
		return nil, errs.Errorf(errs.ErrInvalidArgument, "shape %v does not hold %d values", shape, n)
	}
	return append([]uint64(nil), shape...), nil
}

func chunkRowsFor(opts writeOptions, rowBytes uint64) uint64 {
	if opts.chunkRows > 0 {
		return opts.chunkRows
	}
	if rowBytes > 8 {
		return max(1, defaultChunkBytes/rowBytes)
	}
	return DefaultChunkRows
}

func (w *Writer) writeChunk(raw []byte, c Compression) (chunkRef, error) {
	payload, actual, err := compressChunk(raw, c)
	if err != nil {
		return chunkRef{}, err
	}
	if _, err := w.w.Write(payload); err != nil {
		return chunkRef{}, err
	}
	ref := chunkRef{Offset: w.off, Length: uint64(len(payload)), RawLength: uint64(len(raw)), Compression: actual}
	w.off += uint64(len(payload))
	return ref, nil
}

// WriteDataset writes a numeric dataset at path.
func WriteDataset[T Element](w *Writer, path string, data []T, optFns ...WriteOption) error {
	if w.closed {
		return ErrClosed
	}
	opts := w.datasetOptions(optFns)
	shape, err := resolveShape(opts.shape, uint64(len(data)))
	if err != nil {
		return err
	}
	n, err := w.newDataset(path)
	if err != nil {
		return err
	}

	dt := DTypeOf[T]()
	meta := &datasetMeta{DType: dt, Shape: shape}
	cols := uint64(1)
	for _, d := range shape[1:] {
		cols *= d
	}
	meta.ChunkRows = chunkRowsFor(opts, cols*uint64(dt.Size()))

	step := meta.ChunkRows * cols
	for start := uint64(0); start < uint64(len(data)); start += step {
		end := min(start+step, uint64(len(data)))
		raw, err := encodeNumeric(data[start:end])
		if err != nil {
			return err
		}
		ref, err := w.writeChunk(raw, opts.compression)
		if err != nil {
			return err
		}
		meta.Chunks = append(meta.Chunks, ref)
	}
	n.Dataset = meta
	return nil
}

// WriteStrings writes a one-dimensional string dataset at path.
func (w *Writer) WriteStrings(path string, data []string, optFns ...WriteOption) error {
	if w.closed {
		return ErrClosed
	}
	opts := w.datasetOptions(optFns)
	n, err := w.newDataset(path)
	if err != nil {
		return err
	}
	meta := &datasetMeta{DType: String, Shape: []uint64{uint64(len(data))}, ChunkRows: chunkRowsFor(opts, 0)}
	for start := uint64(0); start < uint64(len(data)); start += meta.ChunkRows {
		end := min(start+meta.ChunkRows, uint64(len(data)))
		ref, err := w.writeChunk(encodeStrings(data[start:end]), opts.compression)
		if err != nil {
			return err
		}
		meta.Chunks = append(meta.Chunks, ref)
	}
	n.Dataset = meta
	return nil
}

// Close writes the manifest and footer. The underlying writer is not closed.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	raw, err := w.opts.codec.Marshal(manifest{Format: formatName, Version: formatVersion, Root: w.root})
	if err != nil {
		return err
	}
	if _, err := w.w.Write(raw); err != nil {
		return err
	}
	_, err = w.w.Write(encodeFooter(w.off, uint64(len(raw))))
	return err
}
