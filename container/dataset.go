package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/internal/bulkread"
	"github.com/hupe1980/sonata/selection"
)

// Dataset is a typed, chunked array stored in a container. Rows are the
// first dimension; all further dimensions are flattened into columns.
type Dataset struct {
	f    *File
	path string
	n    *node

	// last decompressed chunk, reused by consecutive slab reads
	mu        sync.Mutex
	lastChunk int
	lastData  []byte
}

func (d *Dataset) meta() *datasetMeta {
	return d.n.Dataset
}

// Path returns the dataset path inside the container.
func (d *Dataset) Path() string {
	return d.path
}

// DType returns the stored element type.
func (d *Dataset) DType() DType {
	return d.meta().DType
}

// Shape returns a copy of the dataset shape.
func (d *Dataset) Shape() []uint64 {
	return append([]uint64(nil), d.meta().Shape...)
}

// Rows returns the extent of the first dimension.
func (d *Dataset) Rows() uint64 {
	s := d.meta().Shape
	if len(s) == 0 {
		return 1
	}
	return s[0]
}

// Cols returns the product of all dimensions but the first.
func (d *Dataset) Cols() uint64 {
	s := d.meta().Shape
	cols := uint64(1)
	if len(s) > 1 {
		for _, x := range s[1:] {
			cols *= x
		}
	}
	return cols
}

// Attribute returns attribute name of the dataset.
func (d *Dataset) Attribute(name string) (Attribute, error) {
	return d.f.Attribute(d.path, name)
}

func (d *Dataset) errorf(kind error, format string, args ...any) error {
	return &PathError{File: d.f.name, Path: d.path, Err: errs.Errorf(kind, format, args...)}
}

func (d *Dataset) wrap(err error) error {
	return &PathError{File: d.f.name, Path: d.path, Err: err}
}

func (d *Dataset) checkRows(r selection.Range) error {
	if r.Begin > r.End || r.End > d.Rows() {
		return d.errorf(errs.ErrRange, "rows %s out of bounds [0, %d)", r, d.Rows())
	}
	return nil
}

func (d *Dataset) rowBytes() uint64 {
	return d.Cols() * uint64(d.DType().Size())
}

// chunkPart is the slice [lo, hi) of rows of chunk k. data holds either the
// whole decoded chunk (full) or the bytes from column cb of row lo up to the
// end of the column block of row hi-1.
type chunkPart struct {
	k      int
	lo, hi uint64
	data   []byte
	full   bool
}

// cachedChunk returns the decoded chunk k if it was the last one decoded.
func (d *Dataset) cachedChunk(k int) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastData == nil || d.lastChunk != k {
		return nil, false
	}
	return d.lastData, true
}

func (d *Dataset) keepChunk(k int, raw []byte) {
	d.mu.Lock()
	d.lastChunk, d.lastData = k, raw
	d.mu.Unlock()
}

// fetch reads the chunks overlapping rows, restricted to the columns cols.
// File-contiguous chunks are fetched with a single backend read. Uncompressed
// chunks are trimmed to the requested rows and columns unless whole is set;
// the bytes of other columns between two requested rows are read along.
func (d *Dataset) fetch(ctx context.Context, rows, cols selection.Range, whole bool) ([]chunkPart, error) {
	m := d.meta()
	if rows.Len() == 0 || len(m.Chunks) == 0 {
		return nil, nil
	}
	cr := m.ChunkRows
	rb := d.rowBytes()
	size := uint64(d.DType().Size())
	cb, width := cols.Begin*size, cols.Len()*size
	c0 := int(rows.Begin / cr)
	c1 := int((rows.End - 1) / cr)
	if c1 >= len(m.Chunks) {
		return nil, d.wrap(fmt.Errorf("%w: missing chunk %d", ErrFormat, c1))
	}

	bounds := func(k int) (lo, hi uint64) {
		start := uint64(k) * cr
		return max(rows.Begin, start) - start, min(rows.End, start+cr) - start
	}
	trimmed := func(k int) bool {
		return !whole && m.Chunks[k].Compression == CompressionNone
	}

	var parts []chunkPart
	for k := c0; k <= c1; {
		if !trimmed(k) {
			if raw, ok := d.cachedChunk(k); ok {
				lo, hi := bounds(k)
				parts = append(parts, chunkPart{k: k, lo: lo, hi: hi, data: raw, full: true})
				k++
				continue
			}
		}

		// extend the run while chunks are adjacent on disk
		end := k
		for end < c1 && m.Chunks[end].Offset+m.Chunks[end].Length == m.Chunks[end+1].Offset {
			end++
		}

		first, last := m.Chunks[k], m.Chunks[end]
		readStart := first.Offset
		if trimmed(k) {
			lo, _ := bounds(k)
			readStart += lo*rb + cb
		}
		readEnd := last.Offset + last.Length
		if trimmed(end) {
			_, hi := bounds(end)
			readEnd = last.Offset + (hi-1)*rb + cb + width
		}
		buf, err := d.f.readAt(ctx, readStart, readEnd-readStart)
		if err != nil {
			return nil, d.wrap(err)
		}

		for j := k; j <= end; j++ {
			ch := m.Chunks[j]
			lo, hi := bounds(j)
			if trimmed(j) {
				s := ch.Offset + lo*rb + cb - readStart
				parts = append(parts, chunkPart{k: j, lo: lo, hi: hi, data: buf[s : s+(hi-lo-1)*rb+width]})
				continue
			}
			payload := buf[ch.Offset-readStart : ch.Offset+ch.Length-readStart]
			raw, err := decompressChunk(payload, ch.Compression, ch.RawLength)
			if err != nil {
				return nil, d.wrap(err)
			}
			if ch.Compression != CompressionNone {
				d.keepChunk(j, raw)
			}
			parts = append(parts, chunkPart{k: j, lo: lo, hi: hi, data: raw, full: true})
		}
		k = end + 1
	}
	return parts, nil
}

// readRaw returns the bytes of the block rows x cols in row-major order.
func (d *Dataset) readRaw(ctx context.Context, rows, cols selection.Range) ([]byte, error) {
	parts, err := d.fetch(ctx, rows, cols, false)
	if err != nil {
		return nil, err
	}
	rb := d.rowBytes()
	size := uint64(d.DType().Size())
	cb, width := cols.Begin*size, cols.Len()*size
	if len(parts) == 1 && !parts[0].full && (width == rb || rows.Len() == 1) {
		return parts[0].data, nil
	}
	out := make([]byte, 0, rows.Len()*width)
	for _, p := range parts {
		switch {
		case width == rb && p.full:
			out = append(out, p.data[p.lo*rb:p.hi*rb]...)
		case width == rb:
			out = append(out, p.data...)
		default:
			for r := p.lo; r < p.hi; r++ {
				s := (r - p.lo) * rb
				if p.full {
					s = r*rb + cb
				}
				out = append(out, p.data[s:s+width]...)
			}
		}
	}
	return out, nil
}

func checkNumeric[T Element](d *Dataset) error {
	if !d.DType().IsNumeric() {
		return d.errorf(errs.ErrTypeMismatch, "dataset is %s, cannot read as %s", d.DType(), DTypeOf[T]())
	}
	if d.DType().IsFloat() && !DTypeOf[T]().IsFloat() {
		return d.errorf(errs.ErrTypeMismatch, "dataset is %s, cannot read as %s", d.DType(), DTypeOf[T]())
	}
	return nil
}

func decodeRaw[T Element](raw []byte, dt DType) []T {
	out := make([]T, len(raw)/dt.Size())
	decodeInto(out, raw, dt)
	return out
}

// Read returns the flattened values of rows as T. Integer datasets convert to
// any numeric T; float datasets only to float types.
func Read[T Element](ctx context.Context, d *Dataset, rows selection.Range) ([]T, error) {
	if err := checkNumeric[T](d); err != nil {
		return nil, err
	}
	if err := d.checkRows(rows); err != nil {
		return nil, err
	}
	raw, err := d.readRaw(ctx, rows, selection.Range{End: d.Cols()})
	if err != nil {
		return nil, err
	}
	return decodeRaw[T](raw, d.DType()), nil
}

// ReadAll returns all values of d as T.
func ReadAll[T Element](ctx context.Context, d *Dataset) ([]T, error) {
	return Read[T](ctx, d, selection.Range{End: d.Rows()})
}

// ReadSlab returns columns cols of one row of a two-dimensional dataset.
func ReadSlab[T Element](ctx context.Context, d *Dataset, row uint64, cols selection.Range) ([]T, error) {
	return ReadBlock[T](ctx, d, selection.Range{Begin: row, End: row + 1}, cols)
}

// ReadBlock returns the values of rows x cols of a two-dimensional dataset in
// row-major order. Uncompressed chunks adjacent on disk are fetched with one
// backend read spanning the block; compressed chunks are decoded once and
// the last one is kept for the next block of the same chunk.
func ReadBlock[T Element](ctx context.Context, d *Dataset, rows, cols selection.Range) ([]T, error) {
	if err := checkNumeric[T](d); err != nil {
		return nil, err
	}
	if err := d.checkRows(rows); err != nil {
		return nil, err
	}
	if cols.Begin > cols.End || cols.End > d.Cols() {
		return nil, d.errorf(errs.ErrRange, "columns %s out of bounds [0, %d)", cols, d.Cols())
	}
	if rows.Len() == 0 || cols.Len() == 0 {
		return []T{}, nil
	}
	raw, err := d.readRaw(ctx, rows, cols)
	if err != nil {
		return nil, err
	}
	return decodeRaw[T](raw, d.DType()), nil
}

// ReadSelection returns the values of the rows in sel, in ascending order.
// Nearby ranges are coalesced into larger reads.
func ReadSelection[T Element](ctx context.Context, d *Dataset, sel selection.Selection) ([]T, error) {
	if err := checkNumeric[T](d); err != nil {
		return nil, err
	}
	if maxID, ok := sel.Max(); ok && maxID >= d.Rows() {
		return nil, d.errorf(errs.ErrRange, "row %d out of bounds [0, %d)", maxID, d.Rows())
	}
	cols := d.Cols()
	if cols == 1 {
		return bulkread.ReadSelection(sel, func(block selection.Range) ([]T, error) {
			return Read[T](ctx, d, block)
		})
	}
	out := make([]T, 0, sel.FlatSize()*cols)
	for _, r := range sel.Ranges() {
		v, err := Read[T](ctx, d, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	return out, nil
}

// ReadStrings returns rows of a string dataset.
func ReadStrings(ctx context.Context, d *Dataset, rows selection.Range) ([]string, error) {
	if d.DType() != String {
		return nil, d.errorf(errs.ErrTypeMismatch, "dataset is %s, not string", d.DType())
	}
	if err := d.checkRows(rows); err != nil {
		return nil, err
	}
	parts, err := d.fetch(ctx, rows, selection.Range{End: d.Cols()}, true)
	if err != nil {
		return nil, err
	}
	m := d.meta()
	out := make([]string, 0, rows.Len())
	for _, p := range parts {
		n := min(m.ChunkRows, d.Rows()-uint64(p.k)*m.ChunkRows)
		vals, err := decodeStrings(p.data, n)
		if err != nil {
			return nil, d.wrap(err)
		}
		out = append(out, vals[p.lo:p.hi]...)
	}
	return out, nil
}

// ReadAllStrings returns all rows of a string dataset.
func ReadAllStrings(ctx context.Context, d *Dataset) ([]string, error) {
	return ReadStrings(ctx, d, selection.Range{End: d.Rows()})
}

// ReadStringSelection returns the rows of sel of a string dataset in
// ascending order.
func ReadStringSelection(ctx context.Context, d *Dataset, sel selection.Selection) ([]string, error) {
	if maxID, ok := sel.Max(); ok && maxID >= d.Rows() {
		return nil, d.errorf(errs.ErrRange, "row %d out of bounds [0, %d)", maxID, d.Rows())
	}
	return bulkread.ReadSelection(sel, func(block selection.Range) ([]string, error) {
		return ReadStrings(ctx, d, block)
	})
}
