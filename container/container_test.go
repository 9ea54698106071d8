package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sonata/blobstore"
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/selection"
)

func openBytes(t *testing.T, data []byte, optFns ...Option) *File {
	t.Helper()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "test.sonata", data))
	f, err := Open(context.Background(), store, "test.sonata", optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	data, err := Build(func(w *Writer) error {
		require.NoError(t, w.CreateGroup("/nodes/pop/0"))
		require.NoError(t, WriteDataset(w, "/nodes/pop/node_type_id", []int64{1, 1, 2}))
		require.NoError(t, WriteDataset(w, "/nodes/pop/0/x", []float32{0.5, 1.5, 2.5}))
		require.NoError(t, w.WriteStrings("/nodes/pop/0/name", []string{"a", "", "ccc"}))
		require.NoError(t, w.SetAttribute("/nodes/pop/0/x", "units", "um"))
		require.NoError(t, w.SetAttribute("/", "version", 2))
		return nil
	})
	require.NoError(t, err)

	f := openBytes(t, data)
	assert.True(t, f.IsGroup("/nodes/pop"))
	assert.True(t, f.IsDataset("nodes/pop/0/x"))
	assert.False(t, f.Exists("/nodes/other"))

	groups, err := f.Groups("/nodes/pop")
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, groups)

	names, err := f.Datasets("/nodes/pop/0")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "x"}, names)

	ds, err := f.Dataset("/nodes/pop/node_type_id")
	require.NoError(t, err)
	assert.Equal(t, Int64, ds.DType())
	assert.Equal(t, uint64(3), ds.Rows())

	ints, err := ReadAll[int64](ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 2}, ints)

	widened, err := ReadAll[float64](ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2}, widened)

	xs, err := f.Dataset("/nodes/pop/0/x")
	require.NoError(t, err)
	floats, err := Read[float64](ctx, xs, selection.Range{Begin: 1, End: 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, floats)

	units, err := xs.Attribute("units")
	require.NoError(t, err)
	s, err := units.AsString()
	require.NoError(t, err)
	assert.Equal(t, "um", s)

	version, err := f.Attribute("/", "version")
	require.NoError(t, err)
	v, err := version.AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	strs, err := f.Dataset("/nodes/pop/0/name")
	require.NoError(t, err)
	all, err := ReadAllStrings(ctx, strs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "ccc"}, all)
}

func TestChunkedReads(t *testing.T) {
	ctx := context.Background()
	values := make([]uint64, 100)
	labels := make([]string, 100)
	for i := range values {
		values[i] = uint64(i % 7)
		labels[i] = string(rune('a' + i%26))
	}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := Build(func(w *Writer) error {
				if err := WriteDataset(w, "/v", values); err != nil {
					return err
				}
				return w.WriteStrings("/s", labels)
			}, WithCompression(c), WithChunkRows(8))
			require.NoError(t, err)

			f := openBytes(t, data)
			ds, err := f.Dataset("/v")
			require.NoError(t, err)

			got, err := Read[uint64](ctx, ds, selection.Range{Begin: 5, End: 43})
			require.NoError(t, err)
			assert.Equal(t, values[5:43], got)

			sel := selection.Must(selection.FromPairs([][2]uint64{{0, 2}, {50, 52}, {97, 100}}))
			picked, err := ReadSelection[uint64](ctx, ds, sel)
			require.NoError(t, err)
			want := append(append(append([]uint64{}, values[0:2]...), values[50:52]...), values[97:100]...)
			assert.Equal(t, want, picked)

			sds, err := f.Dataset("/s")
			require.NoError(t, err)
			strs, err := ReadStrings(ctx, sds, selection.Range{Begin: 7, End: 18})
			require.NoError(t, err)
			assert.Equal(t, labels[7:18], strs)

			strSel, err := ReadStringSelection(ctx, sds, sel)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "y", "z", "t", "u", "v"}, strSel)
		})
	}
}

func TestContiguousChunksReadOnce(t *testing.T) {
	ctx := context.Background()
	values := make([]int32, 64)
	for i := range values {
		values[i] = int32(i)
	}
	data, err := Build(func(w *Writer) error {
		return WriteDataset(w, "/v", values, WithChunkRows(4))
	})
	require.NoError(t, err)

	f := openBytes(t, data)
	ds, err := f.Dataset("/v")
	require.NoError(t, err)

	before := f.Stats()
	got, err := Read[int32](ctx, ds, selection.Range{Begin: 3, End: 61})
	require.NoError(t, err)
	assert.Equal(t, values[3:61], got)

	after := f.Stats()
	assert.Equal(t, int64(1), after.Reads-before.Reads)
	assert.Equal(t, int64(58*4), after.Bytes-before.Bytes)
}

func TestReadSlab(t *testing.T) {
	ctx := context.Background()
	// 3 rows x 4 columns
	values := []float32{
		0, 1, 2, 3,
		10, 11, 12, 13,
		20, 21, 22, 23,
	}
	for _, c := range []Compression{CompressionNone, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := Build(func(w *Writer) error {
				return WriteDataset(w, "/data", values, WithShape(3, 4), WithChunkRows(2), WithCompression(c))
			})
			require.NoError(t, err)

			f := openBytes(t, data)
			ds, err := f.Dataset("/data")
			require.NoError(t, err)
			assert.Equal(t, []uint64{3, 4}, ds.Shape())
			assert.Equal(t, uint64(4), ds.Cols())

			got, err := ReadSlab[float32](ctx, ds, 1, selection.Range{Begin: 1, End: 3})
			require.NoError(t, err)
			assert.Equal(t, []float32{11, 12}, got)

			got, err = ReadSlab[float32](ctx, ds, 2, selection.Range{Begin: 0, End: 4})
			require.NoError(t, err)
			assert.Equal(t, []float32{20, 21, 22, 23}, got)

			rows, err := Read[float32](ctx, ds, selection.Range{Begin: 1, End: 3})
			require.NoError(t, err)
			assert.Equal(t, values[4:], rows)

			_, err = ReadSlab[float32](ctx, ds, 3, selection.Range{End: 1})
			assert.ErrorIs(t, err, errs.ErrRange)
			_, err = ReadSlab[float32](ctx, ds, 0, selection.Range{Begin: 2, End: 5})
			assert.ErrorIs(t, err, errs.ErrRange)
		})
	}
}

func TestReadBlock(t *testing.T) {
	ctx := context.Background()
	// 6 rows x 4 columns, value = 10*row + col
	values := make([]float32, 0, 24)
	for r := 0; r < 6; r++ {
		for c := 0; c < 4; c++ {
			values = append(values, float32(10*r+c))
		}
	}
	for _, c := range []Compression{CompressionNone, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := Build(func(w *Writer) error {
				return WriteDataset(w, "/data", values, WithShape(6, 4), WithChunkRows(2), WithCompression(c))
			})
			require.NoError(t, err)

			f := openBytes(t, data)
			ds, err := f.Dataset("/data")
			require.NoError(t, err)

			before := f.Stats()
			got, err := ReadBlock[float32](ctx, ds, selection.Range{Begin: 1, End: 5}, selection.Range{Begin: 1, End: 3})
			require.NoError(t, err)
			assert.Equal(t, []float32{11, 12, 21, 22, 31, 32, 41, 42}, got)
			assert.Equal(t, int64(1), f.Stats().Reads-before.Reads)

			before = f.Stats()
			got, err = ReadBlock[float32](ctx, ds, selection.Range{Begin: 0, End: 6}, selection.Range{Begin: 3, End: 4})
			require.NoError(t, err)
			assert.Equal(t, []float32{3, 13, 23, 33, 43, 53}, got)
			assert.LessOrEqual(t, f.Stats().Reads-before.Reads, int64(1))

			got, err = ReadBlock[float32](ctx, ds, selection.Range{Begin: 2, End: 2}, selection.Range{Begin: 0, End: 4})
			require.NoError(t, err)
			assert.Empty(t, got)

			_, err = ReadBlock[float32](ctx, ds, selection.Range{Begin: 5, End: 7}, selection.Range{End: 1})
			assert.ErrorIs(t, err, errs.ErrRange)
			_, err = ReadBlock[float32](ctx, ds, selection.Range{End: 1}, selection.Range{Begin: 3, End: 5})
			assert.ErrorIs(t, err, errs.ErrRange)
		})
	}
}

func TestReadBlock_SpansOnlyRequestedColumns(t *testing.T) {
	ctx := context.Background()
	values := make([]float32, 6*4)
	data, err := Build(func(w *Writer) error {
		return WriteDataset(w, "/data", values, WithShape(6, 4), WithChunkRows(2))
	})
	require.NoError(t, err)

	f := openBytes(t, data)
	ds, err := f.Dataset("/data")
	require.NoError(t, err)

	before := f.Stats()
	_, err = ReadBlock[float32](ctx, ds, selection.Range{Begin: 1, End: 5}, selection.Range{Begin: 1, End: 3})
	require.NoError(t, err)
	// from row 1 column 1 to row 4 column 3
	assert.Equal(t, int64(3*16+8), f.Stats().Bytes-before.Bytes)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	data, err := Build(func(w *Writer) error {
		if err := WriteDataset(w, "/g/f", []float64{1.5}); err != nil {
			return err
		}
		return w.WriteStrings("/g/s", []string{"x"})
	})
	require.NoError(t, err)
	f := openBytes(t, data)

	_, err = f.Dataset("/g/missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "/g/missing", pe.Path)

	_, err = f.Dataset("/g")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.Attribute("/g", "nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	ds, err := f.Dataset("/g/f")
	require.NoError(t, err)
	_, err = ReadAll[int64](ctx, ds)
	assert.ErrorIs(t, err, errs.ErrTypeMismatch)
	_, err = ReadAllStrings(ctx, ds)
	assert.ErrorIs(t, err, errs.ErrTypeMismatch)
	_, err = Read[float64](ctx, ds, selection.Range{Begin: 0, End: 2})
	assert.ErrorIs(t, err, errs.ErrRange)

	sds, err := f.Dataset("/g/s")
	require.NoError(t, err)
	_, err = ReadAll[int32](ctx, sds)
	assert.ErrorIs(t, err, errs.ErrTypeMismatch)
}

func TestWriterValidation(t *testing.T) {
	_, err := Build(func(w *Writer) error {
		return WriteDataset(w, "/v", []int8{1, 2, 3}, WithShape(2, 2))
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Build(func(w *Writer) error {
		if err := WriteDataset(w, "/v", []int8{1}); err != nil {
			return err
		}
		return WriteDataset(w, "/v", []int8{2})
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Build(func(w *Writer) error {
		if err := WriteDataset(w, "/v", []int8{1}); err != nil {
			return err
		}
		return w.CreateGroup("/v/child")
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Build(func(w *Writer) error {
		return w.SetAttribute("/", "bad", struct{}{})
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestOpenInvalid(t *testing.T) {
	store := blobstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "short", []byte("tiny")))
	require.NoError(t, store.Put(ctx, "garbage", make([]byte, 64)))

	_, err := Open(ctx, store, "short")
	assert.ErrorIs(t, err, ErrFormat)
	_, err = Open(ctx, store, "garbage")
	assert.ErrorIs(t, err, ErrFormat)
	_, err = Open(ctx, store, "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestObserver(t *testing.T) {
	data, err := Build(func(w *Writer) error {
		return WriteDataset(w, "/v", []uint16{1, 2, 3})
	})
	require.NoError(t, err)

	var reads, bytes int
	f := openBytes(t, data, WithObserver(ObserverFunc(func(file string, n int, _ time.Duration, err error) {
		assert.Equal(t, "test.sonata", file)
		assert.NoError(t, err)
		reads++
		bytes += n
	})))
	assert.Equal(t, 2, reads)

	ds, err := f.Dataset("/v")
	require.NoError(t, err)
	_, err = ReadAll[uint16](context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 3, reads)
	assert.Equal(t, f.Stats().Bytes, int64(bytes))
}

func TestAttribute(t *testing.T) {
	a, err := NewAttribute(uint32(7))
	require.NoError(t, err)
	f, err := a.AsFloat64()
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)
	assert.Equal(t, uint64(7), a.Value())

	_, err = a.AsString()
	assert.ErrorIs(t, err, errs.ErrTypeMismatch)

	s, err := NewAttribute("by_time")
	require.NoError(t, err)
	_, err = s.AsInt64()
	assert.ErrorIs(t, err, errs.ErrTypeMismatch)
	assert.Equal(t, "by_time", s.Value())
}

func TestCompressionFallsBackToRaw(t *testing.T) {
	raw := []byte{1, 2, 3}
	payload, actual, err := compressChunk(raw, CompressionZSTD)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, actual)
	assert.Equal(t, raw, payload)
}
