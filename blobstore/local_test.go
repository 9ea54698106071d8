package blobstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hupe1980/sonata/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	data := []byte("hello world, this is a test blob")
	require.NoError(t, store.Put(ctx, "reports/soma.sonata", data))
	require.NoError(t, store.Put(ctx, "nodes.sonata", []byte("n")))

	blob, err := store.Open(ctx, "reports/soma.sonata")
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	_, err = blob.ReadAt(ctx, buf, int64(len(data)))
	assert.ErrorIs(t, err, io.EOF)

	m, ok := blob.(Mappable)
	require.True(t, ok)
	b, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, b)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"nodes.sonata", "reports/soma.sonata"}, names)

	names, err = store.List(ctx, "reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/soma.sonata"}, names)

	_, err = store.Open(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "a", []byte("abcdef")))

	blob, err := store.Open(ctx, "a")
	require.NoError(t, err)

	buf := make([]byte, 4)
	require.NoError(t, ReadFull(ctx, blob, buf, 2))
	assert.Equal(t, "cdef", string(buf))

	err = ReadFull(ctx, blob, buf, 4)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	rr, ok := blob.(RangeReader)
	require.True(t, ok)
	r, err := rr.ReadRange(ctx, 1, 3)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "bcd", string(got))

	_, err = store.Open(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThrottledStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "a", []byte("0123456789")))

	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	store := NewThrottledStore(inner, rc)

	blob, err := store.Open(ctx, "a")
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = blob.ReadAt(ctx, buf, 3)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(buf))
	assert.Equal(t, int64(4), rc.IOBytes())

	r, err := blob.(RangeReader).ReadRange(ctx, 0, 2)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "01", string(got))
}
