package cache

import (
	"context"
	"testing"

	"github.com/hupe1980/sonata/resource"
	"github.com/stretchr/testify/assert"
)

func TestLRU_EdgeCases(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	c := NewLRUBlockCache(50, rc)
	ctx := context.Background()
	k := CacheKey{Blob: "a.sonata", Block: 1}

	c.Set(ctx, k, make([]byte, 60))
	_, ok := c.Get(ctx, k)
	assert.False(t, ok, "block larger than capacity must not be cached")

	c.Set(ctx, k, make([]byte, 10))
	assert.Equal(t, int64(10), c.Size())

	c.Set(ctx, k, make([]byte, 20))
	assert.Equal(t, int64(20), c.Size())
	assert.Equal(t, int64(20), rc.MemoryUsage())

	c.Set(ctx, k, make([]byte, 5))
	assert.Equal(t, int64(5), c.Size())
	assert.Equal(t, int64(5), rc.MemoryUsage())

	rc2 := resource.NewController(resource.Config{MemoryLimitBytes: 10})
	c2 := NewLRUBlockCache(50, rc2)
	c2.Set(ctx, k, make([]byte, 8))
	c2.Set(ctx, k, make([]byte, 12))

	val, ok := c2.Get(ctx, k)
	assert.True(t, ok)
	assert.Len(t, val, 8, "growth beyond the memory limit must be rejected")
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRUBlockCache(30, nil)
	ctx := context.Background()

	c.Set(ctx, CacheKey{Blob: "x", Block: 0}, make([]byte, 10))
	c.Set(ctx, CacheKey{Blob: "x", Block: 1}, make([]byte, 10))
	c.Set(ctx, CacheKey{Blob: "x", Block: 2}, make([]byte, 10))

	// Touch block 0 so block 1 becomes the eviction victim.
	_, ok := c.Get(ctx, CacheKey{Blob: "x", Block: 0})
	assert.True(t, ok)

	c.Set(ctx, CacheKey{Blob: "x", Block: 3}, make([]byte, 10))

	_, ok = c.Get(ctx, CacheKey{Blob: "x", Block: 1})
	assert.False(t, ok)
	_, ok = c.Get(ctx, CacheKey{Blob: "x", Block: 0})
	assert.True(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRUBlockCache(100, nil)
	ctx := context.Background()
	k := CacheKey{Blob: "x", Block: 1}
	c.Set(ctx, k, []byte{1})
	c.Get(ctx, k)
	c.Get(ctx, CacheKey{Blob: "y", Block: 2})

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_InvalidateAndClose(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	c := NewLRUBlockCache(100, rc)
	ctx := context.Background()
	c.Set(ctx, CacheKey{Blob: "a", Block: 1}, []byte("a"))
	c.Set(ctx, CacheKey{Blob: "a", Block: 2}, []byte("b"))
	c.Set(ctx, CacheKey{Blob: "b", Block: 1}, []byte("c"))

	c.Invalidate(func(k CacheKey) bool {
		return k.Blob == "a"
	})

	_, ok := c.Get(ctx, CacheKey{Blob: "a", Block: 1})
	assert.False(t, ok)
	_, ok = c.Get(ctx, CacheKey{Blob: "b", Block: 1})
	assert.True(t, ok)

	assert.NoError(t, c.Close())
	assert.Zero(t, c.Len())
	assert.Zero(t, rc.MemoryUsage())
}
