package blobstore

import (
	"context"
	"io"

	"github.com/hupe1980/sonata/resource"
)

// ThrottledStore bounds the concurrency and throughput of reads against the
// wrapped store using a resource.Controller.
type ThrottledStore struct {
	inner BlobStore
	rc    *resource.Controller
}

// NewThrottledStore wraps inner with the limits of rc.
func NewThrottledStore(inner BlobStore, rc *resource.Controller) *ThrottledStore {
	return &ThrottledStore{inner: inner, rc: rc}
}

// Open opens a throttled blob.
func (s *ThrottledStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &throttledBlob{Blob: b, rc: s.rc}, nil
}

// List delegates to the wrapped store.
func (s *ThrottledStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type throttledBlob struct {
	Blob
	rc *resource.Controller
}

func (b *throttledBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.rc.AcquireRead(ctx); err != nil {
		return 0, err
	}
	defer b.rc.ReleaseRead()

	if err := b.rc.AcquireIO(ctx, len(p)); err != nil {
		return 0, err
	}
	return b.Blob.ReadAt(ctx, p, off)
}

func (b *throttledBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	var rc io.ReadCloser
	if rr, ok := b.Blob.(RangeReader); ok {
		r, err := rr.ReadRange(ctx, off, length)
		if err != nil {
			return nil, err
		}
		rc = r
	} else {
		rc = io.NopCloser(io.NewSectionReader(ReaderAt(ctx, b.Blob), off, length))
	}
	return struct {
		io.Reader
		io.Closer
	}{resource.NewRateLimitedReader(ctx, rc, b.rc), rc}, nil
}
