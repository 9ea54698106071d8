// Package blobstore provides the byte-range storage abstraction under sonata
// containers.
//
// BlobStore opens immutable blobs; Blob serves positioned reads. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with mmap
//   - MemoryStore: in-memory, for tests and generated fixtures
//   - CachingStore: block cache in front of any store
//   - ThrottledStore: rate-limited reads via resource.Controller
//   - s3.Store: Amazon S3 with ranged GETs
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    List(ctx, prefix) ([]string, error)
//	}
//
// For cloud backends, implement RangeReader for streaming partial reads.
package blobstore
