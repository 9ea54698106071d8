// Package s3 provides a read-only Amazon S3 implementation of
// blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.NewFromConfig(ctx, "circuits", "sim-2024/")
//	if err != nil { ... }
//	nodes, err := sonata.OpenNodeStorage(ctx, "nodes.sonata", sonata.WithStore(store))
//
// Container reads turn into ranged GetObject requests, so only the chunks
// touched by a selection are transferred.
package s3
