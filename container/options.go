package container

import (
	"time"

	"github.com/hupe1980/sonata/codec"
)

// Observer is notified of every backend read issued by a File.
type Observer interface {
	ObserveRead(file string, bytes int, d time.Duration, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(file string, bytes int, d time.Duration, err error)

// ObserveRead calls f.
func (f ObserverFunc) ObserveRead(file string, bytes int, d time.Duration, err error) {
	f(file, bytes, d, err)
}

type options struct {
	codec    codec.Codec
	observer Observer
}

// Option configures how a container is opened.
type Option func(*options)

// WithCodec sets the codec used to decode the manifest.
// Defaults to codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithObserver registers an observer for backend reads.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

const (
	// DefaultChunkRows is the number of rows per chunk when none is given.
	DefaultChunkRows = 1 << 16
)

type writeOptions struct {
	codec       codec.Codec
	compression Compression
	chunkRows   uint64
	shape       []uint64
}

// WriteOption configures a Writer (as defaults) or a single dataset write.
type WriteOption func(*writeOptions)

// WithManifestCodec sets the codec used to encode the manifest.
func WithManifestCodec(c codec.Codec) WriteOption {
	return func(o *writeOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithCompression sets the chunk compression.
func WithCompression(c Compression) WriteOption {
	return func(o *writeOptions) {
		o.compression = c
	}
}

// WithChunkRows sets the number of rows per chunk.
func WithChunkRows(n uint64) WriteOption {
	return func(o *writeOptions) {
		if n > 0 {
			o.chunkRows = n
		}
	}
}

// WithShape sets the dataset shape. The product of all dimensions must equal
// the number of values written. Defaults to a 1-D shape.
func WithShape(dims ...uint64) WriteOption {
	return func(o *writeOptions) {
		o.shape = dims
	}
}
