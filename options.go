package sonata

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/hupe1980/sonata/blobstore"
	"github.com/hupe1980/sonata/codec"
	"github.com/hupe1980/sonata/container"
	"github.com/hupe1980/sonata/internal/cache"
	"github.com/hupe1980/sonata/resource"
)

// Options is the resolved configuration shared by storages, node sets and
// report readers. Use NewOptions to apply Option values over the defaults.
type Options struct {
	Codec            codec.Codec
	Logger           *Logger
	MetricsCollector MetricsCollector
	// Store resolves container names. When nil, names are local file paths.
	Store blobstore.BlobStore
	// BlockCacheBytes enables a per-handle block cache of that capacity.
	BlockCacheBytes int64
	Resources       *resource.Controller
}

// Option configures how containers are opened and observed.
type Option func(*Options)

// NewOptions returns the defaults with optFns applied.
func NewOptions(optFns ...Option) Options {
	o := Options{
		Codec:            codec.Default,
		Logger:           NoopLogger(),
		MetricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// WithCodec configures the codec used for container manifests and node set
// documents.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) {
		if c == nil {
			c = codec.Default
		}
		o.Codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring reads.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &sonata.BasicMetricsCollector{}
//	nodes, _ := sonata.OpenNodeStorage(ctx, "nodes.sonata", sonata.WithMetricsCollector(metrics))
//	// ... use nodes ...
//	stats := metrics.GetStats()
//	fmt.Printf("Reads: %d, Bytes: %d\n", stats.ReadCount, stats.ReadBytes)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *Options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.MetricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := sonata.NewJSONLogger(slog.LevelDebug)
//	nodes, _ := sonata.OpenNodeStorage(ctx, "nodes.sonata", sonata.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *Options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.Logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *Options) {
		o.Logger = NewTextLogger(level)
	}
}

// WithStore resolves container names against store instead of the local
// file system, e.g. an S3 or MinIO bucket.
func WithStore(store blobstore.BlobStore) Option {
	return func(o *Options) {
		o.Store = store
	}
}

// WithBlockCache caches fixed-size blocks of every container opened by one
// handle, up to bytes in total. Blocks are never shared between handles.
func WithBlockCache(bytes int64) Option {
	return func(o *Options) {
		o.BlockCacheBytes = bytes
	}
}

// WithResourceController throttles backend reads (concurrency, bandwidth)
// and accounts block cache memory against rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *Options) {
		o.Resources = rc
	}
}

// OpenContainer opens the named container with the configured store, cache,
// throttling, codec and read metrics.
func (o Options) OpenContainer(ctx context.Context, name string) (*container.File, error) {
	store, blobName := o.Store, name
	if store == nil {
		store, blobName = blobstore.NewLocalStore(filepath.Dir(name)), filepath.Base(name)
	}
	if o.Resources != nil {
		store = blobstore.NewThrottledStore(store, o.Resources)
	}
	if o.BlockCacheBytes > 0 {
		store = blobstore.NewCachingStore(store, cache.NewLRUBlockCache(o.BlockCacheBytes, o.Resources), 0)
	}

	metrics := o.MetricsCollector
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}
	codecOpt := o.Codec
	if codecOpt == nil {
		codecOpt = codec.Default
	}
	f, err := container.Open(ctx, store, blobName,
		container.WithCodec(codecOpt),
		container.WithObserver(container.ObserverFunc(metrics.RecordRead)),
	)
	if err != nil {
		return nil, translateError(err)
	}
	return f, nil
}

// Log returns the configured logger, never nil.
func (o Options) Log() *Logger {
	if o.Logger == nil {
		return NoopLogger()
	}
	return o.Logger
}

// Metrics returns the configured collector, never nil.
func (o Options) Metrics() MetricsCollector {
	if o.MetricsCollector == nil {
		return NoopMetricsCollector{}
	}
	return o.MetricsCollector
}
