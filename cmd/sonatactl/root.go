package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/blobstore"
	minioblob "github.com/hupe1980/sonata/blobstore/minio"
	s3blob "github.com/hupe1980/sonata/blobstore/s3"
	"github.com/hupe1980/sonata/codec"
	"github.com/hupe1980/sonata/resource"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel    string
	codec       string
	blockCache  int64
	ioLimit     int64
	bucket      string
	prefix      string
	minioServer string
	minioTLS    bool
}

func (g *globalFlags) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&g.logLevel, "log-level", "", "log to stderr at this level (debug, info, warn, error)")
	f.StringVar(&g.codec, "codec", "go-json", "JSON codec for manifests and node sets (json, go-json)")
	f.Int64Var(&g.blockCache, "block-cache", 0, "size in bytes of the shared block cache (0 disables it)")
	f.Int64Var(&g.ioLimit, "io-limit", 0, "maximum read throughput in bytes per second (0 is unlimited)")
	f.StringVar(&g.bucket, "bucket", "", "read files from this S3 or MinIO bucket")
	f.StringVar(&g.prefix, "prefix", "", "key prefix inside --bucket")
	f.StringVar(&g.minioServer, "minio-endpoint", "", "MinIO endpoint; credentials come from MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
	f.BoolVar(&g.minioTLS, "minio-tls", false, "use TLS for --minio-endpoint")
}

func (g *globalFlags) store(ctx context.Context) (blobstore.BlobStore, error) {
	if g.bucket == "" {
		return nil, nil
	}
	if g.minioServer == "" {
		return s3blob.NewFromConfig(ctx, g.bucket, g.prefix)
	}
	client, err := minio.New(g.minioServer, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
		Secure: g.minioTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return minioblob.NewStore(client, g.bucket, g.prefix), nil
}

// options maps the global flags to library options.
func (g *globalFlags) options(ctx context.Context) ([]sonata.Option, error) {
	c, ok := codec.ByName(g.codec)
	if !ok {
		return nil, fmt.Errorf("--codec: unknown codec %q", g.codec)
	}
	opts := []sonata.Option{sonata.WithCodec(c)}
	if g.logLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
		opts = append(opts, sonata.WithLogLevel(level))
	}
	if g.blockCache > 0 {
		opts = append(opts, sonata.WithBlockCache(g.blockCache))
	}
	if g.ioLimit > 0 {
		opts = append(opts, sonata.WithResourceController(resource.NewController(resource.Config{
			IOLimitBytesPerSec: g.ioLimit,
		})))
	}
	store, err := g.store(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, sonata.WithStore(store))
	}
	return opts, nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "sonatactl",
		Short: "Inspect SONATA circuit and report files",
		Long: `sonatactl lists populations, evaluates node sets and reads reports
from local files or from an S3/MinIO bucket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.register(cmd)
	cmd.AddCommand(
		newPopulationsCmd(g),
		newNodeSetCmd(g),
		newReportCmd(g),
	)
	return cmd
}
