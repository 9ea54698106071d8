package sonata_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/codec"
	"github.com/hupe1980/sonata/resource"
	"github.com/hupe1980/sonata/testutil"
)

func TestNewOptions_Defaults(t *testing.T) {
	o := sonata.NewOptions()
	assert.Equal(t, codec.Default, o.Codec)
	assert.NotNil(t, o.Log())
	assert.NotNil(t, o.Metrics())

	o = sonata.NewOptions(sonata.WithLogger(nil), sonata.WithMetricsCollector(nil), sonata.WithCodec(nil))
	assert.NotNil(t, o.Logger)
	assert.IsType(t, sonata.NoopMetricsCollector{}, o.MetricsCollector)
	assert.Equal(t, codec.Default, o.Codec)

	var zero sonata.Options
	assert.NotNil(t, zero.Log())
	assert.NotNil(t, zero.Metrics())
}

func TestOptions_ReadMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := &sonata.BasicMetricsCollector{}
	p := openNodes(t, sonata.WithMetricsCollector(metrics))

	// footer and manifest
	opened := metrics.GetStats()
	assert.Equal(t, int64(2), opened.ReadCount)
	assert.Positive(t, opened.ReadBytes)

	_, err := sonata.GetAttribute[float64](ctx, p.Population, "attr-X", p.SelectAll())
	require.NoError(t, err)
	stats := metrics.GetStats()
	assert.Equal(t, opened.ReadCount+1, stats.ReadCount)
	assert.Equal(t, opened.ReadBytes+6*8, stats.ReadBytes)
	assert.Zero(t, stats.ReadErrors)
}

func TestOptions_BlockCacheAndThrottling(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MaxConcurrentReads: 2})
	p := openNodes(t, sonata.WithBlockCache(1<<20), sonata.WithResourceController(rc))

	for range 2 {
		z, err := p.GetAttributeStrings(ctx, "attr-Z", p.SelectAll())
		require.NoError(t, err)
		assert.Equal(t, testutil.AttrZ, z)
	}
	assert.Positive(t, rc.IOBytes())
	assert.Positive(t, rc.MemoryUsage())
}

func TestOptions_LogLevel(t *testing.T) {
	o := sonata.NewOptions(sonata.WithLogLevel(slog.LevelWarn))
	assert.False(t, o.Log().Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, o.Log().Enabled(context.Background(), slog.LevelError))
}

func TestLogger_OpenFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := sonata.NewLogger(slog.NewJSONHandler(&buf, nil))

	_, err := sonata.OpenNodeStorage(context.Background(), "missing.sonata",
		sonata.WithStore(testutil.Store(t)), sonata.WithLogger(logger))
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"msg":"open failed"`)
	assert.Contains(t, buf.String(), `"file":"missing.sonata"`)
}

func TestBasicMetricsCollector(t *testing.T) {
	m := &sonata.BasicMetricsCollector{}
	m.RecordRead("a", 100, 2*time.Millisecond, nil)
	m.RecordRead("a", 50, 4*time.Millisecond, errors.New("boom"))
	m.RecordMaterialize("nodes-A", 3, time.Millisecond, nil)
	m.RecordReportGet("All", 12, time.Millisecond, nil)
	m.RecordReportGet("All", 0, time.Millisecond, errors.New("boom"))

	s := m.GetStats()
	assert.Equal(t, int64(2), s.ReadCount)
	assert.Equal(t, int64(1), s.ReadErrors)
	assert.Equal(t, int64(100), s.ReadBytes)
	assert.Equal(t, (3 * time.Millisecond).Nanoseconds(), s.ReadAvgNanos)
	assert.Equal(t, int64(1), s.MaterializeCount)
	assert.Equal(t, int64(2), s.ReportGetCount)
	assert.Equal(t, int64(1), s.ReportGetErrors)
	assert.Equal(t, int64(12), s.ReportGetValues)
}
