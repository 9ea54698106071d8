package prommetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sonata"
	fixtures "github.com/hupe1980/sonata/testutil"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordRead("a.sonata", 100, time.Millisecond, nil)
	c.RecordRead("a.sonata", 50, time.Millisecond, nil)
	c.RecordRead("a.sonata", 70, time.Millisecond, errors.New("boom"))
	c.RecordReportGet("All", 12, time.Millisecond, nil)
	c.RecordMaterialize("nodes-A", 3, time.Millisecond, nil)

	assert.Equal(t, float64(150), testutil.ToFloat64(c.readBytes.WithLabelValues("a.sonata")))
	assert.Equal(t, float64(12), testutil.ToFloat64(c.reportValue.WithLabelValues("All")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.nodeSetSize))
	assert.Equal(t, 4, testutil.CollectAndCount(c.opLatency))

	_, err := reg.Gather()
	require.NoError(t, err)
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestCollector_WiredIntoStorage(t *testing.T) {
	ctx := context.Background()
	c := New(prometheus.NewRegistry())

	nodes, err := sonata.OpenNodeStorage(ctx, fixtures.NodesFile,
		sonata.WithStore(fixtures.Store(t)),
		sonata.WithMetricsCollector(c))
	require.NoError(t, err)
	defer nodes.Close()

	assert.Greater(t, testutil.ToFloat64(c.readBytes.WithLabelValues(fixtures.NodesFile)), float64(0))
}
