// Package prommetrics exports sonata metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	nodes, _ := sonata.OpenNodeStorage(ctx, "nodes.sonata",
//		sonata.WithMetricsCollector(prommetrics.New(reg)))
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/sonata"
)

var _ sonata.MetricsCollector = (*Collector)(nil)

// Collector implements sonata.MetricsCollector with Prometheus metrics.
type Collector struct {
	opLatency   *prometheus.HistogramVec
	readBytes   *prometheus.CounterVec
	nodeSetSize *prometheus.HistogramVec
	reportValue *prometheus.CounterVec
}

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sonata_operation_latency_seconds",
			Help:    "Latency of sonata operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		readBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sonata_read_bytes_total",
			Help: "Bytes read from container backends",
		}, []string{"file"}),
		nodeSetSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sonata_nodeset_size_nodes",
			Help:    "Number of nodes selected by node set materialization",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}, []string{"population"}),
		reportValue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sonata_report_values_total",
			Help: "Values returned by report reads",
		}, []string{"population"}),
	}
	reg.MustRegister(c.opLatency, c.readBytes, c.nodeSetSize, c.reportValue)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordRead implements sonata.MetricsCollector.
func (c *Collector) RecordRead(file string, bytes int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("read", status(err)).Observe(d.Seconds())
	if err == nil {
		c.readBytes.WithLabelValues(file).Add(float64(bytes))
	}
}

// RecordMaterialize implements sonata.MetricsCollector.
func (c *Collector) RecordMaterialize(population string, size uint64, d time.Duration, err error) {
	c.opLatency.WithLabelValues("materialize", status(err)).Observe(d.Seconds())
	if err == nil {
		c.nodeSetSize.WithLabelValues(population).Observe(float64(size))
	}
}

// RecordReportGet implements sonata.MetricsCollector.
func (c *Collector) RecordReportGet(population string, values int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("report_get", status(err)).Observe(d.Seconds())
	if err == nil {
		c.reportValue.WithLabelValues(population).Add(float64(values))
	}
}
