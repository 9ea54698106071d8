package sonata

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// prommetrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordRead is called after each backend read of a container.
	// bytes is the requested length, err is nil if successful.
	RecordRead(file string, bytes int, duration time.Duration, err error)

	// RecordMaterialize is called after each node set materialization.
	// size is the number of selected nodes.
	RecordMaterialize(population string, size uint64, duration time.Duration, err error)

	// RecordReportGet is called after each report population Get.
	// values is the number of data values returned.
	RecordReportGet(population string, values int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(string, int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordMaterialize(string, uint64, time.Duration, error) {}
func (NoopMetricsCollector) RecordReportGet(string, int, time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReadCount             atomic.Int64
	ReadErrors            atomic.Int64
	ReadBytes             atomic.Int64
	ReadTotalNanos        atomic.Int64
	MaterializeCount      atomic.Int64
	MaterializeErrors     atomic.Int64
	MaterializeTotalNanos atomic.Int64
	ReportGetCount        atomic.Int64
	ReportGetErrors       atomic.Int64
	ReportGetValues       atomic.Int64
	ReportGetTotalNanos   atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(_ string, bytes int, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	b.ReadBytes.Add(int64(bytes))
}

// RecordMaterialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMaterialize(_ string, _ uint64, duration time.Duration, err error) {
	b.MaterializeCount.Add(1)
	b.MaterializeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MaterializeErrors.Add(1)
	}
}

// RecordReportGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReportGet(_ string, values int, duration time.Duration, err error) {
	b.ReportGetCount.Add(1)
	b.ReportGetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReportGetErrors.Add(1)
		return
	}
	b.ReportGetValues.Add(int64(values))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:           b.ReadCount.Load(),
		ReadErrors:          b.ReadErrors.Load(),
		ReadBytes:           b.ReadBytes.Load(),
		ReadAvgNanos:        avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		MaterializeCount:    b.MaterializeCount.Load(),
		MaterializeErrors:   b.MaterializeErrors.Load(),
		MaterializeAvgNanos: avg(b.MaterializeTotalNanos.Load(), b.MaterializeCount.Load()),
		ReportGetCount:      b.ReportGetCount.Load(),
		ReportGetErrors:     b.ReportGetErrors.Load(),
		ReportGetValues:     b.ReportGetValues.Load(),
		ReportGetAvgNanos:   avg(b.ReportGetTotalNanos.Load(), b.ReportGetCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount           int64
	ReadErrors          int64
	ReadBytes           int64
	ReadAvgNanos        int64
	MaterializeCount    int64
	MaterializeErrors   int64
	MaterializeAvgNanos int64
	ReportGetCount      int64
	ReportGetErrors     int64
	ReportGetValues     int64
	ReportGetAvgNanos   int64
}
