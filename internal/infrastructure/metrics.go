package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the HTTP and dataset instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	DatasetLoadsTotal   metric.Int64Counter
	DatasetLoadDuration metric.Float64Histogram
	DatasetCacheHits    metric.Int64Counter
	DatasetCacheMisses  metric.Int64Counter
	DatasetRows         metric.Int64Gauge

	AggregationDuration metric.Float64Histogram
	AggregationErrors   metric.Int64Counter

	ExportsTotal metric.Int64Counter
}

// CreateMetrics registers every instrument on meter.
func CreateMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests")); err != nil {
		return nil, err
	}

	if m.DatasetLoadsTotal, err = meter.Int64Counter("dataset_loads_total",
		metric.WithDescription("Dataset fetch attempts by outcome")); err != nil {
		return nil, err
	}
	if m.DatasetLoadDuration, err = meter.Float64Histogram("dataset_load_duration_seconds",
		metric.WithDescription("Time to fetch and parse the dataset"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.DatasetCacheHits, err = meter.Int64Counter("dataset_cache_hits_total",
		metric.WithDescription("Loads served from the dataset cache")); err != nil {
		return nil, err
	}
	if m.DatasetCacheMisses, err = meter.Int64Counter("dataset_cache_misses_total",
		metric.WithDescription("Loads that required a fetch")); err != nil {
		return nil, err
	}
	if m.DatasetRows, err = meter.Int64Gauge("dataset_rows",
		metric.WithDescription("Rows in the most recently loaded dataset")); err != nil {
		return nil, err
	}

	if m.AggregationDuration, err = meter.Float64Histogram("aggregation_duration_seconds",
		metric.WithDescription("Aggregation duration per table"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.AggregationErrors, err = meter.Int64Counter("aggregation_errors_total",
		metric.WithDescription("Failed aggregations per table")); err != nil {
		return nil, err
	}

	if m.ExportsTotal, err = meter.Int64Counter("csv_exports_total",
		metric.WithDescription("CSV tables written")); err != nil {
		return nil, err
	}

	return m, nil
}

func statusAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("status", "failure")
	}
	return attribute.String("status", "success")
}

// RecordLoad records one dataset fetch.
func (m *Metrics) RecordLoad(ctx context.Context, source string, rows int, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("dataset.source", source), statusAttr(err))
	m.DatasetLoadsTotal.Add(ctx, 1, attrs)
	m.DatasetLoadDuration.Record(ctx, d.Seconds(), attrs)
	if err == nil {
		m.DatasetRows.Record(ctx, int64(rows), metric.WithAttributes(attribute.String("dataset.source", source)))
	}
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.DatasetCacheHits.Add(ctx, 1)
		return
	}
	m.DatasetCacheMisses.Add(ctx, 1)
}

// RecordAggregation records one derived-table computation.
func (m *Metrics) RecordAggregation(ctx context.Context, table string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("sales.table", table), statusAttr(err))
	m.AggregationDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.AggregationErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sales.table", table)))
	}
}

// RecordExport counts one CSV table written.
func (m *Metrics) RecordExport(ctx context.Context, table, target string) {
	if m == nil {
		return
	}
	m.ExportsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sales.table", table),
		attribute.String("export.target", target),
	))
}
