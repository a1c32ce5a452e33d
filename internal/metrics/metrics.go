// Bugcatch - Error and Web Vitals Telemetry for the Web
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bugcatch

package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the ingestion and read paths:
// - API endpoint latency and throughput
// - Detached ingestion outcomes and dedup efficiency
// - Store operation performance (MongoDB)
// - Rollup cache efficiency

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugcatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bugcatch_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bugcatch_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIUnauthorized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugcatch_api_unauthorized_total",
			Help: "Total number of rejected read requests (bad or missing token)",
		},
		[]string{"endpoint"},
	)

	// Ingestion Metrics
	IngestReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugcatch_ingest_reports_total",
			Help: "Total number of detached ingestion runs",
		},
		[]string{"kind", "outcome"}, // kind: "event", "vitals"; outcome: "persisted", "dropped"
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bugcatch_ingest_duration_seconds",
			Help:    "Duration of detached ingestion runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	IngestRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugcatch_ingest_rejected_total",
			Help: "Total number of reports rejected before ingestion (invalid post data)",
		},
		[]string{"kind"},
	)

	// Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bugcatch_store_operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugcatch_store_operation_errors_total",
			Help: "Total number of document store operation errors",
		},
		[]string{"operation", "collection"},
	)

	StoreDuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugcatch_store_duplicates_skipped_total",
			Help: "Total number of inserts skipped because the uid already exists",
		},
		[]string{"collection"},
	)

	// Rollup Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bugcatch_cache_hits_total",
			Help: "Total number of rollup cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bugcatch_cache_misses_total",
			Help: "Total number of rollup cache misses",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bugcatch_cache_evictions_total",
			Help: "Total number of rollup cache evictions (TTL expiry)",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bugcatch_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordIngest records the outcome of one detached ingestion run
func RecordIngest(kind string, duration time.Duration, err error) {
	IngestDuration.WithLabelValues(kind).Observe(duration.Seconds())
	outcome := "persisted"
	if err != nil {
		outcome = "dropped"
	}
	IngestReports.WithLabelValues(kind, outcome).Inc()
}

// RecordRejected records a report rejected at the HTTP boundary
func RecordRejected(kind string) {
	IngestRejected.WithLabelValues(kind).Inc()
}

// RecordStoreOperation records a document store operation metric
func RecordStoreOperation(operation, collection string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(operation, collection).Inc()
	}
}

// RecordDuplicateSkipped records an insert skipped by uid dedup
func RecordDuplicateSkipped(collection string) {
	StoreDuplicatesSkipped.WithLabelValues(collection).Inc()
}

// RecordAppInfo publishes the running version as a constant-1 gauge
func RecordAppInfo(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
