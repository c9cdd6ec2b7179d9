// Package metrics provides Prometheus metrics for the anno search engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "anno"

var (
	// RecordsIngested tracks processed bulk records per dataset.
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Total records accepted by bulk ingest",
		},
		[]string{"dataset"},
	)

	// RecordsFailed tracks bulk records rejected by validation per dataset.
	RecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_failed_total",
			Help:      "Total records rejected during bulk ingest",
		},
		[]string{"dataset"},
	)

	// SearchesTotal tracks search executions per dataset and query type.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total searches executed",
		},
		[]string{"dataset", "query_type", "status"}, // query_type: text/filter/vector/match_all
	)

	// SearchLatency tracks search execution latency.
	SearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_latency_seconds",
			Help:      "Search execution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"dataset", "query_type"},
	)

	// BulkLatency tracks bulk ingest latency.
	BulkLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_latency_seconds",
			Help:      "Bulk ingest latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"dataset"},
	)

	// ObjectStoreOps tracks object store operations.
	ObjectStoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objectstore_ops_total",
			Help:      "Total object store operations",
		},
		[]string{"operation", "status"}, // operation: get/put/delete/list, status: success/error
	)

	// ObjectStoreLatency tracks object store operation latency.
	ObjectStoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "objectstore_latency_seconds",
			Help:      "Object store operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// SnapshotsTotal tracks snapshot exports and restores.
	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total snapshot operations",
		},
		[]string{"operation", "status"}, // operation: export/restore
	)

	// SnapshotBytes tracks compressed bytes written by snapshot exports.
	SnapshotBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes_total",
			Help:      "Total compressed bytes written by snapshot exports",
		},
	)

	// BackendUnavailable tracks requests refused because the backend was down.
	BackendUnavailable = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_unavailable_total",
			Help:      "Total operations refused because the backend was unreachable",
		},
	)
)

// ObserveBulk records a bulk ingest.
func ObserveBulk(dataset string, processed, failed int, latencySeconds float64) {
	RecordsIngested.WithLabelValues(dataset).Add(float64(processed))
	RecordsFailed.WithLabelValues(dataset).Add(float64(failed))
	BulkLatency.WithLabelValues(dataset).Observe(latencySeconds)
}

// ObserveSearch records a search execution.
func ObserveSearch(dataset, queryType string, latencySeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SearchesTotal.WithLabelValues(dataset, queryType, status).Inc()
	SearchLatency.WithLabelValues(dataset, queryType).Observe(latencySeconds)
}

// ObserveObjectStoreOp records an object store operation.
func ObserveObjectStoreOp(operation string, latencySeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ObjectStoreOps.WithLabelValues(operation, status).Inc()
	ObjectStoreLatency.WithLabelValues(operation).Observe(latencySeconds)
}

// ObserveSnapshot records a snapshot export or restore.
func ObserveSnapshot(operation string, compressedBytes int64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SnapshotsTotal.WithLabelValues(operation, status).Inc()
	if err == nil && compressedBytes > 0 {
		SnapshotBytes.Add(float64(compressedBytes))
	}
}
