// Package metrics registers the prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks HTTP request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoapp_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// AssetUploadedBytes counts bytes accepted by the upload endpoint.
	AssetUploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoapp_asset_uploaded_bytes_total",
			Help: "Total number of photo bytes uploaded",
		},
	)

	// AssetOperations counts asset operations by kind and outcome.
	AssetOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoapp_asset_operations_total",
			Help: "Total number of asset operations",
		},
		[]string{"operation", "status"}, // operation: upload, download, delete
	)
)

// RecordHTTPRequestDuration records a single request observation.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementAssetOperation increases the counter for an asset operation outcome.
func IncrementAssetOperation(operation, status string) {
	AssetOperations.WithLabelValues(operation, status).Inc()
}
