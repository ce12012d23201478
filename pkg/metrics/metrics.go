// Package metrics provides the centralized Prometheus registry reference for
// the xthttp client. All metrics are defined in their respective packages
// (client, cache, encoding) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the xthttp client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - xthttp_requests_total{method, status} (Counter): Total requests by method and HTTP status
//   - xthttp_request_duration_seconds{method} (Histogram): Request duration by method
//   - xthttp_errors_total{class} (Counter): Errors by class (validation, network, http_status)
//
// Retry Metrics (pkg/client):
//   - xthttp_retries_total (Counter): Retry attempts
//   - xthttp_retry_backoff_seconds (Histogram): Backoff duration before retries
//   - xthttp_retry_exhausted_total (Counter): Requests that exhausted max retries
//
// Batch Metrics (pkg/client):
//   - xthttp_batch_tasks_total{mode, outcome} (Counter): Batch tasks by mode (shared, chunked)
//     and outcome (ok, invalid_url, failed)
//   - xthttp_batch_size (Histogram): Number of URLs per batch call
//
// Encoding Metrics (pkg/encoding):
//   - xthttp_encoding_resolutions_total{source} (Counter): Resolutions by winning step
//     (declared, detected, heuristic, fallback)
//   - xthttp_encoding_cache_hits_total (Counter): Detection cache hits
//   - xthttp_encoding_cache_misses_total (Counter): Detection cache misses
//
// Response Cache Metrics (pkg/cache):
//   - xthttp_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - xthttp_cache_misses_total (Counter): Cache misses
//   - xthttp_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(xthttp_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(xthttp_request_duration_seconds_bucket[5m]))
//
//   # Encoding Detection Cache Hit Rate
//   sum(rate(xthttp_encoding_cache_hits_total[5m])) /
//   (sum(rate(xthttp_encoding_cache_hits_total[5m])) + sum(rate(xthttp_encoding_cache_misses_total[5m])))
