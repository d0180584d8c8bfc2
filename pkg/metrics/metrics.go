// Package metrics provides the central reference for the Prometheus metrics
// exported by this module. Metrics are defined next to the code they
// observe (client, cache, ratelimit) via promauto to keep the packages
// self-contained; this package documents them in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the module.
// All metrics register themselves via promauto in their owning packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Admission Metrics (pkg/ratelimit):
//   - openapi_admissions_total{category} (Counter): Tickets admitted by category
//   - openapi_admission_wait_seconds{category} (Histogram): Time spent waiting for admission
//   - openapi_queue_depth{category} (Gauge): Tickets currently waiting
//   - openapi_queue_timeouts_total{category} (Counter): Callers that timed out in the queue
//
// Cache Metrics (pkg/cache):
//   - openapi_cache_hits_total (Counter): Cache hits
//   - openapi_cache_misses_total (Counter): Cache misses
//   - openapi_cache_entries (Gauge): Current number of entries
//   - openapi_cache_evictions_total{reason} (Counter): Removals by reason (expired, cleanup, explicit)
//
// Request Metrics (pkg/client):
//   - openapi_requests_total{endpoint, status} (Counter): Upstream requests by endpoint and status
//   - openapi_request_duration_seconds{endpoint} (Histogram): Upstream request duration
//   - openapi_errors_total{kind} (Counter): Classified errors by kind
//
// Retry Metrics (pkg/client):
//   - openapi_retries_total{kind} (Counter): Retry attempts by error kind
//   - openapi_retry_backoff_seconds{kind} (Histogram): Backoff duration by error kind
//   - openapi_retry_exhausted_total{kind} (Counter): Operations that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache hit rate
//   rate(openapi_cache_hits_total[5m]) /
//   (rate(openapi_cache_hits_total[5m]) + rate(openapi_cache_misses_total[5m]))
//
//   # Admission queue pressure
//   histogram_quantile(0.95, rate(openapi_admission_wait_seconds_bucket[5m]))
