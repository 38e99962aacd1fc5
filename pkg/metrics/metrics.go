// Package metrics exposes the Prometheus registry shared by the storefront packages.
// All metrics are defined in their respective packages (cache, catalog,
// docstore, httpapi) via promauto, so importing a package registers its metrics.
//
// This package provides the scrape handler and a reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every storefront metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - storefront_cache_hits_total{key} (Counter): Valid reads by cache key
//   - storefront_cache_misses_total{key, reason} (Counter): Misses by reason
//     (absent, expired, corrupt, unavailable, unknown_key)
//   - storefront_cache_writes_total{key} (Counter): Successful writes
//   - storefront_cache_evictions_total{key} (Counter): Expired entries removed on read
//   - storefront_cache_errors_total{operation} (Counter): Swallowed backend and encoding errors
//
// Catalog Metrics (pkg/catalog):
//   - storefront_catalog_source_fetches_total{resource, result} (Counter): Source reads after a miss
//   - storefront_catalog_shared_fetches_total{resource} (Counter): Misses served by a concurrent fetch
//   - storefront_catalog_refreshes_total{result} (Counter): Explicit catalog refreshes
//
// Document Store Metrics (pkg/docstore):
//   - docstore_requests_total{collection, status} (Counter): Requests by collection and HTTP status
//   - docstore_request_duration_seconds{collection} (Histogram): Request duration
//   - docstore_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - docstore_retries_total{error_class} (Counter): Retry attempts
//   - docstore_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - docstore_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// API Metrics (pkg/httpapi):
//   - storefront_http_requests_total{route, status} (Counter): API requests by route pattern
//   - storefront_http_request_duration_seconds{route} (Histogram): API request duration
//   - storefront_http_304_responses_total (Counter): Conditional requests answered with 304
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate per key
//   sum by (key) (rate(storefront_cache_hits_total[5m])) /
//   (sum by (key) (rate(storefront_cache_hits_total[5m])) + sum by (key) (rate(storefront_cache_misses_total[5m])))
//
//   # Swallowed cache failures
//   sum by (operation) (rate(storefront_cache_errors_total[5m]))
//
//   # Source load saved by miss collapsing
//   rate(storefront_catalog_shared_fetches_total[5m])
//
//   # P95 document store latency
//   histogram_quantile(0.95, rate(docstore_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(storefront_http_304_responses_total[5m]) / sum(rate(storefront_http_requests_total[5m]))
