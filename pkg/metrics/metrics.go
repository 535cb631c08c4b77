// Package metrics exposes the Prometheus registry used by pagefeed.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination) and registered through promauto.
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pagefeed_rate_limit_remaining (Gauge): Requests remaining in the current window
//   - pagefeed_rate_limit_blocks_total (Counter): Requests blocked at the critical threshold
//   - pagefeed_rate_limit_throttles_total (Counter): Requests delayed at the warning threshold
//
// Cache Metrics (pkg/cache):
//   - pagefeed_cache_hits_total (Counter): Page cache hits
//   - pagefeed_cache_misses_total (Counter): Page cache misses
//   - pagefeed_cache_entries (Gauge): Entries held by the page cache
//   - pagefeed_cache_evictions_total (Counter): Entries evicted by the LRU
//   - pagefeed_304_responses_total (Counter): 304 Not Modified responses
//   - pagefeed_conditional_requests_total (Counter): Requests sent with If-None-Match
//
// Request Metrics (pkg/client):
//   - pagefeed_requests_total{resource, status} (Counter): Requests by resource and HTTP status
//   - pagefeed_request_duration_seconds{resource} (Histogram): Request duration by resource
//   - pagefeed_fetch_errors_total{kind} (Counter): Failed fetches by error kind
//   - pagefeed_fetch_cancelled_total (Counter): Fetches abandoned by their caller
//
// Controller Metrics (pkg/pagination):
//   - pagefeed_controller_operations_total{op} (Counter): Load, refresh and paging triggers
//   - pagefeed_controller_fetches_total{mode, outcome} (Counter): Fetch completions
//   - pagefeed_controller_stale_completions_total (Counter): Superseded completions discarded
//   - pagefeed_controller_items{resource} (Gauge): Items currently loaded
//   - pagefeed_batch_pages_total{outcome} (Counter): Pages fetched by the batch fetcher
//
// Example Prometheus Queries:
//
//	# Fetch error rate by kind
//	sum by (kind) (rate(pagefeed_fetch_errors_total[5m]))
//
//	# P95 page latency
//	histogram_quantile(0.95, rate(pagefeed_request_duration_seconds_bucket[5m]))
//
//	# Share of page loads answered with 304
//	rate(pagefeed_304_responses_total[5m]) / rate(pagefeed_requests_total[5m])
//
//	# Rate limit headroom
//	pagefeed_rate_limit_remaining < 10
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer all pagefeed metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the matching gatherer for Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the pagefeed metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}
