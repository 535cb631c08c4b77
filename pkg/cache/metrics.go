package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagefeed_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagefeed_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// CacheEntries tracks the number of entries held
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagefeed_cache_entries",
			Help: "Current number of cached page responses",
		},
	)

	// CacheEvictions tracks entries dropped to respect the size bound
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagefeed_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagefeed_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// ConditionalRequestsSent tracks requests sent with conditional headers
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagefeed_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)
)
