package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xthttp_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"layer"}, // "redis", "stale"
	)

	// CacheMisses tracks cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xthttp_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xthttp_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)

	// ConditionalRequests tracks requests sent with If-None-Match.
	ConditionalRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xthttp_cache_conditional_requests_total",
			Help: "Total number of conditional revalidation requests sent",
		},
	)

	// NotModifiedServed tracks 304 responses answered from the cache.
	NotModifiedServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xthttp_cache_not_modified_total",
			Help: "Total number of 304 responses served from cache",
		},
	)
)
