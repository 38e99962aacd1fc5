package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Miss reasons used as the "reason" label of CacheMisses.
const (
	missAbsent      = "absent"
	missExpired     = "expired"
	missCorrupt     = "corrupt"
	missUnavailable = "unavailable"
	missUnknownKey  = "unknown_key"
)

var (
	// CacheHits tracks valid reads by key
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_hits_total",
			Help: "Total number of storefront cache hits",
		},
		[]string{"key"},
	)

	// CacheMisses tracks reads that returned nothing, by key and reason
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_misses_total",
			Help: "Total number of storefront cache misses",
		},
		[]string{"key", "reason"}, // absent, expired, corrupt, unavailable, unknown_key
	)

	// CacheWrites tracks successful writes by key
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_writes_total",
			Help: "Total number of storefront cache writes",
		},
		[]string{"key"},
	)

	// CacheEvictions tracks expired entries removed on read
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_evictions_total",
			Help: "Total number of expired entries removed on read",
		},
		[]string{"key"},
	)

	// CacheErrors tracks swallowed backend and encoding errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_errors_total",
			Help: "Total number of storefront cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "invalidate", "clear", "encode"
	)
)
