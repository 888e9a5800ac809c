package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "del", "ttl", "delete_prefix"
	)

	// CacheExpirations tracks entries removed because their TTL elapsed
	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_expirations_total",
			Help: "Total number of entries removed after expiry",
		},
		[]string{"backend"},
	)

	// CacheDegradations tracks switches from Redis to the memory backend
	CacheDegradations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cachekit_degradations_total",
			Help: "Total number of fallbacks from Redis to the memory backend",
		},
	)

	// CacheOperationDuration tracks backend latency
	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cachekit_operation_duration_seconds",
			Help:    "Cache operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"backend", "operation"},
	)
)
