// Package metrics exposes the Prometheus registry that cachekit metrics are
// registered in. The metrics themselves live in pkg/cache and register via
// promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is where promauto registers cachekit metrics.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves Gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - cachekit_hits_total{backend} (Counter): Get calls that returned a value
//   - cachekit_misses_total{backend} (Counter): Get calls that returned nothing, including swallowed failures
//   - cachekit_errors_total{backend, operation} (Counter): Failed operations (get, set, del, ttl, delete_prefix)
//   - cachekit_expirations_total{backend} (Counter): Memory entries dropped after their ttl
//   - cachekit_degradations_total (Counter): Redis to memory fallbacks
//   - cachekit_operation_duration_seconds{backend, operation} (Histogram): Backend latency
//
// Example Prometheus Queries:
//
//   # Hit Rate
//   sum(rate(cachekit_hits_total[5m])) /
//   (sum(rate(cachekit_hits_total[5m])) + sum(rate(cachekit_misses_total[5m])))
//
//   # Running Degraded
//   increase(cachekit_degradations_total[1h]) > 0
//
//   # P95 Redis Latency
//   histogram_quantile(0.95, sum by (le) (rate(cachekit_operation_duration_seconds_bucket{backend="redis"}[5m])))
