// Package cache provides a small key-value cache with interchangeable
// in-memory and Redis backends.
//
// Features:
//
// - One Client interface for both backends (Get, Set, Del, TTL, DeleteByPrefix)
// - Deterministic key building from heterogeneous segments
// - Pluggable serialization (JSON by default)
// - Per-entry TTL with lazy and periodic expiry in memory, server-side in Redis
// - Namespaced Redis keys and SCAN-based prefix deletion
// - Optional one-way fallback from Redis to memory
// - Cache-aside loading with per-key request coalescing
// - Prometheus metrics
//
// # Basic Usage
//
//	c, err := cache.NewClient(ctx, cache.Options{
//		Adapter:       cache.AdapterAuto,
//		Namespace:     "search-api",
//		RedisURL:      os.Getenv("REDIS_URL"),
//		AllowFallback: true,
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	key := cache.BuildKey("search", tenant, query, page)
//
//	var hits []Hit
//	if !c.Get(ctx, key, &hits) {
//		hits = runSearch(ctx, query)
//		_ = c.Set(ctx, key, hits, cache.WithTTL(30))
//	}
//
// # Errors
//
// Get and TTL never return errors: backend failures and undecodable payloads
// are logged and reported as misses. Set, Del and DeleteByPrefix return
// *BackendError and *SerializationError values. Construction problems are
// *ConfigurationError.
//
// # Fallback
//
// With AdapterAuto and AllowFallback, a store that cannot reach Redis at
// startup uses memory. A store that loses Redis later switches to memory on
// the first failed operation and stays there until the process restarts.
// Entries written to Redis before the switch are not visible afterwards.
//
// # Metrics
//
//   - cachekit_hits_total{backend}
//   - cachekit_misses_total{backend}
//   - cachekit_errors_total{backend,operation}
//   - cachekit_expirations_total{backend}
//   - cachekit_degradations_total
//   - cachekit_operation_duration_seconds{backend,operation}
package cache
