// Package cache stores Geoapify responses in Redis.
//
// Synchronous lookups (geocoding, place details, boundaries) are idempotent
// GETs and cost API credits, so the client caches successful responses for a
// configured TTL. Batch job traffic is never cached.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 24*time.Hour)
//
//	key := cache.KeyFromRequest(req)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from Geoapify, then:
//		entry, _ = cache.ResponseToEntry(resp, manager.TTL())
//		_ = manager.Set(ctx, key, entry)
//	}
//
// Keys are built from the endpoint path and the sorted query string. The
// apiKey parameter is left out, so entries are shared between keys and the
// key never reaches Redis.
//
// # Metrics
//
//   - geoapify_cache_hits_total
//   - geoapify_cache_misses_total
//   - geoapify_cache_stored_bytes_total
//   - geoapify_cache_errors_total{operation}
package cache
