// Package cache provides an in-memory TTL cache for upstream API responses.
//
// The store keeps one entry per normalized request identity with the
// following properties:
//
// - Per-entry TTL with deterministic lazy expiry (expired entries are
//   deleted by the first reader that observes them)
// - Soft capacity: writes at capacity trigger a cleanup pass over all
//   expired entries, but are never rejected
// - Deterministic key generation, insensitive to parameter order and to
//   casing/whitespace variations in identifiers
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	store := cache.NewStore[[]byte](1000)
//
//	key := cache.Key{
//		Endpoint: "character.basic",
//		Params:   map[string]string{"character_name": "Hero"},
//	}
//
//	store.Set(key, body, 30*time.Minute)
//
//	if value, ok := store.Get(key); ok {
//		// cache hit
//	}
//
// # Invalidation
//
//	// Remove one entry
//	store.Delete(key)
//
//	// Remove everything for an endpoint
//	store.DeletePrefix(cache.Prefix("character.basic"))
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - openapi_cache_hits_total - Cache hits
//   - openapi_cache_misses_total - Cache misses
//   - openapi_cache_entries - Current number of entries
//   - openapi_cache_evictions_total{reason} - Removals by reason
package cache
