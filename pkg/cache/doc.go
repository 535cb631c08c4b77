// Package cache keeps recently fetched page responses in memory so that
// repeated requests can be revalidated with conditional headers.
//
// Entries live only for the lifetime of the process. Every lookup still goes to
// the server: a cached entry only contributes If-None-Match / If-Modified-Since
// headers, and its body is served when the server answers 304 Not Modified.
//
// # Basic Usage
//
//	manager := cache.NewManager(cache.DefaultMaxEntries)
//
//	key := cache.CacheKey{
//		Resource:    "posts",
//		QueryParams: url.Values{"_page": []string{"1"}, "_limit": []string{"20"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// plain request
//	}
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - pagefeed_cache_hits_total - Cache hits
//   - pagefeed_cache_misses_total - Cache misses
//   - pagefeed_cache_entries - Entries currently held
//   - pagefeed_304_responses_total - Conditional request successes
//   - pagefeed_conditional_requests_total - Conditional requests sent
//   - pagefeed_cache_evictions_total - Entries evicted to respect the size bound
package cache
