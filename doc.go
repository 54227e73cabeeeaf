// Package lumengo provides a resilient client for AI generation APIs with
// composable reliability primitives:
//
//   - Response caching keyed by a canonical request fingerprint (TTL + sweep)
//   - De-duplication of concurrent identical requests (one upstream call)
//   - Bounded concurrency with a strict FIFO wait queue
//   - Retries with exponential backoff, honoring server Retry-After hints
//   - Optional circuit breaker and client-side token bucket
//   - Prometheus metrics plus an in-process stats snapshot
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - No package-level state: every Client owns its cache, dedup table,
//     limiter and counters, so independently configured clients coexist
//   - Safe concurrent use of a single *Client instance
//   - Typed errors carrying kind, status and retry hints for caller UX
//
// Typical usage:
//
//	client := lumengo.New(
//	    lumengo.WithAPIKey(os.Getenv("LUMENGO_API_KEY")),
//	    lumengo.WithMaxRetries(2),
//	    lumengo.WithCache(5*time.Minute),
//	    lumengo.WithDeduplication(),
//	    lumengo.WithMaxConcurrent(10),
//	)
//	defer client.Close()
//	res, err := client.GenerateImage(ctx, "softbox key light, 45 degrees camera-left")
//
// Results served from cache carry Cached=true; results shared through the
// deduplicator are fresh (Cached=false) even though only one upstream call
// was made. Errors are *GatewayError values; use errors.As and Kind to decide
// retry/messaging behavior without parsing upstream text.
package lumengo
