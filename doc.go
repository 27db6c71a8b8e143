// Package ulet provides a resilient JSON-speaking HTTP request client:
//
//   - Retries with exponential backoff (pluggable strategies, retry budget)
//   - Per-attempt timeouts with Timeout / NetworkError / HttpError taxonomy
//   - TTL-bounded in-memory response cache with a background sweeper
//   - Request de-duplication (merges concurrent identical in-flight calls)
//   - Optional circuit breaker and token-bucket rate limiting
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - One network round-trip per attempt, attempts strictly sequential
//   - Safe concurrent use of a single *Client instance
//   - No ambient globals: clients are explicit values passed to callers
//
// Typical usage:
//
//	client := ulet.New(
//	    ulet.WithBaseURL("https://api.example.com"),
//	    ulet.WithMaxRetries(3),
//	    ulet.WithRetryDelay(time.Second),
//	    ulet.WithCache(5*time.Minute),
//	)
//	defer client.Close()
//
//	resp, err := client.Get(ctx, "/v1/models")
//
// GET responses are cached by default when caching is enabled; POST, PUT and
// DELETE never populate the cache but are retried under the same policy as
// GET unless WithIdempotentOnlyRetry is set. Terminal errors are
// *RequestError values carrying the last attempt's failure kind so callers
// can tell a timeout from a transport failure from a bad status.
package ulet
