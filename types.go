package ulet

import (
	"encoding/json"
	"net/http"
	"time"
)

// RequestSpec is the immutable description of one logical request. It is
// built by the verb methods and consumed by Do; callers constructing one by
// hand get the same semantics.
type RequestSpec struct {
	// Method is one of GET, POST, PUT, DELETE.
	Method string

	// URL is absolute, or relative to the client's base URL.
	URL string

	// Body is marshaled to JSON when non-nil.
	Body any

	// Header holds caller overrides; they take precedence over the default
	// Content-Type: application/json.
	Header http.Header

	// Cache marks the request as eligible for response caching. Only
	// requests passing the client's cache condition are actually cached.
	Cache bool

	// CacheTTL overrides the client's default TTL when > 0.
	CacheTTL time.Duration
}

// Response is the decoded result of a successful call.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte

	// FromCache reports whether the response was served from the cache
	// without network activity.
	FromCache bool
}

// Decode unmarshals the response body as JSON into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// CacheEntry is a stored successful response. Owned exclusively by the
// cache; an entry is live iff now-StoredAt < TTL.
type CacheEntry struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
	TTL        time.Duration
}

// Live reports whether the entry is still valid at the given instant. An
// entry aged exactly TTL is already dead.
func (e *CacheEntry) Live(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Cache is the response cache abstraction. Get must be a pure read: an
// expired entry behaves as a miss and is left for Sweep to remove.
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, entry *CacheEntry, ttl time.Duration)
	Delete(key string)
	Sweep() int
	Clear()
}

// CacheKeyFunc derives the deterministic cache key for a prepared request.
// Two requests with the same key are treated as the same resource.
type CacheKeyFunc func(method, url string, body []byte) string

// CacheCondition decides whether a request may populate the cache at all,
// independent of the per-request Cache flag.
type CacheCondition func(method string) bool

// RetryPolicy decides whether a failed attempt should be retried and after
// what delay. It must not sleep; the client owns the wait.
type RetryPolicy interface {
	ShouldRetry(failure *RequestError, attempt int) (time.Duration, bool)
}

// Option configures a Client at construction time.
type Option func(*Client)

// RequestOption adjusts a single call made through a verb method.
type RequestOption func(*RequestSpec)

// WithNoCache disables cache participation for one call.
func WithNoCache() RequestOption {
	return func(s *RequestSpec) {
		s.Cache = false
	}
}

// WithCacheTTL overrides the cache TTL for one call.
func WithCacheTTL(ttl time.Duration) RequestOption {
	return func(s *RequestSpec) {
		s.Cache = true
		s.CacheTTL = ttl
	}
}

// WithRequestHeader sets a header override for one call.
func WithRequestHeader(key, value string) RequestOption {
	return func(s *RequestSpec) {
		if s.Header == nil {
			s.Header = http.Header{}
		}
		s.Header.Set(key, value)
	}
}
