package ulet

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adiwarsito/ulet/internal/backoff"
)

// WithBaseURL sets the prefix relative request URLs resolve against.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = base
	}
}

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries. A call makes at most
// maxRetries+1 attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the base backoff delay; the wait before the attempt
// following index i is retryDelay * 2^i under the default policy.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxRetryDelay caps the backoff delay. Zero means uncapped.
func WithMaxRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.maxRetryDelay = d
	}
}

// WithBackoffStrategy swaps the backoff calculation, e.g.
// backoff.ExponentialJitter or backoff.DecorrelatedJitter. Ignored when a
// full RetryPolicy is supplied.
func WithBackoffStrategy(strategy backoff.Strategy) Option {
	return func(c *Client) {
		c.backoffStrategy = strategy
	}
}

// WithRetryPolicy replaces the retry decision logic entirely.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithIdempotentOnlyRetry switches to the verb-aware policy that refuses to
// retry POST. The default deliberately retries all verbs alike.
func WithIdempotentOnlyRetry() Option {
	return func(c *Client) {
		c.idempotentOnly = true
	}
}

// WithRetryBudget caps total retries across all calls per window.
func WithRetryBudget(maxRetries int, perWindow time.Duration) Option {
	return func(c *Client) {
		c.retryBudget = NewRetryBudget(maxRetries, perWindow)
	}
}

// WithCache enables response caching with the default in-memory cache.
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = NewMemoryCache()
		c.cacheTTL = ttl
	}
}

// WithCustomCache installs a caller-supplied Cache implementation.
func WithCustomCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithCacheKeyFunc replaces the cache key derivation.
func WithCacheKeyFunc(fn CacheKeyFunc) Option {
	return func(c *Client) {
		c.cacheKeyFunc = fn
	}
}

// WithCacheCondition replaces the method-level cache eligibility check.
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Client) {
		c.cacheCondition = fn
	}
}

// WithSweepInterval sets the period of the background cache sweep. Zero
// disables the sweeper; callers then own calling Sweep themselves.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Client) {
		c.sweepInterval = d
	}
}

// WithHeaderTTL derives cache TTLs from response Cache-Control headers
// (max-age, no-store) instead of the configured default.
func WithHeaderTTL() Option {
	return func(c *Client) {
		c.useHeaderTTL = true
	}
}

// WithHTTPClient swaps the underlying transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithDefaultHeader adds a header applied to every request; per-call
// overrides still win.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		if c.defaultHeader == nil {
			c.defaultHeader = http.Header{}
		}
		c.defaultHeader.Set(key, value)
	}
}

// WithMaxResponseBytes bounds how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		c.maxResponseBytes = n
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector installs a prepared collector (e.g. on a private
// registry).
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithFailureReporter installs the observability collaborator that receives
// one record per failed attempt.
func WithFailureReporter(reporter FailureReporter) Option {
	return func(c *Client) {
		c.reporter = reporter
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging to stderr.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug turns on debug logging with the current debug config.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig replaces the debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator replaces the per-request ID generator used in
// debug output.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithDeduplication coalesces concurrent identical GETs onto one network
// call.
func WithDeduplication() Option {
	return func(c *Client) {
		c.inflight = NewInflightTracker()
	}
}

// WithCircuitBreaker enables the circuit breaker.
func WithCircuitBreaker(config BreakerConfig) Option {
	return func(c *Client) {
		c.breaker = NewCircuitBreaker(config)
	}
}

// WithRateLimiter enables token-bucket rate limiting.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.limiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// ValidateConfiguration checks the configured values and returns an error
// describing every problem found.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateReliabilityConfig()...)
	problems = append(problems, c.validateDebugConfig()...)

	if len(problems) > 0 {
		return fmt.Errorf("ulet: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.maxRetries < 0 {
		problems = append(problems, "maxRetries must be non-negative")
	}
	if c.retryDelay <= 0 {
		problems = append(problems, "retryDelay must be positive")
	}
	if c.maxRetryDelay < 0 {
		problems = append(problems, "maxRetryDelay must be non-negative")
	}
	if c.maxRetryDelay > 0 && c.maxRetryDelay < c.retryDelay {
		problems = append(problems, "maxRetryDelay must be at least retryDelay")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}
	if c.baseURL != "" {
		if u, err := url.Parse(c.baseURL); err != nil || !u.IsAbs() {
			problems = append(problems, fmt.Sprintf("baseURL %q must be an absolute URL", c.baseURL))
		}
	}
	return problems
}

func (c *Client) validateCacheConfig() []string {
	var problems []string

	if c.cache != nil {
		if c.cacheTTL <= 0 {
			problems = append(problems, "cacheTTL must be positive when cache is enabled")
		}
		if c.cacheKeyFunc == nil {
			problems = append(problems, "cacheKeyFunc must be set when cache is enabled")
		}
		if c.cacheCondition == nil {
			problems = append(problems, "cacheCondition must be set when cache is enabled")
		}
		if c.sweepInterval < 0 {
			problems = append(problems, "sweepInterval must be non-negative")
		}
	}
	return problems
}

func (c *Client) validateReliabilityConfig() []string {
	var problems []string

	if c.limiter != nil {
		if c.limiter.maxTokens <= 0 {
			problems = append(problems, "rateLimiter maxTokens must be positive")
		}
		if c.limiter.refillRate <= 0 {
			problems = append(problems, "rateLimiter refillRate must be positive")
		}
	}
	if c.breaker != nil {
		if c.breaker.config.FailureThreshold <= 0 {
			problems = append(problems, "circuitBreaker FailureThreshold must be positive")
		}
		if c.breaker.config.RecoveryTimeout <= 0 {
			problems = append(problems, "circuitBreaker RecoveryTimeout must be positive")
		}
		if c.breaker.config.SuccessThreshold <= 0 {
			problems = append(problems, "circuitBreaker SuccessThreshold must be positive")
		}
	}
	if c.maxResponseBytes <= 0 {
		problems = append(problems, "maxResponseBytes must be positive")
	}
	return problems
}

func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}
	return problems
}
