package ulet

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/adiwarsito/ulet/internal/backoff"
)

// Client is a resilient JSON request client that layers retries with
// exponential backoff, per-attempt timeouts and TTL response caching around
// the standard net/http Client, with optional de-duplication, circuit
// breaking and rate limiting. It is safe for concurrent use; attempts of a
// single call run strictly sequentially while independent calls interleave
// freely.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	timeout          time.Duration
	maxRetries       int
	retryDelay       time.Duration
	maxRetryDelay    time.Duration
	retryPolicy      RetryPolicy
	backoffStrategy  backoff.Strategy
	idempotentOnly   bool
	retryBudget      *RetryBudget
	defaultHeader    http.Header
	maxResponseBytes int64

	cache          Cache
	cacheTTL       time.Duration
	cacheKeyFunc   CacheKeyFunc
	cacheCondition CacheCondition
	useHeaderTTL   bool
	sweepInterval  time.Duration
	sweepStop      chan struct{}
	sweepDone      chan struct{}
	closeOnce      sync.Once

	inflight *InflightTracker
	breaker  *CircuitBreaker
	limiter  *RateLimiter

	reporter FailureReporter
	metrics  *MetricsCollector
	logger   Logger
	debug    *DebugConfig

	// waitFn performs the backoff wait; tests swap it for a recorder.
	waitFn func(ctx context.Context, d time.Duration) error

	validationError error
}

// New constructs a Client from functional options. Defaults: 30s per-attempt
// timeout, 3 retries, 1s base retry delay, no cache. A best effort
// validation runs at construction; check IsValid / ValidationError.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:       &http.Client{},
		timeout:          30 * time.Second,
		maxRetries:       3,
		retryDelay:       1 * time.Second,
		maxResponseBytes: 10 * 1024 * 1024,
		cacheTTL:         5 * time.Minute,
		cacheKeyFunc:     DefaultCacheKeyFunc,
		cacheCondition:   DefaultCacheCondition,
		sweepInterval:    60 * time.Second,
		debug:            DefaultDebugConfig(),
		waitFn:           waitContext,
	}

	for _, option := range options {
		option(client)
	}

	if client.retryPolicy == nil {
		if client.idempotentOnly {
			client.retryPolicy = NewIdempotentPolicy(client.maxRetries, client.retryDelay, client.maxRetryDelay, client.backoffStrategy)
		} else {
			client.retryPolicy = NewExponentialPolicyWithStrategy(client.maxRetries, client.retryDelay, client.maxRetryDelay, client.backoffStrategy)
		}
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	if client.cache != nil && client.sweepInterval > 0 {
		client.startSweeper()
	}

	return client
}

// Close stops the background cache sweeper. It is safe to call more than
// once and on clients without a cache.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.sweepStop != nil {
			close(c.sweepStop)
			<-c.sweepDone
		}
	})
}

// Get performs a GET. GETs participate in the response cache by default;
// pass WithNoCache to opt out per call.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	spec := RequestSpec{Method: http.MethodGet, URL: url, Cache: true}
	for _, opt := range opts {
		opt(&spec)
	}
	return c.Do(ctx, spec)
}

// Post performs a POST with a JSON body. POSTs never populate the cache but
// are retried under the same policy as GET.
func (c *Client) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	spec := RequestSpec{Method: http.MethodPost, URL: url, Body: body}
	for _, opt := range opts {
		opt(&spec)
	}
	return c.Do(ctx, spec)
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, url string, body any, opts ...RequestOption) (*Response, error) {
	spec := RequestSpec{Method: http.MethodPut, URL: url, Body: body}
	for _, opt := range opts {
		opt(&spec)
	}
	return c.Do(ctx, spec)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	spec := RequestSpec{Method: http.MethodDelete, URL: url}
	for _, opt := range opts {
		opt(&spec)
	}
	return c.Do(ctx, spec)
}

// GetJSON performs a GET and decodes the response body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any, opts ...RequestOption) error {
	resp, err := c.Get(ctx, url, opts...)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// PostJSON performs a POST and decodes the response body into v.
func (c *Client) PostJSON(ctx context.Context, url string, body, v any, opts ...RequestOption) error {
	resp, err := c.Post(ctx, url, body, opts...)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// PutJSON performs a PUT and decodes the response body into v.
func (c *Client) PutJSON(ctx context.Context, url string, body, v any, opts ...RequestOption) error {
	resp, err := c.Put(ctx, url, body, opts...)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// Do executes one logical request: cache lookup, then the retry loop, then
// an optional cache fill on success.
func (c *Client) Do(ctx context.Context, spec RequestSpec) (*Response, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	prep, err := c.prepare(spec)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	endpoint := endpointLabel(prep.url)

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	if c.debugLog(c.debug != nil && c.debug.LogRequests) {
		c.logger.Debug("starting request", "requestID", requestID, "method", prep.method, "url", prep.url)
	}

	c.metrics.RecordRequestStart(prep.method, endpoint)
	defer c.metrics.RecordRequestEnd(prep.method, endpoint)

	cacheEnabled := spec.Cache && c.cache != nil && c.cacheCondition(prep.method)
	dedupEnabled := c.inflight != nil && prep.method == http.MethodGet

	var key string
	if cacheEnabled || dedupEnabled {
		key = c.cacheKeyFunc(prep.method, prep.url, prep.body)
	}

	if cacheEnabled {
		if entry, ok := c.cache.Get(key); ok {
			if c.debugLog(c.debug != nil && c.debug.LogCache) {
				c.logger.Debug("cache hit", "requestID", requestID, "cacheKey", key)
			}
			c.metrics.RecordCacheHit(prep.method, endpoint)
			c.metrics.RecordRequest(prep.method, endpoint, entry.StatusCode, time.Since(start))
			return responseFromEntry(entry), nil
		}
		c.metrics.RecordCacheMiss(prep.method, endpoint)
		if c.debugLog(c.debug != nil && c.debug.LogCache) {
			c.logger.Debug("cache miss", "requestID", requestID, "cacheKey", key)
		}
	}

	var owned *inflightCall
	if dedupEnabled {
		call, owner := c.inflight.join(key)
		if !owner {
			resp, err := call.wait(ctx)
			c.metrics.RecordDeduplicationHit(prep.method, endpoint)
			if c.debugLog(c.debug != nil && c.debug.LogRequests) {
				c.logger.Debug("coalesced onto in-flight request", "requestID", requestID, "key", key)
			}
			return resp, err
		}
		owned = call
	}

	resp, err := c.execute(ctx, prep, endpoint, requestID)

	if owned != nil {
		c.inflight.complete(key, resp, err)
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordRequest(prep.method, endpoint, statusCode, time.Since(start))

	if cacheEnabled && err == nil {
		c.storeResponse(key, spec, resp, requestID)
	}

	return resp, err
}

// execute runs the attempt loop: rate limit and breaker gates, one network
// attempt, failure reporting, retry decision, backoff wait.
func (c *Client) execute(ctx context.Context, prep *preparedRequest, endpoint, requestID string) (*Response, error) {
	var last *RequestError

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if !c.limiter.Allow() {
				if c.debugLog(c.debug != nil && c.debug.LogRateLimit) {
					c.logger.Warn("rate limit exceeded", "requestID", requestID, "endpoint", endpoint)
				}
				return nil, fmt.Errorf("%s %s: %w", prep.method, prep.url, ErrRateLimited)
			}
			c.metrics.RecordRateLimiterTokens("default", c.limiter.Tokens())
		}

		if c.breaker != nil && !c.breaker.Allow() {
			if c.debugLog(c.debug != nil && c.debug.LogCircuit) {
				c.logger.Warn("circuit breaker open", "requestID", requestID, "endpoint", endpoint)
			}
			c.metrics.RecordBreakerState("default", c.breaker.State())
			return nil, fmt.Errorf("%s %s: %w", prep.method, prep.url, ErrCircuitOpen)
		}

		if attempt > 0 {
			c.metrics.RecordRetry(prep.method, endpoint, attempt)
			if c.debugLog(c.debug != nil && c.debug.LogRetries) {
				c.logger.Info("retry attempt", "requestID", requestID, "attempt", attempt, "maxRetries", c.maxRetries, "endpoint", endpoint)
			}
		}

		resp, failure := c.attempt(ctx, prep)

		if c.breaker != nil {
			// 4xx responses are upstream health, not upstream failure.
			if failure != nil && (failure.Kind != KindHTTP || failure.StatusCode >= 500) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
			c.metrics.RecordBreakerState("default", c.breaker.State())
		}

		if failure == nil {
			return resp, nil
		}
		last = failure

		// Reported before the retry decision so transient failures that
		// later succeed remain visible.
		c.reportFailure(failure, attempt, endpoint, requestID)

		delay, retry := c.retryPolicy.ShouldRetry(failure, attempt)
		if !retry {
			last.Attempts = attempt + 1
			last.MaxRetries = c.maxRetries
			last.RequestID = requestID
			return nil, last
		}

		if c.retryBudget != nil && !c.retryBudget.Allow() {
			c.metrics.RecordRetryBudgetRejected(endpoint)
			if c.debugLog(c.debug != nil && c.debug.LogRetries) {
				c.logger.Warn("retry budget exceeded", "requestID", requestID, "endpoint", endpoint)
			}
			return nil, fmt.Errorf("%s %s: %w", prep.method, prep.url, ErrRetryBudgetExceeded)
		}

		if c.debugLog(c.debug != nil && c.debug.LogRetries) {
			c.logger.Info("scheduling retry", "requestID", requestID, "attempt", attempt+1, "backoff", delay, "endpoint", endpoint)
		}

		if err := c.waitFn(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// reportFailure notifies the failure reporter and the metrics collector of
// one failed attempt.
func (c *Client) reportFailure(failure *RequestError, attempt int, endpoint, requestID string) {
	c.metrics.RecordError(failure.Kind, failure.Method, endpoint)
	if c.reporter != nil {
		c.reporter.ReportFailure(FailureReport{
			Kind:    failure.Kind,
			Message: failure.Message,
			Attempt: attempt,
			Method:  failure.Method,
			URL:     failure.URL,
		})
	}
	if c.debugLog(c.debug != nil && c.debug.LogRetries) {
		c.logger.Warn("attempt failed", "requestID", requestID, "kind", string(failure.Kind), "attempt", attempt, "error", failure.Message)
	}
}

// storeResponse fills the cache after a successful cacheable call.
func (c *Client) storeResponse(key string, spec RequestSpec, resp *Response, requestID string) {
	ttl := c.cacheTTL
	if spec.CacheTTL > 0 {
		ttl = spec.CacheTTL
	}
	if c.useHeaderTTL {
		derived, storable := headerTTL(resp.Header, ttl)
		if !storable {
			return
		}
		ttl = derived
	}

	entry := &CacheEntry{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		Body:       resp.Body,
	}
	c.cache.Set(key, entry, ttl)

	if mem, ok := c.cache.(*MemoryCache); ok {
		c.metrics.RecordCacheSize("default", mem.Len())
	}
	if c.debugLog(c.debug != nil && c.debug.LogCache) {
		c.logger.Debug("response cached", "requestID", requestID, "cacheKey", key, "ttl", ttl)
	}
}

// startSweeper launches the periodic cache sweep. It is the client's only
// background task and stops on Close.
func (c *Client) startSweeper() {
	c.sweepStop = make(chan struct{})
	c.sweepDone = make(chan struct{})

	go func() {
		defer close(c.sweepDone)
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				evicted := c.cache.Sweep()
				c.metrics.RecordCacheEvictions(evicted)
				if mem, ok := c.cache.(*MemoryCache); ok {
					c.metrics.RecordCacheSize("default", mem.Len())
				}
				if evicted > 0 && c.debugLog(c.debug != nil && c.debug.LogCache) {
					c.logger.Debug("cache sweep", "evicted", evicted)
				}
			case <-c.sweepStop:
				return
			}
		}
	}()
}

// debugLog reports whether debug logging for a given event class is active.
func (c *Client) debugLog(classEnabled bool) bool {
	return c.debug != nil && c.debug.Enabled && classEnabled && c.logger != nil
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func responseFromEntry(entry *CacheEntry) *Response {
	return &Response{
		StatusCode: entry.StatusCode,
		Status:     entry.Status,
		Header:     entry.Header.Clone(),
		Body:       entry.Body,
		FromCache:  true,
	}
}

// waitContext sleeps for d, aborting early when ctx is canceled.
func waitContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// endpointLabel reduces a URL to host+path for metric labels.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}

	var b strings.Builder
	b.WriteString(u.Host)
	if u.Path != "" && u.Path != "/" {
		b.WriteString(u.Path)
	} else {
		b.WriteByte('/')
	}
	return b.String()
}
