package ulet

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adiwarsito/ulet/internal/backoff"
)

// ExponentialPolicy is the default retry policy: every failure is retryable
// while attempt < maxRetries, with backoff delegated to a strategy. The
// default strategy is pure exponential (delay = retryDelay * 2^attempt)
// with no jitter and no distinction between failure kinds or HTTP verbs —
// POST/PUT/DELETE are retried exactly like GET, a deliberate carry-over
// from the base design.
type ExponentialPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	strategy   backoff.Strategy
}

// NewExponentialPolicy builds the default kind-blind policy. maxDelay of 0
// means uncapped.
func NewExponentialPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *ExponentialPolicy {
	return &ExponentialPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		strategy:   backoff.Exponential{},
	}
}

// NewExponentialPolicyWithStrategy builds a policy with a custom backoff
// strategy.
func NewExponentialPolicyWithStrategy(maxRetries int, baseDelay, maxDelay time.Duration, strategy backoff.Strategy) *ExponentialPolicy {
	p := NewExponentialPolicy(maxRetries, baseDelay, maxDelay)
	if strategy != nil {
		p.strategy = strategy
	}
	return p
}

// ShouldRetry implements RetryPolicy.
func (p *ExponentialPolicy) ShouldRetry(failure *RequestError, attempt int) (time.Duration, bool) {
	if failure == nil {
		return 0, false
	}
	if attempt >= p.maxRetries {
		return 0, false
	}
	return p.strategy.Delay(attempt, p.baseDelay, p.maxDelay), true
}

// IdempotentPolicy wraps an ExponentialPolicy with verb awareness: only
// idempotent methods are retried, 4xx statuses other than 429 are terminal,
// and a Retry-After header on 429/503 overrides the computed delay. It is
// opt-in via WithIdempotentOnlyRetry and never the default.
type IdempotentPolicy struct {
	*ExponentialPolicy
	isIdempotent func(method string) bool
}

// NewIdempotentPolicy builds the verb-aware policy.
func NewIdempotentPolicy(maxRetries int, baseDelay, maxDelay time.Duration, strategy backoff.Strategy) *IdempotentPolicy {
	return &IdempotentPolicy{
		ExponentialPolicy: NewExponentialPolicyWithStrategy(maxRetries, baseDelay, maxDelay, strategy),
		isIdempotent:      IsIdempotentMethod,
	}
}

// ShouldRetry implements RetryPolicy.
func (p *IdempotentPolicy) ShouldRetry(failure *RequestError, attempt int) (time.Duration, bool) {
	if failure == nil || attempt >= p.maxRetries {
		return 0, false
	}
	if !p.isIdempotent(failure.Method) {
		return 0, false
	}
	if failure.Kind == KindHTTP {
		code := failure.StatusCode
		if code < 500 && code != http.StatusTooManyRequests {
			return 0, false
		}
		if code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable {
			if d := parseRetryAfter(failure.RetryAfter); d > 0 {
				return d, true
			}
		}
	}
	return p.strategy.Delay(attempt, p.baseDelay, p.maxDelay), true
}

// IsIdempotentMethod reports whether an HTTP method is safe to retry after
// a possible partial server-side application.
func IsIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// parseRetryAfter parses a Retry-After header value in either delay-seconds
// or HTTP-date form. Delays are capped at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			d := time.Duration(seconds) * time.Second
			if d > time.Hour {
				d = time.Hour
			}
			return d
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d > 0 && d <= time.Hour {
			return d
		}
	}

	return 0
}

// RetryBudget caps the total number of retries across all calls within a
// sliding window, protecting a struggling upstream from synchronized retry
// storms.
type RetryBudget struct {
	maxRetries  int64
	perWindow   time.Duration
	current     int64
	windowStart int64
}

// NewRetryBudget allows at most maxRetries retries per window.
func NewRetryBudget(maxRetries int, perWindow time.Duration) *RetryBudget {
	return &RetryBudget{
		maxRetries:  int64(maxRetries),
		perWindow:   perWindow,
		windowStart: time.Now().UnixNano(),
	}
}

// Allow consumes one unit of budget, resetting the window when elapsed.
func (rb *RetryBudget) Allow() bool {
	now := time.Now().UnixNano()
	windowStart := atomic.LoadInt64(&rb.windowStart)

	if now-windowStart >= int64(rb.perWindow) {
		if atomic.CompareAndSwapInt64(&rb.windowStart, windowStart, now) {
			atomic.StoreInt64(&rb.current, 0)
		}
	}

	if atomic.LoadInt64(&rb.current) >= rb.maxRetries {
		return false
	}
	return atomic.AddInt64(&rb.current, 1) <= rb.maxRetries
}

// Stats returns the consumed budget, the cap and the window start.
func (rb *RetryBudget) Stats() (current, max int64, windowStart time.Time) {
	return atomic.LoadInt64(&rb.current),
		rb.maxRetries,
		time.Unix(0, atomic.LoadInt64(&rb.windowStart))
}
