package ulet

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exposes Prometheus metrics for the request lifecycle and
// the reliability layers. All methods are nil-safe so instrumentation stays
// optional. Safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal        *prometheus.CounterVec
	retryBudgetRejected *prometheus.CounterVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheSize      *prometheus.GaugeVec
	cacheEvictions prometheus.Counter

	dedupHits *prometheus.CounterVec

	breakerState      *prometheus.GaugeVec
	rateLimiterTokens *prometheus.GaugeVec

	errorsTotal *prometheus.CounterVec

	registerer prometheus.Registerer
}

// NewMetricsCollector registers the collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegisterer registers all metrics on the supplied
// registerer, which tests typically set to a private registry.
func NewMetricsCollectorWithRegisterer(reg prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulet_requests_total",
				Help: "Total number of logical calls, by terminal status code",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ulet_request_duration_seconds",
				Help:    "Duration of logical calls including retries and backoff",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ulet_requests_in_flight",
				Help: "Number of logical calls currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulet_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		retryBudgetRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulet_retry_budget_rejected_total",
				Help: "Calls aborted because the retry budget was exhausted",
			},
			[]string{"endpoint"},
		),
		cacheHits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulet_cache_hits_total",
				Help: "Calls answered from the response cache",
			},
			[]string{"method", "endpoint"},
		),
		cacheMisses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulet_cache_misses_total",
				Help: "Cache-eligible calls that went to the network",
			},
			[]string{"method", "endpoint"},
		),
		cacheSize: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ulet_cache_size",
				Help: "Entries currently held by the cache, live or pending sweep",
			},
			[]string{"name"},
		),
		cacheEvictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ulet_cache_evictions_total",
				Help: "Entries removed by the periodic sweep",
			},
		),
		dedupHits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulet_deduplication_hits_total",
				Help: "Calls coalesced onto an identical in-flight call",
			},
			[]string{"method", "endpoint"},
		),
		breakerState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ulet_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateLimiterTokens: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ulet_rate_limiter_tokens",
				Help: "Available rate limiter tokens",
			},
			[]string{"name"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulet_errors_total",
				Help: "Failed attempts by failure kind",
			},
			[]string{"kind", "method", "endpoint"},
		),
		registerer: reg,
	}
}

// RecordRequest records a finished logical call.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	code := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, code, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, code, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry counts one retry attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordRetryBudgetRejected counts a call aborted by the retry budget.
func (mc *MetricsCollector) RecordRetryBudgetRejected(endpoint string) {
	if mc == nil {
		return
	}
	mc.retryBudgetRejected.WithLabelValues(endpoint).Inc()
}

// RecordCacheHit counts a call served from cache.
func (mc *MetricsCollector) RecordCacheHit(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheMiss counts a cache-eligible call that hit the network.
func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheSize sets the cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordCacheEvictions counts entries removed by a sweep pass.
func (mc *MetricsCollector) RecordCacheEvictions(n int) {
	if mc == nil || n <= 0 {
		return
	}
	mc.cacheEvictions.Add(float64(n))
}

// RecordDeduplicationHit counts a coalesced call.
func (mc *MetricsCollector) RecordDeduplicationHit(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.dedupHits.WithLabelValues(method, endpoint).Inc()
}

// RecordBreakerState sets the breaker state gauge.
func (mc *MetricsCollector) RecordBreakerState(name string, state BreakerState) {
	if mc == nil {
		return
	}
	mc.breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimiterTokens sets the available token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(name string, tokens int) {
	if mc == nil {
		return
	}
	mc.rateLimiterTokens.WithLabelValues(name).Set(float64(tokens))
}

// RecordError counts a failed attempt by kind.
func (mc *MetricsCollector) RecordError(kind FailureKind, method, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(string(kind), method, endpoint).Inc()
}
