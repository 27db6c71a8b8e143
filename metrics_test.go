package ulet

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegisterer(prometheus.NewRegistry())
}

func TestNilCollectorIsSafe(t *testing.T) {
	var mc *MetricsCollector

	mc.RecordRequest("GET", "example.com/", 200, time.Millisecond)
	mc.RecordRequestStart("GET", "example.com/")
	mc.RecordRequestEnd("GET", "example.com/")
	mc.RecordRetry("GET", "example.com/", 1)
	mc.RecordRetryBudgetRejected("example.com/")
	mc.RecordCacheHit("GET", "example.com/")
	mc.RecordCacheMiss("GET", "example.com/")
	mc.RecordCacheSize("default", 3)
	mc.RecordCacheEvictions(2)
	mc.RecordDeduplicationHit("GET", "example.com/")
	mc.RecordBreakerState("default", StateOpen)
	mc.RecordRateLimiterTokens("default", 5)
	mc.RecordError(KindTimeout, "GET", "example.com/")
}

func TestRecordRequest(t *testing.T) {
	mc := newTestCollector()

	mc.RecordRequest("GET", "example.com/api", 200, 50*time.Millisecond)
	mc.RecordRequest("GET", "example.com/api", 200, 70*time.Millisecond)
	mc.RecordRequest("POST", "example.com/api", 500, 10*time.Millisecond)

	if got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("GET", "200", "example.com/api")); got != 2 {
		t.Errorf("Expected 2 GET/200 requests, got %v", got)
	}
	if got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("POST", "500", "example.com/api")); got != 1 {
		t.Errorf("Expected 1 POST/500 request, got %v", got)
	}
}

func TestRecordInFlight(t *testing.T) {
	mc := newTestCollector()

	mc.RecordRequestStart("GET", "example.com/")
	mc.RecordRequestStart("GET", "example.com/")
	if got := testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "example.com/")); got != 2 {
		t.Errorf("Expected 2 in flight, got %v", got)
	}

	mc.RecordRequestEnd("GET", "example.com/")
	if got := testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "example.com/")); got != 1 {
		t.Errorf("Expected 1 in flight, got %v", got)
	}
}

func TestRecordCacheMetrics(t *testing.T) {
	mc := newTestCollector()

	mc.RecordCacheHit("GET", "example.com/")
	mc.RecordCacheMiss("GET", "example.com/")
	mc.RecordCacheMiss("GET", "example.com/")
	mc.RecordCacheSize("default", 7)
	mc.RecordCacheEvictions(3)
	mc.RecordCacheEvictions(0)

	if got := testutil.ToFloat64(mc.cacheHits.WithLabelValues("GET", "example.com/")); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheMisses.WithLabelValues("GET", "example.com/")); got != 2 {
		t.Errorf("Expected 2 cache misses, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheSize.WithLabelValues("default")); got != 7 {
		t.Errorf("Expected cache size 7, got %v", got)
	}
	if got := testutil.ToFloat64(mc.cacheEvictions); got != 3 {
		t.Errorf("Expected 3 evictions, got %v", got)
	}
}

func TestRecordRetryAndError(t *testing.T) {
	mc := newTestCollector()

	mc.RecordRetry("GET", "example.com/", 1)
	mc.RecordRetry("GET", "example.com/", 2)
	mc.RecordError(KindHTTP, "GET", "example.com/")
	mc.RecordError(KindHTTP, "GET", "example.com/")
	mc.RecordError(KindTimeout, "GET", "example.com/")

	if got := testutil.ToFloat64(mc.retriesTotal.WithLabelValues("GET", "example.com/", "1")); got != 1 {
		t.Errorf("Expected 1 first retry, got %v", got)
	}
	if got := testutil.ToFloat64(mc.errorsTotal.WithLabelValues("HttpError", "GET", "example.com/")); got != 2 {
		t.Errorf("Expected 2 HttpError attempts, got %v", got)
	}
	if got := testutil.ToFloat64(mc.errorsTotal.WithLabelValues("Timeout", "GET", "example.com/")); got != 1 {
		t.Errorf("Expected 1 Timeout attempt, got %v", got)
	}
}

func TestRecordBreakerAndLimiter(t *testing.T) {
	mc := newTestCollector()

	mc.RecordBreakerState("default", StateHalfOpen)
	if got := testutil.ToFloat64(mc.breakerState.WithLabelValues("default")); got != 2 {
		t.Errorf("Expected breaker state 2 (half-open), got %v", got)
	}

	mc.RecordRateLimiterTokens("default", 9)
	if got := testutil.ToFloat64(mc.rateLimiterTokens.WithLabelValues("default")); got != 9 {
		t.Errorf("Expected 9 tokens, got %v", got)
	}
}

func TestCollectorRegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegisterer(reg)
	mc.RecordRequest("GET", "example.com/", 200, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}
	found := false
	for _, fam := range families {
		if fam.GetName() == "ulet_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("Expected ulet_requests_total to be registered")
	}
}
