package ulet

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTimeoutClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithTimeout(20*time.Millisecond), WithMaxRetries(0))
	defer client.Close()

	_, err := client.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("Expected a timeout classification, got %v", err)
	}
	if IsNetworkError(err) {
		t.Error("Timeout must not also classify as a network error")
	}
}

func TestNetworkErrorClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(WithMaxRetries(0))
	defer client.Close()

	_, err := client.Get(context.Background(), url)
	if err == nil {
		t.Fatal("Expected connection error")
	}
	if !IsNetworkError(err) {
		t.Errorf("Expected a network error classification, got %v", err)
	}
}

func TestHTTPErrorClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(WithMaxRetries(0))
	defer client.Close()

	_, err := client.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected HTTP error")
	}
	status, ok := IsHTTPError(err)
	if !ok {
		t.Fatalf("Expected an HTTP error classification, got %v", err)
	}
	if status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", status)
	}
}

func TestNon2xxIsFailure(t *testing.T) {
	// 3xx without a Location is returned as-is by the transport and must be
	// treated as a failure, not a success.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	client := New(WithMaxRetries(0))
	defer client.Close()

	_, err := client.Get(context.Background(), server.URL)
	status, ok := IsHTTPError(err)
	if !ok {
		t.Fatalf("Expected an HTTP error for 304, got %v", err)
	}
	if status != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", status)
	}
}

func TestUnsupportedMethod(t *testing.T) {
	client := New()
	defer client.Close()

	_, err := client.Do(context.Background(), RequestSpec{Method: "PATCH", URL: "http://example.com"})
	if err == nil {
		t.Fatal("Expected error for unsupported method")
	}
	if !strings.Contains(err.Error(), "unsupported method") {
		t.Errorf("Expected unsupported method error, got %v", err)
	}
}

func TestRelativeURLWithoutBase(t *testing.T) {
	client := New()
	defer client.Close()

	_, err := client.Get(context.Background(), "/relative")
	if err == nil {
		t.Fatal("Expected error for relative URL without base")
	}
}

func TestHeaderMergePrecedence(t *testing.T) {
	var gotContentType, gotToken, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotToken = r.Header.Get("X-Token")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(
		WithDefaultHeader("X-Token", "secret"),
		WithDefaultHeader("Accept", "application/json"),
	)
	defer client.Close()

	_, err := client.Get(context.Background(), server.URL,
		WithRequestHeader("Content-Type", "text/plain"),
		WithRequestHeader("Accept", "text/csv"),
	)
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}

	if gotContentType != "text/plain" {
		t.Errorf("Expected per-request Content-Type override, got %q", gotContentType)
	}
	if gotToken != "secret" {
		t.Errorf("Expected default header X-Token=secret, got %q", gotToken)
	}
	if gotAccept != "text/csv" {
		t.Errorf("Expected per-request Accept override, got %q", gotAccept)
	}
}

func TestDefaultContentTypeJSON(t *testing.T) {
	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		buf, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("Failed to read request body: %v", err)
		}
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New()
	defer client.Close()

	_, err := client.Post(context.Background(), server.URL, map[string]string{"key": "value"})
	if err != nil {
		t.Fatalf("Post() returned error: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", gotContentType)
	}
	if gotBody != `{"key":"value"}` {
		t.Errorf("Expected JSON body, got %q", gotBody)
	}
}

func TestMaxResponseBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(strings.Repeat("x", 100))); err != nil {
			t.Fatalf("Failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := New(WithMaxResponseBytes(10))
	defer client.Close()

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if len(resp.Body) != 10 {
		t.Errorf("Expected body truncated to 10 bytes, got %d", len(resp.Body))
	}
}

func TestBodyResentOnEachAttempt(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("Failed to read request body: %v", err)
		}
		bodies = append(bodies, string(buf))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithMaxRetries(2), WithRetryDelay(1*time.Millisecond))
	defer client.Close()

	if _, err := client.Put(context.Background(), server.URL, map[string]string{"id": "42"}); err != nil {
		t.Fatalf("Put() returned error: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(bodies))
	}
	for i, b := range bodies {
		if b != `{"id":"42"}` {
			t.Errorf("Attempt %d: expected full body, got %q", i, b)
		}
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://example.com/api/v1/items", "example.com/api/v1/items"},
		{"http://example.com", "example.com/"},
		{"http://example.com/", "example.com/"},
		{"not a url at all\x00", "unknown"},
		{"/relative/only", "unknown"},
	}
	for _, tt := range tests {
		if got := endpointLabel(tt.url); got != tt.want {
			t.Errorf("endpointLabel(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestResolveURL(t *testing.T) {
	client := New(WithBaseURL("http://api.example.com/v2/"))
	defer client.Close()

	got, err := client.resolveURL("items/7")
	if err != nil {
		t.Fatalf("resolveURL returned error: %v", err)
	}
	if got != "http://api.example.com/v2/items/7" {
		t.Errorf("Expected joined URL, got %q", got)
	}

	got, err = client.resolveURL("http://other.example.com/x")
	if err != nil {
		t.Fatalf("resolveURL returned error: %v", err)
	}
	if got != "http://other.example.com/x" {
		t.Errorf("Expected absolute URL unchanged, got %q", got)
	}
}
