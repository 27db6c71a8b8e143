package ulet

import (
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies why an attempt failed.
type FailureKind string

const (
	// KindTimeout marks an attempt that exceeded its per-attempt deadline.
	KindTimeout FailureKind = "Timeout"
	// KindNetwork marks a transport failure before any response arrived.
	KindNetwork FailureKind = "NetworkError"
	// KindHTTP marks a response received with a non-2xx status.
	KindHTTP FailureKind = "HttpError"
)

// Sentinel errors for the optional reliability layers.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("ulet: circuit open")

	// ErrRateLimited is returned when the rate limiter denies a call.
	ErrRateLimited = errors.New("ulet: rate limited")

	// ErrRetryBudgetExceeded is returned when the retry budget is exhausted
	// mid-call.
	ErrRetryBudgetExceeded = errors.New("ulet: retry budget exceeded")
)

// RequestError is the terminal error of a call: the last attempt's failure,
// annotated with how many attempts were made.
type RequestError struct {
	Kind       FailureKind
	Message    string
	StatusCode int
	// RetryAfter holds the raw Retry-After header of an HttpError response,
	// if any.
	RetryAfter string
	Method     string
	URL        string
	Attempts   int
	MaxRetries int
	RequestID  string
	Timestamp  time.Time
	Duration   time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s (attempts %d/%d)", msg, e.Attempts, e.MaxRetries+1)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches RequestErrors by failure kind for errors.Is.
func (e *RequestError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*RequestError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *RequestError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempts > 0 {
		info += fmt.Sprintf("Attempts: %d/%d\n", e.Attempts, e.MaxRetries+1)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsTimeout reports whether err is a RequestError caused by an attempt
// deadline.
func IsTimeout(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == KindTimeout
}

// IsNetworkError reports whether err is a RequestError caused by a
// transport failure.
func IsNetworkError(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == KindNetwork
}

// IsHTTPError reports whether err is a RequestError carrying a non-2xx
// response status; the status is returned alongside.
func IsHTTPError(err error) (int, bool) {
	var re *RequestError
	if errors.As(err, &re) && re.Kind == KindHTTP {
		return re.StatusCode, true
	}
	return 0, false
}

// IsTransient reports whether err represents a failure that might succeed
// on retry. All three attempt failure kinds are transient under the base
// policy; breaker and limiter rejections are transient too.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRetryBudgetExceeded) {
		return true
	}
	var re *RequestError
	if errors.As(err, &re) {
		switch re.Kind {
		case KindTimeout, KindNetwork, KindHTTP:
			return true
		}
	}
	return false
}
