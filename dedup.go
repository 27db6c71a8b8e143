package ulet

import (
	"context"
	"sync"
	"time"
)

// inflightCall is one owned network call that concurrent identical callers
// wait on instead of issuing their own.
type inflightCall struct {
	mu       sync.Mutex
	response *Response
	err      error
	done     chan struct{}
}

// InflightTracker coalesces concurrent identical requests: the first caller
// for a key owns the network call, later callers share its result. Entries
// are keyed the same way as the cache.
type InflightTracker struct {
	mu      sync.Mutex
	entries map[string]*inflightCall
}

// NewInflightTracker returns an empty tracker.
func NewInflightTracker() *InflightTracker {
	return &InflightTracker{entries: make(map[string]*inflightCall)}
}

// join returns the call for key and whether the caller owns it.
func (t *InflightTracker) join(key string) (*inflightCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if call, ok := t.entries[key]; ok {
		return call, false
	}
	call := &inflightCall{done: make(chan struct{})}
	t.entries[key] = call
	return call, true
}

// complete publishes the owner's result and schedules the entry's removal.
// The short grace period lets callers that raced with completion still find
// the entry.
func (t *InflightTracker) complete(key string, resp *Response, err error) {
	t.mu.Lock()
	call, ok := t.entries[key]
	t.mu.Unlock()
	if !ok {
		return
	}

	call.mu.Lock()
	call.response = resp
	call.err = err
	close(call.done)
	call.mu.Unlock()

	time.AfterFunc(100*time.Millisecond, func() {
		t.mu.Lock()
		delete(t.entries, key)
		t.mu.Unlock()
	})
}

// wait blocks until the owner finishes or ctx is canceled.
func (call *inflightCall) wait(ctx context.Context) (*Response, error) {
	select {
	case <-call.done:
		call.mu.Lock()
		resp, err := call.response, call.err
		call.mu.Unlock()
		return resp, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
