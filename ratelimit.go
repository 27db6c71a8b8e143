package ulet

import (
	"sync/atomic"
	"time"
)

// RateLimiter is a lock-free token bucket. One token is consumed per call;
// tokens refill at one per refillRate up to maxTokens.
type RateLimiter struct {
	maxTokens  int64
	tokens     int64
	refillRate time.Duration
	lastRefill int64
}

// NewRateLimiter builds a full bucket.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		maxTokens:  int64(maxTokens),
		tokens:     int64(maxTokens),
		refillRate: refillRate,
		lastRefill: time.Now().UnixNano(),
	}
}

// Allow consumes a token, refilling first based on elapsed time.
func (rl *RateLimiter) Allow() bool {
	rl.refill()
	for {
		current := atomic.LoadInt64(&rl.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&rl.tokens, current, current-1) {
			return true
		}
	}
}

// Tokens reports the currently available tokens.
func (rl *RateLimiter) Tokens() int {
	rl.refill()
	return int(atomic.LoadInt64(&rl.tokens))
}

func (rl *RateLimiter) refill() {
	if rl.refillRate <= 0 {
		return
	}
	now := time.Now().UnixNano()
	for {
		last := atomic.LoadInt64(&rl.lastRefill)
		add := (now - last) / int64(rl.refillRate)
		if add <= 0 {
			return
		}
		// Advance lastRefill by whole refill periods so fractional elapsed
		// time is not lost.
		if !atomic.CompareAndSwapInt64(&rl.lastRefill, last, last+add*int64(rl.refillRate)) {
			continue
		}
		for {
			current := atomic.LoadInt64(&rl.tokens)
			next := current + add
			if next > rl.maxTokens {
				next = rl.maxTokens
			}
			if atomic.CompareAndSwapInt64(&rl.tokens, current, next) {
				return
			}
		}
	}
}
