// Package backoff holds the delay calculation strategies used between retry
// attempts.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the wait before the attempt following the given 0-based
// attempt index. A max of 0 means uncapped.
type Strategy interface {
	Delay(attempt int, base, max time.Duration) time.Duration
}

// Exponential is pure exponential backoff: base * multiplier^attempt, no
// jitter. It is the default strategy.
type Exponential struct {
	// Multiplier defaults to 2 when <= 0.
	Multiplier float64
}

// Delay implements Strategy.
func (s Exponential) Delay(attempt int, base, max time.Duration) time.Duration {
	m := s.Multiplier
	if m <= 0 {
		m = 2.0
	}
	d := scale(base, m, attempt, max)
	return d
}

// ExponentialJitter adds uniform jitter on top of exponential backoff to
// spread out synchronized retries.
type ExponentialJitter struct {
	Multiplier float64
	// Jitter is the fraction of the delay added at random, clamped to [0,1].
	Jitter float64
}

// Delay implements Strategy.
func (s ExponentialJitter) Delay(attempt int, base, max time.Duration) time.Duration {
	m := s.Multiplier
	if m <= 0 {
		m = 2.0
	}
	d := scale(base, m, attempt, max)

	j := s.Jitter
	if j < 0 {
		j = 0
	}
	if j > 1 {
		j = 1
	}
	if j > 0 {
		extra := time.Duration(float64(d) * j * rand.Float64())
		if max > 0 && d+extra > max {
			return max
		}
		d += extra
	}
	return d
}

// DecorrelatedJitter implements AWS-style decorrelated jitter: a random
// delay between base and base*3^attempt, capped at max.
type DecorrelatedJitter struct{}

// Delay implements Strategy.
func (s DecorrelatedJitter) Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	if attempt > 10 {
		attempt = 10
	}

	lo := float64(base)
	hi := lo * pow(3.0, attempt)
	if max > 0 && (hi > float64(max) || hi < 0) {
		hi = float64(max)
	}
	if hi < lo {
		hi = lo
	}

	d := time.Duration(lo + rand.Float64()*(hi-lo))
	if max > 0 && (d < 0 || d > max) {
		d = max
	}
	return d
}

// scale computes base * m^attempt with overflow and cap handling shared by
// the exponential strategies.
func scale(base time.Duration, m float64, attempt int, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := time.Duration(float64(base) * pow(m, attempt))
	if d < 0 {
		if max > 0 {
			return max
		}
		return base
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
