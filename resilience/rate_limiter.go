package resilience

import (
	"sync"
	"time"
)

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	// Name identifies this rate limiter for metrics/logging.
	Name string
	// Rate is the number of requests allowed per second.
	Rate float64
	// Burst is the maximum burst size.
	Burst int
}

// RateLimiter is a token bucket. The bucket starts full, drains one token
// per allowed request, and refills continuously at Rate tokens per second
// up to Burst. Fractional tokens accumulate, so rates below one per second
// work.
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	tokens   float64
	refilled time.Time
}

// NewRateLimiter creates a rate limiter with a full bucket. A zero Rate
// defaults to 10/s and a zero Burst to one second of Rate.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10.0
	}
	if config.Burst <= 0 {
		config.Burst = int(config.Rate)
	}

	return &RateLimiter{
		config:   config,
		tokens:   float64(config.Burst),
		refilled: time.Now(),
	}
}

// Allow reports whether one request may proceed, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN reports whether n requests may proceed together. Either all n
// tokens are taken or none are.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens < float64(n) {
		return false
	}
	rl.tokens -= float64(n)
	return true
}

// refill credits tokens for the time since the last refill, capped at Burst.
func (rl *RateLimiter) refill() {
	now := time.Now()
	rl.tokens += now.Sub(rl.refilled).Seconds() * rl.config.Rate
	rl.refilled = now

	if limit := float64(rl.config.Burst); rl.tokens > limit {
		rl.tokens = limit
	}
}

// Tokens returns the currently available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Rate returns the refill rate in tokens per second.
func (rl *RateLimiter) Rate() float64 {
	return rl.config.Rate
}

// Burst returns the bucket capacity.
func (rl *RateLimiter) Burst() int {
	return rl.config.Burst
}
