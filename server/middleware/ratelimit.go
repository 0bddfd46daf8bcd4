package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/skillsenselab/streamkit/errors"
	"github.com/skillsenselab/streamkit/resilience"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute per key.
	RequestsPerMinute int
	// KeyFunc extracts the rate limit key from a request. Defaults to client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit returns a Gin middleware that applies per-key token bucket rate
// limiting. Each key gets its own bucket sized to the per-minute budget, so a
// client can burst up to the full budget and then refills smoothly.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPBasedKey
	}

	buckets := &keyedLimiter{
		limiters: make(map[string]*resilience.RateLimiter),
		rate:     float64(cfg.RequestsPerMinute) / 60.0,
		burst:    cfg.RequestsPerMinute,
	}
	go buckets.cleanup()

	return func(c *gin.Context) {
		key := cfg.KeyFunc(c)
		if !buckets.allow(key) {
			appErr := apperrors.RateLimited(cfg.RequestsPerMinute)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Next()
	}
}

// IPBasedKey extracts the client IP for use as a rate limit key.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}

// keyedLimiter maintains one token bucket per rate limit key.
type keyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*resilience.RateLimiter
	rate     float64
	burst    int
}

func (kl *keyedLimiter) allow(key string) bool {
	kl.mu.Lock()
	rl, ok := kl.limiters[key]
	if !ok {
		rl = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  key,
			Rate:  kl.rate,
			Burst: kl.burst,
		})
		kl.limiters[key] = rl
	}
	kl.mu.Unlock()

	return rl.Allow()
}

// cleanup periodically drops buckets that refilled back to full; an idle
// bucket carries no state worth keeping.
func (kl *keyedLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		kl.mu.Lock()
		for key, rl := range kl.limiters {
			if rl.Tokens() >= float64(kl.burst) {
				delete(kl.limiters, key)
			}
		}
		kl.mu.Unlock()
	}
}
