package hub

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter manages per-connection token bucket rate limiters.
// Each MQTT client id gets its own limiter created on first publish.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter with the given sustained rate
// and burst size. The mqtt-broker binary passes its configured values,
// which default to 50 msgs/sec with a burst of 100 (internal/config).
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// Allow checks if the given client id is under the rate limit.
// Returns true if allowed, false if rate-limited.
// The limiter for a given client id is created lazily on first call.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters[clientID]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[clientID] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Remove deletes the limiter for the given client id.
// Call on client disconnect to prevent memory leaks.
func (rl *RateLimiter) Remove(clientID string) {
	rl.mu.Lock()
	delete(rl.limiters, clientID)
	rl.mu.Unlock()
}
