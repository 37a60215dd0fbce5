package tool

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter caps invocations per tool. Each tool name gets its own
// token bucket so a chatty tool cannot starve the others.
type RateLimiter struct {
	mu       sync.Mutex
	perMin   float64
	burst    int
	limiters map[string]*rate.Limiter
}

// NewRateLimiter allows perMinute calls per tool with the given burst.
func NewRateLimiter(perMinute float64, burst int) *RateLimiter {
	return &RateLimiter{
		perMin:   perMinute,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a call to the named tool is within its limit,
// consuming a token when it is.
func (r *RateLimiter) Allow(name string) bool {
	r.mu.Lock()
	l, ok := r.limiters[name]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.perMin/60.0), r.burst)
		r.limiters[name] = l
	}
	r.mu.Unlock()

	return l.Allow()
}
