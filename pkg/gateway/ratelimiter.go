package gateway

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrRateLimited is returned when a client exceeds its requests per window.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTooManyConcurrent is returned when a client has too many requests in flight.
	ErrTooManyConcurrent = errors.New("too many concurrent requests")
)

// Default websocket client limits.
const (
	DefaultRequestsPerMinute = 120
	DefaultMaxConcurrent     = 10
)

// ClientRateLimiter is a sliding-window limiter with a concurrency cap,
// one per websocket client.
type ClientRateLimiter struct {
	mu            sync.Mutex
	limit         int
	window        time.Duration
	maxConcurrent int
	inFlight      int
	requests      []time.Time
	now           func() time.Time
}

// NewClientRateLimiter creates a limiter with the default limits.
func NewClientRateLimiter() *ClientRateLimiter {
	return NewClientRateLimiterWithLimits(DefaultRequestsPerMinute, DefaultMaxConcurrent)
}

// NewClientRateLimiterWithLimits creates a limiter allowing requestsPerMinute
// requests per minute with at most maxConcurrent in flight.
func NewClientRateLimiterWithLimits(requestsPerMinute, maxConcurrent int) *ClientRateLimiter {
	return &ClientRateLimiter{
		limit:         requestsPerMinute,
		window:        time.Minute,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// Acquire admits one request or returns ErrRateLimited/ErrTooManyConcurrent.
// Every successful Acquire must be paired with Release.
func (r *ClientRateLimiter) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight >= r.maxConcurrent {
		return ErrTooManyConcurrent
	}

	now := r.now()
	r.pruneLocked(now)
	if len(r.requests) >= r.limit {
		return ErrRateLimited
	}

	r.requests = append(r.requests, now)
	r.inFlight++
	return nil
}

// Release marks an admitted request as finished.
func (r *ClientRateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight > 0 {
		r.inFlight--
	}
}

// Stats returns the requests in the current window and the requests in flight.
func (r *ClientRateLimiter) Stats() (windowCount, inFlight int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(r.now())
	return len(r.requests), r.inFlight
}

func (r *ClientRateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.requests) && !r.requests[i].After(cutoff) {
		i++
	}
	r.requests = r.requests[i:]
}
