package loaders

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// githubHourlyLimit is the authenticated API quota per hour.
	githubHourlyLimit = 5000

	// proactiveRate throttles below the quota (~4300/hr).
	proactiveRate = 1.2

	// minRemainingBuffer is the reserve below which requests wait for
	// the quota reset instead of spending the tail.
	minRemainingBuffer = 100
)

// apiRateLimiter throttles GitHub API calls with a token bucket and
// additionally respects the quota headers returned by the API.
type apiRateLimiter struct {
	mu        sync.Mutex
	remaining int
	resetTime time.Time
	bucket    *rate.Limiter
}

func newAPIRateLimiter() *apiRateLimiter {
	return &apiRateLimiter{
		remaining: githubHourlyLimit,
		bucket:    rate.NewLimiter(rate.Limit(proactiveRate), 8),
	}
}

// wait blocks until a request may be sent.
func (r *apiRateLimiter) wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining := r.remaining
	resetTime := r.resetTime
	r.mu.Unlock()

	if remaining < minRemainingBuffer && time.Now().Before(resetTime) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(resetTime)):
		}
	}
	return nil
}

// update records quota state from response headers.
func (r *apiRateLimiter) update(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			r.remaining = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			r.resetTime = time.Unix(n, 0)
		}
	}
}
