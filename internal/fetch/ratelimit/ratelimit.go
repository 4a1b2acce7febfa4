// Package ratelimit enforces a minimum per-domain interval between
// outbound requests so a crawl never exceeds a configured request rate
// against any single host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is safe for concurrent use. Each domain gets its own
// token-bucket limiter, lazily created on first use, configured to
// allow exactly Rate requests per second with a burst of one so queued
// callers each advance the domain's next-allowed timestamp in turn.
type Limiter struct {
	rate float64

	mu      sync.Mutex
	perHost map[string]*rate.Limiter
}

// New constructs a Limiter enforcing rate requests/second per domain.
// Rate must be positive.
func New(requestsPerSecond float64) (*Limiter, error) {
	if requestsPerSecond <= 0 {
		return nil, fmt.Errorf("ratelimit: rate must be positive, got %v", requestsPerSecond)
	}
	return &Limiter{
		rate:    requestsPerSecond,
		perHost: make(map[string]*rate.Limiter),
	}, nil
}

// Wait blocks until a request to rawURL's domain is permitted, or ctx
// is cancelled.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := domainOf(rawURL)
	return l.limiterFor(host).Wait(ctx)
}

func (l *Limiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.perHost[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.rate), 1)
		l.perHost[host] = lim
	}
	return lim
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
