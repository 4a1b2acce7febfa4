// Package proxy implements the Proxy Rotator: a small stateful pool of
// upstream proxy URLs rotated round-robin or at random, with
// consecutive-failure tracking that permanently exhausts a proxy.
package proxy

import (
	"fmt"
	"math/rand"
	"sync"
)

// Rotation selects how Rotate and Get pick among active proxies.
type Rotation string

const (
	RoundRobin Rotation = "round_robin"
	Random     Rotation = "random"
)

// maxFailures is the number of consecutive failures after which a
// proxy is permanently exhausted for the session.
const maxFailures = 3

// Rotator manages proxy selection and failure tracking for one
// scraping session. Safe for concurrent use.
type Rotator struct {
	mu        sync.Mutex
	proxies   []string
	rotation  Rotation
	index     int
	failures  map[string]int
	exhausted map[string]bool
}

// New constructs a Rotator. rotation must be RoundRobin or Random.
func New(proxies []string, rotation Rotation) (*Rotator, error) {
	if rotation != RoundRobin && rotation != Random {
		return nil, fmt.Errorf("proxy: rotation must be %q or %q, got %q", RoundRobin, Random, rotation)
	}
	r := &Rotator{
		proxies:   append([]string(nil), proxies...),
		rotation:  rotation,
		failures:  make(map[string]int, len(proxies)),
		exhausted: make(map[string]bool, len(proxies)),
	}
	for _, p := range proxies {
		r.failures[p] = 0
		r.exhausted[p] = false
	}
	return r, nil
}

func (r *Rotator) activeLocked() []string {
	active := make([]string, 0, len(r.proxies))
	for _, p := range r.proxies {
		if !r.exhausted[p] {
			active = append(active, p)
		}
	}
	return active
}

// Get returns the currently selected proxy, or "" if all are exhausted.
func (r *Rotator) Get() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := r.activeLocked()
	if len(active) == 0 {
		return ""
	}
	if r.rotation == Random {
		return active[rand.Intn(len(active))]
	}
	return active[r.index%len(active)]
}

// Rotate advances to the next proxy and returns it. For round-robin
// it moves the cursor forward by one; for random it picks a new proxy
// from the active pool. Returns "" when none remain.
func (r *Rotator) Rotate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := r.activeLocked()
	if len(active) == 0 {
		return ""
	}
	if r.rotation == Random {
		return active[rand.Intn(len(active))]
	}
	r.index = (r.index + 1) % len(active)
	return active[r.index%len(active)]
}

// MarkFailed records a consecutive failure for proxy, exhausting it
// permanently once maxFailures is reached.
func (r *Rotator) MarkFailed(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.failures[p]; !ok {
		return
	}
	r.failures[p]++
	if r.failures[p] >= maxFailures {
		r.exhausted[p] = true
	}
}

// MarkSuccess resets the consecutive failure counter for proxy.
func (r *Rotator) MarkSuccess(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.failures[p]; ok {
		r.failures[p] = 0
	}
}

// HasProxies reports whether at least one proxy is still active.
func (r *Rotator) HasProxies() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeLocked()) > 0
}
