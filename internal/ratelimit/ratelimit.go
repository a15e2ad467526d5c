// Package ratelimit is the first gate in the chat pipeline: a per-client
// sliding-window admission check that rejects before any session or
// generation work is spent.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter tracks request timestamps per client key over a 60s window. The
// mutex guards only map/slice mutation; it is never held across I/O.
type Limiter struct {
	mu         sync.Mutex
	requests   map[string][]time.Time
	rpm        int
	checkCount int
	now        func() time.Time
}

func NewLimiter(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	return &Limiter{
		requests: make(map[string][]time.Time),
		rpm:      requestsPerMinute,
		now:      time.Now,
	}
}

// Allow records the request and reports whether it is admitted. Exactly rpm
// requests are admitted per rolling minute per client.
func (l *Limiter) Allow(clientKey string) bool {
	now := l.now()
	windowStart := now.Add(-time.Minute)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.requests[clientKey][:0]
	for _, t := range l.requests[clientKey] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	l.requests[clientKey] = recent

	// Every 100 checks, drop clients whose whole window has aged out.
	l.checkCount++
	if l.checkCount >= 100 {
		l.checkCount = 0
		for key, times := range l.requests {
			if len(times) == 0 || !times[len(times)-1].After(windowStart) {
				delete(l.requests, key)
			}
		}
	}

	if len(recent) >= l.rpm {
		return false
	}
	l.requests[clientKey] = append(recent, now)
	return true
}

// ClientKey derives the admission key from the most trustworthy available
// network-origin header: Cloudflare's connecting IP first, then the first
// hop of X-Forwarded-For, then the direct peer address.
func ClientKey(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
