package resolver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Charliesj0129/pixAV/pkg/metrics"
)

// rateLimiter enforces a per-client sliding window request budget.
//
// State is in-process only: with multiple resolver replicas each
// enforces its own budget, which errs on the permissive side.
type rateLimiter struct {
	limit   int
	window  time.Duration
	metrics metrics.ResolverMetrics

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

// newRateLimiter creates a limiter of rpm requests per minute per
// client. A non-positive rpm disables limiting. m may be nil.
func newRateLimiter(rpm int, m metrics.ResolverMetrics) *rateLimiter {
	if rpm <= 0 {
		return nil
	}
	return &rateLimiter{
		limit:   rpm,
		window:  time.Minute,
		metrics: m,
		hits:    make(map[string][]time.Time),
	}
}

// allow records a hit for the client and reports whether it fits the
// window.
func (l *rateLimiter) allow(client string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.window {
		l.sweep(now)
		l.lastSweep = now
	}

	cutoff := now.Add(-l.window)
	kept := l.hits[client][:0]
	for _, hit := range l.hits[client] {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}

	if len(kept) >= l.limit {
		l.hits[client] = kept
		return false
	}
	l.hits[client] = append(kept, now)
	return true
}

// sweep drops clients whose whole window has lapsed. Called with the
// lock held.
func (l *rateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-l.window)
	for client, hits := range l.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(l.hits, client)
		}
	}
}

// middleware rejects over-budget clients with 429. A nil limiter
// passes everything through.
func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientKey(r), time.Now()) {
			if l.metrics != nil {
				l.metrics.RecordRateLimited()
			}
			writeJSON(w, http.StatusTooManyRequests, errorResponse("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a client by IP. RealIP middleware has already
// rewritten RemoteAddr from forwarding headers when present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
