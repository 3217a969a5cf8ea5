package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/buddyengineerz/storefront/pkg/response"
)

// bucket tracks a fixed-window request count for one key.
type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

func (b *bucket) allow(max int, window time.Duration, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(window)
	}

	b.count++
	return b.count <= max
}

type limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(max int, window time.Duration) *limiter {
	l := &limiter{max: max, window: window, buckets: map[string]*bucket{}}
	go l.evictLoop()
	return l
}

func (l *limiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.allow(l.max, l.window, now)
}

// evictLoop drops expired buckets so memory stays bounded.
func (l *limiter) evictLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for now := range ticker.C {
		l.mu.Lock()
		for key, b := range l.buckets {
			b.mu.Lock()
			expired := now.After(b.resetAt)
			b.mu.Unlock()
			if expired {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit limits each client IP to max requests per window. Each call
// gets its own counters, so a tighter limit on /auth does not share budget
// with the global one.
//
//	r.Use(middleware.RateLimit(120, time.Minute))
func RateLimit(max int, window time.Duration) func(http.Handler) http.Handler {
	l := newLimiter(max, window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(ClientIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, or the remote address
// without its port.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
