package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter enforces a fixed per-IP request budget over a sliding
// window. State is in-memory; expired buckets are garbage collected by
// StartGC.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	exclude     []string // path prefixes never limited

	buckets sync.Map // ip -> *bucket
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// NewRateLimiter allows maxRequests per window per client IP. Paths
// matching any exclude prefix bypass the limiter.
func NewRateLimiter(maxRequests int, window time.Duration, excludePrefixes ...string) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		exclude:     excludePrefixes,
	}
}

// StartGC sweeps expired buckets every interval until done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}, interval time.Duration) {
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				now := time.Now()
				rl.buckets.Range(func(key, value any) bool {
					b := value.(*bucket)
					b.mu.Lock()
					expired := now.After(b.resetAt)
					b.mu.Unlock()
					if expired {
						rl.buckets.Delete(key)
					}
					return true
				})
			}
		}
	}()
}

func (rl *RateLimiter) allow(ip string) bool {
	now := time.Now()
	val, _ := rl.buckets.LoadOrStore(ip, &bucket{resetAt: now.Add(rl.window)})
	b := val.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(rl.window)
	}
	b.count++
	return b.count <= rl.maxRequests
}

// Middleware enforces the limit, answering 429 with a JSON body.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		ip := ExtractIP(r)
		if rl.allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("ratelimit: request blocked", "ip", ip, "path", r.URL.Path)
		w.Header().Set("Retry-After", "60")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
