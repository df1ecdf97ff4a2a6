package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/eventdeck/server/internal/api/envelope"
	"github.com/eventdeck/server/internal/config"
)

const rateLimitMessage = "Too many requests, please try again later."

// RateLimit allows each client RequestsPerWindow requests per Window, as a
// token bucket that starts full and refills evenly across the window.
// Probe endpoints are never limited.
func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	store := newLimiterStore(cfg)
	retryAfter := strconv.Itoa(int(store.refill().Seconds()) + 1)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := store.limiter(clientKey(r, cfg.TrustedProxyCIDRs))
			if limiter != nil && !limiter.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				envelope.Fail(w, r, http.StatusTooManyRequests, rateLimitMessage, nil, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	burst    int
	window   time.Duration
	ttl      time.Duration
	lastGC   time.Time
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(cfg config.RateLimitConfig) *limiterStore {
	ttl := cfg.Window
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		burst:    cfg.RequestsPerWindow,
		window:   cfg.Window,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *limiterStore) refill() time.Duration {
	if s.burst <= 0 {
		return 0
	}
	return s.window / time.Duration(s.burst)
}

// limiter returns the bucket for key, or nil when limiting is disabled.
// Idle buckets are swept lazily so the map cannot grow without bound.
func (s *limiterStore) limiter(key string) *rate.Limiter {
	if s.burst <= 0 || s.window <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastGC) > s.ttl {
		for k, entry := range s.limiters {
			if now.Sub(entry.lastSeen) > s.ttl {
				delete(s.limiters, k)
			}
		}
		s.lastGC = now
	}

	if entry, ok := s.limiters[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Every(s.refill()), s.burst)
	s.limiters[key] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// clientKey identifies the client. Forwarding headers are honoured only when
// the direct peer is a trusted proxy.
func clientKey(r *http.Request, trustedProxyCIDRs []string) string {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}

	if isTrustedProxy(remoteIP, trustedProxyCIDRs) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trustedCIDRs []string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}
	for _, cidrStr := range trustedCIDRs {
		_, cidr, err := net.ParseCIDR(strings.TrimSpace(cidrStr))
		if err != nil {
			continue
		}
		if cidr.Contains(parsedIP) {
			return true
		}
	}
	return false
}
