package proxy

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// rateLimiter is a token bucket refilled continuously at ratePerSec.
type rateLimiter struct {
	ratePerSec float64
	capacity   float64
	last       time.Time
	budget     float64
	mu         sync.Mutex
}

func newRateLimiter(ratePerSec float64, capacity float64) *rateLimiter {
	now := time.Now()
	return &rateLimiter{ratePerSec: ratePerSec, capacity: capacity, last: now, budget: capacity}
}

func (l *rateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(l.last).Seconds()
	l.last = now
	l.budget = minFloat(l.capacity, l.budget+elapsed*l.ratePerSec)
	if l.budget >= 1 {
		l.budget -= 1
		return true
	}
	return false
}

// limiterStore hands out one bucket per client identity, all sharing the
// configured rate. The window count doubles as the burst capacity.
type limiterStore struct {
	mu      sync.Mutex
	entries map[string]*rateLimiter
	perSec  float64
	burst   float64
}

// newLimiterStore parses a "count/unit" rate spec such as "60/m" or "2/s".
// An empty spec disables limiting and yields a nil store.
func newLimiterStore(spec string) (*limiterStore, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	perSec, perWindow, err := parseRate(spec)
	if err != nil {
		return nil, err
	}
	return &limiterStore{
		entries: map[string]*rateLimiter{},
		perSec:  perSec,
		burst:   float64(perWindow),
	}, nil
}

// Allow reports whether the client identified by key may proceed. A nil
// store allows everything.
func (s *limiterStore) Allow(key string) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	lim := s.entries[key]
	if lim == nil {
		lim = newRateLimiter(s.perSec, s.burst)
		s.entries[key] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}

// rateLimit rejects requests over the configured per-client rate with 429.
// Clients are keyed by API key when presented, by remote host otherwise.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limit_error", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parseRate(spec string) (perSec float64, perWindow int, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0, fmt.Errorf("empty rate")
	}
	parts := strings.Split(spec, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid rate spec")
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	unit := strings.TrimSpace(parts[1])
	var dur time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		dur = time.Second
	case "m", "min", "minute", "minutes":
		dur = time.Minute
	case "h", "hr", "hour", "hours":
		dur = time.Hour
	default:
		return 0, 0, fmt.Errorf("invalid rate unit")
	}
	return float64(n) / dur.Seconds(), n, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
