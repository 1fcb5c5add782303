package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet hands out one token bucket per key. Entries idle for 30
// minutes are dropped every 10 minutes until ctx ends.
type limiterSet struct {
	rps   float64
	burst int

	mu       sync.Mutex
	limiters map[string]*keyedLimiter
}

func newLimiterSet(ctx context.Context, requestsPerSecond float64, burst int) *limiterSet {
	s := &limiterSet{rps: requestsPerSecond, burst: burst, limiters: make(map[string]*keyedLimiter)}

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now().Add(-30 * time.Minute))
			case <-ctx.Done():
				return
			}
		}
	}()

	return s
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	kl, ok := s.limiters[key]
	if !ok {
		kl = &keyedLimiter{limiter: rate.NewLimiter(rate.Limit(s.rps), s.burst)}
		s.limiters[key] = kl
	}
	kl.lastAccess = time.Now()
	s.mu.Unlock()

	return kl.limiter.Allow()
}

func (s *limiterSet) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.limiters {
		if kl.lastAccess.Before(cutoff) {
			delete(s.limiters, key)
		}
	}
}

func tooMany(w http.ResponseWriter) {
	http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
}

// RateLimitByIP applies per-IP rate limiting ahead of authentication. Uses
// chi's RealIP middleware value via r.RemoteAddr.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet(ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set.allow(r.RemoteAddr) {
				tooMany(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-user rate limiting. Chain it after Auth; requests
// without a user pass through.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet(ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !set.allow(userID) {
				tooMany(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
