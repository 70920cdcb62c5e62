/*
Package limiter provides per-client rate limiting for the speech-backed endpoints.

Each client key (the profile id when authenticated, the client IP otherwise) owns a
token bucket. A background sweep drops buckets that have refilled, so idle clients
do not accumulate.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"speechquest/internal/pkg/auth/jwt"
	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/resp"
)

const sweepInterval = 3 * time.Minute

// KeyFunc derives the bucket key for a request.
type KeyFunc func(r *http.Request) string

// RateLimiter holds one token bucket per client key.
type RateLimiter struct {
	name string

	mu     sync.RWMutex
	limits map[string]*rate.Limiter

	r   rate.Limit
	b   int
	key KeyFunc

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a limiter allowing r events per second with burst b and starts its sweeper.
// A nil key falls back to ClientKey.
func New(name string, r rate.Limit, b int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ClientKey
	}
	l := &RateLimiter{
		name:   name,
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		key:    key,
		stop:   make(chan struct{}),
	}

	go l.sweep()

	return l
}

// GetLimiter returns the bucket for key, creating it on first use.
func (l *RateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limits[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists = l.limits[key]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limits[key] = limiter
	}
	return limiter
}

// Allow consumes one token for key.
func (l *RateLimiter) Allow(key string) bool {
	return l.GetLimiter(key).Allow()
}

// Size reports the number of tracked keys.
func (l *RateLimiter) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limits)
}

// Stop ends the sweeper goroutine.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *RateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			removed, remaining := l.prune(now)
			logx.Debug("Rate limiter sweep finished",
				"limiter", l.name,
				"removed", removed,
				"remaining", remaining,
			)
		}
	}
}

// prune drops buckets that are full again at now.
func (l *RateLimiter) prune(now time.Time) (removed, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, limiter := range l.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(l.limits, key)
			removed++
		}
	}
	return removed, len(l.limits)
}

// Middleware rejects requests over the limit with ErrRateLimitExceeded.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.key(r)) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey keys authenticated requests by profile and the rest by remote IP.
func ClientKey(r *http.Request) string {
	if payload := jwt.GetPayloadFromContext(r); payload != nil {
		return "profile:" + payload.ProfileID
	}
	return "ip:" + RemoteIP(r)
}

// RemoteIP extracts the host part of r.RemoteAddr.
func RemoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if ip == "" {
		ip = "unknown_ip"
	}
	return ip
}
