package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/transport"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 30 * time.Minute

// IPRateLimiter keeps one token bucket per client address. It sits in front of
// the login endpoint and is independent of the per-account lockout.
type IPRateLimiter struct {
	*transport.BaseHandler
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(perSecond float64, burst int, lg *slog.Logger) *IPRateLimiter {
	return &IPRateLimiter{
		BaseHandler: transport.NewBaseHandler(lg),
		limit:       rate.Limit(perSecond),
		burst:       burst,
		now:         time.Now,
		limiters:    make(map[string]*clientLimiter),
	}
}

func (l *IPRateLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.limiters[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Sweep drops buckets idle for longer than the TTL and reports how many were removed.
func (l *IPRateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-limiterIdleTTL)
	removed := 0
	for key, c := range l.limiters {
		if c.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Handler keys buckets on the request's RemoteAddr. Mount it behind
// TrustedRealIP so forwarded headers only count when a known proxy sent them.
func (l *IPRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		now := l.now()
		res := l.limiterFor(key).ReserveN(now, 1)
		if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
			res.CancelAt(now)
			retryAfter := int(math.Ceil(delay.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			l.Logger.WarnContext(r.Context(), "login rate limit exceeded", "client_ip", key, "retry_after", retryAfter)
			l.WriteAppError(w, internal.NewRateLimitedError(retryAfter))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap().String()
	}
	if addr, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		return addr.Unmap().String()
	}
	return r.RemoteAddr
}
