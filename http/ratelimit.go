package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	fisher "github.com/socialpay/fisher"
)

// minIdleTTL bounds how often idle buckets are swept
const minIdleTTL = time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IdentityLimiter keeps one token bucket per caller identity.
//
// Buckets unused for longer than it takes them to refill are dropped, so
// callers sending ever-new identities cannot grow the map without bound.
type IdentityLimiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewIdentityLimiter creates a limiter allowing rps requests per second with burst
func NewIdentityLimiter(rps float64, burst int) *IdentityLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IdentityLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: refillTime(rps, burst),
		now:     time.Now,
	}
}

// refillTime is how long an empty bucket takes to fill up again.
// A bucket idle that long behaves exactly like a new one.
func refillTime(rps float64, burst int) time.Duration {
	if rps <= 0 {
		return minIdleTTL
	}
	d := time.Duration(float64(burst) / rps * float64(time.Second))
	if d < minIdleTTL {
		return minIdleTTL
	}
	return d
}

// Allow reports whether key may make a request now
func (l *IdentityLimiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweepLocked(now)
	}
	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

// Len returns the number of buckets currently held
func (l *IdentityLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// sweepLocked drops buckets idle past the TTL. Must be called with lock held.
func (l *IdentityLimiter) sweepLocked(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.idleTTL {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}

// Middleware rate limits by initiator identity, falling back to client IP
func (l *IdentityLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderInitiatorID)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fisher.NewPaymentError(ErrCodeRateLimited, "too many requests", nil),
			})
			return
		}
		c.Next()
	}
}
