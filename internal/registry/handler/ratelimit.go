package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long a client's bucket is kept after its last request.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter holds one token bucket per client key.
type keyedLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newKeyedLimiter(rps, burst int, now func() time.Time) *keyedLimiter {
	return &keyedLimiter{
		limiters:  make(map[string]*clientLimiter),
		rps:       rate.Limit(rps),
		burst:     burst,
		lastSweep: now(),
		now:       now,
	}
}

func (k *keyedLimiter) allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if now.Sub(k.lastSweep) > idleLimiterTTL/2 {
		for key, l := range k.limiters {
			if now.Sub(l.lastSeen) > idleLimiterTTL {
				delete(k.limiters, key)
			}
		}
		k.lastSweep = now
	}

	l, ok := k.limiters[key]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(k.rps, k.burst)}
		k.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size. Idle clients are dropped after 10 minutes.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	limiter := newKeyedLimiter(rps, burst, time.Now)

	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
