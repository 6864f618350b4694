package mw

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"telehealth-calls/internal/auth"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyedRateLimiter keeps one token bucket per caller key.
// Idle buckets are swept so the map does not grow without bound.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	r       rate.Limit
	b       int
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		buckets: make(map[string]*bucket),
		r:       r,
		b:       b,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether key may perform one more request now.
func (l *KeyedRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bk, ok := l.buckets[key]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(l.r, l.b)}
		l.buckets[key] = bk
	}
	bk.lastSeen = now
	return bk.limiter.AllowN(now, 1)
}

// Sweep drops buckets that have been idle longer than the idle window.
func (l *KeyedRateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	n := 0
	for k, bk := range l.buckets {
		if bk.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// RateLimiter limits mutating call requests per authenticated user,
// falling back to the client IP before authentication has run.
func RateLimiter(l *KeyedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(callerKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "too many requests"})
			return
		}
		c.Next()
	}
}

func callerKey(c *gin.Context) string {
	ctx := c.Request.Context()
	if id, err := auth.UserID(ctx); err == nil {
		role, _ := auth.Role(ctx)
		return role + ":" + strconv.FormatInt(id, 10)
	}
	return "ip:" + c.ClientIP()
}
