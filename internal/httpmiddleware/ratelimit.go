package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is an in-memory per-client token bucket. State lives in the
// process, so limits apply per instance; a shared Redis limiter would be the
// next step for a multi-instance deployment.
type RateLimiter struct {
	capacity float64
	perSec   float64

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter allows perMinute requests per client, bursting up to
// capacity.
func NewRateLimiter(capacity, perMinute int) *RateLimiter {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &RateLimiter{
		capacity: float64(capacity),
		perSec:   float64(perMinute) / 60,
		clients:  make(map[string]*clientBucket),
	}
}

// GinMiddleware enforces the limit keyed by client IP.
func (l *RateLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.clients[key]
	if !ok {
		l.clients[key] = &clientBucket{tokens: l.capacity - 1, seen: now}
		return true
	}

	b.tokens += now.Sub(b.seen).Seconds() * l.perSec
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
