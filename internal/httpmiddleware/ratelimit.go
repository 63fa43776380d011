package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenBucket is an in-memory per-client limiter. Each limiter instance has its own
// buckets, so the relay can run a stricter one than the rest of the API.
type TokenBucket struct {
	name     string
	capacity float64
	perSec   float64
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket allows bursts of capacity and refills perMinute tokens a minute.
// capacity <= 0 means perMinute.
func NewTokenBucket(name string, capacity, perMinute int, logger *zap.Logger) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenBucket{
		name:     name,
		capacity: float64(capacity),
		perSec:   float64(perMinute) / 60,
		logger:   logger,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware enforces the limit per client IP.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			l.logger.Warn("rate limited", zap.String("limiter", l.name), zap.String("client_ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again shortly"})
			return
		}
		c.Next()
	}
}

// Allow takes one token for key.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.state[key] = b
	}
	b.tokens += now.Sub(b.last).Seconds() * l.perSec
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
