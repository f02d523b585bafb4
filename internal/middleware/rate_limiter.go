package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	idleLimiterTTL  = 10 * time.Minute
	cleanupInterval = time.Minute

	defaultCallersPerIP = 4
)

// RateLimiterConfig configures rate limiting behavior
type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
	// KeyHeader names the header identifying the caller. The header is not
	// authenticated, so callers are keyed by client IP and header together.
	// Requests without it are limited by client IP.
	KeyHeader string
	// CallersPerIP scales the aggregate budget of one client IP over all
	// its callers. Defaults to 4.
	CallersPerIP int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterMap keeps one limiter per caller key
type limiterMap struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	config   RateLimiterConfig
}

func newLimiterMap(config RateLimiterConfig) *limiterMap {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.CallersPerIP <= 0 {
		config.CallersPerIP = defaultCallersPerIP
	}
	return &limiterMap{visitors: make(map[string]*visitor), config: config}
}

func (m *limiterMap) get(key string, now time.Time) *rate.Limiter {
	return m.getScaled(key, now, 1)
}

func (m *limiterMap) getScaled(key string, now time.Time, scale int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.visitors[key]
	if !ok {
		r := rate.Limit(m.config.RequestsPerSecond * float64(scale))
		v = &visitor{limiter: rate.NewLimiter(r, m.config.Burst*scale)}
		m.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// evict drops limiters idle for longer than idleLimiterTTL
func (m *limiterMap) evict(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, v := range m.visitors {
		if now.Sub(v.lastSeen) > idleLimiterTTL {
			delete(m.visitors, key)
			n++
		}
	}
	return n
}

// cleanup evicts idle limiters until ctx is done
func (m *limiterMap) cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.evict(now)
		}
	}
}

func tooManyRequests(c *gin.Context, limiter *rate.Limiter, now time.Time) {
	reservation := limiter.ReserveN(now, 1)
	retryAfter := reservation.DelayFrom(now).Seconds()
	reservation.CancelAt(now)

	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "Rate limit exceeded. Please try again later.",
		"retry_after": retryAfter,
	})
}

// RateLimiterMiddleware creates a rate limiting middleware. Idle limiters
// are evicted until ctx is done.
func RateLimiterMiddleware(ctx context.Context, config RateLimiterConfig) gin.HandlerFunc {
	limiters := newLimiterMap(config)
	go limiters.cleanup(ctx)
	return limiters.handler()
}

func (m *limiterMap) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		ip := c.ClientIP()
		caller := ""
		if m.config.KeyHeader != "" {
			caller = c.GetHeader(m.config.KeyHeader)
		}

		if caller == "" {
			if l := m.get("anon:"+ip, now); !l.AllowN(now, 1) {
				tooManyRequests(c, l, now)
				return
			}
			c.Next()
			return
		}

		// the IP budget is checked first so rotating caller headers cannot
		// mint limiters past it
		if l := m.getScaled("ip:"+ip, now, m.config.CallersPerIP); !l.AllowN(now, 1) {
			tooManyRequests(c, l, now)
			return
		}
		if l := m.get("caller:"+ip+"|"+caller, now); !l.AllowN(now, 1) {
			tooManyRequests(c, l, now)
			return
		}

		c.Next()
	}
}
