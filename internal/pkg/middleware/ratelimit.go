package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client. Idle buckets expire
// from the cache.
type RateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
	logger   *zap.Logger
}

// NewRateLimiter allows perMinute requests per client with a burst of the
// same size.
func NewRateLimiter(logger *zap.Logger, perMinute int) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 20*time.Minute),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		logger:   logger,
	}
}

// getClientID prefers the mount id and falls back to the client IP.
func getClientID(c *gin.Context) string {
	if id := MountIDFromContext(c); id != "" {
		return id
	}
	return c.ClientIP()
}

// Allow reports whether clientID may make another request now.
func (rl *RateLimiter) Allow(clientID string) bool {
	var limiter *rate.Limiter
	if v, found := rl.limiters.Get(clientID); found {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		// another request may have raced us here
		if err := rl.limiters.Add(clientID, limiter, cache.DefaultExpiration); err != nil {
			if v, found := rl.limiters.Get(clientID); found {
				limiter = v.(*rate.Limiter)
			}
		}
	}
	rl.limiters.SetDefault(clientID, limiter)
	return limiter.Allow()
}

// Middleware rejects requests over the limit. onLimited renders the
// rejection; nil aborts with a bare 429.
func (rl *RateLimiter) Middleware(onLimited gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := getClientID(c)
		if rl.Allow(clientID) {
			c.Next()
			return
		}

		rl.logger.Warn("Rate limit exceeded",
			zap.String("client_id", clientID),
			zap.String("path", c.FullPath()))
		if onLimited != nil {
			onLimited(c)
			c.Abort()
			return
		}
		c.AbortWithStatus(http.StatusTooManyRequests)
	}
}
