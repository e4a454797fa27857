package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/pkg/metrics"
	"golang.org/x/time/rate"
)

const CodeRateLimited = "application/rate-limited"

func rateLimited() *apperr.Error {
	return apperr.API("Too many requests.", CodeRateLimited, http.StatusTooManyRequests)
}

// limiterKey prefers the authenticated subject (NAT-friendly) and falls back to the client IP.
func limiterKey(c *gin.Context) string {
	if uid := UID(c); uid != "" {
		return "sub:" + uid
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// rps = allowed events per second, burst = maximum tokens in bucket. Each
// middleware instance owns its buckets.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var limiters sync.Map // map[string]*rate.Limiter
	get := func(key string) *rate.Limiter {
		v, _ := limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(rps), burst))
		return v.(*rate.Limiter)
	}
	return func(c *gin.Context) {
		if !get(limiterKey(c)).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			abort(c, rateLimited())
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
