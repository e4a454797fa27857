package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/todo-api/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitMiddleware counts requests per key in fixed windows shared by
// every replica. A window admits rps*window+burst requests. A nil client
// selects the in-process limiter.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	secs := int64(window / time.Second)
	if secs <= 0 {
		secs = 1
	}
	limit := int64(rps*float64(secs)) + int64(burst)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		now := time.Now().Unix()
		key := "rl:" + limiterKey(c) + ":" + strconv.FormatInt(now/secs, 10)

		pipe := client.TxPipeline()
		count := pipe.Incr(ctx, key)
		// outlive the window so a late INCR never recreates the key without a TTL
		pipe.Expire(ctx, key, time.Duration(secs+1)*time.Second)
		if _, err := pipe.Exec(ctx); err != nil {
			abort(c, fmt.Errorf("rate limit check: %w", err))
			return
		}

		if count.Val() > limit {
			c.Header("Retry-After", strconv.FormatInt(secs-now%secs, 10))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			abort(c, rateLimited())
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
