package middleware

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gogotex/todo-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisLimitedEngine(client *redis.Client, rps float64, burst int, window time.Duration) *gin.Engine {
	r := newTestEngine()
	r.Use(RedisRateLimitMiddleware(client, rps, burst, window))
	r.GET("/r", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

func TestRedisRateLimitMiddleware(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	// one request per minute-long window
	r := redisLimitedEngine(client, 0, 1, time.Minute)

	rejected := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis"))
	require.Equal(t, http.StatusOK, hit(r, "/r").Code)

	w := hit(r, "/r")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"code":"application/rate-limited","message":"Too many requests."}`, w.Body.String())
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.True(t, retry >= 1 && retry <= 60, retry)
	assert.Equal(t, rejected+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis")))

	keys := m.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 61*time.Second, m.TTL(keys[0]))

	// the window key expires
	m.FastForward(2 * time.Minute)
	require.Equal(t, http.StatusOK, hit(r, "/r").Code)
}

func TestRedisRateLimitMiddlewareRedisDownIsInternal(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	m.Close()

	r := redisLimitedEngine(client, 1, 1, time.Second)
	w := hit(r, "/r")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "application/internal-error")
}

func TestRedisRateLimitMiddlewareNilClientFallsBackToMemory(t *testing.T) {
	r := redisLimitedEngine(nil, 0.5, 1, time.Second)
	require.Equal(t, http.StatusOK, hit(r, "/r").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/r").Code)
}
