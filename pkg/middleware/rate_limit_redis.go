package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/logger"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/metrics"
)

// fixedWindow counts requests per client key in Redis, one counter per window.
type fixedWindow struct {
	client  *redis.Client
	window  int64 // seconds
	allowed int64
	now     func() time.Time
}

func newFixedWindow(client *redis.Client, rps float64, burst int, window time.Duration) *fixedWindow {
	secs := int64(window.Seconds())
	if secs <= 0 {
		secs = 1
	}
	return &fixedWindow{
		client:  client,
		window:  secs,
		allowed: int64(rps*float64(secs)) + int64(burst),
		now:     time.Now,
	}
}

// hit records one request for key and reports whether it fits in the current window.
func (w *fixedWindow) hit(ctx context.Context, key string) (bool, error) {
	bucket := w.now().Unix() / w.window
	redisKey := fmt.Sprintf("rl:%s:%d", key, bucket)

	var incr *redis.IntCmd
	_, err := w.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		p.Expire(ctx, redisKey, time.Duration(w.window+1)*time.Second)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= w.allowed, nil
}

// RedisRateLimitMiddleware provides a fixed-window limiter shared by every
// replica. Each window allows floor(rps*window)+burst requests per client key.
// A nil client falls back to the in-process limiter.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	return fixedWindowMiddleware(newFixedWindow(client, rps, burst, window))
}

func fixedWindowMiddleware(fw *fixedWindow) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := fw.hit(c.Request.Context(), clientKey(c))
		if err != nil {
			logger.Warnf("rate limit: redis: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit check failed"})
			return
		}
		if !ok {
			c.Header("Retry-After", strconv.FormatInt(fw.window, 10))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
