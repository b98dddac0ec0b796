package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/metrics"
)

// limiterStore holds one token bucket per client key.
type limiterStore struct {
	m     sync.Map // map[string]*rate.Limiter
	rps   float64
	burst int
	now   func() time.Time
}

func newLimiterStore(rps float64, burst int) *limiterStore {
	return &limiterStore{rps: rps, burst: burst, now: time.Now}
}

func (s *limiterStore) allow(key string) bool {
	v, ok := s.m.Load(key)
	if !ok {
		v, _ = s.m.LoadOrStore(key, rate.NewLimiter(rate.Limit(s.rps), s.burst))
	}
	return v.(*rate.Limiter).AllowN(s.now(), 1)
}

// RateLimitMiddleware enforces a per-client token bucket in process memory.
// rps is the refill rate, burst the bucket size.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return tokenBucketMiddleware(newLimiterStore(rps, burst))
}

func tokenBucketMiddleware(store *limiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.allow(clientKey(c)) {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
