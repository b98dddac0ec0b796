package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/logger"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/middleware"
)

// maxRevocationTTL bounds the blacklist entry for tokens without an exp claim.
const maxRevocationTTL = 24 * time.Hour

// RegisterRevokeRoute mounts POST /api/auth/revoke. guard must be the auth
// middleware; the caller's own bearer token is revoked until it expires.
// Without a Redis client the route answers 503 and nothing is revoked.
func RegisterRevokeRoute(r *gin.Engine, rev *RedisRevocations, guard gin.HandlerFunc) {
	r.POST("/api/auth/revoke", guard, func(c *gin.Context) {
		if !rev.Enabled() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token revocation needs Redis"})
			return
		}
		raw := c.GetString(middleware.TokenKey)
		ttl := maxRevocationTTL
		if v, ok := c.Get(middleware.ClaimsKey); ok {
			if cm, ok := v.(map[string]interface{}); ok {
				ttl = remaining(cm, time.Now())
			}
		}
		if err := rev.Revoke(c.Request.Context(), raw, ttl); err != nil {
			logger.Errorf("auth: revoke: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// remaining returns how long the token stays valid, bounded to (1s, maxRevocationTTL].
func remaining(claims map[string]interface{}, now time.Time) time.Duration {
	exp, ok := claims["exp"].(float64)
	if !ok {
		return maxRevocationTTL
	}
	d := time.Unix(int64(exp), 0).Sub(now)
	if d < time.Second {
		return time.Second
	}
	if d > maxRevocationTTL {
		return maxRevocationTTL
	}
	return d
}
