package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/tokens"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/middleware"
)

const secret = "test-secret-32-bytes-should-be-long-enough"

func TestHMACVerifier_AcceptsIssuedToken(t *testing.T) {
	v, err := NewHMACVerifier(secret)
	require.NoError(t, err)
	raw, err := tokens.Issue(secret, "cli-user", time.Minute)
	require.NoError(t, err)

	tok, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "cli-user", claims["sub"])
}

func TestHMACVerifier_Rejects(t *testing.T) {
	v, err := NewHMACVerifier(secret)
	require.NoError(t, err)
	ctx := context.Background()

	wrong, err := tokens.Issue("some-other-secret-32-bytes-xxxxxxx", "u", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, wrong)
	require.Error(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = v.Verify(ctx, noExp)
	require.Error(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Minute).Unix()}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = v.Verify(ctx, hs512)
	require.Error(t, err)

	_, err = v.Verify(ctx, "not.a.jwt")
	require.Error(t, err)

	_, err = NewHMACVerifier("")
	require.Error(t, err)
}

func TestChain(t *testing.T) {
	a, _ := NewHMACVerifier("secret-a-32-bytes-xxxxxxxxxxxxxxxxx")
	b, _ := NewHMACVerifier("secret-b-32-bytes-xxxxxxxxxxxxxxxxx")
	raw, err := tokens.Issue("secret-b-32-bytes-xxxxxxxxxxxxxxxxx", "u", time.Minute)
	require.NoError(t, err)

	_, err = Chain{a, b}.Verify(context.Background(), raw)
	require.NoError(t, err)
	_, err = Chain{a}.Verify(context.Background(), raw)
	require.Error(t, err)
	_, err = Chain{}.Verify(context.Background(), raw)
	require.Error(t, err)
}

func TestRedisRevocations(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	rev := NewRedisRevocations(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()
	token := "access-token-1"
	require.NoError(t, rev.Revoke(ctx, token, 2*time.Second))

	ok, err := rev.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, m.Exists(revocationPrefix+token), "raw tokens are not stored")

	m.FastForward(3 * time.Second)
	ok, err = rev.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisRevocations_NoClientNoop(t *testing.T) {
	rev := NewRedisRevocations(nil)
	ctx := context.Background()
	require.NoError(t, rev.Revoke(ctx, "t", time.Second))
	ok, err := rev.IsRevoked(ctx, "t")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevokeRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	rev := NewRedisRevocations(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	v, err := NewHMACVerifier(secret)
	require.NoError(t, err)
	guard := middleware.AuthMiddleware(v, rev)

	g := gin.New()
	RegisterRevokeRoute(g, rev, guard)
	g.GET("/me", guard, func(c *gin.Context) { c.Status(http.StatusOK) })

	raw, err := tokens.Issue(secret, "cli-user", 10*time.Minute)
	require.NoError(t, err)
	call := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, call(http.MethodGet, "/me"))
	require.Equal(t, http.StatusNoContent, call(http.MethodPost, "/api/auth/revoke"))
	require.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/me"))

	ttl := m.TTL(revocationKey(raw))
	require.Greater(t, ttl, 9*time.Minute)
	require.LessOrEqual(t, ttl, 10*time.Minute)
}

func TestRemaining(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	require.Equal(t, maxRevocationTTL, remaining(map[string]interface{}{}, now))
	require.Equal(t, time.Minute, remaining(map[string]interface{}{"exp": float64(now.Add(time.Minute).Unix())}, now))
	require.Equal(t, time.Second, remaining(map[string]interface{}{"exp": float64(now.Add(-time.Hour).Unix())}, now))
	require.Equal(t, maxRevocationTTL, remaining(map[string]interface{}{"exp": float64(now.Add(48 * time.Hour).Unix())}, now))
}

func TestRevokeRouteWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rev := NewRedisRevocations(nil)
	require.False(t, rev.Enabled())
	v, err := NewHMACVerifier(secret)
	require.NoError(t, err)

	g := gin.New()
	RegisterRevokeRoute(g, rev, middleware.AuthMiddleware(v, rev))
	raw, err := tokens.Issue(secret, "cli-user", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/revoke", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
