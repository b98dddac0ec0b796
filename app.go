package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/handlers"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/auth"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/cache"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/config"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/database"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/export"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/handler"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/repository"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/service"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/storage"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/logger"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/middleware"
)

var startTime = time.Now()

// runtime holds the dependencies built at startup. Optional ones stay nil.
type runtime struct {
	cfg         *config.Config
	mongo       *mongo.Client
	redis       *redis.Client
	repo        repository.Repository
	storeMode   string
	svc         service.Service
	verifier    middleware.Verifier
	revocations *auth.RedisRevocations
	exporter    handler.Exporter
}

// newRuntime connects to every configured backend. A Mongo store that cannot be
// reached falls back to the in-memory store so the API stays usable.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, func(), error) {
	rt := &runtime{cfg: cfg}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Redis.Enabled() {
		client, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
		} else {
			rt.redis = client
			closers = append(closers, func() { _ = client.Close() })
			logger.Infof("connected to Redis at %s", cfg.Redis.Addr())
		}
	}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		rt.repo, rt.storeMode = repository.NewMemoryRepo(), config.StoreMemory
	default:
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, cfg.MongoDB.ConnectAttempts, time.Second)
		if err != nil {
			logger.Warnf("cannot connect to MongoDB (%v), using memory-backed repo", err)
			rt.repo, rt.storeMode = repository.NewMemoryRepo(), "memory-fallback"
			break
		}
		closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
		col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
		repo, err := repository.NewMongoRepo(ctx, col)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init person repository: %w", err)
		}
		rt.mongo, rt.repo, rt.storeMode = client, repo, config.StoreMongo
	}

	var c cache.Cache
	switch cfg.Cache.Driver {
	case config.CacheMemory:
		c = cache.NewMemory(cfg.Cache.TTL)
	case config.CacheRedis:
		if rt.redis != nil {
			c = cache.NewRedis(rt.redis, "cache:people:")
		} else {
			logger.Warnf("CACHE_DRIVER=redis but Redis is unavailable; lookups are not cached")
		}
	}
	rt.svc = service.NewService(rt.repo, service.Options{Cache: c, CacheTTL: cfg.Cache.TTL})

	var chain auth.Chain
	if cfg.Keycloak.Enabled() {
		ver, err := auth.NewOIDCVerifier(ctx, cfg.Keycloak.Issuer(), cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if cfg.JWT.Secret != "" {
		ver, err := auth.NewHMACVerifier(cfg.JWT.Secret)
		if err != nil {
			logger.Warnf("failed to initialize HS256 verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if len(chain) > 0 {
		rt.verifier = chain
		rt.revocations = auth.NewRedisRevocations(rt.redis)
		if !rt.revocations.Enabled() {
			logger.Warnf("Redis unavailable; token revocation is disabled")
		}
	}

	if cfg.MinIO.Enabled() {
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("export storage unavailable: %v", err)
		} else {
			rt.exporter = export.New(rt.svc, st)
		}
	}

	return rt, cleanup, nil
}

// newRouter wires middleware, ops endpoints and the people API.
func newRouter(rt *runtime) *gin.Engine {
	cfg := rt.cfg
	r := gin.New()

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rt.redis != nil {
			r.Use(middleware.RedisRateLimitMiddleware(rt.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", readyHandler(rt))

	var guard []gin.HandlerFunc
	if rt.verifier != nil {
		authMW := middleware.AuthMiddleware(rt.verifier, rt.revocations)
		guard = append(guard, authMW)
		auth.RegisterRevokeRoute(r, rt.revocations, authMW)
	} else {
		logger.Warnf("no token verifier configured; mutating routes are unauthenticated")
	}

	handlers.RegisterSwagger(r)
	handler.RegisterPersonRoutes(r, rt.svc, guard...)
	handler.RegisterExportRoutes(r, rt.exporter, guard...)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// readyHandler answers 200 when the store is usable and every configured
// optional dependency responds. A memory fallback is reported as degraded.
func readyHandler(rt *runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		ready := true
		deps := gin.H{"store": rt.storeMode}
		if rt.mongo != nil {
			ok := database.PingMongo(ctx, rt.mongo) == nil
			deps["mongo"] = ok
			ready = ready && ok
		}
		if rt.cfg.Redis.Enabled() {
			ok := rt.redis != nil && rt.redis.Ping(ctx).Err() == nil
			deps["redis"] = ok
			ready = ready && ok
		}
		if rt.cfg.Keycloak.Enabled() || rt.cfg.JWT.Secret != "" {
			deps["auth"] = rt.verifier != nil
			ready = ready && rt.verifier != nil
		}
		deps["exports"] = rt.exporter != nil

		status := "ready"
		if rt.storeMode == "memory-fallback" {
			status = "degraded"
		}
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	}
}
