package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/config"
)

// ConnectRedis returns a pinged client for cfg. Caller should Close it.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
