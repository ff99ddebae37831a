package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/plansync/pkg/config"
	"github.com/compozy/plansync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

// NewRedis opens a client for the configured address and verifies it with a
// ping before returning.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, fmt.Errorf("redis config is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password.Value(),
		DB:       cfg.DB,
	})
	if err := ping(ctx, client, defaultPingTimeout); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.FromContext(ctx).Info("Redis connection established", "addr", cfg.Addr, "db", cfg.DB)
	return client, nil
}

func ping(ctx context.Context, client *redis.Client, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("pinging Redis server (timeout=%s): %w", timeout, err)
	}
	return nil
}
