package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-risk-monitor/pkg/config"
)

const pingTimeout = 5 * time.Second

// NewRedis returns a configured Redis client. The client is closed when the initial ping fails.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := Ping(context.Background(), client); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Ping checks the client with a bounded timeout. A nil client reports healthy.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
