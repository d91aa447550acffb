package redis

import (
	"context"
	"fmt"
	"time"

	"sipenduk/common/config"

	"github.com/go-redis/redis/v8"
)

type Client = redis.Client

const defaultDialTimeout = 3 * time.Second

// NewRedisClient 只创建客户端，不建立连接
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dial,
	})
}

// Open 创建客户端并 PING；失败时关闭客户端
func Open(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	c := NewRedisClient(cfg)
	if err := Ping(ctx, c); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Addr, err)
	}
	return c, nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
