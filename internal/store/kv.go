package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss 键不存在（或已过期）
var ErrMiss = errors.New("cache miss")

// scanBatch 每次 SCAN 的 COUNT 提示值，也是 MGET 的批大小
const scanBatch = 200

// KV 旧系统记录与公告缓存共用的键值存储
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	// MGet 返回与 keys 等长的切片；不存在的键对应 ok=false
	MGet(ctx context.Context, keys ...string) ([]Value, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

type Value struct {
	Data string
	OK   bool
}

// RedisKV go-redis 实现；测试中指向 miniredis
type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

func (r *RedisKV) MGet(ctx context.Context, keys ...string) ([]Value, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := r.c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(vals))
	for i, v := range vals {
		// 不存在的键为 nil；非字符串类型（hash/list）的键 MGET 同样返回 nil
		if s, ok := v.(string); ok {
			out[i] = Value{Data: s, OK: true}
		}
	}
	return out, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.c.Del(ctx, keys...).Err()
}

// ScanKeys SCAN 游标遍历，同一个键可能被返回多次，结果已去重
func (r *RedisKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	iter := r.c.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
