package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"podcaster/internal/config"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("cache: miss")

const dialTimeout = 5 * time.Second

// RedisCache 以 JSON 保存任务快照
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 连接并 ping，失败时关闭连接
func NewRedisCache(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	return &RedisCache{client: client}, nil
}

// Set 写入 value 的 JSON 编码
func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// Get 解码到 dest，key 不存在时返回 ErrMiss
func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal cache value %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

const (
	SynthesisTaskCacheKeyPrefix = "synthesis_task:"
	SynthesisTaskCacheTTL       = 30 * time.Minute
)

// SynthesisTaskCacheKey 合成任务快照的 key
func SynthesisTaskCacheKey(id string) string {
	return SynthesisTaskCacheKeyPrefix + id
}
