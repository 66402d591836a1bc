package infrastructure

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"orderflow/internal/service/order/domain"
)

const statusKeyPrefix = "order:status:"

// RedisStatusCache 是订单状态的 Redis 读缓存。
// 投影写入时失效，查询未命中时回填。
type RedisStatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisStatusCache(cfg RedisConfig) *RedisStatusCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStatusCache{rdb: rdb, ttl: ttl}
}

func (c *RedisStatusCache) GetStatus(ctx context.Context, orderID string) (domain.Status, bool, error) {
	val, err := c.rdb.Get(ctx, statusKeyPrefix+orderID).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return domain.Status(val), true, nil
}

func (c *RedisStatusCache) SetStatus(ctx context.Context, orderID string, status domain.Status) error {
	return c.rdb.Set(ctx, statusKeyPrefix+orderID, string(status), c.ttl).Err()
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, statusKeyPrefix+orderID).Err()
}

func (c *RedisStatusCache) Close() error {
	return c.rdb.Close()
}
