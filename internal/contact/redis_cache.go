package contact

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "contact:"

// RedisCache 基于 Redis 的共享缓存,多实例部署时使用
// Redis 不可用时退化为缓存未命中
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get 获取缓存
func (c *RedisCache) Get(ctx context.Context, id string) (*Contact, bool) {
	cached, err := c.rdb.Get(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("contact_id", id).Warn("contact cache read failed")
		}
		return nil, false
	}

	var contact Contact
	if err := json.Unmarshal([]byte(cached), &contact); err != nil {
		return nil, false
	}
	return &contact, true
}

// Set 设置缓存
func (c *RedisCache) Set(ctx context.Context, id string, contact *Contact) {
	data, err := json.Marshal(contact)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+id, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("contact_id", id).Warn("contact cache write failed")
	}
}

// Invalidate 删除单个联系人缓存
func (c *RedisCache) Invalidate(ctx context.Context, id string) {
	c.rdb.Del(ctx, redisKeyPrefix+id)
}

// Clear 删除所有联系人缓存
func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.rdb.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Warn("contact cache clear failed")
	}
}
