package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moodlog-insights/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss 表示缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// KVStore 抽象的 KV 存储（用于在单元测试中替换 Redis）
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore 基于 go-redis 的 KV 实现
type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Cache 当前周报缓存（宿主应用展示时免去一次数据库往返）
type Cache struct {
	kv     KVStore
	logger *zap.Logger
}

// NewCache 创建周报缓存
func NewCache(kv KVStore, logger *zap.Logger) *Cache {
	return &Cache{
		kv:     kv,
		logger: logger,
	}
}

func currentReviewKey(userID string) string {
	return fmt.Sprintf("moodlog:user:%s:review:current", userID)
}

// SetCurrent 缓存当前周报（TTL 为一周，下次构建时覆盖）
func (c *Cache) SetCurrent(ctx context.Context, userID string, review *models.WeeklyReview) error {
	jsonData, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("failed to marshal review: %w", err)
	}

	if err := c.kv.Set(ctx, currentReviewKey(userID), string(jsonData), 7*24*time.Hour); err != nil {
		return fmt.Errorf("failed to set review cache: %w", err)
	}

	c.logger.Debug("Cached current review",
		zap.String("user_id", userID),
		zap.String("review_id", review.ID),
	)
	return nil
}

// GetCurrent 读取缓存的当前周报，不存在时返回 ErrCacheMiss
func (c *Cache) GetCurrent(ctx context.Context, userID string) (*models.WeeklyReview, error) {
	raw, err := c.kv.Get(ctx, currentReviewKey(userID))
	if err != nil {
		return nil, err
	}

	var review models.WeeklyReview
	if err := json.Unmarshal([]byte(raw), &review); err != nil {
		return nil, fmt.Errorf("corrupt review cache: %w", err)
	}
	return &review, nil
}
