package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sharedmail/backend/internal/domain"
)

const redisKeyPrefix = "discovery:"

// RedisStore 基于 Redis 的缓存存储。
//
// 多副本部署时让发现结果在实例间共享。条目按其 ExpiresAt 设置
// Redis 过期时间，过期后由 Redis 自行回收。
type RedisStore struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisStore 创建并验证 Redis 缓存存储。
func NewRedisStore(addr, password string, db int, log *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, log: log}, nil
}

// Ping 检查 Redis 连通性（健康检查用）。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (*domain.CacheEntry, bool) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("redis cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		s.log.Warn("redis cache entry corrupted", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &entry, true
}

func (s *RedisStore) Set(ctx context.Context, key string, entry *domain.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisStore) Entries(ctx context.Context) []domain.CacheEntry {
	var entries []domain.CacheEntry

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var entry domain.CacheEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		s.log.Warn("redis cache scan failed", zap.Error(err))
	}
	return entries
}
