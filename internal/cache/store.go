// Package cache 提供发现结果缓存的存储后端。
package cache

import (
	"context"

	"sharedmail/backend/internal/domain"
)

// Store 缓存条目的存储接口。
//
// 条目只会被整体写入或整体读取，过期判断由调用方（发现缓存）
// 负责，存储层不主动剔除过期条目。
type Store interface {
	// Get 按规范身份键读取条目，不存在时返回 (nil, false)。
	Get(ctx context.Context, key string) (*domain.CacheEntry, bool)
	// Set 整体写入条目，覆盖同键的旧条目。
	Set(ctx context.Context, key string, entry *domain.CacheEntry) error
	// Clear 丢弃全部条目。
	Clear(ctx context.Context) error
	// Entries 返回当前全部条目的快照（用于统计视图）。
	Entries(ctx context.Context) []domain.CacheEntry
}
