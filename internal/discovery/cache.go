package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sharedmail/backend/internal/cache"
	"sharedmail/backend/internal/domain"
	"sharedmail/backend/internal/monitoring"
)

const (
	// DefaultTTL 缓存条目的默认生存时间
	DefaultTTL = time.Hour
	// MinTTL 生存时间下限
	MinTTL = 60 * time.Second
)

// Discoverer 执行一次完整的邮箱发现。
type Discoverer interface {
	Discover(ctx context.Context, identity domain.Identity) ([]domain.MailboxRecord, error)
}

// Cache 用 TTL 缓存包装发现引擎。
//
// 并发读到同一个未缓存身份时，两个调用各自独立跑一次完整发现，
// 后写者覆盖先写者（last-write-wins）。这是沿用的既定行为，
// 需要 single-flight 语义的调用方应在外层自行加。
type Cache struct {
	engine  Discoverer
	store   cache.Store
	ttl     time.Duration
	log     *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

// CacheOption 配置 Cache 的可选项。
type CacheOption func(*Cache)

// WithCacheMetrics 挂载监控指标。
func WithCacheMetrics(m *monitoring.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithClock 覆盖时钟（测试用）。
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache 创建发现缓存。
//
// ttl <= 0 时使用 DefaultTTL，低于 MinTTL 时钳到 MinTTL。
func NewCache(engine Discoverer, store cache.Store, ttl time.Duration, log *zap.Logger, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl < MinTTL {
		ttl = MinTTL
	}

	c := &Cache{
		engine: engine,
		store:  store,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMailboxes 返回身份可访问的邮箱列表，优先命中缓存。
//
// 缓存键是身份的规范（小写）形式，大小写不同的同一地址命中
// 同一条目。未过期的条目直接返回，不产生任何网络活动。
func (c *Cache) GetMailboxes(ctx context.Context, identity domain.Identity) ([]domain.MailboxRecord, error) {
	key := identity.Canonical()

	if entry, ok := c.store.Get(ctx, key); ok && !entry.Expired(c.now()) {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		c.log.Debug("mailbox cache hit",
			zap.String("identity", key),
			zap.Duration("age", entry.Age(c.now())),
		)
		return entry.Records, nil
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	records, err := c.engine.Discover(ctx, identity)
	if err != nil {
		// 发现失败时保留旧条目不动
		return nil, err
	}

	now := c.now()
	entry := &domain.CacheEntry{
		Identity:     key,
		DiscoveredAt: now,
		ExpiresAt:    now.Add(c.ttl),
		Records:      records,
	}
	if err := c.store.Set(ctx, key, entry); err != nil {
		c.log.Warn("failed to write discovery cache", zap.String("identity", key), zap.Error(err))
	}

	return records, nil
}

// ClearCache 丢弃全部缓存条目。
func (c *Cache) ClearCache(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// EntryStats 单个缓存条目的只读统计。
type EntryStats struct {
	Identity  string        `json:"identity"`
	Age       time.Duration `json:"age"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Expired   bool          `json:"expired"`
	Records   int           `json:"records"`
}

// Stats 缓存的只读统计视图。
type Stats struct {
	Size    int          `json:"size"`
	TTL     string       `json:"ttl"`
	Entries []EntryStats `json:"entries"`
}

// Stats 返回缓存统计，无任何修改副作用。
func (c *Cache) Stats(ctx context.Context) Stats {
	now := c.now()
	entries := c.store.Entries(ctx)

	stats := Stats{
		Size:    len(entries),
		TTL:     c.ttl.String(),
		Entries: make([]EntryStats, 0, len(entries)),
	}
	for _, entry := range entries {
		stats.Entries = append(stats.Entries, EntryStats{
			Identity:  entry.Identity,
			Age:       entry.Age(now),
			ExpiresAt: entry.ExpiresAt,
			Expired:   entry.Expired(now),
			Records:   len(entry.Records),
		})
	}
	return stats
}
