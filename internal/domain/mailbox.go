package domain

import (
	"time"
)

// MailboxKind 邮箱访问分类。
type MailboxKind string

const (
	KindPersonal  MailboxKind = "personal"  // 身份自己的邮箱
	KindShared    MailboxKind = "shared"    // 共享邮箱（无许可证 + 可直接访问）
	KindDelegated MailboxKind = "delegated" // 被授予日历或发送委托的邮箱
)

// Permission 邮箱操作权限。
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionSend  Permission = "send"
)

// MailboxRecord 表示身份可以访问的一个邮箱。
type MailboxRecord struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"displayName"`
	Kind        MailboxKind  `json:"kind"`
	Permissions []Permission `json:"permissions"`
}

// CacheEntry 表示一次发现结果的缓存条目。
//
// 条目只会被整体替换，永远不会部分更新：一次发现要么完整成功
// 写入新条目，要么失败保留旧条目不变。
type CacheEntry struct {
	Identity     string          `json:"identity"` // 规范形式（小写）
	DiscoveredAt time.Time       `json:"discoveredAt"`
	ExpiresAt    time.Time       `json:"expiresAt"`
	Records      []MailboxRecord `json:"records"`
}

// Expired 判断条目在给定时刻是否已过期。
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Age 返回条目自发现以来的存活时间。
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.DiscoveredAt)
}
