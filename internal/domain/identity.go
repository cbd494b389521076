package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 身份验证相关的错误定义
var (
	ErrInvalidIdentity = errors.New("invalid identity format")
	ErrIdentityTooLong = errors.New("identity too long")
	ErrEmptyIdentity   = errors.New("identity must not be empty")
)

// RFC 5322 邮箱地址长度上限
const MaxIdentityLength = 254

// 宽松的 local@domain.tld 校验
//
// 远端目录服务才是地址是否真实存在的权威，这里只拦截明显不是
// 邮箱形状的输入，不做严格的 RFC 5322 解析。
var identityRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Identity 表示被代理操作的邮箱身份。
//
// Raw 保留调用方传入的原始大小写（用于展示和日志），
// 比较和缓存键一律使用 Canonical() 返回的小写形式。
type Identity struct {
	Raw string
}

// NewIdentity 校验并构造身份。
func NewIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identity{}, ErrEmptyIdentity
	}
	if len(trimmed) > MaxIdentityLength {
		return Identity{}, ErrIdentityTooLong
	}
	if !identityRegex.MatchString(trimmed) {
		return Identity{}, ErrInvalidIdentity
	}
	return Identity{Raw: trimmed}, nil
}

// Canonical 返回用于比较和缓存键的规范形式（小写）。
func (i Identity) Canonical() string {
	return strings.ToLower(i.Raw)
}

// Equals 按规范形式比较两个地址是否指向同一身份。
func (i Identity) Equals(other string) bool {
	return i.Canonical() == strings.ToLower(strings.TrimSpace(other))
}

// String 返回展示用的原始形式。
func (i Identity) String() string {
	return i.Raw
}

// ValidateIdentity 仅做语法校验，不构造 Identity 对象。
func ValidateIdentity(raw string) error {
	_, err := NewIdentity(raw)
	return err
}
