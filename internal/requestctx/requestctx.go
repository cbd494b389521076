// Package requestctx 在单条逻辑调用链上传播"代理身份"。
//
// 身份只挂在显式传递的 context.Context 上，不存在任何包级可变状态，
// 因此并发调用链之间天然隔离：一条链写入的身份对兄弟链不可见。
package requestctx

import (
	"context"
)

// 私有 key 类型，避免与其他包的 context 值冲突
type contextKey struct{}

var actingUserKey = contextKey{}

// WithActingUser 返回携带代理身份的派生上下文。
func WithActingUser(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, actingUserKey, identity)
}

// ActingUser 读取当前调用链上的代理身份。
//
// 未设置时返回 ("", false)。
func ActingUser(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(actingUserKey).(string)
	if !ok || identity == "" {
		return "", false
	}
	return identity, true
}

// RunWith 在挂载了指定身份的上下文中执行 fn 并返回其结果。
//
// fn 内部（包括它派生出的所有异步工作，只要继续传递 ctx）通过
// ActingUser 观察到的都是这里传入的 identity。
func RunWith[T any](ctx context.Context, identity string, fn func(ctx context.Context) (T, error)) (T, error) {
	return fn(WithActingUser(ctx, identity))
}
