// Package resolver 从多个优先级来源解析"代理身份"。
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sharedmail/backend/internal/domain"
	"sharedmail/backend/internal/requestctx"
)

// DefaultHeaderName 默认的身份请求头名称
const DefaultHeaderName = "x-impersonate-user"

// ErrNoSourceConfigured 所有来源都没有提供可用身份。
var ErrNoSourceConfigured = errors.New("no impersonation source configured")

// FormatError 身份语法校验失败，携带命中的来源名称。
type FormatError struct {
	Source domain.IdentitySource
	Value  string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("identity %q from source %s is not a valid email address: %v", e.Value, e.Source, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// NotFoundError 存在性校验拒绝了身份，携带命中的来源名称。
type NotFoundError struct {
	Source   domain.IdentitySource
	Identity string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("identity %q from source %s not found in directory: %v", e.Identity, e.Source, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Validator 可选的身份存在性校验协作方。
type Validator interface {
	ValidateUser(ctx context.Context, email string) error
}

// Resolver 按固定优先级解析代理身份。
//
// 来源顺序: 请求头 → 请求上下文 → 环境变量配置。
// 第一个非空来源立即进入校验，校验失败即整体失败，
// 不会继续尝试后面的来源。
type Resolver struct {
	headerName  string
	envIdentity string
	validator   Validator
	log         *zap.Logger
}

// Option 配置 Resolver 的可选项。
type Option func(*Resolver)

// WithHeaderName 覆盖身份请求头名称。
func WithHeaderName(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.headerName = name
		}
	}
}

// WithEnvIdentity 设置进程级配置的兜底身份。
func WithEnvIdentity(identity string) Option {
	return func(r *Resolver) {
		r.envIdentity = identity
	}
}

// WithValidator 设置存在性校验协作方。
func WithValidator(v Validator) Option {
	return func(r *Resolver) {
		r.validator = v
	}
}

// New 创建身份解析器。
func New(log *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		headerName: DefaultHeaderName,
		log:        log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve 解析当前调用应当代理的身份。
//
// metaHeaders 是大小写不敏感的请求头集合，请求上下文来源通过
// ctx 上的 requestctx 值读取。空白值视为该来源缺席，继续尝试
// 下一来源；非空值校验失败则直接返回错误。
func (r *Resolver) Resolve(ctx context.Context, metaHeaders map[string]string) (*domain.ResolutionResult, error) {
	for _, candidate := range r.sources(ctx, metaHeaders) {
		value := strings.TrimSpace(candidate.value)
		if value == "" {
			continue
		}
		return r.validate(ctx, value, candidate.source)
	}
	return nil, ErrNoSourceConfigured
}

type sourceValue struct {
	source domain.IdentitySource
	value  string
}

// sources 按优先级从高到低列出各来源的原始值。
func (r *Resolver) sources(ctx context.Context, metaHeaders map[string]string) []sourceValue {
	contextIdentity, _ := requestctx.ActingUser(ctx)

	return []sourceValue{
		{domain.SourceMetaHeader, headerValue(metaHeaders, r.headerName)},
		{domain.SourceHTTPContext, contextIdentity},
		{domain.SourceEnvVar, r.envIdentity},
	}
}

// validate 对命中的来源值做语法校验和可选的存在性校验。
func (r *Resolver) validate(ctx context.Context, value string, source domain.IdentitySource) (*domain.ResolutionResult, error) {
	identity, err := domain.NewIdentity(value)
	if err != nil {
		return nil, &FormatError{Source: source, Value: value, Err: err}
	}

	if r.validator != nil {
		if err := r.validator.ValidateUser(ctx, identity.Canonical()); err != nil {
			return nil, &NotFoundError{Source: source, Identity: identity.Raw, Err: err}
		}
	}

	r.log.Debug("resolved impersonated user",
		zap.String("identity", identity.Canonical()),
		zap.String("source", string(source)),
	)

	return &domain.ResolutionResult{Identity: identity, Source: source}, nil
}

// headerValue 大小写不敏感地查找请求头。
func headerValue(headers map[string]string, name string) string {
	if headers == nil {
		return ""
	}
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
