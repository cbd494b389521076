package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"sharedmail/backend/internal/domain"
	"sharedmail/backend/internal/requestctx"
)

// MockValidator 模拟存在性校验协作方
type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) ValidateUser(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func TestResolvePrecedence(t *testing.T) {
	log := zap.NewNop()

	t.Run("请求头优先于其他来源", func(t *testing.T) {
		r := New(log, WithEnvIdentity("c@d.com"))
		ctx := requestctx.WithActingUser(context.Background(), "b@c.com")

		result, err := r.Resolve(ctx, map[string]string{"x-impersonate-user": "a@b.com"})

		assert.NoError(t, err)
		assert.Equal(t, "a@b.com", result.Identity.Raw)
		assert.Equal(t, domain.SourceMetaHeader, result.Source)
	})

	t.Run("请求头缺席时使用上下文", func(t *testing.T) {
		r := New(log, WithEnvIdentity("g@h.com"))
		ctx := requestctx.WithActingUser(context.Background(), "e@f.com")

		result, err := r.Resolve(ctx, nil)

		assert.NoError(t, err)
		assert.Equal(t, "e@f.com", result.Identity.Raw)
		assert.Equal(t, domain.SourceHTTPContext, result.Source)
	})

	t.Run("前两个来源缺席时使用环境配置", func(t *testing.T) {
		r := New(log, WithEnvIdentity("g@h.com"))

		result, err := r.Resolve(context.Background(), nil)

		assert.NoError(t, err)
		assert.Equal(t, "g@h.com", result.Identity.Raw)
		assert.Equal(t, domain.SourceEnvVar, result.Source)
	})

	t.Run("空白值视为缺席并尝试下一来源", func(t *testing.T) {
		r := New(log, WithEnvIdentity("g@h.com"))
		ctx := requestctx.WithActingUser(context.Background(), "   ")

		result, err := r.Resolve(ctx, map[string]string{"x-impersonate-user": "  "})

		assert.NoError(t, err)
		assert.Equal(t, "g@h.com", result.Identity.Raw)
		assert.Equal(t, domain.SourceEnvVar, result.Source)
	})

	t.Run("所有来源缺席时报SourceExhausted", func(t *testing.T) {
		r := New(log)

		result, err := r.Resolve(context.Background(), nil)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrNoSourceConfigured)
	})
}

func TestResolveValidation(t *testing.T) {
	log := zap.NewNop()

	t.Run("格式错误指明来源且不回退", func(t *testing.T) {
		// 上下文来源的值非法，即使环境配置里有合法值也必须整体失败
		r := New(log, WithEnvIdentity("g@h.com"))
		ctx := requestctx.WithActingUser(context.Background(), "not-an-email")

		result, err := r.Resolve(ctx, nil)

		assert.Nil(t, result)
		var formatErr *FormatError
		assert.ErrorAs(t, err, &formatErr)
		assert.Equal(t, domain.SourceHTTPContext, formatErr.Source)
		assert.Contains(t, err.Error(), "http-context")
	})

	t.Run("请求头格式错误指明meta-header", func(t *testing.T) {
		r := New(log)

		_, err := r.Resolve(context.Background(), map[string]string{"x-impersonate-user": "bogus"})

		var formatErr *FormatError
		assert.ErrorAs(t, err, &formatErr)
		assert.Equal(t, domain.SourceMetaHeader, formatErr.Source)
	})

	t.Run("存在性校验拒绝时指明来源", func(t *testing.T) {
		validator := new(MockValidator)
		validator.On("ValidateUser", mock.Anything, "ghost@example.com").
			Return(errors.New("user not found"))

		r := New(log, WithValidator(validator))

		_, err := r.Resolve(context.Background(), map[string]string{"x-impersonate-user": "Ghost@example.com"})

		var notFoundErr *NotFoundError
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, domain.SourceMetaHeader, notFoundErr.Source)
		validator.AssertExpectations(t)
	})

	t.Run("存在性校验通过时返回结果", func(t *testing.T) {
		validator := new(MockValidator)
		validator.On("ValidateUser", mock.Anything, "real@example.com").Return(nil)

		r := New(log, WithValidator(validator))

		result, err := r.Resolve(context.Background(), map[string]string{"x-impersonate-user": "real@example.com"})

		assert.NoError(t, err)
		assert.Equal(t, "real@example.com", result.Identity.Raw)
		validator.AssertExpectations(t)
	})

	t.Run("未配置校验器时只做语法校验", func(t *testing.T) {
		r := New(log)

		result, err := r.Resolve(context.Background(), map[string]string{"x-impersonate-user": "anyone@example.com"})

		assert.NoError(t, err)
		assert.Equal(t, "anyone@example.com", result.Identity.Raw)
	})
}

func TestResolveHeaderHandling(t *testing.T) {
	log := zap.NewNop()

	t.Run("请求头名大小写不敏感", func(t *testing.T) {
		r := New(log)

		result, err := r.Resolve(context.Background(), map[string]string{"X-Impersonate-User": "a@b.com"})

		assert.NoError(t, err)
		assert.Equal(t, "a@b.com", result.Identity.Raw)
		assert.Equal(t, domain.SourceMetaHeader, result.Source)
	})

	t.Run("自定义请求头名生效", func(t *testing.T) {
		r := New(log, WithHeaderName("x-acting-user"))

		result, err := r.Resolve(context.Background(), map[string]string{"x-acting-user": "a@b.com"})

		assert.NoError(t, err)
		assert.Equal(t, domain.SourceMetaHeader, result.Source)

		// 默认头名不再被识别
		_, err = r.Resolve(context.Background(), map[string]string{"x-impersonate-user": "a@b.com"})
		assert.ErrorIs(t, err, ErrNoSourceConfigured)
	})
}
