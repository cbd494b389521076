package httptransport

import (
	"errors"
	"net/http"

	"sharedmail/backend/internal/resolver"
)

// 通用错误消息
const (
	// 身份解析相关
	MsgNoSource         = "未配置任何身份来源"
	MsgInvalidIdentity  = "身份格式无效"
	MsgIdentityNotFound = "身份在目录中不存在"
	MsgResolveFailed    = "身份解析失败"

	// 发现相关
	MsgDiscoveryFailed = "个人邮箱获取失败，无法完成发现"

	// 管理接口相关
	MsgCacheCleared      = "缓存已清空"
	MsgCacheClearFailed  = "清空缓存失败"
	MsgDiagnosticsFailed = "获取诊断记录失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)

// resolutionStatus 把身份解析错误映射为 HTTP 状态码和中文消息
//
// 解析错误本身已携带来源名称，英文详情由处理器放进 data.detail。
func resolutionStatus(err error) (int, string) {
	var formatErr *resolver.FormatError
	var notFoundErr *resolver.NotFoundError

	switch {
	case errors.Is(err, resolver.ErrNoSourceConfigured):
		return http.StatusBadRequest, MsgNoSource
	case errors.As(err, &formatErr):
		return http.StatusBadRequest, MsgInvalidIdentity
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, MsgIdentityNotFound
	default:
		return http.StatusInternalServerError, MsgResolveFailed
	}
}
