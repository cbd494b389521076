package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sharedmail/backend/internal/discovery"
	"sharedmail/backend/internal/middleware"
	"sharedmail/backend/internal/monitoring"
	"sharedmail/backend/internal/resolver"
)

// MailboxHandler 身份解析与邮箱发现处理器
type MailboxHandler struct {
	resolver   *resolver.Resolver
	cache      *discovery.Cache
	headerName string
	metrics    *monitoring.Metrics
	log        *zap.Logger
}

// NewMailboxHandler 创建邮箱处理器
func NewMailboxHandler(res *resolver.Resolver, cache *discovery.Cache, headerName string, metrics *monitoring.Metrics, log *zap.Logger) *MailboxHandler {
	return &MailboxHandler{
		resolver:   res,
		cache:      cache,
		headerName: headerName,
		metrics:    metrics,
		log:        log,
	}
}

// ResolveIdentity 解析当前请求应当代理的身份
//
// GET /api/v1/identity
func (h *MailboxHandler) ResolveIdentity(c *gin.Context) {
	headers := middleware.MetaHeaders(c, h.headerName)

	result, err := h.resolver.Resolve(c.Request.Context(), headers)
	if err != nil {
		h.metrics.RecordResolution(resolutionSource(err), "error")
		status, msg := resolutionStatus(err)
		c.JSON(status, Response{
			Code: status,
			Msg:  msg,
			Data: gin.H{"detail": err.Error()},
		})
		return
	}

	h.metrics.RecordResolution(string(result.Source), "ok")
	Success(c, gin.H{
		"identity": result.Identity.Raw,
		"source":   result.Source,
	})
}

// ListMailboxes 返回身份可访问的全部邮箱
//
// GET /api/v1/mailboxes
// 解析身份后优先命中发现缓存，未命中时执行完整发现。
func (h *MailboxHandler) ListMailboxes(c *gin.Context) {
	headers := middleware.MetaHeaders(c, h.headerName)

	result, err := h.resolver.Resolve(c.Request.Context(), headers)
	if err != nil {
		h.metrics.RecordResolution(resolutionSource(err), "error")
		status, msg := resolutionStatus(err)
		c.JSON(status, Response{
			Code: status,
			Msg:  msg,
			Data: gin.H{"detail": err.Error()},
		})
		return
	}
	h.metrics.RecordResolution(string(result.Source), "ok")

	records, err := h.cache.GetMailboxes(c.Request.Context(), result.Identity)
	if err != nil {
		// 个人邮箱获取失败是发现的唯一致命错误
		h.log.Error("mailbox discovery failed",
			zap.String("identity", result.Identity.Canonical()),
			zap.Error(err),
		)
		c.JSON(502, Response{
			Code: CodeBadGateway,
			Msg:  MsgDiscoveryFailed,
			Data: gin.H{"detail": err.Error()},
		})
		return
	}

	Success(c, gin.H{
		"identity":  result.Identity.Raw,
		"source":    result.Source,
		"mailboxes": records,
		"count":     len(records),
	})
}

// resolutionSource 从解析错误中提取来源标签（指标用）
func resolutionSource(err error) string {
	var formatErr *resolver.FormatError
	var notFoundErr *resolver.NotFoundError

	switch {
	case errors.As(err, &formatErr):
		return string(formatErr.Source)
	case errors.As(err, &notFoundErr):
		return string(notFoundErr.Source)
	default:
		return "none"
	}
}
