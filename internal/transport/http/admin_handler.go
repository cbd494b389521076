package httptransport

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sharedmail/backend/internal/discovery"
	"sharedmail/backend/internal/storage/diag"
)

// AdminHandler 运维管理处理器
type AdminHandler struct {
	cache *discovery.Cache
	diag  *diag.Store // 可为 nil（诊断落盘未启用）
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(cache *discovery.Cache, diagStore *diag.Store) *AdminHandler {
	return &AdminHandler{
		cache: cache,
		diag:  diagStore,
	}
}

// CacheStats 返回发现缓存的只读统计
//
// GET /api/v1/admin/cache/stats
func (h *AdminHandler) CacheStats(c *gin.Context) {
	Success(c, h.cache.Stats(c.Request.Context()))
}

// ClearCache 丢弃全部缓存条目
//
// DELETE /api/v1/admin/cache
func (h *AdminHandler) ClearCache(c *gin.Context) {
	if err := h.cache.ClearCache(c.Request.Context()); err != nil {
		InternalError(c, MsgCacheClearFailed)
		return
	}
	SuccessWithMsg(c, MsgCacheCleared, nil)
}

// ListDiagnostics 按身份查询最近的探测诊断记录
//
// GET /api/v1/admin/diagnostics?identity=...&limit=...
func (h *AdminHandler) ListDiagnostics(c *gin.Context) {
	if h.diag == nil {
		NotFound(c, "诊断落盘未启用")
		return
	}

	identity := strings.ToLower(strings.TrimSpace(c.Query("identity")))
	if identity == "" {
		BadRequest(c, "缺少 identity 参数")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))

	records, err := h.diag.ListByIdentity(c.Request.Context(), identity, limit)
	if err != nil {
		InternalError(c, MsgDiagnosticsFailed)
		return
	}

	Success(c, gin.H{
		"identity": identity,
		"records":  records,
		"count":    len(records),
	})
}
