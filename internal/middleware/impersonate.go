package middleware

import (
	"github.com/gin-gonic/gin"

	"sharedmail/backend/internal/requestctx"
)

// Impersonation 把请求头里的代理身份挂到请求上下文上
//
// 只做提取和传播，合法性校验由身份解析器在真正使用时进行。
// 每个请求有自己独立的 context，并发请求之间互不可见。
type Impersonation struct {
	headerName string
}

// NewImpersonation 创建身份传播中间件
func NewImpersonation(headerName string) *Impersonation {
	return &Impersonation{headerName: headerName}
}

// Propagate 提取身份请求头并写入请求上下文
func (m *Impersonation) Propagate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity := c.GetHeader(m.headerName); identity != "" {
			ctx := requestctx.WithActingUser(c.Request.Context(), identity)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// MetaHeaders 收集本次请求中与身份解析相关的请求头
//
// 传给解析器作为最高优先级来源。gin 的 GetHeader 本身就是
// 大小写不敏感的，这里保留原始头名。
func MetaHeaders(c *gin.Context, headerName string) map[string]string {
	headers := make(map[string]string, 1)
	if v := c.GetHeader(headerName); v != "" {
		headers[headerName] = v
	}
	return headers
}
