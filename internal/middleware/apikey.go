package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminAuth 管理接口的静态 API Key 认证中间件
//
// 凭证体系（用户、令牌签发）不在本系统职责范围内，管理接口
// 只做最简单的共享密钥比对。
type AdminAuth struct {
	apiKey string
}

// NewAdminAuth 创建管理接口认证中间件
func NewAdminAuth(apiKey string) *AdminAuth {
	return &AdminAuth{apiKey: apiKey}
}

// RequireAPIKey 要求 X-API-Key 请求头携带正确的密钥
//
// 未配置密钥时管理接口整体禁用。
func (m *AdminAuth) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.apiKey == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "admin api disabled",
			})
			c.Abort()
			return
		}

		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(m.apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
