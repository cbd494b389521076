package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sharedmail/backend/internal/config"
	"sharedmail/backend/internal/discovery"
	"sharedmail/backend/internal/health"
	"sharedmail/backend/internal/middleware"
	"sharedmail/backend/internal/monitoring"
	"sharedmail/backend/internal/resolver"
	"sharedmail/backend/internal/storage/diag"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config    *config.Config
	Resolver  *resolver.Resolver
	Cache     *discovery.Cache
	DiagStore *diag.Store // 可为 nil（诊断落盘未启用）
	Metrics   *monitoring.Metrics
	Health    *health.Checker
	Logger    *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 * 1024 * 1024))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			deps.Config.Impersonation.HeaderName, "X-API-Key",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 指标采集
	monitor := middleware.NewMonitoringMiddleware(deps.Metrics)
	router.Use(monitor.HTTPMetrics())

	// 身份传播：把请求头里的代理身份挂到请求上下文
	impersonation := middleware.NewImpersonation(deps.Config.Impersonation.HeaderName)
	router.Use(impersonation.Propagate())

	// 健康检查与指标端点
	router.GET("/healthz/live", gin.WrapF(deps.Health.LiveEndpoint))
	router.GET("/healthz/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// 创建处理器
	mailboxHandler := NewMailboxHandler(
		deps.Resolver,
		deps.Cache,
		deps.Config.Impersonation.HeaderName,
		deps.Metrics,
		deps.Logger,
	)
	adminHandler := NewAdminHandler(deps.Cache, deps.DiagStore)

	// 创建中间件
	adminAuth := middleware.NewAdminAuth(deps.Config.Admin.APIKey)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/identity", mailboxHandler.ResolveIdentity)
		v1.GET("/mailboxes", mailboxHandler.ListMailboxes)
	}

	// 管理接口（静态 API Key 认证）
	admin := v1.Group("/admin")
	admin.Use(adminAuth.RequireAPIKey())
	{
		admin.GET("/cache/stats", adminHandler.CacheStats)
		admin.DELETE("/cache", adminHandler.ClearCache)
		admin.GET("/diagnostics", adminHandler.ListDiagnostics)
	}

	return router
}
