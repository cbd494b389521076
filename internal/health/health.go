// Package health 暴露存活和就绪探针。
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 可被健康检查探测的依赖。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker 健康检查器
type Checker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewChecker 创建健康检查器。
//
// directoryURL 参与就绪检查，redis 为 nil 时跳过 Redis 检查。
func NewChecker(directoryURL string, redis Pinger, logger *zap.Logger) *Checker {
	c := &Checker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	// goroutine 泄漏保护
	c.health.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(500))

	if directoryURL != "" {
		c.health.AddReadinessCheck("directory-service",
			healthcheck.HTTPGetCheck(directoryURL, 5*time.Second))
	}

	if redis != nil {
		c.health.AddReadinessCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return redis.Ping(ctx)
		})
	}

	return c
}

// LiveEndpoint 存活探针处理器
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪探针处理器
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.ReadyEndpoint(w, r)
}
