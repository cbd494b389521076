package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"SHAREDMAIL_GRAPH_BASE_URL",
		"SHAREDMAIL_GRAPH_TOKEN",
		"SHAREDMAIL_SERVER_HOST",
		"SHAREDMAIL_SERVER_PORT",
		"SHAREDMAIL_IMPERSONATION_HEADER_NAME",
		"SHAREDMAIL_IMPERSONATION_DEFAULT_USER",
		"SHAREDMAIL_CACHE_TTL",
		"SHAREDMAIL_CACHE_BACKEND",
		"SHAREDMAIL_PROBE_TIMEOUT",
		"SHAREDMAIL_PROBE_BATCH_SIZE",
		"SHAREDMAIL_LOG_LEVEL",
		"SHAREDMAIL_LOG_DEVELOPMENT",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	clearEnv := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv()

		// 目录服务地址是唯一的必填项
		os.Setenv("SHAREDMAIL_GRAPH_BASE_URL", "https://graph.example.com/v1.0")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "https://graph.example.com/v1.0", cfg.Graph.BaseURL)
		assert.Equal(t, "x-impersonate-user", cfg.Impersonation.HeaderName)
		assert.Empty(t, cfg.Impersonation.DefaultUser)
		assert.True(t, cfg.Impersonation.ValidateExistence)
		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.Equal(t, "memory", cfg.Cache.Backend)
		assert.Equal(t, 5*time.Second, cfg.Probe.Timeout)
		assert.Equal(t, 5, cfg.Probe.BatchSize)
		assert.Equal(t, 999, cfg.Probe.PageSize)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnv()

		os.Setenv("SHAREDMAIL_GRAPH_BASE_URL", "https://graph.example.com/v1.0")
		os.Setenv("SHAREDMAIL_SERVER_HOST", "127.0.0.1")
		os.Setenv("SHAREDMAIL_SERVER_PORT", "9090")
		os.Setenv("SHAREDMAIL_IMPERSONATION_HEADER_NAME", "x-acting-user")
		os.Setenv("SHAREDMAIL_IMPERSONATION_DEFAULT_USER", "fallback@example.com")
		os.Setenv("SHAREDMAIL_CACHE_TTL", "30m")
		os.Setenv("SHAREDMAIL_PROBE_TIMEOUT", "2s")
		os.Setenv("SHAREDMAIL_PROBE_BATCH_SIZE", "10")
		os.Setenv("SHAREDMAIL_LOG_LEVEL", "debug")
		os.Setenv("SHAREDMAIL_LOG_DEVELOPMENT", "true")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "x-acting-user", cfg.Impersonation.HeaderName)
		assert.Equal(t, "fallback@example.com", cfg.Impersonation.DefaultUser)
		assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, 2*time.Second, cfg.Probe.Timeout)
		assert.Equal(t, 10, cfg.Probe.BatchSize)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Log.Development)
	})

	t.Run("缺少目录服务地址时报错", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "graph.base_url")
	})

	t.Run("缓存TTL低于下限时钳到下限", func(t *testing.T) {
		clearEnv()

		os.Setenv("SHAREDMAIL_GRAPH_BASE_URL", "https://graph.example.com/v1.0")
		os.Setenv("SHAREDMAIL_CACHE_TTL", "10s")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, MinCacheTTL, cfg.Cache.TTL)
	})

	t.Run("非法缓存后端报错", func(t *testing.T) {
		clearEnv()

		os.Setenv("SHAREDMAIL_GRAPH_BASE_URL", "https://graph.example.com/v1.0")
		os.Setenv("SHAREDMAIL_CACHE_BACKEND", "memcached")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("非法TTL格式报错", func(t *testing.T) {
		clearEnv()

		os.Setenv("SHAREDMAIL_GRAPH_BASE_URL", "https://graph.example.com/v1.0")
		os.Setenv("SHAREDMAIL_CACHE_TTL", "not-a-duration")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
	})
}
