package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sharedmail/backend/internal/cache"
	"sharedmail/backend/internal/config"
	"sharedmail/backend/internal/discovery"
	"sharedmail/backend/internal/graph"
	"sharedmail/backend/internal/health"
	"sharedmail/backend/internal/logger"
	"sharedmail/backend/internal/monitoring"
	"sharedmail/backend/internal/probe"
	"sharedmail/backend/internal/resolver"
	"sharedmail/backend/internal/storage/diag"
	httptransport "sharedmail/backend/internal/transport/http"
)

// main 启动身份解析与邮箱发现服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting sharedmail server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("graph_base_url", cfg.Graph.BaseURL),
	)

	// 目录服务客户端
	client := graph.NewHTTPClient(
		cfg.Graph.BaseURL,
		graph.StaticTokenSource(cfg.Graph.Token),
		cfg.Graph.RequestsPerSecond,
		log.Named("graph"),
	)
	directory := graph.NewDirectory(client)

	// 身份解析器（按配置挂载存在性校验）
	resolverOpts := []resolver.Option{
		resolver.WithHeaderName(cfg.Impersonation.HeaderName),
		resolver.WithEnvIdentity(cfg.Impersonation.DefaultUser),
	}
	if cfg.Impersonation.ValidateExistence {
		resolverOpts = append(resolverOpts, resolver.WithValidator(graph.NewUserValidator(directory)))
	}
	identityResolver := resolver.New(log.Named("resolver"), resolverOpts...)

	// 监控指标
	metrics := monitoring.NewMetrics()

	// 探测诊断存储（可选）
	var diagStore *diag.Store
	if cfg.Diagnostics.DBPath != "" {
		diagStore, err = diag.NewStore(cfg.Diagnostics.DBPath, log.Named("diag"))
		if err != nil {
			panic(fmt.Sprintf("failed to open diagnostics store: %v", err))
		}
		log.Info("probe diagnostics enabled",
			zap.String("path", cfg.Diagnostics.DBPath),
			zap.Duration("retention", cfg.Diagnostics.Retention),
		)
	}

	// 探测链与发现引擎
	chain := probe.NewChain(directory, cfg.Probe.Timeout, log.Named("probe"))
	engineOpts := []discovery.EngineOption{
		discovery.WithBatchSize(cfg.Probe.BatchSize),
		discovery.WithPageSize(cfg.Probe.PageSize),
		discovery.WithMetrics(metrics),
	}
	if diagStore != nil {
		engineOpts = append(engineOpts, discovery.WithRecorder(diagStore))
	}
	engine := discovery.NewEngine(directory, chain, log.Named("discovery"), engineOpts...)

	// 缓存存储后端
	var cacheStore cache.Store
	var redisPinger health.Pinger
	switch cfg.Cache.Backend {
	case "redis":
		redisStore, err := cache.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, log.Named("cache"))
		if err != nil {
			panic(fmt.Sprintf("failed to initialize redis cache: %v", err))
		}
		cacheStore = redisStore
		redisPinger = redisStore
		log.Info("using redis discovery cache", zap.String("address", cfg.Redis.Address))
	default:
		cacheStore = cache.NewMemoryStore()
		log.Info("using in-memory discovery cache")
	}

	discoveryCache := discovery.NewCache(
		engine,
		cacheStore,
		cfg.Cache.TTL,
		log.Named("cache"),
		discovery.WithCacheMetrics(metrics),
	)

	// 健康检查
	checker := health.NewChecker(cfg.Graph.BaseURL, redisPinger, log.Named("health"))

	// HTTP 路由
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:    cfg,
		Resolver:  identityResolver,
		Cache:     discoveryCache,
		DiagStore: diagStore,
		Metrics:   metrics,
		Health:    checker,
		Logger:    log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期诊断记录 goroutine
	if diagStore != nil {
		group.Go(func() error {
			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()

			log.Info("starting diagnostics purge task", zap.Duration("interval", 1*time.Hour))

			for {
				select {
				case <-groupCtx.Done():
					log.Info("diagnostics purge task stopped")
					return nil
				case <-ticker.C:
					count, err := diagStore.Purge(groupCtx, cfg.Diagnostics.Retention)
					if err != nil {
						log.Error("failed to purge probe diagnostics", zap.Error(err))
					} else if count > 0 {
						log.Info("purged probe diagnostics", zap.Int64("count", count))
					}
				}
			}
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
