package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/BaSui01/streamflow/api/handlers"
	"github.com/BaSui01/streamflow/config"
	"github.com/BaSui01/streamflow/engine"
	"github.com/BaSui01/streamflow/formatter"
	"github.com/BaSui01/streamflow/internal/cache"
	"github.com/BaSui01/streamflow/internal/metrics"
	"github.com/BaSui01/streamflow/internal/server"
	"github.com/BaSui01/streamflow/internal/telemetry"
	"github.com/BaSui01/streamflow/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 StreamFlow 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 流处理引擎与格式化器
	engine     *engine.Engine
	formatters *formatter.Registry

	// Handlers
	streamsHandler *handlers.StreamsHandler
	adminHandler   *handlers.AdminHandler
	healthHandler  *handlers.HealthHandler
	diagnosticsHub *handlers.DiagnosticsHub

	// 指标收集器与遥测
	metricsCollector *metrics.Collector
	otelProviders    *telemetry.Providers

	// Redis 结果缓存（可选）
	cacheManager *cache.Manager
	resultCache  *cache.ResultCache

	// 后台 goroutine 生命周期管理
	hubCancel         context.CancelFunc
	rateLimiterCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("streamflow", s.logger)

	// 2. 初始化 Redis 结果缓存（可选）
	s.initResultCache()

	// 3. 初始化流处理引擎
	if err := s.initEngine(); err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	// 4. 初始化 Handlers
	s.initHandlers()

	// 5. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 6. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("result_cache_enabled", s.resultCache != nil),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initResultCache 初始化 Redis 结果缓存。
// 连接失败时降级为纯内存模式，终态结果仅按保留期驻留引擎内部。
func (s *Server) initResultCache() {
	if !s.cfg.Redis.Enabled {
		s.logger.Info("Redis result cache disabled, terminal results kept in memory only")
		return
	}

	manager, err := cache.NewManager(cache.Config{
		Addr:         s.cfg.Redis.Addr,
		Password:     s.cfg.Redis.Password,
		DB:           s.cfg.Redis.DB,
		DefaultTTL:   s.cfg.Redis.ResultTTL,
		PoolSize:     s.cfg.Redis.PoolSize,
		MinIdleConns: s.cfg.Redis.MinIdleConns,
		TLSEnabled:   s.cfg.Redis.TLSEnabled,
	}, s.logger)
	if err != nil {
		s.logger.Warn("Redis not available, result cache disabled", zap.Error(err))
		return
	}

	s.cacheManager = manager
	s.resultCache = cache.NewResultCache(manager, s.cfg.Redis.ResultTTL)
	s.logger.Info("Redis result cache initialized",
		zap.String("addr", s.cfg.Redis.Addr),
		zap.Duration("result_ttl", s.cfg.Redis.ResultTTL),
	)
}

// initEngine 初始化流处理引擎
func (s *Server) initEngine() error {
	engineCfg := engine.Config{
		WorkerCount:           s.cfg.Engine.WorkerCount,
		BufferSizeBytes:       s.cfg.Engine.BufferSizeBytes,
		BufferPoolCapacity:    s.cfg.Engine.BufferPoolCapacity,
		BackpressureThreshold: s.cfg.Engine.BackpressureThreshold,
		MaxConcurrentStreams:  s.cfg.Engine.MaxConcurrentStreams,
		ChunkTimeout:          s.cfg.Engine.ChunkTimeout,
		StreamTimeout:         s.cfg.Engine.StreamTimeout,
		ResultRetention:       s.cfg.Engine.ResultRetention,
		SupervisorInterval:    s.cfg.Engine.SupervisorInterval,
		EnableCompression:     s.cfg.Engine.EnableCompression,
		EnableMetrics:         s.cfg.Engine.EnableMetrics,
		SuccessRateFloor:      s.cfg.Engine.SuccessRateFloor,
		BackpressureCeiling:   s.cfg.Engine.BackpressureCeiling,
	}

	opts := []engine.Option{
		engine.WithMetricsCollector(s.metricsCollector),
	}
	if s.resultCache != nil {
		opts = append(opts, engine.WithResultSink(s.resultCache))
	}
	if s.cfg.Telemetry.Enabled {
		streamMetrics, err := observability.NewStreamMetrics()
		if err != nil {
			s.logger.Warn("failed to init OTel stream metrics", zap.Error(err))
		} else {
			opts = append(opts, engine.WithObservability(streamMetrics))
		}
	}

	eng, err := engine.New(engineCfg, s.logger, opts...)
	if err != nil {
		return err
	}

	s.engine = eng
	s.formatters = formatter.NewRegistry()

	s.logger.Info("Engine initialized",
		zap.Int("workers", engineCfg.WorkerCount),
		zap.Int("max_concurrent_streams", engineCfg.MaxConcurrentStreams),
		zap.Strings("formatters", s.formatters.List()),
	)
	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.streamsHandler = handlers.NewStreamsHandler(s.engine, s.formatters, s.logger)
	s.adminHandler = handlers.NewAdminHandler(s.engine, s.logger)

	// 健康检查 handler：引擎自检 + 可选 Redis 探活
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewEngineHealthCheck(s.engine))
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.NewRedisHealthCheck("redis", s.cacheManager.Ping))
	}

	// 诊断推送 hub
	s.diagnosticsHub = handlers.NewDiagnosticsHub(s.engine, handlers.DiagnosticsHubConfig{
		PushInterval: s.cfg.Server.WSPushInterval,
		MaxConns:     s.cfg.Server.WSMaxConns,
	}, s.metricsCollector, s.logger)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	s.hubCancel = hubCancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.diagnosticsHub.Run(hubCtx)
	}()

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查与版本端点
	// ========================================
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 流生命周期 API
	// ========================================
	mux.HandleFunc("POST /v1/streams", s.streamsHandler.HandleCreate)
	mux.HandleFunc("GET /v1/streams", s.streamsHandler.HandleList)
	mux.HandleFunc("POST /v1/streams/{id}/chunks", s.streamsHandler.HandleSubmitChunk)
	mux.HandleFunc("GET /v1/streams/{id}/result", s.streamsHandler.HandleResult)
	mux.HandleFunc("DELETE /v1/streams/{id}", s.streamsHandler.HandleCancel)
	mux.HandleFunc("GET /v1/streams/{id}/active", s.streamsHandler.HandleActive)

	// ========================================
	// 管理与诊断 API
	// ========================================
	mux.HandleFunc("GET /v1/statistics", s.adminHandler.HandleStatistics)
	mux.HandleFunc("POST /v1/statistics/reset", s.adminHandler.HandleStatisticsReset)
	mux.HandleFunc("GET /v1/diagnostics", s.adminHandler.HandleDiagnostics)
	mux.HandleFunc("GET /v1/diagnostics/ws", s.diagnosticsHub.HandleDiagnosticsWS)
	mux.HandleFunc("PUT /v1/config", s.adminHandler.HandleConfigUpdate)
	mux.HandleFunc("POST /v1/config/preset/{name}", s.adminHandler.HandleConfigPreset)

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	}
	switch {
	case s.cfg.Server.APIKey != "":
		middlewares = append(middlewares, APIKeyAuth(s.cfg.Server.APIKey, skipAuthPaths, s.logger))
		s.logger.Info("API key authentication enabled")
	case s.cfg.Server.JWTSecret != "":
		middlewares = append(middlewares, JWTAuth(s.cfg.Server.JWTSecret, skipAuthPaths, s.logger))
		s.logger.Info("JWT authentication enabled")
	default:
		s.logger.Warn("no API key or JWT secret configured, authentication disabled")
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	middlewares = append(middlewares, MetricsMiddleware(s.metricsCollector))

	handler := Chain(mux, middlewares...)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout, // 2x ReadTimeout
		MaxHeaderBytes:  1 << 20,                      // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	// 启动服务器（非阻塞）；证书齐备时启用 HTTPS
	if s.cfg.Server.CertFile != "" && s.cfg.Server.KeyFile != "" {
		if err := s.httpManager.StartTLS(s.cfg.Server.CertFile, s.cfg.Server.KeyFile); err != nil {
			return err
		}
		s.logger.Info("HTTPS server started", zap.Int("port", s.cfg.Server.HTTPPort))
		return nil
	}

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metricsCollector.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	// 使用 httpManager 的 WaitForShutdown（它会监听信号）
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	// 执行清理
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 1. 停止诊断推送与 rate limiter 清理 goroutine
	if s.hubCancel != nil {
		s.hubCancel()
	}
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 2. 并行关闭 HTTP 与 Metrics 服务器
	var g errgroup.Group
	if s.httpManager != nil {
		g.Go(func() error { return s.httpManager.Shutdown(ctx) })
	}
	if s.metricsManager != nil {
		g.Go(func() error { return s.metricsManager.Shutdown(ctx) })
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Server shutdown error", zap.Error(err))
	}

	// 3. 排空并关闭引擎（处理中的流等待至超时）
	if s.engine != nil {
		if err := s.engine.Close(ctx); err != nil {
			s.logger.Error("Engine shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭 Redis 连接
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}

	// 5. 刷新遥测数据
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	// 6. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
