package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"campusconnect/backend/config"
	"campusconnect/backend/internal/api/handler"
	"campusconnect/backend/internal/api/router"
	"campusconnect/backend/internal/jobs"
	"campusconnect/backend/internal/repository"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/database"
	"campusconnect/backend/pkg/googleauth"
	"campusconnect/backend/pkg/jwt"
	applogger "campusconnect/backend/pkg/logger"
	"campusconnect/backend/pkg/pubsub"
	"campusconnect/backend/pkg/redis"
	"campusconnect/backend/pkg/storage"
	"campusconnect/backend/pkg/validate"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("CAMPUS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("broker_backend", cfg.Broker.Backend),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单、登录锁定与限流将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 头像存储
	store, err := storage.New(&cfg.Storage)
	if err != nil {
		logger.Fatal("初始化头像存储失败", zap.Error(err))
	}

	// 6. 实时事件总线
	broker, err := pubsub.NewBroker(&cfg.Broker, logger)
	if err != nil {
		logger.Fatal("初始化事件总线失败", zap.Error(err))
	}
	rootCtx, stopBroker := context.WithCancel(context.Background())
	defer stopBroker()
	if err := broker.Start(rootCtx); err != nil {
		logger.Fatal("启动事件总线失败", zap.Error(err))
	}

	// 7. 依赖注入: Repository → Service → Handler
	deps := service.Deps{
		Storage:   store,
		Publisher: broker,
	}
	if rdb != nil {
		deps.Tokens = rdb
	}
	if cfg.Google.ClientID != "" {
		deps.Google = googleauth.NewJWKSVerifier(cfg.Google.ClientID, cfg.Google.JWKSURL, logger)
	}

	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, deps, logger)

	if err := validate.RegisterGin(); err != nil {
		logger.Fatal("注册校验规则失败", zap.Error(err))
	}
	h := handler.NewHandler(cfg, svc, broker, logger)

	// 8. 初始化路由
	engine := router.Setup(cfg, router.Deps{
		Handler: h,
		Service: svc,
		JWT:     jwtMgr,
		Redis:   rdb,
		Storage: store,
	}, logger)

	// 9. 定时任务
	var cronMgr *jobs.Manager
	if cfg.Jobs.Enabled {
		cronMgr = jobs.NewManager(&cfg.Jobs, repo.Game, logger)
		if err := cronMgr.Start(); err != nil {
			logger.Fatal("启动定时任务失败", zap.Error(err))
		}
	}

	// 10. 启动 HTTP 服务器（优雅关闭）
	// SSE 与 WebSocket 为长连接，不设置写超时
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	if cronMgr != nil {
		cronMgr.Stop()
	}

	// 先关闭事件总线，让流式连接退出
	stopBroker()
	if err := broker.Close(); err != nil {
		logger.Warn("事件总线关闭异常", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if closeDB, _ := db.DB(); closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
