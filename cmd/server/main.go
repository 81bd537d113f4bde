package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"hostcal/config"
	"hostcal/internal/api/handler"
	"hostcal/internal/api/router"
	"hostcal/internal/repository"
	"hostcal/internal/scheduler"
	"hostcal/internal/service"
	"hostcal/pkg/broker"
	"hostcal/pkg/database"
	"hostcal/pkg/jwt"
	applogger "hostcal/pkg/logger"
	"hostcal/pkg/metrics"
	"hostcal/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
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
		zap.String("lease_backend", cfg.Sync.LeaseBackend),
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

	repo := repository.NewRepository(db)

	// 4. 连接 Redis（租约后端为 redis 时必需，否则仅用于限流，失败时降级运行）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		if cfg.Sync.LeaseBackend == config.LeaseBackendRedis {
			logger.Fatal("Redis 连接失败，无法使用 redis 租约后端", zap.Error(err))
		}
		logger.Warn("Redis 连接失败，公共订阅限流将不可用", zap.Error(err))
		rdb = nil
	}

	var lease service.Lease = repo.SyncLease
	if cfg.Sync.LeaseBackend == config.LeaseBackendRedis {
		lease = rdb
	}

	// 5. 同步事件发布（可选）
	var publisher service.EventPublisher
	pub := broker.NewPublisher(&cfg.Broker, logger)
	if pub != nil {
		publisher = pub
	}

	// 6. 依赖注入: Repository → Service → Handler
	m := metrics.New()
	fetcher := service.NewFeedFetcher(cfg.Sync.FetchTimeout, cfg.Sync.MaxFeedBytes)
	svc := service.NewService(cfg, repo, lease, fetcher, publisher, m, logger)
	h := handler.NewHandler(svc)
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 初始化路由
	engine, err := router.Setup(cfg, h, jwtMgr, rdb, m, logger)
	if err != nil {
		logger.Fatal("初始化路由失败", zap.Error(err))
	}

	// 8. 定时同步
	sched, err := scheduler.New(cfg.Sync.Cron, svc.Sync, cfg.Sync.LeaseTTL, logger)
	if err != nil {
		logger.Fatal("初始化定时同步失败", zap.Error(err))
	}
	sched.Start()

	// 9. 启动 HTTP 服务器（优雅关闭）
	// 手动同步需要等待所有渠道抓取完成，写超时留出余量
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Sync.FetchTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	sched.Stop(ctx)

	// 未判定的点击直接丢弃
	svc.Availability.Close()

	if pub != nil {
		pub.Close()
	}

	// 关闭数据库连接
	sqlDB.Close()

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
