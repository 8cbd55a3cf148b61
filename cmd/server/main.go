package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"demonlist/internal/config"
	"demonlist/internal/handler"
	"demonlist/internal/notify"
	"demonlist/internal/points"
	"demonlist/internal/repository"
	"demonlist/internal/service"
	"demonlist/pkg/database"
	"demonlist/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig()

	// 初始化数据库连接
	mysqlDB, err := database.NewMySQLConnection(cfg.MySQLDSN, cfg.MySQLMaxConns)
	if err != nil {
		log.Fatal("Failed to connect to MySQL:", err)
	}
	defer mysqlDB.Close()

	redisClient, err := database.NewRedisConnection(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPoolSize)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// 初始化存储
	mysqlRepo := repository.NewMySQLRepository(mysqlDB)
	redisRepo := repository.NewRedisRepository(redisClient)

	// 初始化通知
	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL)
	}

	// 初始化分值曲线
	curve := points.Curve{
		BasePoints: cfg.CurveBasePoints,
		DecayRate:  cfg.CurveDecayRate,
		FloorValue: cfg.CurveFloorValue,
		TailRank:   cfg.CurveTailRank,
	}
	if err := curve.Validate(); err != nil {
		log.Fatal("Invalid points curve configuration:", err)
	}

	var credit points.CreditStrategy = points.LinearCredit{}
	if cfg.CreditMode == "full_only" {
		credit = points.FullOnlyCredit{}
	}

	// 初始化服务
	demonlistService := service.NewDemonlistService(service.Options{
		Curve:                curve,
		Credit:               credit,
		LevelStore:           mysqlRepo,
		RecordStore:          mysqlRepo,
		Board:                redisRepo,
		Notifier:             notifier,
		EnableCache:          cfg.EnableCache,
		CacheSize:            cfg.CacheSize,
		DefaultMinPercentage: cfg.DefaultMinPercentage,
		SnapshotInterval:     cfg.SnapshotInterval,
	})

	// 启动时从 MySQL 重建内存状态（保证数据一致性）
	if cfg.RebuildOnStart {
		if err := demonlistService.Rebuild(context.Background()); err != nil {
			logger.NewLogger("main").Error("Failed to rebuild from storage", "error", err)
		}
	}

	demonlistService.StartBackgroundTasks()

	// 初始化处理器
	httpHandler := handler.NewHTTPHandler(demonlistService)

	// 设置 Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())

	// 公开路由
	api := router.Group("/demonlist")
	{
		api.GET("/list", httpHandler.GetMainList)
		api.GET("/legacy", httpHandler.GetLegacyList)
		api.POST("/records", httpHandler.SubmitRecord)
		api.GET("/players/:playerId/score", httpHandler.GetPlayerScore)
		api.GET("/players/:playerId/rank", httpHandler.GetPlayerRank)
		api.GET("/leaderboard/top/:n", httpHandler.GetTopN)
		api.GET("/scoreboard/:n", httpHandler.GetScoreboard)
		api.GET("/health", httpHandler.HealthCheck)
	}

	// 管理路由
	admin := router.Group("/demonlist/admin")
	{
		admin.POST("/levels", httpHandler.AddLevel)
		admin.PUT("/levels/:levelId/move", httpHandler.MoveLevel)
		admin.POST("/levels/:levelId/legacy", httpHandler.PromoteToLegacy)
		admin.POST("/levels/:levelId/restore", httpHandler.RestoreFromLegacy)
		admin.POST("/records/:recordId/verify", httpHandler.VerifyRecord)
		admin.POST("/records/:recordId/reject", httpHandler.RejectRecord)
		admin.POST("/rebuild", httpHandler.Rebuild)
		admin.GET("/cache/stats", httpHandler.GetCacheStats)
	}

	// 监控服务
	if cfg.MetricsEnabled {
		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", promhttp.Handler())
			log.Printf("Metrics server starting on :%s", cfg.MetricsPort)
			if err := http.ListenAndServe(":"+cfg.MetricsPort, metricsMux); err != nil {
				logger.NewLogger("main").Error("Metrics server failed", "error", err)
			}
		}()
	}

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Printf("Environment: %s", cfg.Environment)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 给服务器 5 秒时间完成当前请求
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
