// Package main runs the Raffily HTTP API with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BenGovier/RewardLabsStaging-sub001/config"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/analytics"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/auth"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/businessraffles"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/emaillogs"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/entries"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/middleware"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/notify"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/raffles"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/realtime"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/scheduler"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/uploads"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/winners"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/database"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/queue"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/redis"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/response"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Media storage is optional; uploads answer 500 and media cleanup is skipped without it.
	var (
		media     raffles.MediaRemover
		uploadDst uploads.Storage
	)
	if cfg.AWS.AccessKeyID != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PublicBaseURL:        cfg.AWS.MediaPublicBaseURL,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			media, uploadDst = s3Client, s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := notify.NewNotifier(jobQueue, logger)
	locker := redis.NewLocker(rdb.Client, "lock:")

	// Repositories
	userRepo := auth.NewRepository(pool)
	raffleRepo := raffles.NewRepository(pool)
	assignmentRepo := businessraffles.NewRepository(pool)
	entryRepo := entries.NewRepository(pool)
	winnerRepo := winners.NewRepository(pool)
	emailLogRepo := emaillogs.NewRepository(pool)

	// Services
	assignmentSvc := businessraffles.NewService(assignmentRepo, raffleRepo, cfg.Server.PublicBaseURL, logger)
	raffleSvc := raffles.NewService(raffleRepo, assignmentSvc, media, logger)
	accountSvc := auth.NewService(userRepo, jwtService, assignmentSvc, notifier, logger)
	entrySvc := entries.NewService(entryRepo, assignmentSvc, raffleRepo, notifier, hub, logger)
	engine := winners.NewEngine(winnerRepo, entryRepo, raffleRepo, locker, notifier, hub, logger)
	lifecycle := scheduler.NewScheduler(raffleRepo, engine, cfg.Scheduler.CleanupInterval, logger)
	statsSvc := analytics.NewService(raffleRepo, entryRepo, winnerRepo, assignmentSvc, logger)

	// Handlers
	authHandler := auth.NewHandler(accountSvc, logger)
	raffleHandler := raffles.NewHandler(raffleSvc, logger)
	assignmentHandler := businessraffles.NewHandler(assignmentSvc, logger)
	entryHandler := entries.NewHandler(entrySvc, logger)
	winnerHandler := winners.NewHandler(engine, winnerRepo, logger)
	emailLogHandler := emaillogs.NewHandler(emailLogRepo, logger)
	uploadHandler := uploads.NewHandler(uploadDst, logger)
	statsHandler := analytics.NewHandler(statsSvc, logger)
	cronHandler := scheduler.NewHandler(lifecycle, cfg.Secrets.CronSecret, logger)

	wsValidate := func(token string) (uuid.UUID, models.Role, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, models.Role(claims.Role), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins()))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: login, entry pages and submissions
	router.POST("/auth/login", authHandler.Login)
	assignmentHandler.RegisterPublicRoutes(router)
	entryHandler.RegisterPublicRoutes(router)

	// Machine endpoints (shared secret headers)
	cronHandler.RegisterRoutes(router)
	router.POST("/webhooks/payment-completed",
		middleware.RequireSecret(middleware.HeaderWebhookSecret, cfg.Secrets.WebhookSecret),
		authHandler.PaymentCompleted)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole(models.RoleAdmin), authHandler.List)
		api.POST("/users", middleware.RequireRole(models.RoleAdmin), authHandler.CreateUser)

		raffleHandler.RegisterRoutes(api)
		assignmentHandler.RegisterRoutes(api)
		entryHandler.RegisterRoutes(api)
		winnerHandler.RegisterRoutes(api)
		emailLogHandler.RegisterRoutes(api)
		uploadHandler.RegisterRoutes(api)
		statsHandler.RegisterRoutes(api)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, wsValidate, cfg.Server.CORSOrigins()))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
