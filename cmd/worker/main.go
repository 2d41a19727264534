// Package main runs the background worker: email delivery and the raffle lifecycle scheduler.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BenGovier/RewardLabsStaging-sub001/config"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/emaillogs"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/entries"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/notify"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/raffles"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/realtime"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/scheduler"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/winners"
	"github.com/BenGovier/RewardLabsStaging-sub001/internal/worker"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/database"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/queue"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/redis"
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

	jobQueue := queue.NewQueue(rdb.Client, logger)
	winnerRepo := winners.NewRepository(pool)
	processor := worker.NewEmailProcessor(
		worker.NewMailer(cfg.Email, logger),
		emaillogs.NewRepository(pool),
		winnerRepo,
		jobQueue,
		logger,
	)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("email worker started")

	if cfg.Scheduler.Enabled {
		raffleRepo := raffles.NewRepository(pool)
		// The hub only relays to Redis here; API instances fan events out to sockets.
		redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub := realtime.NewHub(logger, redisPubSub, nil)
		engine := winners.NewEngine(
			winnerRepo,
			entries.NewRepository(pool),
			raffleRepo,
			redis.NewLocker(rdb.Client, "lock:"),
			notify.NewNotifier(jobQueue, logger),
			hub,
			logger,
		)
		lifecycle := scheduler.NewScheduler(raffleRepo, engine, cfg.Scheduler.CleanupInterval, logger)
		go lifecycle.Run(workerCtx, cfg.Scheduler.Interval)
		logger.Info("scheduler started", zap.Duration("interval", cfg.Scheduler.Interval))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
