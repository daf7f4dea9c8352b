// Package main runs the scheduled quiz dispatch worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/poll-miniapp/backend/config"
	"github.com/poll-miniapp/backend/internal/dispatch"
	"github.com/poll-miniapp/backend/internal/quizzes"
	"github.com/poll-miniapp/backend/internal/telegram"
	"github.com/poll-miniapp/backend/internal/worker"
	"github.com/poll-miniapp/backend/pkg/database"
	"github.com/poll-miniapp/backend/pkg/queue"
	"github.com/poll-miniapp/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	tg, err := telegram.NewClient(cfg.Telegram, logger)
	if err != nil {
		logger.Fatal("telegram", zap.Error(err))
	}

	dispatcher := dispatch.NewDispatcher(tg, quizzes.NewRepository(pool), cfg.Telegram.SendTimeout, cfg.Schedule.Location, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewDispatchProcessor(jobQueue, dispatcher, cfg.Schedule.PollInterval, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started", zap.Duration("poll_interval", cfg.Schedule.PollInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-done
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
