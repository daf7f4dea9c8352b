// Package main runs the quiz backend HTTP server: Telegram webhook, authoring API and live feed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/poll-miniapp/backend/config"
	"github.com/poll-miniapp/backend/internal/analytics"
	"github.com/poll-miniapp/backend/internal/auth"
	"github.com/poll-miniapp/backend/internal/dispatch"
	"github.com/poll-miniapp/backend/internal/generator"
	"github.com/poll-miniapp/backend/internal/groups"
	"github.com/poll-miniapp/backend/internal/linking"
	"github.com/poll-miniapp/backend/internal/middleware"
	"github.com/poll-miniapp/backend/internal/quizzes"
	"github.com/poll-miniapp/backend/internal/realtime"
	"github.com/poll-miniapp/backend/internal/telegram"
	"github.com/poll-miniapp/backend/internal/webhook"
	"github.com/poll-miniapp/backend/internal/worker"
	"github.com/poll-miniapp/backend/pkg/database"
	"github.com/poll-miniapp/backend/pkg/queue"
	"github.com/poll-miniapp/backend/pkg/redis"
	"github.com/poll-miniapp/backend/pkg/response"
	"github.com/poll-miniapp/backend/pkg/storage"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	tg, err := telegram.NewClient(cfg.Telegram, logger)
	if err != nil {
		logger.Fatal("telegram", zap.Error(err))
	}

	var objects analytics.ObjectStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			objects = s3Client
		}
	}

	jwtService := auth.NewJWTService(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessMinutes)*time.Minute,
		time.Duration(cfg.JWT.RefreshDays)*24*time.Hour,
	)

	// Live answer feed
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub)
	feed := realtime.NewAnswerFeed(hub, logger)

	// Stores
	accountRepo := auth.NewRepository(pool)
	linkRepo := linking.NewRepository(pool)
	groupRepo := groups.NewRepository(pool)
	quizRepo := quizzes.NewRepository(pool)
	analyticsRepo := analytics.NewRepository(pool)

	// Dispatch: immediate through the dispatcher, deferred through the Redis queue
	dispatcher := dispatch.NewDispatcher(tg, quizRepo, cfg.Telegram.SendTimeout, cfg.Schedule.Location, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	scheduler := worker.NewScheduler(jobQueue)

	webhookRouter := webhook.NewRouter(webhook.Deps{
		Links:     linkRepo,
		Accounts:  accountRepo,
		Groups:    groupRepo,
		Answers:   quizRepo,
		Notifier:  tg,
		Publisher: feed,
	}, cfg.Telegram, logger)

	authHandler := auth.NewHandler(accountRepo, jwtService, cfg.Cookie, logger)
	webhookHandler := webhook.NewHandler(webhookRouter, cfg.Telegram.WebhookSecret, logger)
	linkHandler := linking.NewHandler(linkRepo, cfg.Telegram, logger)
	groupHandler := groups.NewHandler(groupRepo, accountRepo, logger)
	quizHandler := quizzes.NewHandler(quizRepo, dispatcher, scheduler, tg, cfg.Schedule.Location, cfg.Telegram.SendTimeout, logger)
	analyticsHandler := analytics.NewHandler(quizRepo, analyticsRepo, objects, logger)
	generatorHandler := generator.NewHandler(generator.NewService(cfg.Groq), logger)

	validateToken := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token, auth.TokenAccess)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}
	ownsQuiz := func(ctx context.Context, quizID, accountID uuid.UUID) error {
		_, err := quizRepo.GetOwned(ctx, quizID, accountID)
		if errors.Is(err, quizzes.ErrNotFound) {
			return realtime.ErrNotOwner
		}
		return err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Telegram (no JWT; optional secret header checked in handler)
	router.POST("/api/telegram/webhook", webhookHandler.Receive)

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/token/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/telegram/link", linkHandler.CreateLink)

		api.POST("/bind-group", groupHandler.Bind)
		api.GET("/user-groups", groupHandler.List)

		api.POST("/send-quiz", quizHandler.SendQuiz)
		api.POST("/send-poll", quizHandler.SendPoll)
		api.GET("/quizzes", quizHandler.List)
		api.POST("/quizzes/generate", middleware.RequireEmail(cfg.Groq.AllowedUsers), generatorHandler.Generate)
		api.GET("/quizzes/:id", quizHandler.Get)
		api.DELETE("/quizzes/:id", quizHandler.Delete)
		api.GET("/quizzes/:id/analytics", analyticsHandler.Get)
		api.POST("/quizzes/:id/export", analyticsHandler.Export)

		admin := api.Group("/admin", middleware.RequireStaff())
		admin.PUT("/accounts/:id/telegram", linkHandler.AssignTelegram)
		admin.DELETE("/accounts/:id/telegram", linkHandler.ClearTelegram)
	}

	// WebSocket (token in query; browsers cannot set Authorization on upgrade)
	router.GET("/ws", realtime.ServeWs(hub, validateToken, ownsQuiz, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Schedule.RunInServer {
		processor := worker.NewDispatchProcessor(jobQueue, dispatcher, cfg.Schedule.PollInterval, logger)
		go processor.Run(workerCtx)
		logger.Info("dispatch worker started in server")
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

	workerCancel()
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
