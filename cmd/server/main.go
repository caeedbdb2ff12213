// Package main runs the interview platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/financebro/backend/config"
	"github.com/financebro/backend/internal/auth"
	"github.com/financebro/backend/internal/gamification"
	"github.com/financebro/backend/internal/interview"
	"github.com/financebro/backend/internal/middleware"
	"github.com/financebro/backend/internal/models"
	"github.com/financebro/backend/internal/profiles"
	"github.com/financebro/backend/internal/provision"
	"github.com/financebro/backend/internal/realtime"
	"github.com/financebro/backend/internal/worker"
	"github.com/financebro/backend/pkg/database"
	"github.com/financebro/backend/pkg/queue"
	"github.com/financebro/backend/pkg/redis"
	"github.com/financebro/backend/pkg/response"
	"github.com/financebro/backend/pkg/storage"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Profiles
	profileRepo := profiles.NewRepository(pool)
	profileHandler := profiles.NewHandler(profileRepo, logger)

	// Room provisioning (stub mode when LiveKit credentials are absent)
	provisionService := provision.NewService(cfg.LiveKit, logger)
	provisionHandler := provision.NewHandler(provisionService, logger)
	if !provisionService.Configured() {
		logger.Warn("livekit not configured, sessions run in stub mode")
	}

	// Interviews
	jobQueue := queue.NewQueue(rdb.Client, logger)
	interviewRepo := interview.NewRepository(pool)
	scorer := interview.NewBandScorer(cfg.Interview.ScoreBandMin, cfg.Interview.ScoreBandMax, nil)
	interviewService := interview.NewService(interviewRepo, provisionService, interview.NewStaticQuestionSource(), scorer, cfg.Interview, logger)
	interviewService.SetEventSink(hub)
	interviewService.SetEnqueuer(jobQueue)
	if s3Client != nil {
		interviewService.SetStorage(s3Client)
	}
	interviewHandler := interview.NewHandler(interviewService, logger)
	hub.SetSignalHandler(interviewService)

	// Gamification
	gamificationRepo := gamification.NewRepository(pool)
	gamificationHandler := gamification.NewHandler(gamificationRepo, logger)

	// Background jobs (transcript archive, feedback repair)
	processor := worker.NewProcessor(interviewRepo, scorer, s3Client, jobQueue, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Bare room provisioning, no stored session required
		api.POST("/session", provisionHandler.CreateSession)
		api.GET("/token", provisionHandler.GetToken)

		profileHandler.RegisterRoutes(api)
		interviewHandler.RegisterRoutes(api)
		gamificationHandler.RegisterRoutes(api)
	}

	// Admin API
	admin := api.Group("/admin")
	admin.Use(middleware.RequireRole(string(models.RoleAdmin)))
	{
		gamificationHandler.RegisterAdminRoutes(admin)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process worker for transcript archive and feedback repair jobs.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go processor.Run(workerCtx)
	go processor.RunRepairScanner(workerCtx, 10*time.Minute, 5*time.Minute)

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
	interviewService.Shutdown()
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
