// Package main runs the academy HTTP server, the event expiry sweeper and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/harbor-academy/backend/config"
	"github.com/harbor-academy/backend/internal/analytics"
	"github.com/harbor-academy/backend/internal/auditlog"
	"github.com/harbor-academy/backend/internal/auth"
	"github.com/harbor-academy/backend/internal/certificates"
	"github.com/harbor-academy/backend/internal/courses"
	"github.com/harbor-academy/backend/internal/emaillogs"
	"github.com/harbor-academy/backend/internal/events"
	"github.com/harbor-academy/backend/internal/middleware"
	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/internal/notify"
	"github.com/harbor-academy/backend/internal/progress"
	"github.com/harbor-academy/backend/internal/realtime"
	"github.com/harbor-academy/backend/pkg/database"
	"github.com/harbor-academy/backend/pkg/queue"
	"github.com/harbor-academy/backend/pkg/redis"
	"github.com/harbor-academy/backend/pkg/response"
	"github.com/harbor-academy/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.CertificatesBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			CertificatesBucket:   cfg.AWS.CertificatesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	loc := cfg.Ticketing.Location()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Notifications
	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, logger)
	dispatcher := notify.NewDispatcher(jobQueue, emailLogsRepo, cfg.Ticketing.PublicBaseURL, loc, logger)

	// Events and tickets
	auditRepo := auditlog.NewRepository(pool)
	auditHandler := auditlog.NewHandler(auditRepo, logger)
	eventRepo := events.NewRepository(pool)
	eventEngine := events.NewEngine(eventRepo, auditRepo, dispatcher, logger, events.Options{
		Location:   loc,
		IDAttempts: cfg.Ticketing.IDAttempts,
	})
	eventHandler := events.NewHandler(eventEngine, authRepo, logger)
	feedBridge := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, feedBridge, feedBridge)
	eventEngine.SetBroadcaster(hub)
	sweeper := events.NewSweeper(eventEngine, cfg.Ticketing.SweepInterval, logger)
	analyticsHandler := analytics.NewHandler(pool, eventRepo, auditRepo, logger)

	// Courses, progress and certificates
	courseRepo := courses.NewRepository(pool)
	courseHandler := courses.NewHandler(courseRepo, logger)
	progressEngine := progress.NewEngine(progress.NewRepository(pool), courseRepo, authRepo, dispatcher, logger)
	progressHandler := progress.NewHandler(progressEngine, logger)
	certHandler := certificates.NewHandler(certificates.NewRepository(pool), s3Client, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: auth, ticket verification links and certificate lookups
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}
	router.GET("/tickets/:ticketId/verify", eventHandler.Verify)
	router.GET("/certificates/:id", certHandler.Get)

	admin := middleware.RequireRole(models.RoleAdmin)
	gate := middleware.RequireRole(models.RoleAdmin, models.RoleStaff)
	teaching := middleware.RequireRole(models.RoleAdmin, models.RoleProfessor)

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", admin, authHandler.List)

		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events", admin, eventHandler.Create)
		api.GET("/events/:id", eventHandler.Get)
		api.GET("/events/:id/tickets", gate, eventHandler.ListTickets)
		api.POST("/events/:id/tickets", eventHandler.Issue)
		api.GET("/events/:id/stats", admin, analyticsHandler.GetByEvent)
		api.GET("/events/:id/emails", gate, emailLogsHandler.ListByEvent)

		// Gate
		api.POST("/tickets/:ticketId/redeem", gate, eventHandler.Redeem)
		api.GET("/audit/tickets", gate, auditHandler.List)
		api.GET("/ws/gate", gate, realtime.ServeWs(hub, eventEngine, logger))

		// Courses
		api.GET("/courses", courseHandler.List)
		api.POST("/courses", teaching, courseHandler.Create)
		api.GET("/courses/:id", courseHandler.Get)
		api.POST("/courses/:id/enroll", progressHandler.Enroll)
		api.GET("/courses/:id/progress", progressHandler.Get)
		api.PUT("/courses/:id/modules/:moduleId/lessons/:lessonId", progressHandler.CompleteLesson)
		api.POST("/courses/:id/modules/:moduleId/test/attempts", progressHandler.StartModuleTest)
		api.PUT("/courses/:id/modules/:moduleId/test/score", progressHandler.RecordModuleScore)
		api.POST("/courses/:id/final-test/attempts", progressHandler.StartFinalTest)
		api.PUT("/courses/:id/final-test/score", progressHandler.RecordFinalScore)

		// Certificates
		api.GET("/me/certificates", certHandler.ListMine)
		api.GET("/certificates/:id/download-url", certHandler.DownloadURL)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
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
