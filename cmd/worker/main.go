// Package main runs the background job worker (ticket emails, certificate archiving).
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/harbor-academy/backend/config"
	"github.com/harbor-academy/backend/internal/certificates"
	"github.com/harbor-academy/backend/internal/emaillogs"
	"github.com/harbor-academy/backend/internal/worker"
	"github.com/harbor-academy/backend/pkg/database"
	"github.com/harbor-academy/backend/pkg/mailer"
	"github.com/harbor-academy/backend/pkg/queue"
	"github.com/harbor-academy/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	sender := mailer.New(mailer.Config{
		Host:        cfg.Email.SMTPHost,
		Port:        cfg.Email.SMTPPort,
		User:        cfg.Email.SMTPUser,
		Pass:        cfg.Email.SMTPPass,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
	}, logger)

	processors := map[queue.JobType]worker.Processor{
		queue.JobTypeNotification: worker.NewNotificationProcessor(sender, emaillogs.NewRepository(pool), logger),
	}

	if cfg.AWS.Region != "" && cfg.AWS.CertificatesBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			CertificatesBucket:   cfg.AWS.CertificatesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		processors[queue.JobTypeCertificateArchive] = worker.NewArchiveProcessor(certificates.NewRepository(pool), s3Client, logger)
	} else {
		logger.Warn("AWS_REGION not set; certificate archive jobs stay queued until S3 is configured")
	}

	runner := worker.NewRunner(queue.NewQueue(rdb.Client, logger), processors, logger)
	logger.Info("worker started")
	runner.Run(ctx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
