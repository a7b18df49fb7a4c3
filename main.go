package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"game-records-api/config"
	"game-records-api/handlers"
	"game-records-api/middleware"
	"game-records-api/models"
	"game-records-api/services"
	"game-records-api/storage"
	"game-records-api/utils"
	"game-records-api/workers"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "records",
	})

	cfg, dotenv, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	if !dotenv {
		logger.Warn("no .env file found, reading environment variables directly")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("unknown LOG_LEVEL, keeping info", "value", cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.Database.DSN(), storage.Options{
		MaxConns:         cfg.Database.MaxConns,
		IdleTimeout:      cfg.Database.IdleTimeout,
		AcquireTimeout:   cfg.Database.AcquireTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
		AcquireRetries:   cfg.Database.AcquireRetries,
	}, logger.WithPrefix("db"))
	if err != nil {
		logger.Fatal("failed to connect to database", "err", err)
	}
	if err := db.AutoMigrate(ctx, models.All()...); err != nil {
		logger.Fatal("failed to migrate database", "err", err)
	}

	writer := services.NewBatchWriter(db, logger.WithPrefix("writer"))
	reader := services.NewAggregationReader(db, logger.WithPrefix("reader"))

	accessLog, err := os.OpenFile(cfg.AccessLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Fatal("failed to open access log", "path", cfg.AccessLogPath, "err", err)
	}
	defer accessLog.Close()

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimitBytes,
		ErrorHandler:          handlers.ErrorHandler(logger.WithPrefix("http")),
		DisableStartupMessage: true,
	})
	middleware.Setup(app, middleware.Options{
		AllowedOrigins:  cfg.Origins(),
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		AccessLog:       accessLog,
		Logger:          logger.WithPrefix("http"),
	})

	api := app.Group(cfg.BasePath)
	handlers.SetupRecordRoutes(api, writer, reader)
	handlers.SetupGameRoutes(api, writer, reader)
	handlers.SetupHealthRoutes(api, db)

	var sched gocron.Scheduler
	if cfg.Archive.Enabled {
		store, err := utils.NewR2Client(ctx, utils.R2Config{
			AccountID:       cfg.Archive.AccountID,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			AccessKeySecret: cfg.Archive.AccessKeySecret,
			Bucket:          cfg.Archive.Bucket,
		})
		if err != nil {
			logger.Fatal("failed to initialize R2 client", "err", err)
		}
		archiver := workers.NewArchiveWorker(db, store, cfg.Archive.BatchSize, logger.WithPrefix("archive"))
		if sched, err = archiver.Start(ctx, cfg.Archive.Interval); err != nil {
			logger.Fatal("failed to start archive worker", "err", err)
		}
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", "addr", addr, "base", cfg.BasePath)
		if err := app.Listen(addr); err != nil {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			logger.Error("scheduler shutdown", "err", err)
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("closing database", "err", err)
	}
	logger.Info("stopped")
}
