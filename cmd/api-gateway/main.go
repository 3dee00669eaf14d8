package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schedsnap/schedsnap-api/internal/handler"
	"github.com/schedsnap/schedsnap-api/internal/middleware"
	"github.com/schedsnap/schedsnap-api/internal/repository"
	"github.com/schedsnap/schedsnap-api/internal/service"
	"github.com/schedsnap/schedsnap-api/pkg/cache"
	"github.com/schedsnap/schedsnap-api/pkg/config"
	"github.com/schedsnap/schedsnap-api/pkg/database"
	"github.com/schedsnap/schedsnap-api/pkg/jobs"
	"github.com/schedsnap/schedsnap-api/pkg/logger"
	corsmiddleware "github.com/schedsnap/schedsnap-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schedsnap/schedsnap-api/pkg/middleware/requestid"
	"github.com/schedsnap/schedsnap-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	tempStorage, err := storage.NewTempStorage(cfg.Uploads.TempDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	extractor, err := service.NewExtractionService(ctx, cfg.Gemini, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init extraction client", "error", err)
	}
	defer extractor.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	jobRepo := repository.NewImportJobRepository(db)
	previewRepo := repository.NewPreviewRepository(redisClient, cfg.Preview.TTL, logr)

	worker := service.NewImportWorker(jobRepo, extractor, previewRepo, tempStorage, metricsSvc, cfg.Worker.MaxRetries, logr)
	queue := jobs.NewQueue("schedule-import", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Worker.Concurrency,
		BufferSize: cfg.Worker.BufferSize,
		MaxRetries: cfg.Worker.MaxRetries,
		RetryDelay: cfg.Worker.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	importSvc := service.NewImportService(jobRepo, queue, logr)
	importSvc.RecoverPendingJobs(ctx)

	calendarSvc := service.NewCalendarService(cfg.Calendar.ReminderMinutes, nil, logr)
	submitSvc := service.NewSubmitService(cfg.Calendar, metricsSvc, logr)

	importHandler := handler.NewImportHandler(importSvc, tempStorage, cfg.Uploads, logr)
	scheduleHandler := handler.NewScheduleHandler(previewRepo, calendarSvc, submitSvc, logr)

	startUploadReaper(ctx, tempStorage, cfg.Uploads, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	schedule := api.Group("/schedule", middleware.Session(cfg.JWT.Secret))
	{
		schedule.POST("/imports", importHandler.Upload)
		schedule.GET("/imports/:id", importHandler.Status)
		schedule.GET("/preview", scheduleHandler.GetPreview)
		schedule.PUT("/preview/events/:index", scheduleHandler.EditEvent)
		schedule.POST("/confirm", scheduleHandler.Confirm)
		schedule.DELETE("/preview", scheduleHandler.Cancel)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}
}

// startUploadReaper periodically removes temp uploads orphaned by crashed
// or abandoned jobs.
func startUploadReaper(ctx context.Context, store *storage.TempStorage, cfg config.UploadsConfig, logr *zap.Logger) {
	if cfg.CleanupInterval <= 0 || cfg.OrphanTTL <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := store.CleanupOlderThan(cfg.OrphanTTL)
				if err != nil {
					logr.Sugar().Warnw("upload cleanup failed", "error", err)
					continue
				}
				if len(deleted) > 0 {
					logr.Sugar().Infow("removed orphaned uploads", "count", len(deleted))
				}
			}
		}
	}()
}
