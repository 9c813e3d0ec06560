package main

import (
	"errors"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"interviewer/internal/artifact"
	"interviewer/internal/config"
	"interviewer/internal/database"
	"interviewer/internal/metrics"
	"interviewer/internal/storage"
	"interviewer/internal/store"
	"interviewer/internal/tasks"
	"interviewer/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	artifacts := artifact.NewRepository(storageClient, artifact.Options{
		PreviewTTL:      cfg.Artifact.PreviewTTL,
		PublishedURLTTL: cfg.Artifact.PublishedURLTTL,
	})

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	entryID, err := scheduler.Register(cfg.Worker.SweepCron, tasks.NewPreviewSweepTask())
	if err != nil {
		log.Fatalf("register preview sweep: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer scheduler.Shutdown()
	logger.Info("preview sweep scheduled", slog.String("cron", cfg.Worker.SweepCron), slog.String("entry_id", entryID))

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeArtifactPurge, worker.NewPurgeHandler(store.New(db), artifacts, logger))
	mux.Handle(tasks.TypePreviewSweep, worker.NewSweepHandler(artifacts, logger))

	if cfg.Worker.MetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
