package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"interviewer/internal/api"
	"interviewer/internal/artifact"
	"interviewer/internal/auth"
	"interviewer/internal/config"
	"interviewer/internal/database"
	"interviewer/internal/intake"
	"interviewer/internal/interview"
	"interviewer/internal/notify"
	"interviewer/internal/render"
	"interviewer/internal/status"
	"interviewer/internal/storage"
	"interviewer/internal/store"
	"interviewer/internal/tasks"
	"interviewer/internal/tree"
)

func main() {
	cfg := config.MustLoad()

	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database ready",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("db", cfg.Database.Name),
	)

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	authService, err := auth.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	pipeline, label, err := render.NewPipeline(cfg.Render, cfg.API.InternalSecret)
	if err != nil {
		log.Fatalf("init render pipeline: %v", err)
	}
	renderer := render.NewRenderer(pipeline,
		render.WithTimeout(cfg.Render.Timeout),
		render.WithLabel(label),
		render.WithLogger(logger),
	)

	st := store.New(db)
	artifacts := artifact.NewRepository(storageClient, artifact.Options{
		PreviewTTL:      cfg.Artifact.PreviewTTL,
		PublishedURLTTL: cfg.Artifact.PublishedURLTTL,
	})
	notifier := notify.NewPublisher(redisClient, logger)

	statusEngine := status.NewEngine(st, artifacts, renderer,
		status.WithNotifier(notifier),
		status.WithLogger(logger),
	)
	treeEngine := tree.NewEngine(st, artifacts,
		tree.WithNotifier(notifier),
		tree.WithPurgeScheduler(tasks.NewPurgeScheduler(asynqClient)),
		tree.WithLogger(logger),
	)
	rooms := interview.NewService(st, statusEngine, logger, nil)

	var importer *intake.Service
	if cfg.Intake.ParserEndpoint != "" {
		opts := []intake.Option{
			intake.WithMaxBytes(cfg.Intake.MaxUploadBytes),
			intake.WithParseTimeout(cfg.Intake.ParserTimeout),
			intake.WithLogger(logger),
		}
		if cfg.Intake.ClamdAddr != "" {
			opts = append(opts, intake.WithScanner(intake.ClamdScanner{Addr: cfg.Intake.ClamdAddr}))
		} else {
			logger.Warn("clamd address not configured, uploads are not scanned")
		}
		importer = intake.NewService(treeEngine, intake.HTTPParser{
			Endpoint: cfg.Intake.ParserEndpoint,
			Secret:   cfg.API.InternalSecret,
			Client:   &http.Client{Timeout: cfg.Intake.ParserTimeout + 10*time.Second},
		}, opts...)
	}

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Deps{
		Tree:           treeEngine,
		Status:         statusEngine,
		Rooms:          rooms,
		Intake:         importer,
		Auth:           authService,
		Redis:          redisClient,
		Logger:         logger,
		InternalSecret: cfg.API.InternalSecret,
		PreviewPerHour: cfg.Render.PreviewPerHour,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr), slog.String("render_pipeline", label))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
