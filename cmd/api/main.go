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

	"gapgiraffe/internal/api"
	"gapgiraffe/internal/config"
	"gapgiraffe/internal/docstore"
	"gapgiraffe/internal/ingest"
	"gapgiraffe/internal/repository"
	"gapgiraffe/internal/storage"
	"gapgiraffe/internal/tracker"
)

func main() {
	cfg := config.MustLoad()

	levelVar := new(slog.LevelVar)
	levelVar.Set(config.ParseLevel(cfg.Log.Level))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)
	config.WatchLogLevel(levelVar, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := docstore.Open(ctx, cfg.Storage, logger)
	if err != nil {
		log.Fatalf("open document store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close document store failed", slog.Any("error", err))
		}
	}()
	logger.Info("document store ready",
		slog.String("engine", cfg.Storage.Engine),
		slog.Int("schema_version", store.Version()),
	)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	repo := repository.New(store)
	deps := api.Dependencies{
		Config:     cfg.API,
		Analysis:   cfg.Analysis,
		Repository: repo,
		Tracker:    tracker.New(repo, tracker.WithLogger(logger)),
		Ingester:   ingest.New(repo, logger),
		Queue:      api.NewTaskQueue(asynqClient, redisClient, cfg.Analysis.DailyQuota, cfg.Worker.MaxRetry, logger),
		Redis:      redisClient,
		Logger:     logger,
	}
	if cfg.MinIO.Enabled() {
		storageClient, err := storage.NewClient(ctx, cfg.MinIO)
		if err != nil {
			log.Fatalf("init storage client: %v", err)
		}
		deps.Exports = storageClient
		logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))
	}
	if cfg.API.Token == "" {
		logger.Warn("api token is empty, requests are not authenticated")
	}

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, deps)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown api server failed", slog.Any("error", err))
		}
	}()

	logger.Info("api listening", slog.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to start api server: %v", err)
	}
}
