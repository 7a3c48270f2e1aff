package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"gapgiraffe/internal/analysis"
	"gapgiraffe/internal/config"
	"gapgiraffe/internal/docstore"
	"gapgiraffe/internal/metrics"
	"gapgiraffe/internal/repository"
	"gapgiraffe/internal/storage"
	"gapgiraffe/internal/tasks"
	"gapgiraffe/internal/tracker"
	"gapgiraffe/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	levelVar := new(slog.LevelVar)
	levelVar.Set(config.ParseLevel(cfg.Log.Level))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)
	config.WatchLogLevel(levelVar, logger)

	ctx := context.Background()

	store, err := docstore.Open(ctx, cfg.Storage, logger)
	if err != nil {
		log.Fatalf("open document store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close document store failed", slog.Any("error", err))
		}
	}()
	log.Println("document store ready for worker")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	repo := repository.New(store)
	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())

	if cfg.Analysis.Endpoint != "" {
		analyzer := analysis.NewHTTPAnalyzer(cfg.Analysis.Endpoint, cfg.Analysis.Timeout)
		service := analysis.NewService(repo, analyzer, cfg.Analysis.Timeout, logger)
		mux.Handle(tasks.TypeJobAnalyze, worker.NewAnalysisTaskHandler(service, redisClient, logger))
	} else {
		logger.Warn("analysis endpoint is empty, job:analyze tasks will not be consumed")
	}

	if cfg.MinIO.Enabled() {
		storageClient, err := storage.NewClient(ctx, cfg.MinIO)
		if err != nil {
			log.Fatalf("init storage client: %v", err)
		}
		log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)
		engine := tracker.New(repo, tracker.WithLogger(logger))
		mux.Handle(tasks.TypeApplicationsExport, worker.NewExportTaskHandler(engine, storageClient, redisClient, logger))
	}

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
