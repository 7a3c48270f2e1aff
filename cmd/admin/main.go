package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"gapgiraffe/internal/config"
	"gapgiraffe/internal/docstore"
	"gapgiraffe/internal/repository"
	"gapgiraffe/internal/storage"
	"gapgiraffe/internal/tracker"
)

func main() {
	var (
		migrate      = flag.Bool("migrate", false, "打开存储并迁移到配置的 schema 版本")
		strict       = flag.Bool("strict", false, "迁移中任一文档失败即中止（可选，默认读 STORAGE_STRICT_MIGRATIONS）")
		stats        = flag.Bool("stats", false, "以 JSON 输出投递统计")
		exportPath   = flag.String("export", "", "将全部投递记录导出为 CSV 文件（- 表示标准输出）")
		pruneExports = flag.Int("prune-exports", 0, "删除对象存储中早于 N 天的导出文件")
	)
	flag.Parse()

	if !*migrate && !*stats && strings.TrimSpace(*exportPath) == "" && *pruneExports <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.MustLoad()
	if *strict {
		cfg.Storage.StrictMigrations = true
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(cfg.Log.Level)}))

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

	if *migrate {
		fmt.Printf("存储已就绪：engine=%s schema_version=%d\n", cfg.Storage.Engine, store.Version())
	}

	engine := tracker.New(repository.New(store), tracker.WithLogger(logger))

	if *stats {
		if err := printStatistics(ctx, engine); err != nil {
			log.Fatalf("statistics: %v", err)
		}
	}

	if path := strings.TrimSpace(*exportPath); path != "" {
		rows, err := exportCSV(ctx, engine, path)
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		fmt.Fprintf(os.Stderr, "已导出 %d 条投递记录\n", rows)
	}

	if *pruneExports > 0 {
		removed, err := pruneOldExports(ctx, cfg.MinIO, time.Duration(*pruneExports)*24*time.Hour)
		if err != nil {
			log.Fatalf("prune exports: %v", err)
		}
		fmt.Printf("已删除 %d 个过期导出文件\n", removed)
	}
}

func printStatistics(ctx context.Context, engine *tracker.Engine) error {
	s, err := engine.Statistics(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func exportCSV(ctx context.Context, engine *tracker.Engine, path string) (int, error) {
	if path == "-" {
		return engine.ExportCSV(ctx, os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	rows, err := engine.ExportCSV(ctx, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return rows, err
}

// 导出文件数量有限，一次列出即可。
const pruneListLimit = 1000

func pruneOldExports(ctx context.Context, cfg config.MinIOConfig, maxAge time.Duration) (int, error) {
	if !cfg.Enabled() {
		return 0, errors.New("minio is not configured")
	}
	client, err := storage.NewClient(ctx, cfg)
	if err != nil {
		return 0, err
	}
	objects, err := client.ListObjects(ctx, storage.ExportPrefix, pruneListLimit)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, obj := range objects {
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := client.DeleteObject(ctx, obj.Key); err != nil {
			return removed, fmt.Errorf("delete %s: %w", obj.Key, err)
		}
		removed++
	}
	return removed, nil
}
