package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"gapgiraffe/internal/errcode"
	"gapgiraffe/internal/storage"
	"gapgiraffe/internal/tasks"
	"gapgiraffe/internal/tracker"
)

// DefaultLinkTTL 是导出下载链接的有效期。
const DefaultLinkTTL = 24 * time.Hour

// CSVExporter 将投递记录写成 CSV。
type CSVExporter interface {
	ExportCSV(ctx context.Context, w io.Writer) (int, error)
}

// ExportStore 是导出文件所需的对象存储能力。
type ExportStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	PresignedDownloadURL(ctx context.Context, objectKey, fileName string, duration time.Duration) (string, error)
}

var (
	_ CSVExporter = (*tracker.Engine)(nil)
	_ ExportStore = (*storage.Client)(nil)
)

// ExportTaskHandler 负责消费投递记录导出任务：生成 CSV、上传 MinIO 并推送下载链接。
type ExportTaskHandler struct {
	exporter  CSVExporter
	store     ExportStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	linkTTL   time.Duration
}

// NewExportTaskHandler 创建任务处理器。
func NewExportTaskHandler(exporter CSVExporter, store ExportStore, publisher Publisher, logger *slog.Logger) *ExportTaskHandler {
	return &ExportTaskHandler{
		exporter:  exporter,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		linkTTL:   DefaultLinkTTL,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	payload, err := tasks.DecodeApplicationsExport(t)
	if err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := h.logger.With(slog.String("correlation_id", payload.CorrelationID))
	log.Info("starting applications export task")

	defer func() {
		if retErr == nil || (!errors.Is(retErr, asynq.SkipRetry) && !isFinalAsynqAttempt(ctx)) {
			return
		}
		notify := Notification{
			Event:         EventApplicationsExport,
			Status:        "error",
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.FromError(retErr),
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishNotification(ctx, h.publisher, notify); err != nil {
			log.Error("publish export error notification failed", slog.Any("error", err))
		}
	}()

	var buf bytes.Buffer
	rows, err := h.exporter.ExportCSV(ctx, &buf)
	if err != nil {
		log.Error("write csv failed", slog.Any("error", err))
		return err
	}

	now := h.now()
	fileName := tracker.ExportFileName(now)
	objectName := fmt.Sprintf("%s%s/%s.csv", storage.ExportPrefix, now.Format("2006-01-02"), uuid.NewString())
	if _, err := h.store.UploadFile(ctx, objectName, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "text/csv;charset=utf-8"); err != nil {
		log.Error("upload export to minio failed", slog.Any("error", err))
		if storage.IsPermanent(err) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}

	link, err := h.store.PresignedDownloadURL(ctx, objectName, fileName, h.linkTTL)
	if err != nil {
		log.Error("presign export link failed", slog.Any("error", err))
		return err
	}

	notify := Notification{
		Event:         EventApplicationsExport,
		Status:        "completed",
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
		DownloadURL:   link,
		FileName:      fileName,
		Rows:          rows,
	}
	if err := publishNotification(ctx, h.publisher, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("applications export task completed",
		slog.String("object", objectName),
		slog.Int("rows", rows),
	)
	return nil
}
