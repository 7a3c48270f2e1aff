package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"gapgiraffe/internal/tasks"
)

var errQuotaExceeded = errors.New("daily analysis quota exceeded")

// TaskEnqueuer 是 asynq.Client 的入队子集。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ TaskEnqueuer = (*asynq.Client)(nil)

// TaskQueue 投递分析与导出任务，并按天限制分析次数。
type TaskQueue struct {
	enqueuer TaskEnqueuer
	quota    *dailyQuota
	maxRetry int
	now      func() time.Time
	logger   *slog.Logger
}

// NewTaskQueue 构造任务队列。counter 为 nil 或 dailyQuota 为 0 时不限额。
func NewTaskQueue(enqueuer TaskEnqueuer, counter quotaCounter, limit, maxRetry int, logger *slog.Logger) *TaskQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &TaskQueue{
		enqueuer: enqueuer,
		maxRetry: maxRetry,
		now:      time.Now,
		logger:   logger,
	}
	if counter != nil && limit > 0 {
		q.quota = &dailyQuota{counter: counter, prefix: "analysis_quota", limit: int64(limit)}
	}
	return q
}

// EnqueueAnalysis 投递一次岗位分析，返回任务 ID。
func (q *TaskQueue) EnqueueAnalysis(ctx context.Context, jobID int64, correlationID string) (string, error) {
	now := q.now()
	charged, err := q.takeQuota(ctx, now)
	if err != nil {
		return "", err
	}
	task, err := tasks.NewJobAnalyzeTask(jobID, correlationID)
	if err == nil {
		var info *asynq.TaskInfo
		if info, err = q.enqueuer.EnqueueContext(ctx, task, asynq.MaxRetry(q.maxRetry)); err == nil {
			return info.ID, nil
		}
	}
	if charged {
		if rerr := q.quota.refund(ctx, now); rerr != nil {
			q.logger.Warn("refund analysis quota failed", slog.Any("error", rerr))
		}
	}
	return "", fmt.Errorf("enqueue analysis task for job %d: %w", jobID, err)
}

// EnqueueExport 投递一次导出任务，返回任务 ID。
func (q *TaskQueue) EnqueueExport(ctx context.Context, correlationID string) (string, error) {
	task, err := tasks.NewApplicationsExportTask(correlationID)
	if err != nil {
		return "", fmt.Errorf("create export task: %w", err)
	}
	info, err := q.enqueuer.EnqueueContext(ctx, task, asynq.MaxRetry(q.maxRetry))
	if err != nil {
		return "", fmt.Errorf("enqueue export task: %w", err)
	}
	return info.ID, nil
}

// takeQuota 返回本次是否实际占用了额度。计数器不可用时放行且不占用。
func (q *TaskQueue) takeQuota(ctx context.Context, now time.Time) (bool, error) {
	if q.quota == nil {
		return false, nil
	}
	used, ok, err := q.quota.take(ctx, now)
	if err != nil {
		q.logger.Warn("analysis quota counter unavailable", slog.Any("error", err))
		return false, nil
	}
	if !ok {
		return false, fmt.Errorf("%w (%d of %d used today)", errQuotaExceeded, used, q.quota.limit)
	}
	return true, nil
}
