package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"gapgiraffe/internal/analysis"
	"gapgiraffe/internal/errcode"
	"gapgiraffe/internal/repository"
	"gapgiraffe/internal/tasks"
)

// JobAnalyzer 对岗位执行匹配分析并写回结果。
type JobAnalyzer interface {
	AnalyzeJob(ctx context.Context, jobID int64) (*analysis.Result, error)
}

var _ JobAnalyzer = (*analysis.Service)(nil)

// AnalysisTaskHandler 负责消费岗位分析任务。
type AnalysisTaskHandler struct {
	analyzer  JobAnalyzer
	publisher Publisher
	logger    *slog.Logger
}

// NewAnalysisTaskHandler 创建任务处理器。
func NewAnalysisTaskHandler(analyzer JobAnalyzer, publisher Publisher, logger *slog.Logger) *AnalysisTaskHandler {
	return &AnalysisTaskHandler{analyzer: analyzer, publisher: publisher, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *AnalysisTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	payload, err := tasks.DecodeJobAnalyze(t)
	if err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int64("job_id", payload.JobID),
	)
	log.Info("starting job analysis task")

	notify := Notification{
		Event:         EventJobAnalyzed,
		CorrelationID: payload.CorrelationID,
		JobID:         payload.JobID,
	}

	result, err := h.analyzer.AnalyzeJob(ctx, payload.JobID)
	if err != nil {
		code := errcode.FromError(err)
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("job not found, skipping task")
			return nil
		}
		if errors.Is(err, repository.ErrValidation) {
			err = fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		// 仅在最后一次重试失败时通知前端，避免重复提示。
		if errors.Is(err, asynq.SkipRetry) || isFinalAsynqAttempt(ctx) {
			notify.Status = "error"
			notify.ErrorCode = code
			notify.ErrorMessage = strings.TrimSpace(err.Error())
			if pubErr := publishNotification(ctx, h.publisher, notify); pubErr != nil {
				log.Error("publish analysis error notification failed", slog.Any("error", pubErr))
			}
		}
		log.Error("job analysis failed", slog.Any("error", err))
		return err
	}

	score := result.MatchScore
	notify.Status = "completed"
	notify.ErrorCode = errcode.OK
	notify.MatchScore = &score
	if err := publishNotification(ctx, h.publisher, notify); err != nil {
		// 结果已经写入，通知失败不重试。
		log.Warn("publish analysis notification failed", slog.Any("error", err))
	}

	log.Info("job analysis task completed", slog.Float64("match_score", score))
	return nil
}
