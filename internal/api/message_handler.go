package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"gapgiraffe/internal/api/middleware"
	"gapgiraffe/internal/errcode"
	"gapgiraffe/internal/ingest"
	"gapgiraffe/internal/messages"
	"gapgiraffe/internal/repository"
	"gapgiraffe/internal/tracker"
)

// MessageHandler 处理扩展通过单一入口发送的消息（ANALYZE_JOB、JOB_EXTRACTED 等）。
type MessageHandler struct {
	repo        *repository.Repository
	ingester    *ingest.Ingester
	tracker     *tracker.Engine
	queue       *TaskQueue
	autoAnalyze bool
}

// NewMessageHandler 构造 MessageHandler。
func NewMessageHandler(repo *repository.Repository, ingester *ingest.Ingester, engine *tracker.Engine, queue *TaskQueue, autoAnalyze bool) *MessageHandler {
	return &MessageHandler{repo: repo, ingester: ingester, tracker: engine, queue: queue, autoAnalyze: autoAnalyze}
}

// HandleMessage 解码消息并分发到对应的处理方法。
func (h *MessageHandler) HandleMessage(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		BadRequest(c, "read request body failed")
		return
	}

	router := &messageRouter{
		MessageHandler: h,
		correlationID:  middleware.GetCorrelationID(c),
		log:            middleware.LoggerFromContext(c),
	}
	resp, err := messages.Handle(c.Request.Context(), router, raw)
	if err != nil {
		status := errcode.HTTPStatus(errcode.FromError(err))
		if errors.Is(err, errQuotaExceeded) {
			status = http.StatusTooManyRequests
		}
		if status >= http.StatusInternalServerError {
			router.log.Error("message failed", slog.Any("error", err))
		}
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// messageRouter 绑定单次请求的上下文信息。
type messageRouter struct {
	*MessageHandler
	correlationID string
	log           *slog.Logger
}

var _ messages.Handler = (*messageRouter)(nil)

func (r *messageRouter) AnalyzeJob(ctx context.Context, req messages.AnalyzeJob) (messages.Response, error) {
	if r.queue == nil {
		return messages.Response{}, errors.New("analysis queue is not configured")
	}
	job, err := r.repo.GetJob(ctx, req.JobID)
	if err != nil {
		return messages.Response{}, err
	}
	if job == nil {
		return messages.Response{}, fmt.Errorf("job %d: %w", req.JobID, repository.ErrNotFound)
	}
	taskID, err := r.queue.EnqueueAnalysis(ctx, req.JobID, r.correlationID)
	if err != nil {
		return messages.Response{}, err
	}
	return messages.Response{
		Message: "Analysis queued",
		Data:    gin.H{"job_id": req.JobID, "task_id": taskID},
	}, nil
}

func (r *messageRouter) JobExtracted(ctx context.Context, req messages.JobExtracted) (messages.Response, error) {
	job, created, err := r.ingester.Ingest(ctx, req.Job)
	if err != nil {
		return messages.Response{}, err
	}
	data := gin.H{"job": job, "created": created}
	if created && r.autoAnalyze && r.queue != nil {
		if taskID, err := r.queue.EnqueueAnalysis(ctx, job.ID, r.correlationID); err != nil {
			r.log.Warn("auto analysis not queued", slog.Int64("job_id", job.ID), slog.Any("error", err))
		} else {
			data["task_id"] = taskID
		}
	}
	return messages.Response{Message: "Job data received", Data: data}, nil
}

func (r *messageRouter) GetConfig(ctx context.Context, _ messages.GetConfig) (messages.Response, error) {
	models, err := r.repo.GetAllModelConfigs(ctx)
	if err != nil {
		return messages.Response{}, err
	}
	def, err := r.repo.GetDefaultModel(ctx)
	if err != nil {
		return messages.Response{}, err
	}
	return messages.Response{Data: gin.H{"default_model": def, "models": models}}, nil
}

func (r *messageRouter) SaveConfig(ctx context.Context, req messages.SaveConfig) (messages.Response, error) {
	id := req.ID
	if id == 0 {
		def, err := r.repo.GetDefaultModel(ctx)
		if err != nil {
			return messages.Response{}, err
		}
		if def == nil {
			return messages.Response{}, fmt.Errorf("default model: %w", repository.ErrNotFound)
		}
		id = def.ID
	}
	if err := r.repo.UpdateModelConfig(ctx, id, req.ModelConfigUpdate); err != nil {
		return messages.Response{}, err
	}
	cfg, err := r.repo.GetModelConfig(ctx, id)
	if err != nil {
		return messages.Response{}, err
	}
	return messages.Response{Message: "Configuration saved", Data: cfg}, nil
}

func (r *messageRouter) TrackJob(ctx context.Context, req messages.TrackJob) (messages.Response, error) {
	app, created, err := r.tracker.TrackJob(ctx, req.JobID, req.Note)
	if err != nil {
		return messages.Response{}, err
	}
	msg := "Job saved to tracker"
	if !created {
		msg = "Job already tracked"
	}
	return messages.Response{Message: msg, Data: gin.H{"application": app, "created": created}}, nil
}

func (r *messageRouter) UpdateStatus(ctx context.Context, req messages.UpdateStatus) (messages.Response, error) {
	app, err := r.tracker.Transition(ctx, req.ApplicationID, req.Status, req.Note)
	if err != nil {
		return messages.Response{}, err
	}
	return messages.Response{
		Message: "Status updated to " + tracker.FormatStatus(app.Status),
		Data:    app,
	}, nil
}
