package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gapgiraffe/internal/api/middleware"
	"gapgiraffe/internal/repository"
	"gapgiraffe/internal/storage"
	"gapgiraffe/internal/tracker"
)

// ExportLister 列出对象存储中的导出文件。
type ExportLister interface {
	ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectMeta, error)
}

var _ ExportLister = (*storage.Client)(nil)

// ApplicationHandler 负责投递记录的状态流转、提醒、统计与导出。
type ApplicationHandler struct {
	repo    *repository.Repository
	tracker *tracker.Engine
	queue   *TaskQueue
	exports ExportLister
	now     func() time.Time
}

// NewApplicationHandler 构造 ApplicationHandler。queue 或 exports 为 nil 时对应功能不可用。
func NewApplicationHandler(repo *repository.Repository, engine *tracker.Engine, queue *TaskQueue, exports ExportLister) *ApplicationHandler {
	return &ApplicationHandler{repo: repo, tracker: engine, queue: queue, exports: exports, now: time.Now}
}

// ListApplications 返回过滤、排序后的投递记录（附带岗位信息）。
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	var opts tracker.Options
	if err := c.ShouldBindQuery(&opts); err != nil {
		BadRequest(c, err.Error())
		return
	}
	entries, err := h.tracker.List(c.Request.Context(), opts)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetApplication 返回单条投递记录。
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.respondApplication(c, id)
}

type updateApplicationRequest struct {
	ResumeVersionID *int64     `json:"resume_version_id"`
	AppliedAt       *time.Time `json:"applied_at"`
	InterviewDate   *time.Time `json:"interview_date"`
	InterviewNotes  *string    `json:"interview_notes"`
	Notes           *string    `json:"notes"`
}

// UpdateApplication 更新投递记录的附加信息；状态只能通过状态接口修改。
func (h *ApplicationHandler) UpdateApplication(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	err := h.repo.UpdateApplication(c.Request.Context(), id, repository.ApplicationUpdate{
		ResumeVersionID: req.ResumeVersionID,
		AppliedAt:       req.AppliedAt,
		InterviewDate:   req.InterviewDate,
		InterviewNotes:  req.InterviewNotes,
		Notes:           req.Notes,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	h.respondApplication(c, id)
}

type transitionRequest struct {
	Status repository.Status `json:"status" binding:"required"`
	Note   string            `json:"note"`
}

// UpdateStatus 将投递记录流转到新状态并追加历史。
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	app, err := h.tracker.Transition(c.Request.Context(), id, req.Status, req.Note)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// MoveToColumn 处理看板拖拽。
func (h *ApplicationHandler) MoveToColumn(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Column tracker.Column `json:"column" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	app, err := h.tracker.MoveToColumn(c.Request.Context(), id, req.Column)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

type addReminderRequest struct {
	Title   string    `json:"title" binding:"required"`
	DueDate time.Time `json:"due_date"`
}

// AddReminder 为投递记录添加提醒。
func (h *ApplicationHandler) AddReminder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req addReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.DueDate.IsZero() {
		BadRequest(c, "due_date is required")
		return
	}
	reminder, err := h.tracker.AddReminder(c.Request.Context(), id, req.Title, req.DueDate)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reminder)
}

// CompleteReminder 设置提醒的完成状态。
func (h *ApplicationHandler) CompleteReminder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Completed *bool `json:"completed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.tracker.CompleteReminder(c.Request.Context(), id, c.Param("reminderId"), *req.Completed); err != nil {
		Fail(c, err)
		return
	}
	h.respondApplication(c, id)
}

// Statistics 返回投递统计。
func (h *ApplicationHandler) Statistics(c *gin.Context) {
	stats, err := h.tracker.Statistics(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Board 返回按看板列分组的投递记录。
func (h *ApplicationHandler) Board(c *gin.Context) {
	board, err := h.tracker.Board(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// ExportCSV 以附件形式直接返回 CSV。
func (h *ApplicationHandler) ExportCSV(c *gin.Context) {
	fileName := tracker.ExportFileName(h.now())
	c.Header("Content-Type", "text/csv;charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Status(http.StatusOK)

	rows, err := h.tracker.ExportCSV(c.Request.Context(), c.Writer)
	if err != nil {
		// 响应头已发出，只能记录错误。
		middleware.LoggerFromContext(c).Error("export csv failed", slog.Any("error", err))
		return
	}
	middleware.LoggerFromContext(c).Info("applications exported", slog.Int("rows", rows))
}

// RequestExport 将导出任务加入队列，完成后通过 WebSocket 推送下载链接。
func (h *ApplicationHandler) RequestExport(c *gin.Context) {
	if h.queue == nil || h.exports == nil {
		Error(c, http.StatusServiceUnavailable, "object storage export is not configured")
		return
	}
	taskID, err := h.queue.EnqueueExport(c.Request.Context(), middleware.GetCorrelationID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": "export request accepted",
		"task_id": taskID,
	})
}

// ListExports 列出最近的导出文件。
func (h *ApplicationHandler) ListExports(c *gin.Context) {
	if h.exports == nil {
		Error(c, http.StatusServiceUnavailable, "object storage export is not configured")
		return
	}
	objects, err := h.exports.ListObjects(c.Request.Context(), storage.ExportPrefix, 20)
	if err != nil {
		Fail(c, err)
		return
	}
	for i := range objects {
		objects[i].Key = strings.TrimPrefix(objects[i].Key, storage.ExportPrefix)
	}
	c.JSON(http.StatusOK, objects)
}

func (h *ApplicationHandler) respondApplication(c *gin.Context, id int64) {
	app, err := h.repo.GetApplication(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if app == nil {
		NotFound(c, "application not found")
		return
	}
	c.JSON(http.StatusOK, app)
}
