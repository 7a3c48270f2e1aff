package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gapgiraffe/internal/api/middleware"
	"gapgiraffe/internal/ingest"
	"gapgiraffe/internal/repository"
	"gapgiraffe/internal/tracker"
)

// JobHandler 负责岗位的录入、查询与分析请求。
type JobHandler struct {
	repo        *repository.Repository
	ingester    *ingest.Ingester
	tracker     *tracker.Engine
	queue       *TaskQueue
	autoAnalyze bool
}

// NewJobHandler 构造 JobHandler。queue 为 nil 时不支持分析请求。
func NewJobHandler(repo *repository.Repository, ingester *ingest.Ingester, engine *tracker.Engine, queue *TaskQueue, autoAnalyze bool) *JobHandler {
	return &JobHandler{repo: repo, ingester: ingester, tracker: engine, queue: queue, autoAnalyze: autoAnalyze}
}

// IngestJob 接收扩展提取的岗位数据，同一 URL 只保存一次。
func (h *JobHandler) IngestJob(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		BadRequest(c, "read request body failed")
		return
	}
	job, created, err := h.ingester.IngestRaw(c.Request.Context(), raw)
	if err != nil {
		Fail(c, err)
		return
	}

	resp := gin.H{"job": job, "created": created}
	if created && h.autoAnalyze && h.queue != nil {
		taskID, err := h.queue.EnqueueAnalysis(c.Request.Context(), job.ID, middleware.GetCorrelationID(c))
		if err != nil {
			// 岗位已保存，分析失败不影响录入结果。
			middleware.LoggerFromContext(c).Warn("auto analysis not queued", slog.Any("error", err))
		} else {
			resp["task_id"] = taskID
		}
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// ListJobs 返回岗位列表，可按 analyzed 或分数区间过滤。
func (h *JobHandler) ListJobs(c *gin.Context) {
	ctx := c.Request.Context()

	if raw, ok := c.GetQuery("analyzed"); ok {
		analyzed, err := strconv.ParseBool(raw)
		if err != nil {
			BadRequest(c, "invalid analyzed")
			return
		}
		jobs, err := h.repo.GetJobsByAnalyzed(ctx, analyzed)
		if err != nil {
			Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, jobs)
		return
	}

	minRaw, hasMin := c.GetQuery("min_score")
	maxRaw, hasMax := c.GetQuery("max_score")
	if hasMin || hasMax {
		lo, hi := 0.0, 100.0
		var err error
		if hasMin {
			if lo, err = strconv.ParseFloat(minRaw, 64); err != nil {
				BadRequest(c, "invalid min_score")
				return
			}
		}
		if hasMax {
			if hi, err = strconv.ParseFloat(maxRaw, 64); err != nil {
				BadRequest(c, "invalid max_score")
				return
			}
		}
		jobs, err := h.repo.GetJobsByScoreRange(ctx, lo, hi)
		if err != nil {
			Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, jobs)
		return
	}

	jobs, err := h.repo.GetAllJobs(ctx)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// LookupJob 按 URL 查询岗位。
func (h *JobHandler) LookupJob(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		BadRequest(c, "url is required")
		return
	}
	job, err := h.repo.GetJobByURL(c.Request.Context(), url)
	if err != nil {
		Fail(c, err)
		return
	}
	if job == nil {
		NotFound(c, "job not found")
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetJob 返回单个岗位。
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.respondJob(c, id)
}

type updateJobRequest struct {
	Title                 *string                `json:"title"`
	TitleConfidence       *repository.Confidence `json:"title_confidence"`
	Company               *string                `json:"company"`
	CompanyConfidence     *repository.Confidence `json:"company_confidence"`
	Description           *string                `json:"description"`
	DescriptionConfidence *repository.Confidence `json:"description_confidence"`
}

// UpdateJob 修正岗位的提取字段；分析字段只能由分析流程写入。
func (h *JobHandler) UpdateJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	err := h.repo.UpdateJob(c.Request.Context(), id, repository.JobUpdate{
		Title:                 req.Title,
		TitleConfidence:       req.TitleConfidence,
		Company:               req.Company,
		CompanyConfidence:     req.CompanyConfidence,
		Description:           req.Description,
		DescriptionConfidence: req.DescriptionConfidence,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	h.respondJob(c, id)
}

// AnalyzeJob 将岗位分析请求加入队列。
func (h *JobHandler) AnalyzeJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if h.queue == nil {
		Error(c, http.StatusServiceUnavailable, "analysis queue is not configured")
		return
	}
	job, err := h.repo.GetJob(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if job == nil {
		NotFound(c, "job not found")
		return
	}

	taskID, err := h.queue.EnqueueAnalysis(c.Request.Context(), id, middleware.GetCorrelationID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": "analysis request accepted",
		"task_id": taskID,
	})
}

// TrackJob 为岗位创建投递记录；已存在时返回原记录。
func (h *JobHandler) TrackJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}
	app, created, err := h.tracker.TrackJob(c.Request.Context(), id, req.Note)
	if err != nil {
		Fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"application": app, "created": created})
}

// ListApplications 返回岗位下的投递记录。
func (h *JobHandler) ListApplications(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	apps, err := h.repo.GetApplicationsForJob(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

type createVersionRequest struct {
	ResumeID        int64   `json:"resume_id" binding:"required"`
	ModifiedContent string  `json:"modified_content" binding:"required"`
	CertaintyScore  float64 `json:"certainty_score"`
	ChangesSummary  string  `json:"changes_summary"`
}

// CreateVersion 保存针对岗位定制的简历版本。
func (h *JobHandler) CreateVersion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req createVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	resume, err := h.repo.GetResume(ctx, req.ResumeID)
	if err != nil {
		Fail(c, err)
		return
	}
	if resume == nil {
		NotFound(c, "resume not found")
		return
	}

	jobID := id
	versionID, err := h.repo.CreateResumeVersion(ctx, repository.ResumeVersion{
		ResumeID:        req.ResumeID,
		JobID:           &jobID,
		ModifiedContent: req.ModifiedContent,
		CertaintyScore:  req.CertaintyScore,
		ChangesSummary:  req.ChangesSummary,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	version, err := h.repo.GetResumeVersion(ctx, versionID)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

// ListVersions 返回岗位下的定制简历版本。
func (h *JobHandler) ListVersions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	versions, err := h.repo.GetResumeVersionsForJob(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *JobHandler) respondJob(c *gin.Context, id int64) {
	job, err := h.repo.GetJob(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if job == nil {
		NotFound(c, "job not found")
		return
	}
	c.JSON(http.StatusOK, job)
}
