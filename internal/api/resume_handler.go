package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gapgiraffe/internal/repository"
)

// ResumeHandler 负责处理与简历相关的 API 请求。
type ResumeHandler struct {
	repo *repository.Repository
}

// NewResumeHandler 构造 ResumeHandler。
func NewResumeHandler(repo *repository.Repository) *ResumeHandler {
	return &ResumeHandler{repo: repo}
}

type createResumeRequest struct {
	Name            string              `json:"name" binding:"required"`
	OriginalContent string              `json:"original_content" binding:"required"`
	FileType        repository.FileType `json:"file_type" binding:"required"`
	IsMaster        bool                `json:"is_master"`
}

// CreateResume 保存一份新的简历；第一份简历自动成为主简历。
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	var req createResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	id, err := h.repo.CreateResume(c.Request.Context(), repository.Resume{
		Name:            req.Name,
		OriginalContent: req.OriginalContent,
		FileType:        req.FileType,
		IsMaster:        req.IsMaster,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	h.respondResume(c, http.StatusCreated, id)
}

// ListResumes 返回全部简历。
func (h *ResumeHandler) ListResumes(c *gin.Context) {
	resumes, err := h.repo.GetAllResumes(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resumes)
}

// GetResume 返回单份简历。
func (h *ResumeHandler) GetResume(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.respondResume(c, http.StatusOK, id)
}

// GetMasterResume 返回主简历。
func (h *ResumeHandler) GetMasterResume(c *gin.Context) {
	resume, err := h.repo.GetMasterResume(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	if resume == nil {
		NotFound(c, "no master resume")
		return
	}
	c.JSON(http.StatusOK, resume)
}

// UpdateResume 合并更新简历字段。
func (h *ResumeHandler) UpdateResume(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var update repository.ResumeUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.repo.UpdateResume(c.Request.Context(), id, update); err != nil {
		Fail(c, err)
		return
	}
	h.respondResume(c, http.StatusOK, id)
}

// SetMaster 将简历设为主简历。
func (h *ResumeHandler) SetMaster(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.repo.SetMasterResume(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	h.respondResume(c, http.StatusOK, id)
}

// DeleteResume 删除简历，不存在时同样返回成功。
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteResume(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListVersions 返回基于该简历定制的版本。
func (h *ResumeHandler) ListVersions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	versions, err := h.repo.GetResumeVersionsForResume(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// GetVersion 返回单个定制版本。
func (h *ResumeHandler) GetVersion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	version, err := h.repo.GetResumeVersion(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if version == nil {
		NotFound(c, "resume version not found")
		return
	}
	c.JSON(http.StatusOK, version)
}

func (h *ResumeHandler) respondResume(c *gin.Context, status int, id int64) {
	resume, err := h.repo.GetResume(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if resume == nil {
		NotFound(c, "resume not found")
		return
	}
	c.JSON(status, resume)
}
