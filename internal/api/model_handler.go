package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gapgiraffe/internal/repository"
)

// ModelHandler 负责 AI 模型配置。
type ModelHandler struct {
	repo *repository.Repository
}

// NewModelHandler 构造 ModelHandler。
func NewModelHandler(repo *repository.Repository) *ModelHandler {
	return &ModelHandler{repo: repo}
}

// ListModels 返回全部模型配置。
func (h *ModelHandler) ListModels(c *gin.Context) {
	configs, err := h.repo.GetAllModelConfigs(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, configs)
}

// GetDefaultModel 返回默认模型配置。
func (h *ModelHandler) GetDefaultModel(c *gin.Context) {
	cfg, err := h.repo.GetDefaultModel(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	if cfg == nil {
		NotFound(c, "no default model")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type createModelRequest struct {
	Provider     string   `json:"provider" binding:"required"`
	ModelName    string   `json:"model_name" binding:"required"`
	APIKey       *string  `json:"api_key"`
	CostPerToken *float64 `json:"cost_per_token"`
	IsDefault    bool     `json:"is_default"`
	IsActive     bool     `json:"is_active"`
}

// CreateModel 新增模型配置。
func (h *ModelHandler) CreateModel(c *gin.Context) {
	var req createModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	id, err := h.repo.CreateModelConfig(c.Request.Context(), repository.ModelConfig{
		Provider:     req.Provider,
		ModelName:    req.ModelName,
		APIKey:       req.APIKey,
		CostPerToken: req.CostPerToken,
		IsDefault:    req.IsDefault,
		IsActive:     req.IsActive,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	h.respondModel(c, http.StatusCreated, id)
}

// UpdateModel 合并更新模型配置。
func (h *ModelHandler) UpdateModel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var update repository.ModelConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.repo.UpdateModelConfig(c.Request.Context(), id, update); err != nil {
		Fail(c, err)
		return
	}
	h.respondModel(c, http.StatusOK, id)
}

func (h *ModelHandler) respondModel(c *gin.Context, status int, id int64) {
	cfg, err := h.repo.GetModelConfig(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if cfg == nil {
		NotFound(c, "model config not found")
		return
	}
	c.JSON(status, cfg)
}
