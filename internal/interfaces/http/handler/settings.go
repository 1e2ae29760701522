package handler

import (
	"net/http"

	"github.com/meetily/backend/internal/infrastructure/storage"
	"github.com/meetily/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// SettingsHandler 设置处理器
type SettingsHandler struct {
	repo storage.SettingsRepository
}

// NewSettingsHandler 创建设置处理器
func NewSettingsHandler(repo storage.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{repo: repo}
}

// GetModelConfig 获取总结模型配置
// @Summary 获取总结模型配置
// @Tags 设置
// @Produce json
// @Success 200 {object} response.Response
// @Router /settings/model [get]
func (h *SettingsHandler) GetModelConfig(c *gin.Context) {
	cfg, err := h.repo.GetModelConfig()
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 900001, "获取模型配置失败", err.Error())
		return
	}
	response.Success(c, cfg)
}

// SaveModelConfig 保存总结模型配置
// @Summary 保存总结模型配置
// @Tags 设置
// @Accept json
// @Produce json
// @Param body body storage.ModelConfig true "模型配置"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /settings/model [post]
func (h *SettingsHandler) SaveModelConfig(c *gin.Context) {
	var cfg storage.ModelConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误")
		return
	}
	if cfg.Provider == "" || cfg.Model == "" {
		response.Error(c, http.StatusBadRequest, 900002, "provider 和 model 不能为空")
		return
	}
	if err := h.repo.SaveModelConfig(&cfg); err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 900003, "保存模型配置失败", err.Error())
		return
	}
	response.Success(c, nil)
}

// GetTranscriptConfig 获取转写配置
// @Summary 获取转写配置
// @Tags 设置
// @Produce json
// @Success 200 {object} response.Response
// @Router /settings/transcript [get]
func (h *SettingsHandler) GetTranscriptConfig(c *gin.Context) {
	cfg, err := h.repo.GetTranscriptConfig()
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 900004, "获取转写配置失败", err.Error())
		return
	}
	response.Success(c, cfg)
}

// SaveTranscriptConfig 保存转写配置
// @Summary 保存转写配置
// @Tags 设置
// @Accept json
// @Produce json
// @Param body body storage.TranscriptConfig true "转写配置"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /settings/transcript [post]
func (h *SettingsHandler) SaveTranscriptConfig(c *gin.Context) {
	var cfg storage.TranscriptConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误")
		return
	}
	if cfg.Model == "" {
		response.Error(c, http.StatusBadRequest, 900005, "model 不能为空")
		return
	}
	if err := h.repo.SaveTranscriptConfig(&cfg); err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 900006, "保存转写配置失败", err.Error())
		return
	}
	response.Success(c, nil)
}
