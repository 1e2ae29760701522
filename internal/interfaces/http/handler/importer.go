package handler

import (
	"errors"
	"net/http"

	appTranscription "github.com/meetily/backend/internal/application/transcription"
	"github.com/meetily/backend/internal/infrastructure/audiodev"
	"github.com/meetily/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// ImportHandler 音频文件导入处理器
type ImportHandler struct {
	service *appTranscription.ImportService
}

// NewImportHandler 创建导入处理器
func NewImportHandler(service *appTranscription.ImportService) *ImportHandler {
	return &ImportHandler{service: service}
}

// ValidateRequest 校验音频文件请求
type ValidateRequest struct {
	Path string `json:"path" binding:"required"`
}

// Validate 校验音频文件并返回元信息
// @Summary 校验音频文件
// @Tags 导入
// @Accept json
// @Produce json
// @Param body body ValidateRequest true "文件路径"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /import/validate [post]
func (h *ImportHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误")
		return
	}

	info, err := h.service.ValidateAudioFile(c.Request.Context(), req.Path)
	if err != nil {
		switch {
		case errors.Is(err, audiodev.ErrUnsupportedFormat):
			response.ErrorWithDetail(c, http.StatusBadRequest, 400001, "不支持的音频格式", err.Error())
		case errors.Is(err, audiodev.ErrInvalidAudioFile):
			response.ErrorWithDetail(c, http.StatusBadRequest, 400002, "音频文件无效", err.Error())
		default:
			response.ErrorWithDetail(c, http.StatusInternalServerError, 400003, "校验音频文件失败", err.Error())
		}
		return
	}
	response.Success(c, info)
}

// StartImportRequest 启动导入请求
type StartImportRequest struct {
	Path     string `json:"path" binding:"required"`
	Title    string `json:"title"`
	Language string `json:"language"`
	Model    string `json:"model"`
}

// Start 启动音频文件导入
// @Summary 启动音频文件导入
// @Tags 导入
// @Accept json
// @Produce json
// @Param body body StartImportRequest true "导入参数"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /import/start [post]
func (h *ImportHandler) Start(c *gin.Context) {
	var req StartImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误")
		return
	}

	importID, err := h.service.StartImport(appTranscription.ImportRequest{
		SourcePath: req.Path,
		Title:      req.Title,
		Language:   req.Language,
		Model:      req.Model,
	})
	if err != nil {
		response.ErrorWithDetail(c, http.StatusBadRequest, 400004, "启动导入失败", err.Error())
		return
	}
	response.Success(c, gin.H{"import_id": importID})
}

// Status 查询导入进度
// @Summary 查询导入进度
// @Tags 导入
// @Produce json
// @Param id path string true "导入任务ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /import/{id}/status [get]
func (h *ImportHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, appTranscription.ErrImportNotFound) {
			response.Error(c, http.StatusNotFound, 400005, "导入任务不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 400006, "查询导入进度失败", err.Error())
		return
	}
	response.Success(c, status)
}

// Cancel 取消导入并完整回滚
// @Summary 取消导入
// @Tags 导入
// @Produce json
// @Param id path string true "导入任务ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /import/{id}/cancel [post]
func (h *ImportHandler) Cancel(c *gin.Context) {
	if err := h.service.CancelImport(c.Param("id")); err != nil {
		if errors.Is(err, appTranscription.ErrImportNotFound) {
			response.Error(c, http.StatusNotFound, 400005, "导入任务不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 400007, "取消导入失败", err.Error())
		return
	}
	response.Success(c, nil)
}
