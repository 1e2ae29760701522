package handler

import (
	"errors"
	"net/http"

	appModel "github.com/meetily/backend/internal/application/speechmodel"
	domainModel "github.com/meetily/backend/internal/domain/speechmodel"
	"github.com/meetily/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// ModelHandler 语音模型管理处理器
type ModelHandler struct {
	service *appModel.Service
}

// NewModelHandler 创建语音模型管理处理器
func NewModelHandler(service *appModel.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// List 列出全部已知模型及其状态
// 状态以文件系统为准实时判定，不依赖缓存
// @Summary 列出语音模型
// @Tags 模型
// @Produce json
// @Success 200 {object} response.Response
// @Router /models [get]
func (h *ModelHandler) List(c *gin.Context) {
	models, err := h.service.ListModels()
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 600001, "列出模型失败", err.Error())
		return
	}
	response.Success(c, models)
}

// Download 启动模型下载
// @Summary 下载语音模型
// @Tags 模型
// @Produce json
// @Param name path string true "模型名"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /models/{name}/download [post]
func (h *ModelHandler) Download(c *gin.Context) {
	name := c.Param("name")
	if err := h.service.DownloadModel(name); err != nil {
		switch {
		case errors.Is(err, domainModel.ErrModelUnknown):
			response.Error(c, http.StatusNotFound, 600002, "未知模型")
		case errors.Is(err, domainModel.ErrDownloadActive):
			response.Error(c, http.StatusConflict, 600003, "模型已在下载中")
		default:
			response.ErrorWithDetail(c, http.StatusInternalServerError, 600004, "启动下载失败", err.Error())
		}
		return
	}
	response.Success(c, gin.H{"model": name})
}

// CancelDownload 取消模型下载
// 取消不存在的下载是无操作
// @Summary 取消模型下载
// @Tags 模型
// @Produce json
// @Param name path string true "模型名"
// @Success 200 {object} response.Response
// @Router /models/{name}/download [delete]
func (h *ModelHandler) CancelDownload(c *gin.Context) {
	h.service.CancelDownload(c.Param("name"))
	response.Success(c, nil)
}

// Delete 删除已下载的模型文件
// @Summary 删除语音模型
// @Tags 模型
// @Produce json
// @Param name path string true "模型名"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /models/{name} [delete]
func (h *ModelHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteModel(c.Param("name")); err != nil {
		if errors.Is(err, domainModel.ErrModelUnknown) {
			response.Error(c, http.StatusNotFound, 600002, "未知模型")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 600005, "删除模型失败", err.Error())
		return
	}
	response.Success(c, nil)
}
