package handler

import (
	"errors"
	"net/http"

	appCapture "github.com/meetily/backend/internal/application/capture"
	"github.com/meetily/backend/internal/domain/audio"
	"github.com/meetily/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// CaptureHandler 音频采集处理器
type CaptureHandler struct {
	service *appCapture.Service
}

// NewCaptureHandler 创建音频采集处理器
func NewCaptureHandler(service *appCapture.Service) *CaptureHandler {
	return &CaptureHandler{service: service}
}

// ListDevices 枚举音频设备
// @Summary 枚举音频设备
// @Tags 采集
// @Produce json
// @Success 200 {object} response.Response
// @Router /devices [get]
func (h *CaptureHandler) ListDevices(c *gin.Context) {
	devices, err := h.service.EnumerateDevices(c.Request.Context())
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 200001, "枚举音频设备失败", err.Error())
		return
	}
	// 零设备是合法结果，前端据此提示用户检查权限
	response.Success(c, devices)
}

// StartCaptureRequest 启动采集请求
type StartCaptureRequest struct {
	MicDevice    string `json:"mic_device"`
	SystemDevice string `json:"system_device"`
	Title        string `json:"title"`
}

// Start 启动采集会话
// @Summary 启动采集会话
// @Tags 采集
// @Accept json
// @Produce json
// @Param body body StartCaptureRequest true "设备选择"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse
// @Router /capture/start [post]
func (h *CaptureHandler) Start(c *gin.Context) {
	var req StartCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误")
		return
	}

	status, err := h.service.StartCapture(c.Request.Context(), req.MicDevice, req.SystemDevice, req.Title)
	if err != nil {
		switch {
		case errors.Is(err, audio.ErrCaptureActive):
			response.Error(c, http.StatusConflict, 200002, "已有进行中的采集会话")
		case errors.Is(err, audio.ErrDeviceUnavailable):
			response.ErrorWithDetail(c, http.StatusServiceUnavailable, 200003, "音频设备不可用", err.Error())
		default:
			response.ErrorWithDetail(c, http.StatusInternalServerError, 200004, "启动采集失败", err.Error())
		}
		return
	}
	response.Success(c, status)
}

// Stop 停止采集并保存会议
// @Summary 停止采集并保存会议
// @Tags 采集
// @Produce json
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /capture/stop [post]
func (h *CaptureHandler) Stop(c *gin.Context) {
	m, err := h.service.StopCapture(c.Request.Context())
	if err != nil {
		if errors.Is(err, audio.ErrNoCapture) {
			response.Error(c, http.StatusNotFound, 200005, "没有进行中的采集会话")
			return
		}
		// 保存失败时检查点仍然保留，可通过恢复流程找回
		response.ErrorWithDetail(c, http.StatusInternalServerError, 200006, "保存会议失败", err.Error())
		return
	}
	response.Success(c, m)
}

// Status 查询采集状态
// @Summary 查询采集状态
// @Tags 采集
// @Produce json
// @Success 200 {object} response.Response
// @Router /capture/status [get]
func (h *CaptureHandler) Status(c *gin.Context) {
	status, err := h.service.Status()
	if err != nil {
		if errors.Is(err, audio.ErrNoCapture) {
			response.Success(c, gin.H{"active": false})
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 200007, "查询采集状态失败", err.Error())
		return
	}
	response.Success(c, gin.H{"active": true, "status": status})
}

// LevelsRequest 电平监测请求
type LevelsRequest struct {
	Devices []string `json:"devices"`
}

// StartLevels 启动设备电平监测
// @Summary 启动设备电平监测
// @Tags 采集
// @Accept json
// @Produce json
// @Param body body LevelsRequest true "设备名列表"
// @Success 200 {object} response.Response
// @Router /levels/start [post]
func (h *CaptureHandler) StartLevels(c *gin.Context) {
	var req LevelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误")
		return
	}
	if err := h.service.StartLevelMonitoring(req.Devices); err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 200008, "启动电平监测失败", err.Error())
		return
	}
	response.Success(c, nil)
}

// StopLevels 停止设备电平监测
// @Summary 停止设备电平监测
// @Tags 采集
// @Accept json
// @Produce json
// @Param body body LevelsRequest false "设备名列表，为空表示全部停止"
// @Success 200 {object} response.Response
// @Router /levels/stop [post]
func (h *CaptureHandler) StopLevels(c *gin.Context) {
	var req LevelsRequest
	// 请求体可省略，省略等价于停止全部
	_ = c.ShouldBindJSON(&req)
	h.service.StopLevelMonitoring(req.Devices)
	response.Success(c, nil)
}
