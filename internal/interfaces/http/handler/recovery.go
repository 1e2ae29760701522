package handler

import (
	"errors"
	"net/http"

	appRecovery "github.com/meetily/backend/internal/application/recovery"
	"github.com/meetily/backend/internal/domain/checkpoint"
	"github.com/meetily/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// RecoveryHandler 检查点恢复处理器
type RecoveryHandler struct {
	orchestrator *appRecovery.Orchestrator
}

// NewRecoveryHandler 创建检查点恢复处理器
func NewRecoveryHandler(orchestrator *appRecovery.Orchestrator) *RecoveryHandler {
	return &RecoveryHandler{orchestrator: orchestrator}
}

// List 列出当前的恢复候选
// @Summary 列出恢复候选
// @Tags 恢复
// @Produce json
// @Success 200 {object} response.Response
// @Router /recovery [get]
func (h *RecoveryHandler) List(c *gin.Context) {
	candidates, err := h.orchestrator.ListCandidates()
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 700001, "扫描恢复候选失败", err.Error())
		return
	}
	response.Success(c, candidates)
}

// Recover 把检查点会话恢复为正式会议
// @Summary 恢复检查点会话
// @Tags 恢复
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /recovery/{id}/recover [post]
func (h *RecoveryHandler) Recover(c *gin.Context) {
	result, err := h.orchestrator.Recover(c.Param("id"))
	if err != nil {
		if errors.Is(err, checkpoint.ErrSessionNotFound) {
			response.Error(c, http.StatusNotFound, 700002, "检查点会话不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 700003, "恢复检查点会话失败", err.Error())
		return
	}
	response.Success(c, result)
}

// Discard 不可逆地丢弃检查点会话
// @Summary 丢弃检查点会话
// @Tags 恢复
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /recovery/{id} [delete]
func (h *RecoveryHandler) Discard(c *gin.Context) {
	if err := h.orchestrator.Discard(c.Param("id")); err != nil {
		if errors.Is(err, checkpoint.ErrSessionNotFound) {
			response.Error(c, http.StatusNotFound, 700002, "检查点会话不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 700004, "丢弃检查点会话失败", err.Error())
		return
	}
	response.Success(c, nil)
}

// HasAudio 判断会话是否存在音频检查点
// @Summary 查询会话音频存在性
// @Tags 恢复
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /checkpoints/{id}/has-audio [get]
func (h *RecoveryHandler) HasAudio(c *gin.Context) {
	hasAudio, err := h.orchestrator.HasAudio(c.Param("id"))
	if err != nil {
		if errors.Is(err, checkpoint.ErrSessionNotFound) {
			response.Error(c, http.StatusNotFound, 700002, "检查点会话不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 700005, "查询会话音频失败", err.Error())
		return
	}
	response.Success(c, gin.H{"has_audio": hasAudio})
}

// RecoverAudio 按需重建会话音频
// 部分重建是被接受的结果，状态随结果返回
// @Summary 重建会话音频
// @Tags 恢复
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /checkpoints/{id}/recover-audio [post]
func (h *RecoveryHandler) RecoverAudio(c *gin.Context) {
	audio, err := h.orchestrator.RecoverAudio(c.Param("id"))
	if err != nil {
		if errors.Is(err, checkpoint.ErrSessionNotFound) {
			response.Error(c, http.StatusNotFound, 700002, "检查点会话不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 700006, "重建会话音频失败", err.Error())
		return
	}
	response.Success(c, audio)
}

// Cleanup 清理会话目录中的音频块
// @Summary 清理会话音频块
// @Tags 恢复
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /checkpoints/{id}/cleanup [post]
func (h *RecoveryHandler) Cleanup(c *gin.Context) {
	if err := h.orchestrator.CleanupAudio(c.Param("id")); err != nil {
		if errors.Is(err, checkpoint.ErrSessionNotFound) {
			response.Error(c, http.StatusNotFound, 700002, "检查点会话不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 700007, "清理会话音频块失败", err.Error())
		return
	}
	response.Success(c, nil)
}
