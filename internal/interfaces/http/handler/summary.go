package handler

import (
	"errors"
	"net/http"
	"strings"

	appSummarize "github.com/meetily/backend/internal/application/summarize"
	"github.com/meetily/backend/internal/domain/meeting"
	"github.com/meetily/backend/internal/domain/summary"
	"github.com/meetily/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// SummaryHandler 会议总结处理器
type SummaryHandler struct {
	manager     *appSummarize.Manager
	transcripts meeting.TranscriptRepository
}

// NewSummaryHandler 创建会议总结处理器
func NewSummaryHandler(manager *appSummarize.Manager, transcripts meeting.TranscriptRepository) *SummaryHandler {
	return &SummaryHandler{manager: manager, transcripts: transcripts}
}

// ProcessRequest 启动总结请求
type ProcessRequest struct {
	CustomPrompt string `json:"custom_prompt"`
	TemplateID   string `json:"template_id"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	ChunkSize    int    `json:"chunk_size"`
	Overlap      int    `json:"overlap"`
}

// Process 启动总结任务，立即返回进程 ID
// @Summary 启动总结任务
// @Tags 总结
// @Accept json
// @Produce json
// @Param id path string true "会议ID"
// @Param body body ProcessRequest false "总结参数"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse
// @Router /meetings/{id}/summary/process [post]
func (h *SummaryHandler) Process(c *gin.Context) {
	var req ProcessRequest
	// 请求体可省略，全部使用默认参数
	_ = c.ShouldBindJSON(&req)

	meetingID := c.Param("id")
	transcript, err := h.collectTranscript(meetingID)
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 500001, "读取转写内容失败", err.Error())
		return
	}

	processID, err := h.manager.Start(&appSummarize.StartRequest{
		MeetingID:    meetingID,
		Transcript:   transcript,
		CustomPrompt: req.CustomPrompt,
		TemplateID:   req.TemplateID,
		Provider:     req.Provider,
		Model:        req.Model,
		ChunkSize:    req.ChunkSize,
		Overlap:      req.Overlap,
	})
	if err != nil {
		switch {
		case errors.Is(err, summary.ErrJobRunning):
			response.Error(c, http.StatusConflict, 500002, "该会议已有进行中的总结任务")
		case errors.Is(err, summary.ErrEmptyTranscript):
			response.Error(c, http.StatusBadRequest, 500003, "会议没有可总结的转写内容")
		default:
			response.ErrorWithDetail(c, http.StatusInternalServerError, 500004, "启动总结任务失败", err.Error())
		}
		return
	}
	response.Success(c, gin.H{"process_id": processID})
}

// Get 查询总结状态与文档
// 轮询入口：读取无副作用，超时判定由管理器内部完成
// @Summary 查询总结
// @Tags 总结
// @Produce json
// @Param id path string true "会议ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /meetings/{id}/summary [get]
func (h *SummaryHandler) Get(c *gin.Context) {
	record, err := h.manager.Poll(c.Param("id"))
	if err != nil {
		if errors.Is(err, summary.ErrNoSummary) {
			response.Error(c, http.StatusNotFound, 500005, "会议没有总结记录")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 500006, "查询总结失败", err.Error())
		return
	}
	response.Success(c, record)
}

// Cancel 取消进行中的总结任务
// @Summary 取消总结任务
// @Tags 总结
// @Produce json
// @Param id path string true "会议ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /meetings/{id}/summary/cancel [post]
func (h *SummaryHandler) Cancel(c *gin.Context) {
	if err := h.manager.Cancel(c.Param("id")); err != nil {
		if errors.Is(err, summary.ErrNoSummary) {
			response.Error(c, http.StatusNotFound, 500007, "没有进行中的总结任务")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 500008, "取消总结任务失败", err.Error())
		return
	}
	response.Success(c, nil)
}

// Delete 删除会议总结
// @Summary 删除会议总结
// @Tags 总结
// @Produce json
// @Param id path string true "会议ID"
// @Success 200 {object} response.Response
// @Router /meetings/{id}/summary [delete]
func (h *SummaryHandler) Delete(c *gin.Context) {
	if err := h.manager.Delete(c.Param("id")); err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 500009, "删除总结失败", err.Error())
		return
	}
	response.Success(c, nil)
}

// collectTranscript 汇集会议全部 final 片段文本作为总结输入
func (h *SummaryHandler) collectTranscript(meetingID string) (string, error) {
	var parts []string
	offset := 0
	for {
		page, err := h.transcripts.Page(meetingID, maxPageLimit, offset)
		if err != nil {
			return "", err
		}
		for _, seg := range page.Segments {
			if text := strings.TrimSpace(seg.Text); text != "" {
				parts = append(parts, text)
			}
		}
		if !page.HasMore {
			break
		}
		offset += len(page.Segments)
	}
	return strings.Join(parts, "\n"), nil
}
