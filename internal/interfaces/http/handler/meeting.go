package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/meetily/backend/internal/domain/meeting"
	"github.com/meetily/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// 分页默认与上限，超限请求夹取而非报错
const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// MeetingHandler 会议处理器
type MeetingHandler struct {
	meetings    meeting.Repository
	transcripts meeting.TranscriptRepository
}

// NewMeetingHandler 创建会议处理器
func NewMeetingHandler(meetings meeting.Repository, transcripts meeting.TranscriptRepository) *MeetingHandler {
	return &MeetingHandler{meetings: meetings, transcripts: transcripts}
}

// List 按创建时间倒序列出所有会议
// @Summary 获取会议列表
// @Tags 会议
// @Produce json
// @Success 200 {object} response.Response
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	meetings, err := h.meetings.List()
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 300001, "获取会议列表失败", err.Error())
		return
	}
	response.Success(c, meetings)
}

// Get 查询单个会议
// @Summary 查询会议
// @Tags 会议
// @Produce json
// @Param id path string true "会议ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /meetings/{id} [get]
func (h *MeetingHandler) Get(c *gin.Context) {
	m, err := h.meetings.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, meeting.ErrMeetingNotFound) {
			response.Error(c, http.StatusNotFound, 300002, "会议不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 300003, "查询会议失败", err.Error())
		return
	}
	response.Success(c, m)
}

// UpdateTitleRequest 更新会议标题请求
type UpdateTitleRequest struct {
	Title string `json:"title" binding:"required"`
}

// UpdateTitle 更新会议标题
// @Summary 更新会议标题
// @Tags 会议
// @Accept json
// @Produce json
// @Param id path string true "会议ID"
// @Param body body UpdateTitleRequest true "新标题"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /meetings/{id}/title [put]
func (h *MeetingHandler) UpdateTitle(c *gin.Context) {
	var req UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误")
		return
	}

	if err := h.meetings.UpdateTitle(c.Param("id"), req.Title); err != nil {
		if errors.Is(err, meeting.ErrMeetingNotFound) {
			response.Error(c, http.StatusNotFound, 300002, "会议不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 300004, "更新会议标题失败", err.Error())
		return
	}
	response.Success(c, nil)
}

// Delete 删除会议及其转写与总结
// @Summary 删除会议
// @Tags 会议
// @Produce json
// @Param id path string true "会议ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /meetings/{id} [delete]
func (h *MeetingHandler) Delete(c *gin.Context) {
	if err := h.meetings.Delete(c.Param("id")); err != nil {
		if errors.Is(err, meeting.ErrMeetingNotFound) {
			response.Error(c, http.StatusNotFound, 300002, "会议不存在")
			return
		}
		response.ErrorWithDetail(c, http.StatusInternalServerError, 300005, "删除会议失败", err.Error())
		return
	}
	response.Success(c, nil)
}

// Transcripts 分页读取会议转写片段
// 排序按音频相对起始时间，同一起始时间按序列号，跨页稳定
// @Summary 分页读取转写片段
// @Tags 会议
// @Produce json
// @Param id path string true "会议ID"
// @Param limit query int false "每页条数，默认 100"
// @Param offset query int false "偏移量"
// @Success 200 {object} response.Response
// @Router /meetings/{id}/transcripts [get]
func (h *MeetingHandler) Transcripts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	page, err := h.transcripts.Page(c.Param("id"), limit, offset)
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 300006, "读取转写片段失败", err.Error())
		return
	}
	response.Success(c, page)
}

// Search 跨会议全文检索转写内容
// @Summary 检索转写内容
// @Tags 会议
// @Produce json
// @Param q query string true "检索关键词"
// @Success 200 {object} response.Response
// @Router /meetings/search [get]
func (h *MeetingHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.Error(c, http.StatusBadRequest, 100001, "检索关键词不能为空")
		return
	}

	results, err := h.transcripts.Search(query)
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 300007, "检索失败", err.Error())
		return
	}
	response.Success(c, results)
}
