// Package recovery 实现检查点会话的恢复编排
// 扫描遗弃会话，把检查点化的转写与音频转化为正式会议记录
package recovery

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/meetily/backend/internal/domain/checkpoint"
	"github.com/meetily/backend/internal/domain/events"
	"github.com/meetily/backend/internal/domain/meeting"
	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/log"
)

// Result 单个会话的恢复结果
type Result struct {
	SessionID string `json:"session_id"`
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title"`
	// SegmentsCount 恢复出的转写片段数
	SegmentsCount int `json:"segments_count"`
	// Audio 音频重建结果，会话无音频时 Status 为 none
	Audio *checkpoint.RecoveredAudio `json:"audio"`
}

// Orchestrator 恢复编排器
// 恢复分三段推进：读取检查点 → 重建音频 → 提交会议
// 只有提交成功后才把会话标记为已保存；清理失败不影响恢复结果
type Orchestrator struct {
	store       checkpoint.Store
	meetingRepo meeting.Repository
	eventBus    events.EventBus
	cfg         *config.CheckpointConfig
	logger      *slog.Logger
}

// NewOrchestrator 创建恢复编排器
func NewOrchestrator(
	store checkpoint.Store,
	meetingRepo meeting.Repository,
	eventBus events.EventBus,
	cfg *config.CheckpointConfig,
) *Orchestrator {
	return &Orchestrator{
		store:       store,
		meetingRepo: meetingRepo,
		eventBus:    eventBus,
		cfg:         cfg,
		logger:      log.NewModuleLogger("application", "recovery"),
	}
}

// ListCandidates 列出当前的恢复候选
// 过滤条件：状态机排除 Finalizing/Saved，年龄落在 (minAge, retention) 窗口内
// 每个候选单独判断音频是否存在：纯转写恢复同样有效，但上报时区分
func (o *Orchestrator) ListCandidates() ([]*checkpoint.Candidate, error) {
	sessions, err := o.store.ListRecoverable(time.Now(), o.cfg.Retention, o.cfg.MinAge)
	if err != nil {
		return nil, fmt.Errorf("list recoverable sessions: %w", err)
	}

	candidates := make([]*checkpoint.Candidate, 0, len(sessions))
	for _, session := range sessions {
		hasAudio, err := o.store.HasAudio(session.FolderPath)
		if err != nil {
			o.logger.Warn("检查会话音频失败", "session_id", session.ID, "error", err)
			hasAudio = false
		}
		candidates = append(candidates, &checkpoint.Candidate{
			Session:  session,
			HasAudio: hasAudio,
		})
	}
	return candidates, nil
}

// Recover 把检查点会话恢复为正式会议
func (o *Orchestrator) Recover(sessionID string) (*Result, error) {
	session, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session.State == checkpoint.StateSaved || session.State == checkpoint.StateFinalizing {
		return nil, fmt.Errorf("session %s is not recoverable in state %s", sessionID, session.State)
	}

	// 第一段：读取检查点化的转写片段
	segments, err := o.store.LoadSegments(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint segments: %w", err)
	}

	// 第二段：尽力重建音频，部分重建与无音频都接受
	audio := &checkpoint.RecoveredAudio{Status: checkpoint.RecoveryNone}
	hasAudio, err := o.store.HasAudio(session.FolderPath)
	if err != nil {
		o.logger.Warn("检查会话音频失败", "session_id", sessionID, "error", err)
	}
	if hasAudio {
		audio, err = o.store.RecoverAudio(session.FolderPath, session.SampleRate)
		if err != nil {
			// 音频重建失败不阻止转写恢复
			o.logger.Warn("音频重建失败", "session_id", sessionID, "error", err)
			audio = &checkpoint.RecoveredAudio{Status: checkpoint.RecoveryFailed}
		}
	}

	if len(segments) == 0 && audio.Status != checkpoint.RecoverySuccess && audio.Status != checkpoint.RecoveryPartial {
		return nil, fmt.Errorf("session %s has nothing to recover", sessionID)
	}

	// 第三段：单事务提交会议与片段，成功后才标记已保存
	title := session.Title
	if title == "" {
		title = fmt.Sprintf("恢复的会议 %s", session.StartedAt.Format("2006-01-02 15:04"))
	}
	m := &meeting.Meeting{
		ID:         meeting.NewMeetingID(),
		Title:      title,
		CreatedAt:  session.StartedAt,
		UpdatedAt:  time.Now(),
		FolderPath: session.FolderPath,
	}
	for _, seg := range segments {
		seg.MeetingID = m.ID
	}
	if err := o.meetingRepo.CreateWithSegments(m, segments); err != nil {
		return nil, fmt.Errorf("commit recovered meeting: %w", err)
	}
	if err := o.store.MarkSaved(sessionID); err != nil {
		// 会议已提交，标记失败只会让会话再次出现在候选中
		o.logger.Error("标记会话已保存失败", "session_id", sessionID, "error", err)
	}

	// 清理音频块失败不影响恢复结果
	if err := o.store.Cleanup(session.FolderPath); err != nil {
		o.logger.Warn("清理检查点音频块失败", "session_id", sessionID, "error", err)
	}

	o.eventBus.Publish(events.NewCheckpointRecoveredEvent(events.CheckpointRecoveredPayload{
		SessionID:     sessionID,
		MeetingID:     m.ID,
		SegmentsCount: len(segments),
		AudioStatus:   string(audio.Status),
	}))
	o.logger.Info("检查点会话已恢复",
		"session_id", sessionID,
		"meeting_id", m.ID,
		"segments", len(segments),
		"audio_status", audio.Status)

	return &Result{
		SessionID:     sessionID,
		MeetingID:     m.ID,
		Title:         title,
		SegmentsCount: len(segments),
		Audio:         audio,
	}, nil
}

// Discard 不可逆地丢弃一个检查点会话
func (o *Orchestrator) Discard(sessionID string) error {
	if err := o.store.Discard(sessionID); err != nil {
		return err
	}
	o.logger.Info("检查点会话已丢弃", "session_id", sessionID)
	return nil
}

// HasAudio 判断会话目录中是否存在音频检查点
func (o *Orchestrator) HasAudio(sessionID string) (bool, error) {
	session, err := o.store.Get(sessionID)
	if err != nil {
		return false, err
	}
	return o.store.HasAudio(session.FolderPath)
}

// RecoverAudio 按需单独重建会话音频
func (o *Orchestrator) RecoverAudio(sessionID string) (*checkpoint.RecoveredAudio, error) {
	session, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return o.store.RecoverAudio(session.FolderPath, session.SampleRate)
}

// CleanupAudio 清理会话目录中的音频块
func (o *Orchestrator) CleanupAudio(sessionID string) error {
	session, err := o.store.Get(sessionID)
	if err != nil {
		return err
	}
	return o.store.Cleanup(session.FolderPath)
}

// ScanOnStartup 启动时扫描一次，把仍标记为 active 的过期会话转为 abandoned
func (o *Orchestrator) ScanOnStartup() {
	candidates, err := o.ListCandidates()
	if err != nil {
		o.logger.Error("启动恢复扫描失败", "error", err)
		return
	}
	for _, c := range candidates {
		if c.Session.State != checkpoint.StateActive {
			continue
		}
		if err := o.store.SetState(c.Session.ID, checkpoint.StateAbandoned); err != nil {
			o.logger.Warn("标记会话为遗弃失败", "session_id", c.Session.ID, "error", err)
		}
	}
	if len(candidates) > 0 {
		o.logger.Info("发现可恢复的检查点会话", "count", len(candidates))
	}
}
