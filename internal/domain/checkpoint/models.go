// Package checkpoint 定义录音检查点领域模型
// 检查点使进行中的录音在进程异常终止后可恢复，不必等待最终保存
package checkpoint

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState 检查点会话状态机
// 显式状态机取代"刚保存"/"刚停止"这类短时标记，不再依赖时间戳启发式
type SessionState string

const (
	// StateActive 录音进行中，检查点持续追加
	StateActive SessionState = "active"
	// StateFinalizing 停止后保存进行中，恢复扫描必须跳过
	StateFinalizing SessionState = "finalizing"
	// StateSaved 已成功写入永久存储，不再是恢复候选
	StateSaved SessionState = "saved"
	// StateAbandoned 被恢复扫描判定为遗弃，等待用户决定
	StateAbandoned SessionState = "abandoned"
)

// Session 检查点会话
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// FolderPath 磁盘音频块所在目录
	FolderPath string       `json:"folder_path"`
	State      SessionState `json:"state"`
	SampleRate int          `json:"sample_rate"`
	StartedAt  time.Time    `json:"started_at"`
	// LastUpdated 最近一次追加时间，保留窗口过滤依据
	LastUpdated  time.Time `json:"last_updated"`
	ChunkCount   int       `json:"chunk_count"`
	SegmentCount int       `json:"segment_count"`
}

// NewSessionID 生成检查点会话 ID
func NewSessionID() string {
	return fmt.Sprintf("session-%s", uuid.New().String())
}

// RecoveryStatus 音频重建结果状态
type RecoveryStatus string

const (
	// RecoverySuccess 全部音频块重建成功
	RecoverySuccess RecoveryStatus = "success"
	// RecoveryPartial 部分音频块缺失或损坏，重建出可用但不完整的音频
	// 这是被接受并上报的结果，不是错误
	RecoveryPartial RecoveryStatus = "partial"
	// RecoveryFailed 存在音频块但全部无法重建
	RecoveryFailed RecoveryStatus = "failed"
	// RecoveryNone 目录中没有任何音频块
	RecoveryNone RecoveryStatus = "none"
)

// RecoveredAudio 音频重建结果
type RecoveredAudio struct {
	Status RecoveryStatus `json:"status"`
	// Path 重建出的 WAV 文件路径，Status 为 none/failed 时为空
	Path            string  `json:"path,omitempty"`
	ChunkCount      int     `json:"chunk_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Candidate 恢复候选：通过全部过滤条件的遗弃会话
type Candidate struct {
	Session *Session `json:"session"`
	// HasAudio 目录中是否存在音频检查点
	// 无音频不排除候选资格（纯转写恢复也有效），但必须区分上报
	HasAudio bool `json:"has_audio"`
}
