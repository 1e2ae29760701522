package checkpoint

import (
	"errors"
	"time"

	"github.com/meetily/backend/internal/domain/meeting"
)

var (
	// ErrSessionNotFound 检查点会话不存在
	ErrSessionNotFound = errors.New("checkpoint session not found")
	// ErrSessionClosed 会话已终结，不能继续追加
	ErrSessionClosed = errors.New("checkpoint session closed")
)

// Store 检查点存储接口
// 追加路径必须低延迟且有界：允许缓冲后异步落盘，绝不阻塞采集热路径
// 同一会话不支持并发写入者；不同会话之间读写互不干扰
type Store interface {
	// Begin 登记新会话并创建音频块目录
	Begin(session *Session) error
	// AppendAudio 追加一个音频块（PCM16 小端字节），缓冲异步落盘
	AppendAudio(sessionID string, pcm []byte) error
	// AppendSegment 追加一个转写片段
	AppendSegment(sessionID string, seg *meeting.TranscriptSegment) error
	// Flush 等待会话的缓冲数据全部落盘
	Flush(sessionID string) error
	// SetState 迁移会话状态
	SetState(sessionID string, state SessionState) error
	// Get 查询会话
	Get(sessionID string) (*Session, error)
	// ListRecoverable 列出满足恢复条件的会话：
	// now-retention < last_updated < now-minAge，且状态不是 Finalizing/Saved
	ListRecoverable(now time.Time, retention, minAge time.Duration) ([]*Session, error)
	// LoadSegments 读取会话已检查点化的全部转写片段（全序）
	LoadSegments(sessionID string) ([]*meeting.TranscriptSegment, error)
	// HasAudio 判断目录中是否存在音频检查点
	HasAudio(folder string) (bool, error)
	// RecoverAudio 尽力从音频块重建连续 WAV 文件
	// 部分重建是被接受的结果而非错误
	RecoverAudio(folder string, sampleRate int) (*RecoveredAudio, error)
	// MarkSaved 标记会话已保存，移出恢复候选
	MarkSaved(sessionID string) error
	// Discard 不可逆地丢弃会话及其音频块
	Discard(sessionID string) error
	// Cleanup 清理目录中的音频块文件，失败不影响已完成的恢复
	Cleanup(folder string) error
	// Close 停止后台刷盘并落盘全部缓冲
	Close() error
}
