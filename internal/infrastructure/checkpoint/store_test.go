package checkpoint

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	domainCheckpoint "github.com/meetily/backend/internal/domain/checkpoint"
	"github.com/meetily/backend/internal/domain/meeting"
)

func setupStore(t *testing.T) (domainCheckpoint.Store, *sql.DB, string) {
	t.Helper()
	dir := t.TempDir()

	db, err := sql.Open("sqlite", filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, db, dir
}

func beginSession(t *testing.T, store domainCheckpoint.Store, dir, id string) *domainCheckpoint.Session {
	t.Helper()
	session := &domainCheckpoint.Session{
		ID:         id,
		Title:      "测试会议",
		FolderPath: filepath.Join(dir, id),
		SampleRate: 16000,
	}
	require.NoError(t, store.Begin(session))
	return session
}

// touchSession 直接改写 last_updated，模拟不同年龄的会话
func touchSession(t *testing.T, db *sql.DB, id string, lastUpdated time.Time) {
	t.Helper()
	_, err := db.Exec(`UPDATE checkpoint_sessions SET last_updated = ? WHERE id = ?`, lastUpdated.Unix(), id)
	require.NoError(t, err)
}

// TestStore_AppendAudioAndFlush 测试音频块异步落盘
func TestStore_AppendAudioAndFlush(t *testing.T) {
	store, _, dir := setupStore(t)
	session := beginSession(t, store, dir, "session-audio")

	// 写三个音频块
	for i := 0; i < 3; i++ {
		pcm := make([]byte, 640)
		for j := range pcm {
			pcm[j] = byte(i)
		}
		require.NoError(t, store.AppendAudio(session.ID, pcm))
	}
	require.NoError(t, store.Flush(session.ID))

	// 落盘为按序号命名的独立文件
	for i := 0; i < 3; i++ {
		path := filepath.Join(session.FolderPath, fmt.Sprintf("chunk_%06d.pcm", i))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Len(t, data, 640)
		assert.Equal(t, byte(i), data[0])
	}

	hasAudio, err := store.HasAudio(session.FolderPath)
	require.NoError(t, err)
	assert.True(t, hasAudio)
}

// TestStore_AppendAudioAfterClose 测试已终结会话拒绝追加
func TestStore_AppendAudioAfterClose(t *testing.T) {
	store, _, dir := setupStore(t)
	session := beginSession(t, store, dir, "session-closed")

	require.NoError(t, store.MarkSaved(session.ID))

	err := store.AppendAudio(session.ID, make([]byte, 320))
	assert.ErrorIs(t, err, domainCheckpoint.ErrSessionClosed)
}

// TestStore_AppendSegment_FinalReplacesPartial 测试 final 片段替换同序号 partial 片段
func TestStore_AppendSegment_FinalReplacesPartial(t *testing.T) {
	store, _, dir := setupStore(t)
	session := beginSession(t, store, dir, "session-segments")

	partial := &meeting.TranscriptSegment{
		ID: "seg-p", Sequence: 1, Text: "临时文本",
		AudioStartTime: 0, AudioEndTime: 5, Confidence: 0.5, Final: false,
	}
	require.NoError(t, store.AppendSegment(session.ID, partial))

	final := &meeting.TranscriptSegment{
		ID: "seg-f", Sequence: 1, Text: "最终文本",
		AudioStartTime: 0, AudioEndTime: 5, Confidence: 0.9, Final: true,
		SupersedesID: "seg-p",
	}
	require.NoError(t, store.AppendSegment(session.ID, final))

	// 尝试用 partial 回退 final，应当被忽略
	stale := &meeting.TranscriptSegment{
		ID: "seg-stale", Sequence: 1, Text: "过期文本",
		AudioStartTime: 0, AudioEndTime: 5, Confidence: 0.3, Final: false,
	}
	require.NoError(t, store.AppendSegment(session.ID, stale))

	segments, err := store.LoadSegments(session.ID)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "seg-f", segments[0].ID)
	assert.Equal(t, "最终文本", segments[0].Text)
	assert.True(t, segments[0].Final)
	assert.Equal(t, "seg-p", segments[0].SupersedesID)
}

// TestStore_LoadSegments_Ordered 测试片段按音频时间全序读出
func TestStore_LoadSegments_Ordered(t *testing.T) {
	store, _, dir := setupStore(t)
	session := beginSession(t, store, dir, "session-order")

	starts := []float64{50, 0, 25}
	for i, start := range starts {
		seg := &meeting.TranscriptSegment{
			ID: fmt.Sprintf("seg-%d", i), Sequence: int64(i), Text: "x",
			AudioStartTime: start, AudioEndTime: start + 5, Final: true,
		}
		require.NoError(t, store.AppendSegment(session.ID, seg))
	}

	segments, err := store.LoadSegments(session.ID)
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, 0.0, segments[0].AudioStartTime)
	assert.Equal(t, 25.0, segments[1].AudioStartTime)
	assert.Equal(t, 50.0, segments[2].AudioStartTime)
}

// TestStore_ListRecoverable_AgeWindow 测试恢复候选的年龄窗口过滤
func TestStore_ListRecoverable_AgeWindow(t *testing.T) {
	store, db, dir := setupStore(t)
	now := time.Now()
	retention := 8 * 24 * time.Hour
	minAge := 15 * time.Second

	// 太新：10 秒前更新，可能仍在写入
	fresh := beginSession(t, store, dir, "session-fresh")
	touchSession(t, db, fresh.ID, now.Add(-10*time.Second))

	// 太旧：超过 8 天保留期
	stale := beginSession(t, store, dir, "session-stale")
	touchSession(t, db, stale.ID, now.Add(-9*24*time.Hour))

	// 窗口内：1 小时前更新
	candidate := beginSession(t, store, dir, "session-candidate")
	touchSession(t, db, candidate.ID, now.Add(-time.Hour))

	sessions, err := store.ListRecoverable(now, retention, minAge)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, candidate.ID, sessions[0].ID)
}

// TestStore_ListRecoverable_StateFilter 测试状态机过滤
func TestStore_ListRecoverable_StateFilter(t *testing.T) {
	store, db, dir := setupStore(t)
	now := time.Now()

	states := map[string]domainCheckpoint.SessionState{
		"session-active":     domainCheckpoint.StateActive,
		"session-finalizing": domainCheckpoint.StateFinalizing,
		"session-saved":      domainCheckpoint.StateSaved,
		"session-abandoned":  domainCheckpoint.StateAbandoned,
	}
	for id, state := range states {
		s := beginSession(t, store, dir, id)
		require.NoError(t, store.SetState(s.ID, state))
		touchSession(t, db, s.ID, now.Add(-time.Hour))
	}

	sessions, err := store.ListRecoverable(now, 8*24*time.Hour, 15*time.Second)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, s := range sessions {
		ids[s.ID] = true
	}
	// Finalizing 与 Saved 绝不进入候选
	assert.True(t, ids["session-active"])
	assert.True(t, ids["session-abandoned"])
	assert.False(t, ids["session-finalizing"])
	assert.False(t, ids["session-saved"])
}

// TestStore_SetState_NotFound 测试不存在会话的状态迁移
func TestStore_SetState_NotFound(t *testing.T) {
	store, _, _ := setupStore(t)
	err := store.SetState("session-missing", domainCheckpoint.StateSaved)
	assert.ErrorIs(t, err, domainCheckpoint.ErrSessionNotFound)
}

// TestStore_RecoverAudio_Success 测试完整音频重建
func TestStore_RecoverAudio_Success(t *testing.T) {
	store, _, dir := setupStore(t)
	session := beginSession(t, store, dir, "session-recover")

	for i := 0; i < 4; i++ {
		require.NoError(t, store.AppendAudio(session.ID, make([]byte, 3200)))
	}
	require.NoError(t, store.Flush(session.ID))

	result, err := store.RecoverAudio(session.FolderPath, 16000)
	require.NoError(t, err)
	assert.Equal(t, domainCheckpoint.RecoverySuccess, result.Status)
	assert.Equal(t, 4, result.ChunkCount)
	// 4 块 × 3200 字节 ÷ 2 字节每样本 ÷ 16000 Hz = 0.4 秒
	assert.InDelta(t, 0.4, result.DurationSeconds, 1e-6)

	// 重建出的 WAV 文件存在且带 44 字节头
	info, err := os.Stat(result.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(44+4*3200), info.Size())
}

// TestStore_RecoverAudio_PartialOnGap 测试缺块降级为部分重建
func TestStore_RecoverAudio_PartialOnGap(t *testing.T) {
	store, _, dir := setupStore(t)
	session := beginSession(t, store, dir, "session-gap")

	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendAudio(session.ID, make([]byte, 640)))
	}
	require.NoError(t, store.Flush(session.ID))

	// 删掉中间块制造缺口
	require.NoError(t, os.Remove(filepath.Join(session.FolderPath, "chunk_000001.pcm")))

	result, err := store.RecoverAudio(session.FolderPath, 16000)
	require.NoError(t, err)
	assert.Equal(t, domainCheckpoint.RecoveryPartial, result.Status)
	assert.Equal(t, 2, result.ChunkCount)
}

// TestStore_RecoverAudio_None 测试无音频目录
func TestStore_RecoverAudio_None(t *testing.T) {
	store, _, dir := setupStore(t)
	session := beginSession(t, store, dir, "session-empty")

	result, err := store.RecoverAudio(session.FolderPath, 16000)
	require.NoError(t, err)
	assert.Equal(t, domainCheckpoint.RecoveryNone, result.Status)

	hasAudio, err := store.HasAudio(session.FolderPath)
	require.NoError(t, err)
	assert.False(t, hasAudio)
}

// TestStore_Discard 测试不可逆丢弃
func TestStore_Discard(t *testing.T) {
	store, _, dir := setupStore(t)
	session := beginSession(t, store, dir, "session-discard")

	require.NoError(t, store.AppendAudio(session.ID, make([]byte, 640)))
	require.NoError(t, store.Flush(session.ID))
	require.NoError(t, store.AppendSegment(session.ID, &meeting.TranscriptSegment{
		ID: "seg-1", Sequence: 0, Text: "x", Final: true,
	}))

	require.NoError(t, store.Discard(session.ID))

	_, err := store.Get(session.ID)
	assert.ErrorIs(t, err, domainCheckpoint.ErrSessionNotFound)
	_, err = os.Stat(session.FolderPath)
	assert.True(t, os.IsNotExist(err))
}

// TestStore_Cleanup 测试音频块清理
func TestStore_Cleanup(t *testing.T) {
	store, _, dir := setupStore(t)
	session := beginSession(t, store, dir, "session-cleanup")

	require.NoError(t, store.AppendAudio(session.ID, make([]byte, 640)))
	require.NoError(t, store.Flush(session.ID))

	// 目录里的其它文件不受影响
	keepPath := filepath.Join(session.FolderPath, "recovered_1.wav")
	require.NoError(t, os.WriteFile(keepPath, []byte("wav"), 0644))

	require.NoError(t, store.Cleanup(session.FolderPath))

	hasAudio, err := store.HasAudio(session.FolderPath)
	require.NoError(t, err)
	assert.False(t, hasAudio)
	_, err = os.Stat(keepPath)
	assert.NoError(t, err)

	// 清理不存在的目录是无操作
	assert.NoError(t, store.Cleanup(filepath.Join(dir, "missing")))
}
