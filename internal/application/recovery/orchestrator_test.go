package recovery

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
	"github.com/meetily/backend/internal/infrastructure/checkpoint"
	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/storage"
	"github.com/meetily/backend/internal/infrastructure/watcher"
)

type fixture struct {
	orchestrator *Orchestrator
	store        domainCheckpoint.Store
	meetings     meeting.Repository
	transcripts  meeting.TranscriptRepository
	db           *sql.DB
	dir          string
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	db, err := sql.Open("sqlite", filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, storage.InitSchema(db))
	t.Cleanup(func() { db.Close() })

	store, err := checkpoint.NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := watcher.NewEventBus()
	t.Cleanup(bus.Close)

	cfg := &config.CheckpointConfig{
		Retention: 8 * 24 * time.Hour,
		MinAge:    15 * time.Second,
	}
	meetings := storage.NewMeetingRepository(db)
	return &fixture{
		orchestrator: NewOrchestrator(store, meetings, bus, cfg),
		store:        store,
		meetings:     meetings,
		transcripts:  storage.NewTranscriptRepository(db),
		db:           db,
		dir:          dir,
	}
}

// abandonedSession 登记一个带片段和音频、年龄落在恢复窗口内的会话
func (f *fixture) abandonedSession(t *testing.T, id string, segmentCount, chunkCount int) *domainCheckpoint.Session {
	t.Helper()
	session := &domainCheckpoint.Session{
		ID:         id,
		Title:      "中断的会议",
		FolderPath: filepath.Join(f.dir, id),
		SampleRate: 16000,
	}
	require.NoError(t, f.store.Begin(session))

	for i := 0; i < segmentCount; i++ {
		require.NoError(t, f.store.AppendSegment(id, &meeting.TranscriptSegment{
			ID:             fmt.Sprintf("%s-seg-%d", id, i),
			Sequence:       int64(i),
			Text:           fmt.Sprintf("片段 %d", i),
			Timestamp:      time.Now(),
			AudioStartTime: float64(i) * 5,
			AudioEndTime:   float64(i)*5 + 5,
			Confidence:     0.9,
			Final:          true,
		}))
	}
	for i := 0; i < chunkCount; i++ {
		require.NoError(t, f.store.AppendAudio(id, make([]byte, 640)))
	}
	require.NoError(t, f.store.Flush(id))

	// 退回到恢复窗口内
	_, err := f.db.Exec(`UPDATE checkpoint_sessions SET last_updated = ? WHERE id = ?`,
		time.Now().Add(-time.Hour).Unix(), id)
	require.NoError(t, err)
	return session
}

// TestOrchestrator_ListCandidates 测试候选列表给每个会话标注音频存在性
func TestOrchestrator_ListCandidates(t *testing.T) {
	f := setupFixture(t)
	f.abandonedSession(t, "session-with-audio", 2, 3)
	f.abandonedSession(t, "session-no-audio", 2, 0)

	candidates, err := f.orchestrator.ListCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	byID := map[string]*domainCheckpoint.Candidate{}
	for _, c := range candidates {
		byID[c.Session.ID] = c
	}
	assert.True(t, byID["session-with-audio"].HasAudio)
	assert.False(t, byID["session-no-audio"].HasAudio)
}

// TestOrchestrator_Recover 测试完整恢复：片段入库、音频重建、会话标记已保存
func TestOrchestrator_Recover(t *testing.T) {
	f := setupFixture(t)
	session := f.abandonedSession(t, "session-full", 3, 4)

	result, err := f.orchestrator.Recover("session-full")
	require.NoError(t, err)
	assert.Equal(t, "中断的会议", result.Title)
	assert.Equal(t, 3, result.SegmentsCount)
	require.NotNil(t, result.Audio)
	assert.Equal(t, domainCheckpoint.RecoverySuccess, result.Audio.Status)

	// 会议与片段已提交
	m, err := f.meetings.Get(result.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, "中断的会议", m.Title)
	page, err := f.transcripts.Page(result.MeetingID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)

	// 会话标记已保存，移出候选
	got, err := f.store.Get("session-full")
	require.NoError(t, err)
	assert.Equal(t, domainCheckpoint.StateSaved, got.State)
	candidates, err := f.orchestrator.ListCandidates()
	require.NoError(t, err)
	assert.Empty(t, candidates)

	// 音频块已清理，重建出的 WAV 保留
	hasAudio, err := f.store.HasAudio(session.FolderPath)
	require.NoError(t, err)
	assert.False(t, hasAudio)
	_, err = os.Stat(result.Audio.Path)
	assert.NoError(t, err)

	// 已保存的会话拒绝二次恢复
	_, err = f.orchestrator.Recover("session-full")
	assert.Error(t, err)
}

// TestOrchestrator_Recover_TranscriptOnly 测试无音频的纯转写恢复
func TestOrchestrator_Recover_TranscriptOnly(t *testing.T) {
	f := setupFixture(t)
	f.abandonedSession(t, "session-text", 2, 0)

	result, err := f.orchestrator.Recover("session-text")
	require.NoError(t, err)
	assert.Equal(t, 2, result.SegmentsCount)
	assert.Equal(t, domainCheckpoint.RecoveryNone, result.Audio.Status)
}

// TestOrchestrator_Recover_NothingToRecover 测试既无片段也无音频时拒绝
func TestOrchestrator_Recover_NothingToRecover(t *testing.T) {
	f := setupFixture(t)
	f.abandonedSession(t, "session-empty", 0, 0)

	_, err := f.orchestrator.Recover("session-empty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to recover")

	_, err = f.orchestrator.Recover("session-missing")
	assert.ErrorIs(t, err, domainCheckpoint.ErrSessionNotFound)
}

// TestOrchestrator_Recover_DefaultTitle 测试无标题会话使用带时间的默认标题
func TestOrchestrator_Recover_DefaultTitle(t *testing.T) {
	f := setupFixture(t)
	session := f.abandonedSession(t, "session-untitled", 1, 0)
	_, err := f.db.Exec(`UPDATE checkpoint_sessions SET title = '' WHERE id = ?`, session.ID)
	require.NoError(t, err)

	result, err := f.orchestrator.Recover("session-untitled")
	require.NoError(t, err)
	assert.Contains(t, result.Title, "恢复的会议")
}

// TestOrchestrator_Discard 测试丢弃会话
func TestOrchestrator_Discard(t *testing.T) {
	f := setupFixture(t)
	session := f.abandonedSession(t, "session-discard", 1, 2)

	require.NoError(t, f.orchestrator.Discard("session-discard"))

	_, err := f.store.Get("session-discard")
	assert.ErrorIs(t, err, domainCheckpoint.ErrSessionNotFound)
	_, err = os.Stat(session.FolderPath)
	assert.True(t, os.IsNotExist(err))
}

// TestOrchestrator_ScanOnStartup 测试启动扫描把过期 active 会话转为 abandoned
func TestOrchestrator_ScanOnStartup(t *testing.T) {
	f := setupFixture(t)
	f.abandonedSession(t, "session-stale", 1, 0)

	// 新鲜会话在最小年龄窗口内，扫描不触碰
	fresh := &domainCheckpoint.Session{
		ID:         "session-fresh",
		Title:      "进行中",
		FolderPath: filepath.Join(f.dir, "session-fresh"),
		SampleRate: 16000,
	}
	require.NoError(t, f.store.Begin(fresh))

	f.orchestrator.ScanOnStartup()

	stale, err := f.store.Get("session-stale")
	require.NoError(t, err)
	assert.Equal(t, domainCheckpoint.StateAbandoned, stale.State)

	got, err := f.store.Get("session-fresh")
	require.NoError(t, err)
	assert.Equal(t, domainCheckpoint.StateActive, got.State)
}
