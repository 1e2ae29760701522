package transcription

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/meetily/backend/internal/application/speechmodel"
	domainCheckpoint "github.com/meetily/backend/internal/domain/checkpoint"
	domainModel "github.com/meetily/backend/internal/domain/speechmodel"
	"github.com/meetily/backend/internal/infrastructure/checkpoint"
	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/download"
	"github.com/meetily/backend/internal/infrastructure/storage"
	"github.com/meetily/backend/internal/infrastructure/watcher"
	"github.com/meetily/backend/internal/infrastructure/whisper"
)

// slowWindowTranscriber 整窗任务慢、残余任务快的转写替身
// 按 WAV 大小区分：16kHz PCM16 单声道下超过 10 秒视为整窗
type slowWindowTranscriber struct {
	windowDelay time.Duration
	calls       atomic.Int32
}

func (f *slowWindowTranscriber) TranscribeFile(_ context.Context, wavPath, _ string, _ whisper.Options) ([]whisper.Segment, error) {
	f.calls.Add(1)
	info, err := os.Stat(wavPath)
	if err != nil {
		return nil, err
	}
	if (info.Size()-44)/32000 > 10 {
		time.Sleep(f.windowDelay)
		return []whisper.Segment{{Start: 0, End: 25, Text: "整窗文本", Confidence: 0.9}}, nil
	}
	return []whisper.Segment{{Start: 0, End: 1, Text: "残余文本", Confidence: 0.8}}, nil
}

// setupStreaming 构造流式转写服务及其依赖
// 用稀疏文件占位 tiny 模型，大小与目录一致即被视为可用
func setupStreaming(t *testing.T, transcriber whisper.Transcriber) (*StreamingService, domainCheckpoint.Store, string) {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv(config.EnvDataDir, dataDir)
	config.ResetDataDir()
	t.Cleanup(config.ResetDataDir)

	entry, ok := domainModel.FindCatalogEntry("tiny")
	require.True(t, ok)
	modelsDir := filepath.Join(dataDir, "models")
	require.NoError(t, os.MkdirAll(modelsDir, 0o755))
	modelFile, err := os.Create(filepath.Join(modelsDir, entry.FileName))
	require.NoError(t, err)
	require.NoError(t, modelFile.Truncate(entry.SizeBytes))
	require.NoError(t, modelFile.Close())

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.InitSchema(db))

	store, err := checkpoint.NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	settings := storage.NewSettingsRepository(db)
	require.NoError(t, settings.SaveTranscriptConfig(&storage.TranscriptConfig{
		Provider: "localWhisper",
		Model:    "tiny",
		Language: "auto",
	}))

	bus := watcher.NewEventBus()
	t.Cleanup(func() { bus.Close() })

	models := speechmodel.NewService(download.NewHTTPDownloader(), bus)
	service := NewStreamingService(transcriber, store, bus, settings, models)
	return service, store, dataDir
}

// TestStreamingService_StopAwaitsInflightWindow 测试停止时等待仍在转写的整窗任务
// 整窗异步任务未完成就停止会话时，其片段必须仍出现在返回结果里
func TestStreamingService_StopAwaitsInflightWindow(t *testing.T) {
	transcriber := &slowWindowTranscriber{windowDelay: 300 * time.Millisecond}
	service, store, dataDir := setupStreaming(t, transcriber)

	session := &domainCheckpoint.Session{
		ID:         "session-stop",
		Title:      "测试会议",
		FolderPath: filepath.Join(dataDir, "checkpoints", "session-stop"),
		SampleRate: 16000,
	}
	require.NoError(t, store.Begin(session))
	require.NoError(t, service.StartSession(session.ID, 16000))

	// 25.5 秒触发整窗异步转写，再追加 1 秒残余
	service.OnChunk(session.ID, make([]float32, 408000))
	service.OnChunk(session.ID, make([]float32, 16000))

	finals, err := service.StopSession(session.ID)
	require.NoError(t, err)
	require.Len(t, finals, 2)

	assert.Equal(t, int64(0), finals[0].Sequence)
	assert.Equal(t, "整窗文本", finals[0].Text)
	assert.Equal(t, 0.0, finals[0].AudioStartTime)
	assert.InDelta(t, 25.5, finals[0].AudioEndTime, 0.001)
	assert.True(t, finals[0].Final)

	assert.Equal(t, int64(1), finals[1].Sequence)
	assert.Equal(t, "残余文本", finals[1].Text)
	assert.InDelta(t, 25.5, finals[1].AudioStartTime, 0.001)
	assert.True(t, finals[1].Final)

	// 两个片段都已检查点化
	segments, err := store.LoadSegments(session.ID)
	require.NoError(t, err)
	assert.Len(t, segments, 2)
}

// TestStreamingService_StopUnknownSession 测试停止未登记的会话
func TestStreamingService_StopUnknownSession(t *testing.T) {
	service, _, _ := setupStreaming(t, &slowWindowTranscriber{})

	finals, err := service.StopSession("session-missing")
	require.NoError(t, err)
	assert.Nil(t, finals)
}

// TestStreamingService_StartSessionModelNotReady 测试模型未就绪时拒绝登记
func TestStreamingService_StartSessionModelNotReady(t *testing.T) {
	service, _, dataDir := setupStreaming(t, &slowWindowTranscriber{})

	entry, ok := domainModel.FindCatalogEntry("tiny")
	require.True(t, ok)
	require.NoError(t, os.Remove(filepath.Join(dataDir, "models", entry.FileName)))

	err := service.StartSession("session-no-model", 16000)
	require.ErrorIs(t, err, domainModel.ErrModelNotReady)
}
