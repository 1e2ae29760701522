package summarize

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/meetily/backend/internal/domain/summary"
	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/llm"
	"github.com/meetily/backend/internal/infrastructure/storage"
	"github.com/meetily/backend/internal/infrastructure/watcher"
)

// fakeChatClient 可编程的 LLM 客户端替身
type fakeChatClient struct {
	mu sync.Mutex
	// respond 为 nil 时返回固定文本
	respond func(ctx context.Context, provider, model string, messages []llm.Message) (string, error)
	calls   int
}

func (f *fakeChatClient) Complete(ctx context.Context, provider, model string, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.calls++
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		return respond(ctx, provider, model, messages)
	}
	return "# 会议总结\n\n- 决议一", nil
}

func (f *fakeChatClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// blockingClient 阻塞直到取消或显式放行的替身
func blockingClient(release <-chan struct{}) *fakeChatClient {
	return &fakeChatClient{
		respond: func(ctx context.Context, provider, model string, messages []llm.Message) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-release:
				return "放行后的总结", nil
			}
		},
	}
}

func setupManager(t *testing.T, client llm.ChatClient, cfg *config.SummaryConfig) (*Manager, summary.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, storage.InitSchema(db))
	t.Cleanup(func() { db.Close() })

	if cfg == nil {
		cfg = &config.SummaryConfig{
			PollTimeout:      time.Minute,
			DefaultChunkSize: 40000,
			DefaultOverlap:   1000,
		}
	}

	bus := watcher.NewEventBus()
	t.Cleanup(bus.Close)

	repo := storage.NewSummaryRepository(db)
	manager := NewManager(client, repo, storage.NewSettingsRepository(db), bus, cfg)
	t.Cleanup(manager.Shutdown)
	return manager, repo
}

func waitTerminal(t *testing.T, manager *Manager, meetingID string) *summary.Record {
	t.Helper()
	var record *summary.Record
	require.Eventually(t, func() bool {
		var err error
		record, err = manager.Poll(meetingID)
		return err == nil && record.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)
	return record
}

// TestManager_Start_Success 测试完整的成功路径
func TestManager_Start_Success(t *testing.T) {
	client := &fakeChatClient{}
	manager, _ := setupManager(t, client, nil)

	processID, err := manager.Start(&StartRequest{
		MeetingID:  "meeting-1",
		Transcript: "大家好，今天讨论项目排期。",
		Provider:   "groq",
		Model:      "llama-70b",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, processID)

	record := waitTerminal(t, manager, "meeting-1")
	assert.Equal(t, summary.StatusCompleted, record.Status)
	assert.Equal(t, processID, record.ProcessID)
	require.NotNil(t, record.Document)
	assert.Equal(t, "# 会议总结\n\n- 决议一", record.Document.Markdown)
	assert.Equal(t, "groq", record.Provider)
	// 短文本单块直接生成，只调用一次
	assert.Equal(t, 1, client.callCount())
}

// TestManager_Start_EmptyTranscript 测试空转写直接拒绝
func TestManager_Start_EmptyTranscript(t *testing.T) {
	manager, _ := setupManager(t, &fakeChatClient{}, nil)

	_, err := manager.Start(&StartRequest{MeetingID: "meeting-1", Transcript: "   \n  "})
	assert.ErrorIs(t, err, summary.ErrEmptyTranscript)
}

// TestManager_Start_DuplicateRejected 测试同一会议并发任务被拒绝
func TestManager_Start_DuplicateRejected(t *testing.T) {
	release := make(chan struct{})
	manager, _ := setupManager(t, blockingClient(release), nil)

	req := &StartRequest{MeetingID: "meeting-1", Transcript: "内容", Provider: "groq", Model: "m"}
	_, err := manager.Start(req)
	require.NoError(t, err)

	_, err = manager.Start(req)
	assert.ErrorIs(t, err, summary.ErrJobRunning)

	close(release)
	record := waitTerminal(t, manager, "meeting-1")
	assert.Equal(t, summary.StatusCompleted, record.Status)

	// 任务结束后可以再次启动
	_, err = manager.Start(req)
	assert.NoError(t, err)
}

// TestManager_Cancel_RestoresBackup 测试取消重新生成时恢复旧总结
func TestManager_Cancel_RestoresBackup(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	manager, repo := setupManager(t, blockingClient(release), nil)

	// 现存完成的总结
	require.NoError(t, repo.Save(&summary.Record{
		MeetingID: "meeting-1",
		ProcessID: "proc-old",
		Status:    summary.StatusCompleted,
		Document:  summary.NewMarkdownDocument("旧总结全文"),
		Provider:  "groq",
		Model:     "m",
	}))

	processID, err := manager.Start(&StartRequest{
		MeetingID: "meeting-1", Transcript: "新内容", Provider: "groq", Model: "m",
	})
	require.NoError(t, err)

	// 启动后进入重新生成态，旧文档仍可读
	record, err := manager.Poll("meeting-1")
	require.NoError(t, err)
	assert.Equal(t, summary.StatusRegenerating, record.Status)
	require.NotNil(t, record.Document)
	assert.Equal(t, "旧总结全文", record.Document.Markdown)

	require.NoError(t, manager.Cancel("meeting-1"))

	record = waitTerminal(t, manager, "meeting-1")
	assert.Equal(t, summary.StatusCancelled, record.Status)
	assert.Equal(t, processID, record.ProcessID)
	// 旧总结逐字恢复
	require.NotNil(t, record.Document)
	assert.Equal(t, "旧总结全文", record.Document.Markdown)

	// 取消不存在的任务
	assert.ErrorIs(t, manager.Cancel("meeting-none"), summary.ErrNoSummary)
}

// TestManager_VacuousResult 测试空洞结果判为失败而非完成
func TestManager_VacuousResult(t *testing.T) {
	client := &fakeChatClient{
		respond: func(ctx context.Context, provider, model string, messages []llm.Message) (string, error) {
			return "   \n\n  ", nil
		},
	}
	manager, _ := setupManager(t, client, nil)

	_, err := manager.Start(&StartRequest{
		MeetingID: "meeting-1", Transcript: "内容", Provider: "groq", Model: "m",
	})
	require.NoError(t, err)

	record := waitTerminal(t, manager, "meeting-1")
	assert.Equal(t, summary.StatusError, record.Status)
	assert.Equal(t, summary.ErrEmptyResult.Error(), record.Error)
}

// TestManager_ClientError 测试 LLM 调用失败写入错误终态
func TestManager_ClientError(t *testing.T) {
	client := &fakeChatClient{
		respond: func(ctx context.Context, provider, model string, messages []llm.Message) (string, error) {
			return "", errors.New("llm unreachable")
		},
	}
	manager, _ := setupManager(t, client, nil)

	_, err := manager.Start(&StartRequest{
		MeetingID: "meeting-1", Transcript: "内容", Provider: "groq", Model: "m",
	})
	require.NoError(t, err)

	record := waitTerminal(t, manager, "meeting-1")
	assert.Equal(t, summary.StatusError, record.Status)
	assert.Contains(t, record.Error, "llm unreachable")
}

// TestManager_PollTimeout_ExactlyOnce 测试轮询超时恰好判定一次
func TestManager_PollTimeout_ExactlyOnce(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	cfg := &config.SummaryConfig{
		PollTimeout:      30 * time.Millisecond,
		DefaultChunkSize: 40000,
		DefaultOverlap:   1000,
	}
	manager, _ := setupManager(t, blockingClient(release), cfg)

	_, err := manager.Start(&StartRequest{
		MeetingID: "meeting-1", Transcript: "内容", Provider: "groq", Model: "m",
	})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	record, err := manager.Poll("meeting-1")
	require.NoError(t, err)
	assert.Equal(t, summary.StatusError, record.Status)
	assert.Equal(t, summary.ErrJobTimeout.Error(), record.Error)

	// 再次轮询返回同一终态，不再有副作用
	again, err := manager.Poll("meeting-1")
	require.NoError(t, err)
	assert.Equal(t, record.Status, again.Status)
	assert.Equal(t, record.Error, again.Error)
}

// TestManager_Poll_OrphanRecord 测试孤儿非终态记录被判为失败
func TestManager_Poll_OrphanRecord(t *testing.T) {
	manager, repo := setupManager(t, &fakeChatClient{}, nil)

	// 模拟进程重启后遗留的进行中记录：注册表里没有对应任务
	require.NoError(t, repo.SetStatus("meeting-orphan", "proc-lost", summary.StatusProcessing, ""))

	record, err := manager.Poll("meeting-orphan")
	require.NoError(t, err)
	assert.Equal(t, summary.StatusError, record.Status)
	assert.Equal(t, summary.ErrJobFailed.Error(), record.Error)
}

// TestManager_Poll_NoRecord 测试无记录时返回 ErrNoSummary
func TestManager_Poll_NoRecord(t *testing.T) {
	manager, _ := setupManager(t, &fakeChatClient{}, nil)

	_, err := manager.Poll("meeting-none")
	assert.ErrorIs(t, err, summary.ErrNoSummary)
}

// TestManager_ResolveModelFromSettings 测试未指定模型时回落到设置
func TestManager_ResolveModelFromSettings(t *testing.T) {
	client := &fakeChatClient{}
	manager, _ := setupManager(t, client, nil)

	// 不指定 provider/model，使用设置仓储的默认配置
	_, err := manager.Start(&StartRequest{MeetingID: "meeting-1", Transcript: "内容"})
	require.NoError(t, err)

	record := waitTerminal(t, manager, "meeting-1")
	assert.Equal(t, summary.StatusCompleted, record.Status)
	assert.Equal(t, "ollama", record.Provider)
	assert.Equal(t, "llama3.1:latest", record.Model)
}

// TestManager_Delete 测试删除会取消进行中的任务并清掉记录
func TestManager_Delete(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	manager, repo := setupManager(t, blockingClient(release), nil)

	_, err := manager.Start(&StartRequest{
		MeetingID: "meeting-1", Transcript: "内容", Provider: "groq", Model: "m",
	})
	require.NoError(t, err)

	require.NoError(t, manager.Delete("meeting-1"))

	record, err := repo.Get("meeting-1")
	require.NoError(t, err)
	assert.Nil(t, record)
	_, err = manager.Get("meeting-1")
	assert.ErrorIs(t, err, summary.ErrNoSummary)
}
