// Package summarize 实现会议总结任务管理
// 分块 + map-reduce 调用 LLM，支持取消、备份回滚与超时判定
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/meetily/backend/internal/domain/events"
	"github.com/meetily/backend/internal/domain/summary"
	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/llm"
	"github.com/meetily/backend/internal/infrastructure/log"
	"github.com/meetily/backend/internal/infrastructure/storage"
)

// localProviders 本地推理提供商：同一模型的任务需要串行执行避免资源争抢
var localProviders = map[string]bool{
	"ollama": true,
}

const defaultSummaryPrompt = `You are a meeting assistant. Summarize the following meeting transcript in Markdown.
Include these sections when the content supports them: Key Points, Decisions, Action Items, Open Questions.
Be concise and factual. Do not invent content that is not in the transcript.`

const chunkSummaryPrompt = `Summarize the following portion of a meeting transcript. Preserve all decisions, action items and named participants. Output plain prose.`

const reducePrompt = `The following are partial summaries of consecutive portions of one meeting. Merge them into a single coherent meeting summary in Markdown with sections: Key Points, Decisions, Action Items, Open Questions. Omit sections with no content.`

// job 进行中的总结任务句柄
type job struct {
	processID string
	meetingID string
	cancel    context.CancelFunc
	// regenerate 标记是否为重新生成（失败时需要恢复备份）
	regenerate bool
	startedAt  time.Time
	// timedOut 保证 JobTimeout 只判定一次
	timedOut bool
}

// StartRequest 总结任务启动参数
type StartRequest struct {
	MeetingID    string
	Transcript   string
	CustomPrompt string
	TemplateID   string
	Provider     string
	Model        string
	// ChunkSize 为 0 时使用配置默认值
	ChunkSize int
	// Overlap 为 0 时使用配置默认值
	Overlap int
}

// Manager 总结任务管理器
// 任务登记在显式注册表里，按会议 ID 索引，不依赖任何全局单例
type Manager struct {
	client   llm.ChatClient
	repo     summary.Repository
	settings storage.SettingsRepository
	eventBus events.EventBus
	cfg      *config.SummaryConfig
	logger   *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job

	// localLocks 每个本地模型一把锁，远程提供商不受限
	localMu    sync.Mutex
	localLocks map[string]*sync.Mutex
}

// NewManager 创建总结任务管理器
func NewManager(
	client llm.ChatClient,
	repo summary.Repository,
	settings storage.SettingsRepository,
	eventBus events.EventBus,
	cfg *config.SummaryConfig,
) *Manager {
	return &Manager{
		client:     client,
		repo:       repo,
		settings:   settings,
		eventBus:   eventBus,
		cfg:        cfg,
		logger:     log.NewModuleLogger("application", "summarize"),
		jobs:       make(map[string]*job),
		localLocks: make(map[string]*sync.Mutex),
	}
}

// Start 启动总结任务，立即返回进程 ID
// 同一会议已有进行中任务时返回 ErrJobRunning
func (m *Manager) Start(req *StartRequest) (string, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return "", summary.ErrEmptyTranscript
	}

	provider, model, err := m.resolveModel(req.Provider, req.Model)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if _, running := m.jobs[req.MeetingID]; running {
		m.mu.Unlock()
		return "", summary.ErrJobRunning
	}

	// 已有完成的总结时本次是重新生成，先备份以便失败回滚
	existing, err := m.repo.Get(req.MeetingID)
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	regenerate := existing != nil && existing.Document != nil && !existing.Document.IsEmpty()

	processID := summary.NewProcessID()
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		processID:  processID,
		meetingID:  req.MeetingID,
		cancel:     cancel,
		regenerate: regenerate,
		startedAt:  time.Now(),
	}
	m.jobs[req.MeetingID] = j
	m.mu.Unlock()

	if regenerate {
		if err := m.repo.Backup(req.MeetingID); err != nil {
			m.removeJob(req.MeetingID, processID)
			cancel()
			return "", fmt.Errorf("backup existing summary: %w", err)
		}
	}

	status := summary.StatusProcessing
	if regenerate {
		status = summary.StatusRegenerating
	}
	record := &summary.Record{
		MeetingID: req.MeetingID,
		ProcessID: processID,
		Status:    status,
		Provider:  provider,
		Model:     model,
		StartedAt: j.startedAt,
		UpdatedAt: j.startedAt,
	}
	if regenerate {
		// 重新生成期间保留旧文档可读
		record.Document = existing.Document
	}
	if err := m.repo.Save(record); err != nil {
		m.removeJob(req.MeetingID, processID)
		cancel()
		return "", err
	}
	m.publishStatus(req.MeetingID, processID, status, "")

	go m.run(ctx, j, req, provider, model)

	m.logger.Info("总结任务已启动",
		"meeting_id", req.MeetingID,
		"process_id", processID,
		"provider", provider,
		"model", model,
		"regenerate", regenerate)
	return processID, nil
}

// Poll 查询总结任务状态
// 读取是记录快照，无任何副作用；超过轮询上限时恰好一次转为超时终态
func (m *Manager) Poll(meetingID string) (*summary.Record, error) {
	record, err := m.repo.Get(meetingID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, summary.ErrNoSummary
	}
	if record.Status.Terminal() {
		return record, nil
	}

	m.mu.Lock()
	j, running := m.jobs[meetingID]
	var expire bool
	if running && !j.timedOut && time.Since(j.startedAt) > m.cfg.PollTimeout {
		j.timedOut = true
		expire = true
	}
	m.mu.Unlock()

	if expire {
		m.logger.Warn("总结任务超时", "meeting_id", meetingID, "process_id", j.processID)
		j.cancel()
		m.finishFailure(j, summary.ErrJobTimeout)
		return m.repo.Get(meetingID)
	}

	// 注册表里没有任务但状态非终态：进程重启等导致的孤儿记录
	if !running {
		if err := m.repo.SetStatus(meetingID, record.ProcessID, summary.StatusError, summary.ErrJobFailed.Error()); err != nil {
			return nil, err
		}
		return m.repo.Get(meetingID)
	}
	return record, nil
}

// Cancel 取消进行中的总结任务
// 重新生成中的任务取消后恢复备份的旧总结
func (m *Manager) Cancel(meetingID string) error {
	m.mu.Lock()
	j, ok := m.jobs[meetingID]
	m.mu.Unlock()
	if !ok {
		return summary.ErrNoSummary
	}

	j.cancel()
	m.finishFailure(j, summary.ErrJobCancelled)
	m.logger.Info("总结任务已取消", "meeting_id", meetingID, "process_id", j.processID)
	return nil
}

// Get 查询会议当前总结记录，不存在时返回 ErrNoSummary
func (m *Manager) Get(meetingID string) (*summary.Record, error) {
	record, err := m.repo.Get(meetingID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, summary.ErrNoSummary
	}
	return record, nil
}

// Delete 删除会议的总结记录
func (m *Manager) Delete(meetingID string) error {
	m.mu.Lock()
	j, running := m.jobs[meetingID]
	m.mu.Unlock()
	if running {
		j.cancel()
		m.removeJob(meetingID, j.processID)
	}
	return m.repo.Delete(meetingID)
}

// Shutdown 取消所有进行中的任务
func (m *Manager) Shutdown() {
	m.mu.Lock()
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
}

// run 任务主体：分块 → 逐块总结 → 归并
func (m *Manager) run(ctx context.Context, j *job, req *StartRequest, provider, model string) {
	document, err := m.generate(ctx, req, provider, model)
	if err != nil {
		if ctx.Err() != nil {
			// 取消与超时路径已由 Cancel/Poll 写入终态
			return
		}
		m.finishFailure(j, err)
		return
	}

	if document.IsEmpty() {
		m.finishFailure(j, summary.ErrEmptyResult)
		return
	}

	m.mu.Lock()
	_, stillRunning := m.jobs[j.meetingID]
	m.mu.Unlock()
	if !stillRunning || ctx.Err() != nil {
		return
	}

	record := &summary.Record{
		MeetingID: j.meetingID,
		ProcessID: j.processID,
		Status:    summary.StatusCompleted,
		Document:  document,
		Provider:  provider,
		Model:     model,
		StartedAt: j.startedAt,
		UpdatedAt: time.Now(),
	}
	if err := m.repo.Save(record); err != nil {
		m.finishFailure(j, fmt.Errorf("save summary: %w", err))
		return
	}
	if j.regenerate {
		// 成功后备份不再需要
		if err := m.repo.DeleteBackup(j.meetingID); err != nil {
			m.logger.Warn("删除总结备份失败", "meeting_id", j.meetingID, "error", err)
		}
	}

	m.removeJob(j.meetingID, j.processID)
	m.publishStatus(j.meetingID, j.processID, summary.StatusCompleted, "")
	m.logger.Info("总结任务完成", "meeting_id", j.meetingID, "process_id", j.processID)
}

// generate 执行分块 map-reduce 生成
func (m *Manager) generate(ctx context.Context, req *StartRequest, provider, model string) (*summary.Document, error) {
	chunker, err := GetChunker()
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = m.cfg.DefaultChunkSize
	}
	overlap := req.Overlap
	if overlap <= 0 {
		overlap = m.cfg.DefaultOverlap
	}

	prompt := defaultSummaryPrompt
	if strings.TrimSpace(req.CustomPrompt) != "" {
		prompt = req.CustomPrompt
	}

	// 本地提供商按模型串行，远程 API 可并发
	if localProviders[provider] {
		lock := m.localLock(provider, model)
		lock.Lock()
		defer lock.Unlock()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	chunks := chunker.Split(req.Transcript, chunkSize, overlap)
	if len(chunks) == 1 {
		text, err := m.complete(ctx, provider, model, prompt, chunks[0])
		if err != nil {
			return nil, err
		}
		return summary.NewMarkdownDocument(text), nil
	}

	// map 阶段：逐块生成局部摘要
	m.logger.Info("转写文本已分块", "meeting_id", req.MeetingID, "chunks", len(chunks), "chunk_size", chunkSize)
	if err := m.setStatus(req.MeetingID, summary.StatusSummarizing); err != nil {
		return nil, err
	}

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		part, err := m.complete(ctx, provider, model, chunkSummaryPrompt, chunk)
		if err != nil {
			return nil, fmt.Errorf("summarize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		partials = append(partials, part)
	}

	// reduce 阶段：归并为最终文档
	merged := strings.Join(partials, "\n\n---\n\n")
	text, err := m.complete(ctx, provider, model, reducePrompt+"\n\nAdditional instructions: "+prompt, merged)
	if err != nil {
		return nil, fmt.Errorf("merge chunk summaries: %w", err)
	}
	return summary.NewMarkdownDocument(text), nil
}

func (m *Manager) complete(ctx context.Context, provider, model, system, user string) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	text, err := m.client.Complete(ctx, provider, model, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// finishFailure 写入失败终态并在重新生成场景恢复备份
func (m *Manager) finishFailure(j *job, cause error) {
	m.mu.Lock()
	current, ok := m.jobs[j.meetingID]
	if !ok || current.processID != j.processID {
		m.mu.Unlock()
		return
	}
	delete(m.jobs, j.meetingID)
	m.mu.Unlock()

	status := summary.StatusError
	if cause == summary.ErrJobCancelled {
		status = summary.StatusCancelled
	}

	restored := false
	if j.regenerate {
		var err error
		restored, err = m.repo.RestoreBackup(j.meetingID)
		if err != nil {
			m.logger.Error("恢复总结备份失败", "meeting_id", j.meetingID, "error", err)
		}
	}

	if restored {
		// 旧文档已整体恢复，只补写状态与错误信息
		if err := m.repo.SetStatus(j.meetingID, j.processID, status, cause.Error()); err != nil {
			m.logger.Error("写入总结失败状态失败", "meeting_id", j.meetingID, "error", err)
		}
		if err := m.repo.DeleteBackup(j.meetingID); err != nil {
			m.logger.Warn("删除总结备份失败", "meeting_id", j.meetingID, "error", err)
		}
	} else {
		if err := m.repo.SetStatus(j.meetingID, j.processID, status, cause.Error()); err != nil {
			m.logger.Error("写入总结失败状态失败", "meeting_id", j.meetingID, "error", err)
		}
	}

	m.publishStatus(j.meetingID, j.processID, status, cause.Error())
	m.logger.Warn("总结任务结束于失败态",
		"meeting_id", j.meetingID,
		"process_id", j.processID,
		"status", status,
		"restored_backup", restored,
		"error", cause)
}

func (m *Manager) setStatus(meetingID string, status summary.Status) error {
	m.mu.Lock()
	j, ok := m.jobs[meetingID]
	m.mu.Unlock()
	if !ok {
		return summary.ErrJobCancelled
	}
	if err := m.repo.SetStatus(meetingID, j.processID, status, ""); err != nil {
		return err
	}
	m.publishStatus(meetingID, j.processID, status, "")
	return nil
}

func (m *Manager) resolveModel(provider, model string) (string, string, error) {
	if provider != "" && model != "" {
		return provider, model, nil
	}
	cfg, err := m.settings.GetModelConfig()
	if err != nil {
		return "", "", err
	}
	if provider == "" {
		provider = cfg.Provider
	}
	if model == "" {
		model = cfg.Model
	}
	return provider, model, nil
}

func (m *Manager) localLock(provider, model string) *sync.Mutex {
	key := provider + "/" + model
	m.localMu.Lock()
	defer m.localMu.Unlock()
	lock, ok := m.localLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.localLocks[key] = lock
	}
	return lock
}

func (m *Manager) removeJob(meetingID, processID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[meetingID]; ok && j.processID == processID {
		delete(m.jobs, meetingID)
	}
}

func (m *Manager) publishStatus(meetingID, processID string, status summary.Status, errMsg string) {
	m.eventBus.Publish(events.NewSummaryStatusEvent(events.SummaryStatusPayload{
		MeetingID: meetingID,
		ProcessID: processID,
		Status:    string(status),
		Error:     errMsg,
	}))
}
