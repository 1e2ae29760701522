// Package transcription 实现流式与批量（导入）转写流水线
package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	appModel "github.com/meetily/backend/internal/application/speechmodel"
	domainCheckpoint "github.com/meetily/backend/internal/domain/checkpoint"
	"github.com/meetily/backend/internal/domain/events"
	"github.com/meetily/backend/internal/domain/meeting"
	"github.com/meetily/backend/internal/infrastructure/audiodev"
	"github.com/meetily/backend/internal/infrastructure/checkpoint"
	"github.com/meetily/backend/internal/infrastructure/log"
	"github.com/meetily/backend/internal/infrastructure/storage"
	"github.com/meetily/backend/internal/infrastructure/whisper"
)

const (
	// maxWindowSeconds 单个转写窗口上限，达到后窗口被终结
	maxWindowSeconds = 25.0
	// partialIntervalSeconds 临时片段刷新周期
	partialIntervalSeconds = 5.0
)

// streamSession 单个采集会话的流式转写状态
type streamSession struct {
	id         string
	sampleRate int
	modelPath  string
	opts       whisper.Options

	// window 当前转写窗口的累积采样
	window []float32
	// windowStart 窗口起点相对录音起点的秒数
	windowStart float64
	// seq 当前窗口的序列号，final 后递增
	seq int64
	// partialID 当前窗口最近一次 partial 片段 ID
	partialID     string
	lastPartialAt time.Time
	// finals 已终结的片段，按窗口顺序
	finals []*meeting.TranscriptSegment
	// busy 转写进程执行中，跳过本轮 partial 刷新
	busy bool
	// inflight 仍在执行的转写任务，StopSession 等待其完成
	inflight sync.WaitGroup
}

func (s *streamSession) windowDuration() float64 {
	return float64(len(s.window)) / float64(s.sampleRate)
}

// StreamingService 流式转写服务
// 消费采集引擎的音频块，分窗转写并发出 partial/final 片段
type StreamingService struct {
	transcriber whisper.Transcriber
	store       domainCheckpoint.Store
	eventBus    events.EventBus
	settings    storage.SettingsRepository
	models      *appModel.Service
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*streamSession
}

// NewStreamingService 创建流式转写服务
func NewStreamingService(
	transcriber whisper.Transcriber,
	store domainCheckpoint.Store,
	eventBus events.EventBus,
	settings storage.SettingsRepository,
	models *appModel.Service,
) *StreamingService {
	return &StreamingService{
		transcriber: transcriber,
		store:       store,
		eventBus:    eventBus,
		settings:    settings,
		models:      models,
		logger:      log.NewModuleLogger("transcription", "streaming"),
		sessions:    make(map[string]*streamSession),
	}
}

// StartSession 登记转写会话
// 转写模型未就绪时失败，采集方据此拒绝启动录音
func (s *StreamingService) StartSession(sessionID string, sampleRate int) error {
	cfg, err := s.settings.GetTranscriptConfig()
	if err != nil {
		return fmt.Errorf("failed to load transcript config: %w", err)
	}

	modelPath, err := s.models.ModelPath(cfg.Model)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &streamSession{
		id:            sessionID,
		sampleRate:    sampleRate,
		modelPath:     modelPath,
		opts:          whisper.ParseLanguageHint(cfg.Language),
		lastPartialAt: time.Now(),
	}
	return nil
}

// OnChunk 消费一个音频块
// 只做内存累积和异步调度，不在调用方路径上执行转写
func (s *StreamingService) OnChunk(sessionID string, samples []float32) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}

	session.window = append(session.window, samples...)

	var job func()
	switch {
	case session.windowDuration() >= maxWindowSeconds && !session.busy:
		job = s.scheduleLocked(session, true)
	case time.Since(session.lastPartialAt) >= partialIntervalSeconds*time.Second && !session.busy:
		job = s.scheduleLocked(session, false)
	}
	s.mu.Unlock()

	if job != nil {
		go job()
	}
}

// scheduleLocked 摘取当前窗口快照并构造转写任务，调用方持锁
func (s *StreamingService) scheduleLocked(session *streamSession, final bool) func() {
	session.busy = true
	session.lastPartialAt = time.Now()
	session.inflight.Add(1)

	window := make([]float32, len(session.window))
	copy(window, session.window)
	windowStart := session.windowStart
	seq := session.seq

	if final {
		// 窗口终结：下一窗口从当前末尾开始
		session.windowStart += session.windowDuration()
		session.window = session.window[:0]
		session.seq++
	}

	return func() {
		defer func() {
			s.mu.Lock()
			session.busy = false
			s.mu.Unlock()
			session.inflight.Done()
		}()
		s.transcribeWindow(session, window, windowStart, seq, final)
	}
}

// transcribeWindow 转写一个窗口快照并发出片段
func (s *StreamingService) transcribeWindow(session *streamSession, window []float32, windowStart float64, seq int64, final bool) {
	text, confidence, err := s.runWhisper(session, window)
	if err != nil {
		s.logger.Warn("窗口转写失败", "session_id", session.id, "final", final, "error", err)
		return
	}
	if text == "" {
		return
	}

	seg := &meeting.TranscriptSegment{
		ID:             meeting.NewSegmentID(),
		Sequence:       seq,
		Text:           text,
		Timestamp:      time.Now(),
		AudioStartTime: windowStart,
		AudioEndTime:   windowStart + float64(len(window))/float64(session.sampleRate),
		Confidence:     confidence,
		Final:          final,
	}

	s.mu.Lock()
	if final {
		seg.SupersedesID = session.partialID
		session.partialID = ""
		session.finals = append(session.finals, seg)
	} else {
		session.partialID = seg.ID
	}
	s.mu.Unlock()

	if err := s.store.AppendSegment(session.id, seg); err != nil {
		s.logger.Warn("片段检查点写入失败", "session_id", session.id, "error", err)
	}

	s.eventBus.Publish(events.NewSegmentEvent(events.SegmentPayload{
		SessionID:      session.id,
		SegmentID:      seg.ID,
		Sequence:       seg.Sequence,
		Text:           seg.Text,
		AudioStartTime: seg.AudioStartTime,
		AudioEndTime:   seg.AudioEndTime,
		Confidence:     seg.Confidence,
		Final:          seg.Final,
		SupersedesID:   seg.SupersedesID,
	}))
}

// runWhisper 把窗口落为临时 WAV 并执行转写，返回合并文本与平均置信度
func (s *StreamingService) runWhisper(session *streamSession, window []float32) (string, float64, error) {
	tmpDir, err := os.MkdirTemp("", "meetily-window-")
	if err != nil {
		return "", 0, err
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, "window.wav")
	writer, err := checkpoint.NewWAVWriter(wavPath, session.sampleRate)
	if err != nil {
		return "", 0, err
	}
	if err := writer.Write(audiodev.SamplesToPCM(window)); err != nil {
		writer.Close()
		return "", 0, err
	}
	if err := writer.Close(); err != nil {
		return "", 0, err
	}

	segments, err := s.transcriber.TranscribeFile(context.Background(), wavPath, session.modelPath, session.opts)
	if err != nil {
		return "", 0, err
	}
	if len(segments) == 0 {
		return "", 0, nil
	}

	text := ""
	var confidenceSum float64
	for _, seg := range segments {
		if text != "" {
			text += " "
		}
		text += seg.Text
		confidenceSum += seg.Confidence
	}
	return text, confidenceSum / float64(len(segments)), nil
}

// StopSession 终结会话：转写残余窗口，返回全部 final 片段（全序）
func (s *StreamingService) StopSession(sessionID string) ([]*meeting.TranscriptSegment, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	delete(s.sessions, sessionID)

	var tail func()
	if len(session.window) > 0 {
		tail = s.scheduleLocked(session, true)
	}
	s.mu.Unlock()

	// 残余窗口同步终结，保证返回值包含最后一段
	if tail != nil {
		tail()
	}
	// 等待尚未完成的异步整窗任务，否则其片段会在快照之后追加而丢失
	session.inflight.Wait()

	s.mu.Lock()
	finals := make([]*meeting.TranscriptSegment, len(session.finals))
	copy(finals, session.finals)
	s.mu.Unlock()

	meeting.SortSegments(finals)
	return finals, nil
}

