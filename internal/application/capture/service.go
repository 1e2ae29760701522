// Package capture 实现录音采集会话的编排：双流采集、混音、检查点与流式转写接驳
package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/meetily/backend/internal/application/transcription"
	"github.com/meetily/backend/internal/domain/audio"
	domainCheckpoint "github.com/meetily/backend/internal/domain/checkpoint"
	"github.com/meetily/backend/internal/domain/events"
	"github.com/meetily/backend/internal/domain/meeting"
	"github.com/meetily/backend/internal/infrastructure/audiodev"
	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/log"
)

// captureSession 单个采集会话的运行态
type captureSession struct {
	id           string
	title        string
	micDevice    string
	systemDevice string
	micStream    audiodev.Stream
	systemStream audiodev.Stream
	mixer        *audiodev.Mixer
	status       audio.CaptureStatus
	cancel       context.CancelFunc
	done         chan struct{}
	// sampleCount 已混出的采样总数，用于计算块起始偏移
	sampleCount int64
	seq         int64
}

// levelMonitor 单设备电平监测
type levelMonitor struct {
	stream audiodev.Stream
	cancel context.CancelFunc
	done   chan struct{}
}

// Service 采集服务
// 同一设备组合同一时刻至多一个活动会话
type Service struct {
	lister    audiodev.DeviceLister
	opener    audiodev.StreamOpener
	store     domainCheckpoint.Store
	streaming *transcription.StreamingService
	repo      meeting.Repository
	eventBus  events.EventBus
	cfg       *config.CaptureConfig
	logger    *slog.Logger

	mu      sync.Mutex
	session *captureSession
	// starting 会话启动中占位，阻止并发 StartCapture 开出第二路流
	starting bool
	monitors map[string]*levelMonitor
}

// NewService 创建采集服务
func NewService(
	lister audiodev.DeviceLister,
	opener audiodev.StreamOpener,
	store domainCheckpoint.Store,
	streaming *transcription.StreamingService,
	repo meeting.Repository,
	eventBus events.EventBus,
	cfg *config.CaptureConfig,
) *Service {
	return &Service{
		lister:    lister,
		opener:    opener,
		store:     store,
		streaming: streaming,
		repo:      repo,
		eventBus:  eventBus,
		cfg:       cfg,
		logger:    log.NewModuleLogger("capture", "service"),
		monitors:  make(map[string]*levelMonitor),
	}
}

// EnumerateDevices 枚举音频设备，零设备是合法结果
func (s *Service) EnumerateDevices(ctx context.Context) ([]audio.Device, error) {
	return s.lister.EnumerateDevices(ctx)
}

// StartCapture 启动采集会话
// micDevice/systemDevice 为空表示平台默认设备
// 两路都打不开返回 ErrDeviceUnavailable；仅系统音频不可用时以降级模式启动
func (s *Service) StartCapture(ctx context.Context, micDevice, systemDevice, title string) (*audio.CaptureStatus, error) {
	s.mu.Lock()
	if s.session != nil || s.starting {
		s.mu.Unlock()
		return nil, audio.ErrCaptureActive
	}
	s.starting = true
	s.mu.Unlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.starting = false
			s.mu.Unlock()
		}
	}()

	sessionID := domainCheckpoint.NewSessionID()
	checkpointsDir, err := config.GetCheckpointsDir()
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = fmt.Sprintf("会议 %s", time.Now().Format("2006-01-02 15:04"))
	}

	if err := s.store.Begin(&domainCheckpoint.Session{
		ID:         sessionID,
		Title:      title,
		FolderPath: filepath.Join(checkpointsDir, sessionID),
		SampleRate: s.cfg.SampleRate,
	}); err != nil {
		return nil, err
	}

	// 转写模型未就绪时拒绝启动，不留半启动状态
	if err := s.streaming.StartSession(sessionID, s.cfg.SampleRate); err != nil {
		_ = s.store.Discard(sessionID)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	session := &captureSession{
		id:           sessionID,
		title:        title,
		micDevice:    micDevice,
		systemDevice: systemDevice,
		mixer:        audiodev.NewMixer(s.cfg.Mixer, s.cfg.SampleRate),
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	micStream, micErr := s.opener.OpenStream(runCtx, audio.DeviceInput, micDevice, s.cfg.SampleRate, s.cfg.ChunkMs)
	systemStream, sysErr := s.opener.OpenStream(runCtx, audio.DeviceOutput, systemDevice, s.cfg.SampleRate, s.cfg.ChunkMs)

	if micErr != nil && sysErr != nil {
		cancel()
		_, _ = s.streaming.StopSession(sessionID)
		_ = s.store.Discard(sessionID)
		return nil, fmt.Errorf("%w: mic: %v, system: %v", audio.ErrDeviceUnavailable, micErr, sysErr)
	}

	session.micStream = micStream
	session.systemStream = systemStream
	session.status = audio.CaptureStatus{
		SessionID:    sessionID,
		MicDevice:    micDevice,
		SystemDevice: systemDevice,
		MicActive:    micErr == nil,
		SystemActive: sysErr == nil,
		Degraded:     micErr != nil || sysErr != nil,
		StartedAt:    time.Now(),
	}

	s.mu.Lock()
	s.session = session
	s.starting = false
	committed = true
	s.mu.Unlock()

	s.publishStatus(session, "capture started")
	s.logger.Info("采集会话启动",
		"session_id", sessionID,
		"mic_active", session.status.MicActive,
		"system_active", session.status.SystemActive,
		"degraded", session.status.Degraded)

	go s.runLoop(runCtx, session)

	status := session.status
	return &status, nil
}

// runLoop 采集主循环：配对两路帧、混音、落检查点、喂流式转写、发电平
// 单流丢失降级继续，全部丢失才退出
func (s *Service) runLoop(ctx context.Context, session *captureSession) {
	defer close(session.done)

	var micFrames, systemFrames <-chan []float32
	if session.micStream != nil {
		micFrames = session.micStream.Frames()
	}
	if session.systemStream != nil {
		systemFrames = session.systemStream.Frames()
	}

	var latestSystem []float32
	levelEvery := time.Duration(s.cfg.LevelIntervalMs) * time.Millisecond
	lastLevel := time.Now()

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-micFrames:
			if !ok {
				micFrames = nil
				s.markStreamLost(session, audio.DeviceInput)
				if systemFrames == nil {
					return
				}
				continue
			}
			mixed := session.mixer.Mix(frame, latestSystem)
			latestSystem = nil
			s.consume(session, mixed, &lastLevel, levelEvery)

		case frame, ok := <-systemFrames:
			if !ok {
				systemFrames = nil
				s.markStreamLost(session, audio.DeviceOutput)
				if micFrames == nil {
					return
				}
				continue
			}
			if micFrames == nil {
				// 仅系统音频模式：直接消费
				s.consume(session, session.mixer.Mix(nil, frame), &lastLevel, levelEvery)
				continue
			}
			// 暂存，等下一个麦克风帧配对混音
			latestSystem = frame
		}
	}
}

// consume 处理一帧混音输出
func (s *Service) consume(session *captureSession, mixed []float32, lastLevel *time.Time, levelEvery time.Duration) {
	if err := s.store.AppendAudio(session.id, audiodev.SamplesToPCM(mixed)); err != nil {
		s.logger.Warn("音频检查点追加失败", "session_id", session.id, "error", err)
	}
	s.streaming.OnChunk(session.id, mixed)

	session.seq++
	session.sampleCount += int64(len(mixed))

	if time.Since(*lastLevel) >= levelEvery {
		*lastLevel = time.Now()
		rms, peak := audiodev.Measure(mixed)
		s.eventBus.Publish(events.NewLevelEvent(events.LevelPayload{
			Device: "mix",
			RMS:    rms,
			Peak:   peak,
		}))
	}
}

// markStreamLost 单流丢失：更新状态并上报降级，不终止会话
func (s *Service) markStreamLost(session *captureSession, kind audio.DeviceKind) {
	s.mu.Lock()
	if kind == audio.DeviceInput {
		session.status.MicActive = false
	} else {
		session.status.SystemActive = false
	}
	session.status.Degraded = true
	s.mu.Unlock()

	s.logger.Warn("采集流丢失，会话降级继续", "session_id", session.id, "kind", kind)
	s.publishStatus(session, fmt.Sprintf("%s stream lost", kind))
}

// StopCapture 停止采集并把会话提交到永久存储
// 提交失败时检查点保持完整，会话可经恢复流程重试
func (s *Service) StopCapture(ctx context.Context) (*meeting.Meeting, error) {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session == nil {
		return nil, audio.ErrNoCapture
	}

	session.cancel()
	if session.micStream != nil {
		_ = session.micStream.Close()
	}
	if session.systemStream != nil {
		_ = session.systemStream.Close()
	}
	<-session.done

	// 进入终结状态：恢复扫描必须跳过该会话
	if err := s.store.SetState(session.id, domainCheckpoint.StateFinalizing); err != nil {
		s.logger.Warn("会话状态迁移失败", "session_id", session.id, "error", err)
	}
	if err := s.store.Flush(session.id); err != nil {
		s.logger.Warn("检查点落盘失败", "session_id", session.id, "error", err)
	}

	segments, err := s.streaming.StopSession(session.id)
	if err != nil {
		return nil, err
	}

	m := &meeting.Meeting{
		ID:    meeting.NewMeetingID(),
		Title: session.title,
	}
	for _, seg := range segments {
		seg.MeetingID = m.ID
	}
	if err := s.repo.CreateWithSegments(m, segments); err != nil {
		// 提交失败：回到 active 状态，检查点保持可恢复
		_ = s.store.SetState(session.id, domainCheckpoint.StateActive)
		return nil, fmt.Errorf("%w: %v", meeting.ErrStorage, err)
	}

	if err := s.store.MarkSaved(session.id); err != nil {
		s.logger.Warn("检查点标记已保存失败", "session_id", session.id, "error", err)
	}

	s.mu.Lock()
	session.status.MicActive = false
	session.status.SystemActive = false
	s.mu.Unlock()
	s.publishStatus(session, "capture stopped")

	s.logger.Info("采集会话已保存",
		"session_id", session.id,
		"meeting_id", m.ID,
		"segments", len(segments))
	return m, nil
}

// Status 当前采集状态快照，无活动会话返回 ErrNoCapture
func (s *Service) Status() (*audio.CaptureStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, audio.ErrNoCapture
	}
	status := s.session.status
	return &status, nil
}

func (s *Service) publishStatus(session *captureSession, reason string) {
	s.mu.Lock()
	payload := events.CaptureStatusPayload{
		SessionID:    session.id,
		MicActive:    session.status.MicActive,
		SystemActive: session.status.SystemActive,
		Degraded:     session.status.Degraded,
		Reason:       reason,
	}
	s.mu.Unlock()
	s.eventBus.Publish(events.NewCaptureStatusEvent(payload))
}

// StartLevelMonitoring 启动指定设备的电平监测
// 与采集是否活动无关（用于开录前麦克风测试）；已在监测的设备是无操作
func (s *Service) StartLevelMonitoring(deviceNames []string) error {
	for _, name := range deviceNames {
		s.mu.Lock()
		if _, running := s.monitors[name]; running {
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		ctx, cancel := context.WithCancel(context.Background())
		stream, err := s.opener.OpenStream(ctx, audio.DeviceInput, name, s.cfg.SampleRate, s.cfg.LevelIntervalMs)
		if err != nil {
			cancel()
			return fmt.Errorf("%w: %s: %v", audio.ErrDeviceUnavailable, name, err)
		}

		monitor := &levelMonitor{stream: stream, cancel: cancel, done: make(chan struct{})}
		s.mu.Lock()
		if _, running := s.monitors[name]; running {
			// 并发启动竞争中落败：收掉本次开出的流
			s.mu.Unlock()
			cancel()
			_ = stream.Close()
			continue
		}
		s.monitors[name] = monitor
		s.mu.Unlock()

		go s.monitorLoop(name, monitor)
	}
	return nil
}

func (s *Service) monitorLoop(device string, monitor *levelMonitor) {
	defer close(monitor.done)

	for frame := range monitor.stream.Frames() {
		rms, peak := audiodev.Measure(frame)
		s.eventBus.Publish(events.NewLevelEvent(events.LevelPayload{
			Device: device,
			RMS:    rms,
			Peak:   peak,
		}))
	}
}

// StopLevelMonitoring 停止指定设备的电平监测，幂等
// deviceNames 为空表示停止全部
func (s *Service) StopLevelMonitoring(deviceNames []string) {
	s.mu.Lock()
	if len(deviceNames) == 0 {
		for name := range s.monitors {
			deviceNames = append(deviceNames, name)
		}
	}
	monitors := make([]*levelMonitor, 0, len(deviceNames))
	for _, name := range deviceNames {
		if monitor, ok := s.monitors[name]; ok {
			monitors = append(monitors, monitor)
			delete(s.monitors, name)
		}
	}
	s.mu.Unlock()

	for _, monitor := range monitors {
		monitor.cancel()
		_ = monitor.stream.Close()
		<-monitor.done
	}
}

// Shutdown 停止全部监测并终止进行中的采集
func (s *Service) Shutdown(ctx context.Context) {
	s.StopLevelMonitoring(nil)

	s.mu.Lock()
	active := s.session != nil
	s.mu.Unlock()
	if active {
		if _, err := s.StopCapture(ctx); err != nil {
			s.logger.Warn("关停时停止采集失败", "error", err)
		}
	}
}
