package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	appModel "github.com/meetily/backend/internal/application/speechmodel"
	"github.com/meetily/backend/internal/domain/events"
	"github.com/meetily/backend/internal/domain/meeting"
	"github.com/meetily/backend/internal/infrastructure/audiodev"
	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/log"
	"github.com/meetily/backend/internal/infrastructure/storage"
	"github.com/meetily/backend/internal/infrastructure/whisper"
)

// 导入阶段及进度区间
const (
	stageValidating   = "validating"
	stageCopying      = "copying"
	stageConverting   = "converting"
	stageTranscribing = "transcribing"
	stageSaving       = "saving"
	stageComplete     = "complete"
)

// ErrImportNotFound 导入任务不存在
var ErrImportNotFound = errors.New("import job not found")

// ImportRequest 导入请求
type ImportRequest struct {
	SourcePath string
	Title      string
	// Language 语言提示：auto、auto-translate 或明确语言码，空用设置默认
	Language string
	// Model 转写模型名，空用设置默认
	Model string
}

// importJob 进行中的导入任务
type importJob struct {
	id     string
	cancel context.CancelFunc

	mu       sync.Mutex
	snapshot ImportStatus
}

// ImportStatus 导入任务进度快照
type ImportStatus struct {
	ImportID           string `json:"import_id"`
	Stage              string `json:"stage"`
	ProgressPercentage int    `json:"progress_percentage"`
	Message            string `json:"message"`
}

// ImportService 批量导入转写服务
// 取消语义：完整回滚，不留下任何会议记录和落盘文件
type ImportService struct {
	prober      audiodev.Prober
	transcriber whisper.Transcriber
	models      *appModel.Service
	settings    storage.SettingsRepository
	meetingRepo meeting.Repository
	eventBus    events.EventBus
	captureCfg  *config.CaptureConfig
	logger      *slog.Logger

	mu   sync.Mutex
	jobs map[string]*importJob
}

// NewImportService 创建导入服务
func NewImportService(
	prober audiodev.Prober,
	transcriber whisper.Transcriber,
	models *appModel.Service,
	settings storage.SettingsRepository,
	meetingRepo meeting.Repository,
	eventBus events.EventBus,
	captureCfg *config.CaptureConfig,
) *ImportService {
	return &ImportService{
		prober:      prober,
		transcriber: transcriber,
		models:      models,
		settings:    settings,
		meetingRepo: meetingRepo,
		eventBus:    eventBus,
		captureCfg:  captureCfg,
		logger:      log.NewModuleLogger("transcription", "import"),
		jobs:        make(map[string]*importJob),
	}
}

// ValidateAudioFile 校验导入文件并返回元信息
func (s *ImportService) ValidateAudioFile(ctx context.Context, path string) (*audiodev.AudioFileInfo, error) {
	return s.prober.ValidateAudioFile(ctx, path)
}

// StartImport 启动导入，立即返回导入任务 ID
// 进度与终态通过事件总线发布
func (s *ImportService) StartImport(req ImportRequest) (string, error) {
	if strings.TrimSpace(req.SourcePath) == "" {
		return "", fmt.Errorf("%w: empty source path", audiodev.ErrInvalidAudioFile)
	}

	importID := fmt.Sprintf("import-%s", uuid.New().String())
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.jobs[importID] = &importJob{id: importID, cancel: cancel}
	s.mu.Unlock()

	go s.run(ctx, importID, req)
	return importID, nil
}

// CancelImport 取消进行中的导入
// 取消后不留下任何部分写入；任务不存在返回 ErrImportNotFound
func (s *ImportService) CancelImport(importID string) error {
	s.mu.Lock()
	job, ok := s.jobs[importID]
	s.mu.Unlock()
	if !ok {
		return ErrImportNotFound
	}
	job.cancel()
	return nil
}

func (s *ImportService) run(ctx context.Context, importID string, req ImportRequest) {
	defer func() {
		s.mu.Lock()
		delete(s.jobs, importID)
		s.mu.Unlock()
	}()

	meetingID := meeting.NewMeetingID()
	recordingsDir, err := config.GetRecordingsDir()
	if err != nil {
		s.fail(importID, "", err, false)
		return
	}
	folder := filepath.Join(recordingsDir, meetingID)

	result, err := s.runStages(ctx, importID, meetingID, folder, req)
	if err != nil {
		// 回滚：删除会议目录；数据库写入是最后一步的单事务，
		// 走到这里说明事务未提交或已回滚，不存在部分记录
		os.RemoveAll(folder)
		s.fail(importID, meetingID, err, errors.Is(err, context.Canceled))
		return
	}

	s.progress(importID, stageComplete, 100, "导入完成")
	s.eventBus.Publish(events.NewImportCompleteEvent(events.ImportCompletePayload{
		ImportID:        importID,
		MeetingID:       meetingID,
		Title:           result.title,
		SegmentsCount:   result.segmentsCount,
		DurationSeconds: result.durationSeconds,
	}))
	s.logger.Info("导入完成",
		"import_id", importID,
		"meeting_id", meetingID,
		"segments", result.segmentsCount)
}

type importResult struct {
	title           string
	segmentsCount   int
	durationSeconds float64
}

// runStages 依次执行导入各阶段，任何阶段出错或取消都中断
func (s *ImportService) runStages(ctx context.Context, importID, meetingID, folder string, req ImportRequest) (*importResult, error) {
	// 阶段 1：校验
	s.progress(importID, stageValidating, 0, "校验音频文件")
	info, err := s.prober.ValidateAudioFile(ctx, req.SourcePath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 阶段 2：复制进会议目录
	s.progress(importID, stageCopying, 10, "复制音频文件")
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create meeting folder: %w", err)
	}
	srcCopy := filepath.Join(folder, "source"+filepath.Ext(req.SourcePath))
	if err := copyFile(ctx, req.SourcePath, srcCopy); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 阶段 3：统一解码为 16kHz 单声道 WAV
	s.progress(importID, stageConverting, 25, "解码音频")
	wavPath := filepath.Join(folder, "audio.wav")
	if err := audiodev.DecodeToWAV(ctx, s.captureCfg.FFmpegPath, srcCopy, wavPath, s.captureCfg.SampleRate); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	// 阶段 4：整段转写
	s.progress(importID, stageTranscribing, 40, "转写音频")
	segments, err := s.transcribe(ctx, wavPath, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 阶段 5：单事务落库，全有或全无
	s.progress(importID, stageSaving, 90, "保存会议")
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(info.Filename, filepath.Ext(info.Filename))
	}
	m := &meeting.Meeting{
		ID:         meetingID,
		Title:      title,
		FolderPath: folder,
		Language:   req.Language,
	}
	for _, seg := range segments {
		seg.MeetingID = meetingID
	}
	if err := s.meetingRepo.CreateWithSegments(m, segments); err != nil {
		return nil, err
	}

	return &importResult{
		title:           title,
		segmentsCount:   len(segments),
		durationSeconds: info.DurationSeconds,
	}, nil
}

// transcribe 解析语言与模型选择并执行整段转写
func (s *ImportService) transcribe(ctx context.Context, wavPath string, req ImportRequest) ([]*meeting.TranscriptSegment, error) {
	cfg, err := s.settings.GetTranscriptConfig()
	if err != nil {
		return nil, err
	}

	modelName := req.Model
	if modelName == "" {
		modelName = cfg.Model
	}
	modelPath, err := s.models.ModelPath(modelName)
	if err != nil {
		return nil, err
	}

	language := req.Language
	if language == "" {
		language = cfg.Language
	}

	raw, err := s.transcriber.TranscribeFile(ctx, wavPath, modelPath, whisper.ParseLanguageHint(language))
	if err != nil {
		return nil, err
	}

	segments := make([]*meeting.TranscriptSegment, 0, len(raw))
	for i, item := range raw {
		segments = append(segments, &meeting.TranscriptSegment{
			ID:             meeting.NewSegmentID(),
			Sequence:       int64(i),
			Text:           item.Text,
			Timestamp:      time.Now(),
			AudioStartTime: item.Start,
			AudioEndTime:   item.End,
			Confidence:     item.Confidence,
			Final:          true,
		})
	}
	return segments, nil
}

// Status 查询进行中导入任务的进度快照
// 终态（完成/失败/取消）通过事件总线投递，任务随之从注册表移除
func (s *ImportService) Status(importID string) (*ImportStatus, error) {
	s.mu.Lock()
	job, ok := s.jobs[importID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrImportNotFound
	}
	job.mu.Lock()
	snapshot := job.snapshot
	job.mu.Unlock()
	return &snapshot, nil
}

func (s *ImportService) progress(importID, stage string, percentage int, message string) {
	s.mu.Lock()
	if job, ok := s.jobs[importID]; ok {
		job.mu.Lock()
		job.snapshot = ImportStatus{
			ImportID:           importID,
			Stage:              stage,
			ProgressPercentage: percentage,
			Message:            message,
		}
		job.mu.Unlock()
	}
	s.mu.Unlock()
	s.eventBus.Publish(events.NewImportProgressEvent(events.ImportProgressPayload{
		ImportID:           importID,
		Stage:              stage,
		ProgressPercentage: percentage,
		Message:            message,
	}))
}

func (s *ImportService) fail(importID, meetingID string, err error, cancelled bool) {
	if cancelled {
		s.logger.Info("导入已取消并回滚", "import_id", importID, "meeting_id", meetingID)
	} else {
		s.logger.Error("导入失败", "import_id", importID, "error", err)
	}
	s.eventBus.Publish(events.NewImportFailedEvent(events.ImportFailedPayload{
		ImportID:  importID,
		Error:     err.Error(),
		Cancelled: cancelled,
	}))
}

// copyFile 复制文件，响应取消
func copyFile(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	buf := make([]byte, 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("failed to copy file: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read source file: %w", readErr)
		}
	}
}
