package events

// ImportProgressPayload 导入进度事件内容
// Stage 取值：validating、copying、converting、transcribing、saving、complete
type ImportProgressPayload struct {
	ImportID           string `json:"import_id"`
	Stage              string `json:"stage"`
	ProgressPercentage int    `json:"progress_percentage"`
	Message            string `json:"message"`
}

// ImportProgressEvent 导入进度事件
type ImportProgressEvent struct {
	BaseEvent
	Payload ImportProgressPayload
}

// NewImportProgressEvent 创建导入进度事件
func NewImportProgressEvent(payload ImportProgressPayload) *ImportProgressEvent {
	return &ImportProgressEvent{
		BaseEvent: NewBaseEvent(ImportProgress),
		Payload:   payload,
	}
}

// ImportCompletePayload 导入完成事件内容
type ImportCompletePayload struct {
	ImportID        string  `json:"import_id"`
	MeetingID       string  `json:"meeting_id"`
	Title           string  `json:"title"`
	SegmentsCount   int     `json:"segments_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ImportCompleteEvent 导入完成事件
type ImportCompleteEvent struct {
	BaseEvent
	Payload ImportCompletePayload
}

// NewImportCompleteEvent 创建导入完成事件
func NewImportCompleteEvent(payload ImportCompletePayload) *ImportCompleteEvent {
	return &ImportCompleteEvent{
		BaseEvent: NewBaseEvent(ImportComplete),
		Payload:   payload,
	}
}

// ImportFailedPayload 导入失败事件内容
type ImportFailedPayload struct {
	ImportID string `json:"import_id"`
	Error    string `json:"error"`
	// Cancelled 区分用户取消与真实失败
	Cancelled bool `json:"cancelled"`
}

// ImportFailedEvent 导入失败事件
type ImportFailedEvent struct {
	BaseEvent
	Payload ImportFailedPayload
}

// NewImportFailedEvent 创建导入失败事件
func NewImportFailedEvent(payload ImportFailedPayload) *ImportFailedEvent {
	return &ImportFailedEvent{
		BaseEvent: NewBaseEvent(ImportFailed),
		Payload:   payload,
	}
}

// SummaryStatusPayload 总结任务状态事件内容
type SummaryStatusPayload struct {
	MeetingID string `json:"meeting_id"`
	ProcessID string `json:"process_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// SummaryStatusEvent 总结任务状态变化事件
type SummaryStatusEvent struct {
	BaseEvent
	Payload SummaryStatusPayload
}

// NewSummaryStatusEvent 创建总结任务状态变化事件
func NewSummaryStatusEvent(payload SummaryStatusPayload) *SummaryStatusEvent {
	return &SummaryStatusEvent{
		BaseEvent: NewBaseEvent(SummaryStatusChanged),
		Payload:   payload,
	}
}

// ModelDownloadPayload 模型下载进度事件内容
type ModelDownloadPayload struct {
	ModelName       string  `json:"model_name"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      int64   `json:"total_bytes"`
	Progress        float64 `json:"progress"`
}

// ModelDownloadEvent 模型下载进度事件
type ModelDownloadEvent struct {
	BaseEvent
	Payload ModelDownloadPayload
}

// NewModelDownloadEvent 创建模型下载进度事件
func NewModelDownloadEvent(payload ModelDownloadPayload) *ModelDownloadEvent {
	return &ModelDownloadEvent{
		BaseEvent: NewBaseEvent(ModelDownloadProgress),
		Payload:   payload,
	}
}

// CheckpointRecoveredPayload 检查点恢复完成事件内容
type CheckpointRecoveredPayload struct {
	SessionID     string `json:"session_id"`
	MeetingID     string `json:"meeting_id"`
	SegmentsCount int    `json:"segments_count"`
	// AudioStatus 音频重建结果：success、partial、failed、none
	AudioStatus string `json:"audio_status"`
}

// CheckpointRecoveredEvent 检查点恢复完成事件
type CheckpointRecoveredEvent struct {
	BaseEvent
	Payload CheckpointRecoveredPayload
}

// NewCheckpointRecoveredEvent 创建检查点恢复完成事件
func NewCheckpointRecoveredEvent(payload CheckpointRecoveredPayload) *CheckpointRecoveredEvent {
	return &CheckpointRecoveredEvent{
		BaseEvent: NewBaseEvent(CheckpointRecovered),
		Payload:   payload,
	}
}

// ModelDirChangedEvent 模型目录变化事件
type ModelDirChangedEvent struct {
	BaseEvent
	// Path 发生变化的文件路径
	Path string
}

// NewModelDirChangedEvent 创建模型目录变化事件
func NewModelDirChangedEvent(path string) *ModelDirChangedEvent {
	return &ModelDirChangedEvent{
		BaseEvent: NewBaseEvent(ModelDirChanged),
		Path:      path,
	}
}
