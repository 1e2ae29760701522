package events

// CaptureStatusPayload 采集状态事件内容
type CaptureStatusPayload struct {
	SessionID    string `json:"session_id"`
	MicActive    bool   `json:"mic_active"`
	SystemActive bool   `json:"system_active"`
	// Degraded 表示双流采集退化为单流（如系统音频设备断开）
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// CaptureStatusEvent 采集状态变化事件
type CaptureStatusEvent struct {
	BaseEvent
	Payload CaptureStatusPayload
}

// NewCaptureStatusEvent 创建采集状态变化事件
func NewCaptureStatusEvent(payload CaptureStatusPayload) *CaptureStatusEvent {
	return &CaptureStatusEvent{
		BaseEvent: NewBaseEvent(CaptureStatusChanged),
		Payload:   payload,
	}
}

// LevelPayload 音频电平事件内容
type LevelPayload struct {
	Device string  `json:"device"`
	RMS    float64 `json:"rms"`
	Peak   float64 `json:"peak"`
}

// LevelEvent 音频电平事件
type LevelEvent struct {
	BaseEvent
	Payload LevelPayload
}

// NewLevelEvent 创建音频电平事件
func NewLevelEvent(payload LevelPayload) *LevelEvent {
	return &LevelEvent{
		BaseEvent: NewBaseEvent(CaptureLevel),
		Payload:   payload,
	}
}
