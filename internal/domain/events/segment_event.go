package events

// SegmentPayload 转写片段事件内容
// 相同 Sequence 的后续事件表示替换（partial 被 final 取代），消费者不得追加
type SegmentPayload struct {
	MeetingID      string  `json:"meeting_id"`
	SessionID      string  `json:"session_id"`
	SegmentID      string  `json:"segment_id"`
	Sequence       int64   `json:"sequence"`
	Text           string  `json:"text"`
	AudioStartTime float64 `json:"audio_start_time"`
	AudioEndTime   float64 `json:"audio_end_time"`
	Confidence     float64 `json:"confidence"`
	Final          bool    `json:"final"`
	// SupersedesID 被替换的临时片段 ID（仅 final 事件携带）
	SupersedesID string `json:"supersedes_id,omitempty"`
}

// SegmentEvent 转写片段事件
type SegmentEvent struct {
	BaseEvent
	Payload SegmentPayload
}

// NewSegmentEvent 创建转写片段事件
func NewSegmentEvent(payload SegmentPayload) *SegmentEvent {
	eventType := SegmentPartial
	if payload.Final {
		eventType = SegmentFinal
	}
	return &SegmentEvent{
		BaseEvent: NewBaseEvent(eventType),
		Payload:   payload,
	}
}
