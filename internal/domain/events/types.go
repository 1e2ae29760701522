// Package events 定义领域事件类型和接口
// 用于录音、转写、总结各子系统之间的事件驱动通信
package events

import "time"

// EventType 事件类型标识
type EventType string

// 转写片段相关事件类型
const (
	// SegmentPartial 临时转写片段事件（后续可能被最终版本替换）
	SegmentPartial EventType = "segment.partial"
	// SegmentFinal 最终转写片段事件（不可变）
	SegmentFinal EventType = "segment.final"
)

// 采集相关事件类型
const (
	// CaptureStatusChanged 采集状态变化事件（启动、降级、停止）
	CaptureStatusChanged EventType = "capture.status"
	// CaptureLevel 音频电平事件（亚秒级周期发布）
	CaptureLevel EventType = "capture.level"
)

// 导入相关事件类型
const (
	// ImportProgress 导入进度事件
	ImportProgress EventType = "import.progress"
	// ImportComplete 导入完成事件
	ImportComplete EventType = "import.complete"
	// ImportFailed 导入失败事件
	ImportFailed EventType = "import.failed"
)

// 总结相关事件类型
const (
	// SummaryStatusChanged 总结任务状态变化事件
	SummaryStatusChanged EventType = "summary.status"
)

// 模型管理相关事件类型
const (
	// ModelDownloadProgress 模型下载进度事件
	ModelDownloadProgress EventType = "model.download.progress"
	// ModelDirChanged 模型目录变化事件（由文件监听器发布）
	ModelDirChanged EventType = "model.dir.changed"
)

// 检查点恢复相关事件类型
const (
	// CheckpointRecovered 检查点恢复完成事件
	CheckpointRecovered EventType = "checkpoint.recovered"
)

// Event 领域事件接口
// 所有事件类型都必须实现此接口
type Event interface {
	// Type 返回事件类型
	Type() EventType
	// Timestamp 返回事件发生时间
	Timestamp() time.Time
}

// Handler 事件处理器接口
type Handler interface {
	// HandleEvent 处理事件，返回错误不会中断其他处理器
	HandleEvent(event Event) error
}

// HandlerFunc 函数式事件处理器
type HandlerFunc func(event Event) error

// HandleEvent 实现 Handler 接口
func (f HandlerFunc) HandleEvent(event Event) error {
	return f(event)
}

// EventBus 事件总线接口
type EventBus interface {
	// Subscribe 订阅特定类型的事件，返回取消订阅函数
	Subscribe(eventType EventType, handler Handler) func()
	// SubscribeMultiple 订阅多个类型的事件，返回取消所有订阅的函数
	SubscribeMultiple(eventTypes []EventType, handler Handler) func()
	// Publish 异步发布事件
	Publish(event Event)
	// Close 关闭事件总线，等待在途事件处理完成
	Close()
}

// BaseEvent 事件公共字段
type BaseEvent struct {
	EventType  EventType
	OccurredAt time.Time
}

// Type 返回事件类型
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp 返回事件发生时间
func (e *BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewBaseEvent 创建事件公共字段
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		EventType:  eventType,
		OccurredAt: time.Now(),
	}
}
