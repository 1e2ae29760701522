// Package audio 定义音频设备与采集领域模型
package audio

import "time"

// DeviceKind 设备方向
type DeviceKind string

const (
	// DeviceInput 输入设备（麦克风）
	DeviceInput DeviceKind = "input"
	// DeviceOutput 输出设备（系统音频回环）
	DeviceOutput DeviceKind = "output"
)

// Device 音频设备
type Device struct {
	Name    string     `json:"name"`
	Kind    DeviceKind `json:"kind"`
	Default bool       `json:"default"`
}

// Chunk 定长带时间戳音频块
// Samples 为单声道 float32，取值 [-1,1]
type Chunk struct {
	Sequence   int64
	Samples    []float32
	SampleRate int
	// Start 相对采集起点的偏移
	Start time.Duration
}

// Duration 音频块时长
func (c *Chunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// LevelReading 电平读数
type LevelReading struct {
	Device string    `json:"device"`
	RMS    float64   `json:"rms"`
	Peak   float64   `json:"peak"`
	At     time.Time `json:"at"`
}

// CaptureStatus 采集会话状态快照
type CaptureStatus struct {
	SessionID    string    `json:"session_id"`
	MicDevice    string    `json:"mic_device,omitempty"`
	SystemDevice string    `json:"system_device,omitempty"`
	MicActive    bool      `json:"mic_active"`
	SystemActive bool      `json:"system_active"`
	// Degraded 双流采集退化为单流；必须上报而非静默丢弃
	Degraded  bool      `json:"degraded"`
	StartedAt time.Time `json:"started_at"`
}

// MixerConfig 混音策略参数，阈值可调而非固定常量
type MixerConfig struct {
	// DuckThreshold 麦克风 RMS 超过该阈值时触发闪避
	DuckThreshold float64 `json:"duck_threshold" yaml:"duck_threshold"`
	// DuckGain 闪避时施加在系统音频上的衰减系数 (0,1]
	DuckGain float64 `json:"duck_gain" yaml:"duck_gain"`
	// DuckReleaseMs 麦克风活动停止后闪避的释放时间
	DuckReleaseMs int `json:"duck_release_ms" yaml:"duck_release_ms"`
	// LimiterThreshold 硬限幅前的软拐点阈值
	LimiterThreshold float64 `json:"limiter_threshold" yaml:"limiter_threshold"`
}

// DefaultMixerConfig 默认混音参数
func DefaultMixerConfig() MixerConfig {
	return MixerConfig{
		DuckThreshold:    0.02,
		DuckGain:         0.35,
		DuckReleaseMs:    400,
		LimiterThreshold: 0.95,
	}
}
