package audiodev

import (
	"math"

	"github.com/meetily/backend/internal/domain/audio"
)

// Mixer 双流混音器：麦克风活动时闪避系统音频，输出经软拐点限幅防削波
// 有状态（闪避释放计数），单个采集会话独占一个实例，非并发安全
type Mixer struct {
	cfg        audio.MixerConfig
	sampleRate int
	// duckRemaining 剩余闪避采样数，麦克风活动时重置为释放窗口长度
	duckRemaining int
}

// NewMixer 创建混音器
func NewMixer(cfg audio.MixerConfig, sampleRate int) *Mixer {
	return &Mixer{cfg: cfg, sampleRate: sampleRate}
}

// Mix 混合一帧麦克风和系统音频
// system 为 nil 时退化为单流直通（仍过限幅器）
// 两帧长度不一致时按较短者混合，剩余部分直通
func (m *Mixer) Mix(mic, system []float32) []float32 {
	if len(system) == 0 {
		return m.limitFrame(mic)
	}
	if len(mic) == 0 {
		return m.limitFrame(system)
	}

	// 帧级闪避判定：麦克风 RMS 超过阈值则在释放窗口内衰减系统音频
	micRMS, _ := Measure(mic)
	if micRMS > m.cfg.DuckThreshold {
		m.duckRemaining = m.sampleRate * m.cfg.DuckReleaseMs / 1000
	}

	systemGain := 1.0
	if m.duckRemaining > 0 {
		systemGain = m.cfg.DuckGain
	}

	n := len(mic)
	if len(system) < n {
		n = len(system)
	}

	out := make([]float32, maxInt(len(mic), len(system)))
	for i := 0; i < n; i++ {
		out[i] = m.limit(mic[i] + float32(systemGain)*system[i])
	}
	for i := n; i < len(mic); i++ {
		out[i] = m.limit(mic[i])
	}
	for i := n; i < len(system); i++ {
		out[i] = m.limit(float32(systemGain) * system[i])
	}

	if m.duckRemaining > 0 {
		m.duckRemaining -= n
		if m.duckRemaining < 0 {
			m.duckRemaining = 0
		}
	}
	return out
}

func (m *Mixer) limitFrame(samples []float32) []float32 {
	out := make([]float32, len(samples))
	for i, sample := range samples {
		out[i] = m.limit(sample)
	}
	return out
}

// limit 软拐点限幅：阈值以下线性，阈值以上 tanh 压缩，绝不超过 ±1
func (m *Mixer) limit(sample float32) float32 {
	threshold := m.cfg.LimiterThreshold
	abs := math.Abs(float64(sample))
	if abs <= threshold {
		return sample
	}

	knee := 1.0 - threshold
	compressed := threshold + knee*math.Tanh((abs-threshold)/knee)
	if sample < 0 {
		compressed = -compressed
	}
	return float32(compressed)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
