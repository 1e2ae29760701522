package audiodev

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetily/backend/internal/domain/audio"
)

func frame(n int, value float32) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return samples
}

// TestMixer_DuckOnMicActivity 测试麦克风活动触发系统音频闪避
func TestMixer_DuckOnMicActivity(t *testing.T) {
	cfg := audio.DefaultMixerConfig()
	mixer := NewMixer(cfg, 16000)

	// 麦克风 RMS 0.1 超过 0.02 阈值，系统音频应被衰减
	mic := frame(160, 0.1)
	system := frame(160, 0.5)
	out := mixer.Mix(mic, system)

	require.Len(t, out, 160)
	expected := float32(0.1 + 0.35*0.5)
	assert.InDelta(t, expected, out[0], 1e-6)
}

// TestMixer_NoDuckWhenMicQuiet 测试麦克风静默时系统音频全量通过
func TestMixer_NoDuckWhenMicQuiet(t *testing.T) {
	cfg := audio.DefaultMixerConfig()
	mixer := NewMixer(cfg, 16000)

	mic := frame(160, 0.001)
	system := frame(160, 0.5)
	out := mixer.Mix(mic, system)

	assert.InDelta(t, float32(0.501), out[0], 1e-6)
}

// TestMixer_DuckRelease 测试闪避在释放窗口后解除
func TestMixer_DuckRelease(t *testing.T) {
	cfg := audio.DefaultMixerConfig()
	// 400ms 释放窗口 @16kHz = 6400 采样
	mixer := NewMixer(cfg, 16000)

	loud := frame(1600, 0.1)
	quiet := frame(1600, 0.0)
	system := frame(1600, 0.5)

	// 触发闪避，本帧消耗 1600 采样后窗口剩余 4800
	out := mixer.Mix(loud, system)
	assert.InDelta(t, float32(0.1+0.35*0.5), out[0], 1e-6)

	// 剩余窗口内麦克风静默仍保持闪避
	for i := 0; i < 3; i++ {
		out = mixer.Mix(quiet, system)
		assert.InDelta(t, float32(0.35*0.5), out[0], 1e-6, "闪避应持续到释放窗口结束")
	}

	// 窗口耗尽后恢复全量
	out = mixer.Mix(quiet, system)
	assert.InDelta(t, float32(0.5), out[0], 1e-6)
}

// TestMixer_SingleStreamPassthrough 测试单流退化直通
func TestMixer_SingleStreamPassthrough(t *testing.T) {
	mixer := NewMixer(audio.DefaultMixerConfig(), 16000)

	mic := frame(160, 0.3)
	out := mixer.Mix(mic, nil)
	require.Len(t, out, 160)
	assert.InDelta(t, float32(0.3), out[0], 1e-6)

	system := frame(160, 0.4)
	out = mixer.Mix(nil, system)
	require.Len(t, out, 160)
	assert.InDelta(t, float32(0.4), out[0], 1e-6)
}

// TestMixer_LimiterSoftKnee 测试软拐点限幅
func TestMixer_LimiterSoftKnee(t *testing.T) {
	cfg := audio.DefaultMixerConfig()
	mixer := NewMixer(cfg, 16000)

	// 0.8 + 0.8 = 1.6 远超阈值，输出必须被压回 (threshold, 1) 区间
	mic := frame(160, 0.8)
	system := frame(160, 0.8)
	out := mixer.Mix(mic, system)

	// 麦克风触发闪避：1.6 变为 0.8 + 0.35*0.8 = 1.08，仍超阈值
	sum := 0.8 + 0.35*0.8
	knee := 1.0 - cfg.LimiterThreshold
	expected := cfg.LimiterThreshold + knee*math.Tanh((sum-cfg.LimiterThreshold)/knee)
	assert.InDelta(t, float32(expected), out[0], 1e-6)
	assert.Less(t, float64(out[0]), 1.0)
	assert.Greater(t, float64(out[0]), cfg.LimiterThreshold)

	// 负样本对称压缩
	negOut := mixer.Mix(frame(160, -0.8), frame(160, -0.8))
	assert.InDelta(t, -out[0], negOut[0], 1e-6)
}

// TestMixer_UnequalFrameLengths 测试不等长帧按较短者混合
func TestMixer_UnequalFrameLengths(t *testing.T) {
	mixer := NewMixer(audio.DefaultMixerConfig(), 16000)

	mic := frame(200, 0.1)
	system := frame(100, 0.3)
	out := mixer.Mix(mic, system)

	require.Len(t, out, 200)
	// 重叠区混合（麦克风活动触发闪避）
	assert.InDelta(t, float32(0.1+0.35*0.3), out[0], 1e-6)
	// 超出部分麦克风直通
	assert.InDelta(t, float32(0.1), out[150], 1e-6)
}

// TestMeasure 测试电平计量
func TestMeasure(t *testing.T) {
	rms, peak := Measure(nil)
	assert.Equal(t, 0.0, rms)
	assert.Equal(t, 0.0, peak)

	rms, peak = Measure([]float32{0.5, -0.5, 0.5, -0.5})
	assert.InDelta(t, 0.5, rms, 1e-9)
	assert.InDelta(t, 0.5, peak, 1e-9)

	rms, peak = Measure([]float32{0.0, 0.8, 0.0, -0.2})
	assert.InDelta(t, math.Sqrt((0.64+0.04)/4), rms, 1e-6)
	assert.InDelta(t, 0.8, peak, 1e-6)
}
