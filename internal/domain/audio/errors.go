package audio

import "errors"

var (
	// ErrDeviceUnavailable 麦克风与系统音频均无法打开
	ErrDeviceUnavailable = errors.New("no usable audio device")
	// ErrCaptureActive 同一设备组合上已有活动采集会话
	ErrCaptureActive = errors.New("capture session already active")
	// ErrNoCapture 没有进行中的采集会话
	ErrNoCapture = errors.New("no active capture session")
)
