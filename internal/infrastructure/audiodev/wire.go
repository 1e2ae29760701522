package audiodev

import (
	"github.com/google/wire"

	"github.com/meetily/backend/internal/infrastructure/config"
)

// ProvideDeviceLister 提供设备枚举器
func ProvideDeviceLister(cfg *config.CaptureConfig) DeviceLister {
	return NewDeviceLister(cfg.FFmpegPath)
}

// ProvideStreamOpener 提供采集流打开器
func ProvideStreamOpener(cfg *config.CaptureConfig) StreamOpener {
	return NewStreamOpener(cfg.FFmpegPath)
}

// ProvideProber 提供音频文件探测器
func ProvideProber(cfg *config.CaptureConfig) Prober {
	return NewProber(cfg.FFmpegPath)
}

// ProviderSet AudioDev 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDeviceLister,
	ProvideStreamOpener,
	ProvideProber,
)
