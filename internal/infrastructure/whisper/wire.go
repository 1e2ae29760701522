package whisper

import (
	"github.com/google/wire"

	"github.com/meetily/backend/internal/infrastructure/config"
)

// ProvideTranscriber 提供转写器
func ProvideTranscriber(cfg *config.WhisperConfig) Transcriber {
	return NewTranscriber(cfg.BinPath)
}

// ProviderSet Whisper 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideTranscriber,
)
