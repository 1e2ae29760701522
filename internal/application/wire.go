package application

import (
	"github.com/meetily/backend/internal/application/capture"
	"github.com/meetily/backend/internal/application/recovery"
	"github.com/meetily/backend/internal/application/speechmodel"
	"github.com/meetily/backend/internal/application/summarize"
	"github.com/meetily/backend/internal/application/transcription"
	"github.com/google/wire"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	speechmodel.ProviderSet,
	transcription.ProviderSet,
	capture.ProviderSet,
	summarize.ProviderSet,
	recovery.ProviderSet,
)
