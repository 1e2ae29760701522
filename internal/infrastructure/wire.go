package infrastructure

import (
	"github.com/google/wire"

	"github.com/meetily/backend/internal/infrastructure/audiodev"
	"github.com/meetily/backend/internal/infrastructure/checkpoint"
	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/download"
	"github.com/meetily/backend/internal/infrastructure/llm"
	"github.com/meetily/backend/internal/infrastructure/storage"
	"github.com/meetily/backend/internal/infrastructure/watcher"
	"github.com/meetily/backend/internal/infrastructure/websocket"
	"github.com/meetily/backend/internal/infrastructure/whisper"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	storage.ProviderSet,
	checkpoint.ProviderSet,
	audiodev.ProviderSet,
	whisper.ProviderSet,
	llm.ProviderSet,
	download.ProviderSet,
	watcher.ProviderSet,
	websocket.ProviderSet,
)
