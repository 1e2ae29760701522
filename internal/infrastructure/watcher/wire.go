package watcher

import (
	"github.com/google/wire"

	"github.com/meetily/backend/internal/domain/events"
	"github.com/meetily/backend/internal/infrastructure/config"
)

// ProvideModelWatcher 提供模型目录监听器
func ProvideModelWatcher(eventBus events.EventBus) (*ModelWatcher, error) {
	modelsDir, err := config.GetModelsDir()
	if err != nil {
		return nil, err
	}
	return NewModelWatcher(modelsDir, eventBus)
}

// ProviderSet Watcher 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	NewEventBus,
	ProvideModelWatcher,
)
