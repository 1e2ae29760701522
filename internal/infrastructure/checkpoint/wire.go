package checkpoint

import "github.com/google/wire"

// ProviderSet Checkpoint 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	NewStore, // 检查点存储
)
