package recovery

import "github.com/google/wire"

// ProviderSet 恢复应用服务提供者集合
var ProviderSet = wire.NewSet(
	NewOrchestrator,
)
