package summarize

import "github.com/google/wire"

// ProviderSet 总结应用服务提供者集合
var ProviderSet = wire.NewSet(
	NewManager,
)
