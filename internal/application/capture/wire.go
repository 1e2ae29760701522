package capture

import "github.com/google/wire"

// ProviderSet Capture 应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewService,
)
