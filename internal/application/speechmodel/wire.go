package speechmodel

import "github.com/google/wire"

// ProviderSet SpeechModel 应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewService,
)
