package transcription

import "github.com/google/wire"

// ProviderSet Transcription 应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewStreamingService,
	NewImportService,
)
