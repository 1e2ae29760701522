package handler

import "github.com/google/wire"

// ProviderSet Handler ProviderSet
var ProviderSet = wire.NewSet(
	NewCaptureHandler,
	NewMeetingHandler,
	NewImportHandler,
	NewSummaryHandler,
	NewModelHandler,
	NewRecoveryHandler,
	NewSettingsHandler,
	NewStreamHandler,
)
