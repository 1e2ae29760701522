package storage

import "github.com/google/wire"

// ProviderSet Storage 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDB,               // 提供数据库连接
	NewMeetingRepository,    // 会议仓储
	NewTranscriptRepository, // 转写片段仓储
	NewSummaryRepository,    // 总结仓储
	NewSettingsRepository,   // 设置仓储
)
