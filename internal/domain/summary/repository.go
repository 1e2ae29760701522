package summary

// Repository 总结仓储接口
// 备份/恢复用于重新生成失败时回滚：用户不会因失败的重新生成而失去已有总结
type Repository interface {
	// Get 查询会议总结记录，不存在时返回 (nil, nil)
	Get(meetingID string) (*Record, error)
	// Save 写入（替换）会议总结记录
	Save(record *Record) error
	// SetStatus 仅更新状态与错误信息，不触碰文档内容
	SetStatus(meetingID string, processID string, status Status, errMsg string) error
	// Backup 将当前总结复制到备份槽，重新生成前调用
	// 没有现存总结时是无操作
	Backup(meetingID string) error
	// RestoreBackup 用备份槽内容覆盖当前总结并返回是否存在备份
	RestoreBackup(meetingID string) (bool, error)
	// DeleteBackup 丢弃备份槽内容（重新生成成功后调用）
	DeleteBackup(meetingID string) error
	// Delete 删除会议的总结记录和备份
	Delete(meetingID string) error
}
