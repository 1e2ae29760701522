package meeting

// Repository 会议仓储接口
type Repository interface {
	// Create 创建会议
	Create(m *Meeting) error
	// CreateWithSegments 在单个事务内创建会议及其全部转写片段
	// 任何失败都不留下部分写入
	CreateWithSegments(m *Meeting, segments []*TranscriptSegment) error
	// Get 按 ID 查询会议，未找到返回 ErrMeetingNotFound
	Get(id string) (*Meeting, error)
	// List 按创建时间倒序列出所有会议
	List() ([]*Meeting, error)
	// UpdateTitle 更新会议标题，未找到返回 ErrMeetingNotFound
	UpdateTitle(id, title string) error
	// Delete 删除会议及其片段和总结，未找到返回 ErrMeetingNotFound
	Delete(id string) error
}

// TranscriptRepository 转写片段仓储接口
type TranscriptRepository interface {
	// Upsert 写入片段；相同 (meeting_id, sequence) 的 final 片段替换 partial 片段
	Upsert(seg *TranscriptSegment) error
	// Page 按音频相对起始时间稳定排序的分页读取
	Page(meetingID string, limit, offset int) (*TranscriptPage, error)
	// Search 跨会议全文子串检索
	Search(query string) ([]*SearchResult, error)
}
