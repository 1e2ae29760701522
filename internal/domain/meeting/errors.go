package meeting

import "errors"

var (
	// ErrMeetingNotFound 会议不存在
	ErrMeetingNotFound = errors.New("meeting not found")
	// ErrEmptyTitle 会议标题为空
	ErrEmptyTitle = errors.New("meeting title is empty")
	// ErrStorage 持久化写入失败
	ErrStorage = errors.New("storage error")
)
