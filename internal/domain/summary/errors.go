package summary

import "errors"

var (
	// ErrJobTimeout 总结任务超过客户端最长等待时间
	ErrJobTimeout = errors.New("summary job timed out")
	// ErrJobFailed 模型或后端在生成过程中出错
	ErrJobFailed = errors.New("summary job failed")
	// ErrJobCancelled 用户主动取消任务
	ErrJobCancelled = errors.New("summary job cancelled")
	// ErrJobRunning 会议已有进行中的总结任务
	ErrJobRunning = errors.New("summary job already running for meeting")
	// ErrEmptyResult 生成成功但所有节均为空，视为独立失败类别
	ErrEmptyResult = errors.New("summary generated but vacuous")
	// ErrEmptyTranscript 会议没有可总结的转写内容
	ErrEmptyTranscript = errors.New("transcript is empty")
	// ErrNoSummary 会议没有总结记录
	ErrNoSummary = errors.New("no summary for meeting")
)
