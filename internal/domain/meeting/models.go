// Package meeting 定义会议和转写片段领域模型
package meeting

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Meeting 会议实体
// 由开始录音或导入音频创建，拥有有序的转写片段序列和至多一份当前总结
type Meeting struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	FolderPath string    `json:"folder_path,omitempty"`
	// Language 转写语言提示：auto、auto-translate 或明确语言码
	Language string `json:"language,omitempty"`
}

// NewMeetingID 生成会议 ID
func NewMeetingID() string {
	return fmt.Sprintf("meeting-%s", uuid.New().String())
}

// NewSegmentID 生成转写片段 ID
func NewSegmentID() string {
	return fmt.Sprintf("transcript-%s", uuid.New().String())
}

// TranscriptSegment 转写片段
// Sequence 在会议内单调递增；final 片段替换相同 Sequence 的 partial 片段
type TranscriptSegment struct {
	ID        string `json:"id"`
	MeetingID string `json:"meeting_id,omitempty"`
	// Sequence 会议内单调递增的序列号，final 片段沿用被替换 partial 片段的序列号
	Sequence int64 `json:"sequence"`
	Text     string `json:"text"`
	// Timestamp 片段产生时的墙上时钟时间
	Timestamp time.Time `json:"timestamp"`
	// AudioStartTime/AudioEndTime 相对录音起点的秒数，用于播放同步
	AudioStartTime float64 `json:"audio_start_time"`
	AudioEndTime   float64 `json:"audio_end_time"`
	// Confidence 转写置信度，取值 [0,1]
	Confidence float64 `json:"confidence"`
	// Final 为 true 表示片段不可变；false 表示临时片段，可能被替换
	Final bool `json:"final"`
	// SupersedesID final 片段所替换的 partial 片段 ID
	SupersedesID string `json:"supersedes_id,omitempty"`
}

// Duration 片段时长（秒）
func (s *TranscriptSegment) Duration() float64 {
	return s.AudioEndTime - s.AudioStartTime
}

// TranscriptPage 分页读取结果
type TranscriptPage struct {
	Segments   []*TranscriptSegment `json:"transcripts"`
	TotalCount int                  `json:"total_count"`
	HasMore    bool                 `json:"has_more"`
}

// 置信度展示分档，仅用于显示，低置信度片段不会被丢弃
const (
	ConfidenceHigh   = "high"
	ConfidenceGood   = "good"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ConfidenceBucket 将置信度标量归入展示分档
func ConfidenceBucket(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return ConfidenceHigh
	case confidence >= 0.7:
		return ConfidenceGood
	case confidence >= 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SortSegments 按音频相对起始时间排序，同一起始时间按序列号排序
// 消费者要求无论到达顺序如何，输出都是全序的
func SortSegments(segments []*TranscriptSegment) {
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].AudioStartTime != segments[j].AudioStartTime {
			return segments[i].AudioStartTime < segments[j].AudioStartTime
		}
		return segments[i].Sequence < segments[j].Sequence
	})
}

// MergeSegments 合并分页读取结果与流式到达的片段
// 按片段 ID 去重；相同 Sequence 的 final 片段替换 partial 片段；结果全序
func MergeSegments(existing, incoming []*TranscriptSegment) []*TranscriptSegment {
	bySequence := make(map[int64]*TranscriptSegment, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))

	apply := func(seg *TranscriptSegment) {
		if seg == nil || seen[seg.ID] {
			return
		}
		seen[seg.ID] = true
		current, ok := bySequence[seg.Sequence]
		if !ok {
			bySequence[seg.Sequence] = seg
			return
		}
		// final 片段替换相同序列号的 partial 片段；partial 不会回退 final
		if seg.Final || !current.Final {
			bySequence[seg.Sequence] = seg
		}
	}

	for _, seg := range existing {
		apply(seg)
	}
	for _, seg := range incoming {
		apply(seg)
	}

	merged := make([]*TranscriptSegment, 0, len(bySequence))
	for _, seg := range bySequence {
		merged = append(merged, seg)
	}
	SortSegments(merged)
	return merged
}

// SearchResult 跨会议转写全文检索结果
type SearchResult struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MatchContext string `json:"matchContext"`
	Timestamp    string `json:"timestamp"`
}
