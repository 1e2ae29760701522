package meeting

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSegment(seq int64, start float64, final bool) *TranscriptSegment {
	return &TranscriptSegment{
		ID:             fmt.Sprintf("seg-%d-%v", seq, final),
		Sequence:       seq,
		Text:           fmt.Sprintf("片段 %d", seq),
		AudioStartTime: start,
		AudioEndTime:   start + 5,
		Final:          final,
	}
}

// TestSortSegments 测试片段全序排序
func TestSortSegments(t *testing.T) {
	segments := []*TranscriptSegment{
		makeSegment(3, 50.0, true),
		makeSegment(1, 10.0, true),
		makeSegment(2, 10.0, true), // 相同起始时间按序列号
		makeSegment(0, 0.0, true),
	}

	SortSegments(segments)

	assert.Equal(t, int64(0), segments[0].Sequence)
	assert.Equal(t, int64(1), segments[1].Sequence)
	assert.Equal(t, int64(2), segments[2].Sequence)
	assert.Equal(t, int64(3), segments[3].Sequence)
}

// TestMergeSegments_FinalSupersedesPartial 测试 final 片段替换同序号 partial 片段
func TestMergeSegments_FinalSupersedesPartial(t *testing.T) {
	partial := makeSegment(37, 925.0, false)
	partial.Text = "临时识别结果"
	final := makeSegment(37, 925.0, true)
	final.Text = "最终识别结果"
	final.SupersedesID = partial.ID

	merged := MergeSegments([]*TranscriptSegment{partial}, []*TranscriptSegment{final})

	require.Len(t, merged, 1)
	assert.Equal(t, "最终识别结果", merged[0].Text)
	assert.True(t, merged[0].Final)
	assert.Equal(t, partial.ID, merged[0].SupersedesID)
}

// TestMergeSegments_PartialNeverDowngradesFinal 测试 partial 不会回退已有 final
func TestMergeSegments_PartialNeverDowngradesFinal(t *testing.T) {
	final := makeSegment(5, 100.0, true)
	partial := makeSegment(5, 100.0, false)

	merged := MergeSegments([]*TranscriptSegment{final}, []*TranscriptSegment{partial})

	require.Len(t, merged, 1)
	assert.True(t, merged[0].Final)
	assert.Equal(t, final.ID, merged[0].ID)
}

// TestMergeSegments_PagedReadWithStreamingArrivals 测试分页读取与流式到达合并
// 模拟 250 条片段按每页 100 条读出，同时其中一条的 final 版本从流式端到达
func TestMergeSegments_PagedReadWithStreamingArrivals(t *testing.T) {
	const total = 250
	const pageSize = 100

	all := make([]*TranscriptSegment, 0, total)
	for i := 0; i < total; i++ {
		all = append(all, makeSegment(int64(i), float64(i*5), i != 37))
	}

	// 流式端先送达了 #37 的 final 版本
	streamFinal := makeSegment(37, 37*5, true)
	streamFinal.Text = "流式最终文本"
	merged := MergeSegments(nil, []*TranscriptSegment{streamFinal})

	// 再按页合入持久化读取结果
	for offset := 0; offset < total; offset += pageSize {
		end := offset + pageSize
		if end > total {
			end = total
		}
		merged = MergeSegments(merged, all[offset:end])
	}

	require.Len(t, merged, total)
	// 全序且无重复
	for i, seg := range merged {
		assert.Equal(t, int64(i), seg.Sequence)
	}
	// 数据库里的 partial #37 没有覆盖流式 final
	assert.True(t, merged[37].Final)
	assert.Equal(t, "流式最终文本", merged[37].Text)
}

// TestMergeSegments_DedupeByID 测试按片段 ID 去重
func TestMergeSegments_DedupeByID(t *testing.T) {
	seg := makeSegment(1, 10.0, true)

	merged := MergeSegments([]*TranscriptSegment{seg}, []*TranscriptSegment{seg})

	assert.Len(t, merged, 1)
}

// TestConfidenceBucket 测试置信度分档
func TestConfidenceBucket(t *testing.T) {
	cases := []struct {
		confidence float64
		want       string
	}{
		{0.95, ConfidenceHigh},
		{0.75, ConfidenceGood},
		{0.55, ConfidenceMedium},
		{0.2, ConfidenceLow},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ConfidenceBucket(tc.confidence), "confidence=%v", tc.confidence)
	}
}

// TestSegmentDuration 测试片段时长
func TestSegmentDuration(t *testing.T) {
	seg := &TranscriptSegment{AudioStartTime: 10.0, AudioEndTime: 17.5}
	assert.InDelta(t, 7.5, seg.Duration(), 1e-9)
}
