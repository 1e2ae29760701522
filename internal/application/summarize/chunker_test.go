package summarize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunker_CountTokens 测试 token 计数
func TestChunker_CountTokens(t *testing.T) {
	chunker, err := GetChunker()
	require.NoError(t, err)

	assert.Zero(t, chunker.CountTokens(""))
	assert.Greater(t, chunker.CountTokens("hello world"), 0)
	assert.Greater(t, chunker.CountTokens("会议纪要"), 0)
}

// TestChunker_Split_ShortText 测试不超过单块的文本原样返回
func TestChunker_Split_ShortText(t *testing.T) {
	chunker, err := GetChunker()
	require.NoError(t, err)

	text := "short transcript"
	chunks := chunker.Split(text, 1000, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])

	assert.Nil(t, chunker.Split("", 1000, 100))
	// chunkSize 非法时退化为整体一块
	assert.Equal(t, []string{text}, chunker.Split(text, 0, 0))
}

// TestChunker_Split_LongText 测试长文本按带重叠的窗口切分
func TestChunker_Split_LongText(t *testing.T) {
	chunker, err := GetChunker()
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 100)
	total := chunker.CountTokens(text)
	chunkSize := 100
	overlap := 20
	require.Greater(t, total, chunkSize)

	chunks := chunker.Split(text, chunkSize, overlap)
	require.Greater(t, len(chunks), 1)

	// 每块不超过块上限，步进为 chunkSize-overlap
	step := chunkSize - overlap
	expected := (total-overlap+step-1)/step
	assert.Len(t, chunks, expected)
	for _, chunk := range chunks {
		// 解码再编码可能在边界处合并出不同 token，留 2 的余量
		assert.LessOrEqual(t, chunker.CountTokens(chunk), chunkSize+2)
		assert.NotEmpty(t, chunk)
	}

	// 首尾内容保留
	assert.True(t, strings.HasPrefix(chunks[0], "the quick brown fox"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(chunks[len(chunks)-1]), "dog."))
}

// TestChunker_Split_OverlapGuard 测试重叠不小于块大小时被修正
func TestChunker_Split_OverlapGuard(t *testing.T) {
	chunker, err := GetChunker()
	require.NoError(t, err)

	text := strings.Repeat("alpha beta gamma delta ", 200)
	// overlap >= chunkSize 会被压到 chunkSize/4，切分必须终止
	chunks := chunker.Split(text, 50, 50)
	assert.Greater(t, len(chunks), 1)

	negative := chunker.Split(text, 50, -10)
	assert.Greater(t, len(negative), 1)
}
