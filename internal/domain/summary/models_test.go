package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseDocument_CurrentFormat 测试解析当前带 format 标签的文档
func TestParseDocument_CurrentFormat(t *testing.T) {
	raw := []byte(`{"format":"markdown","markdown":"# 会议纪要\n重点内容"}`)

	doc, err := ParseDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, doc.Format)
	assert.Equal(t, "# 会议纪要\n重点内容", doc.Markdown)
	assert.False(t, doc.IsEmpty())
}

// TestParseDocument_LegacyMarkdown 测试解析 v1 格式（裸 markdown/summary 字段）
func TestParseDocument_LegacyMarkdown(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"markdown字段", `{"markdown":"旧格式内容"}`, "旧格式内容"},
		{"summary字段", `{"summary":"更旧的格式"}`, "更旧的格式"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, FormatMarkdown, doc.Format)
			assert.Equal(t, tc.want, doc.Markdown)
		})
	}
}

// TestParseDocument_LegacySections 测试解析 v0 分节格式
func TestParseDocument_LegacySections(t *testing.T) {
	raw := []byte(`{
		"section_order": ["决议", "要点"],
		"要点": [{"id":"b1","type":"text","content":"讨论了发布计划"}],
		"决议": [{"id":"b2","type":"text","content":"下周五发布"}]
	}`)

	doc, err := ParseDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, FormatSections, doc.Format)
	require.Len(t, doc.Sections, 2)
	// 显式顺序生效：决议在前
	assert.Equal(t, "决议", doc.Sections[0].Title)
	assert.Equal(t, "要点", doc.Sections[1].Title)
	assert.Equal(t, "下周五发布", doc.Sections[0].Blocks[0].Content)
}

// TestParseDocument_LegacySectionsWithoutOrder 测试无显式顺序时回退为排序顺序
func TestParseDocument_LegacySectionsWithoutOrder(t *testing.T) {
	raw := []byte(`{
		"b_section": [{"id":"1","type":"text","content":"x"}],
		"a_section": [{"id":"2","type":"text","content":"y"}]
	}`)

	doc, err := ParseDocument(raw)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "a_section", doc.Sections[0].Title)
	assert.Equal(t, "b_section", doc.Sections[1].Title)
}

// TestParseDocument_Malformed 测试非法输入
func TestParseDocument_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
	}{
		{"空输入", nil},
		{"非JSON", []byte("not json")},
		{"空对象", []byte("{}")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocument(tc.raw)
			assert.Error(t, err)
		})
	}
}

// TestDocumentIsEmpty 测试空洞文档判定
func TestDocumentIsEmpty(t *testing.T) {
	cases := []struct {
		name string
		doc  *Document
		want bool
	}{
		{"nil文档", nil, true},
		{"空Markdown", NewMarkdownDocument("   \n\t"), true},
		{"有内容Markdown", NewMarkdownDocument("内容"), false},
		{"全空白分节", &Document{
			Format:   FormatSections,
			Sections: []Section{{Title: "要点", Blocks: []Block{{Content: "  "}}}},
		}, true},
		{"有内容分节", &Document{
			Format:   FormatSections,
			Sections: []Section{{Title: "要点", Blocks: []Block{{Content: "结论"}}}},
		}, false},
		{"未知格式", &Document{Format: "unknown"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.doc.IsEmpty())
		})
	}
}

// TestStatusTerminal 测试终态判定
func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusIdle.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusSummarizing.Terminal())
	assert.False(t, StatusRegenerating.Terminal())
}
