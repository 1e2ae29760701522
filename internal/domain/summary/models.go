// Package summary 定义会议总结文档和总结任务领域模型
package summary

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status 总结任务生命周期状态
type Status string

const (
	// StatusIdle 无任务
	StatusIdle Status = "idle"
	// StatusProcessing 首次生成中
	StatusProcessing Status = "processing"
	// StatusSummarizing 分块总结中
	StatusSummarizing Status = "summarizing"
	// StatusRegenerating 重新生成中（失败时自动恢复旧总结）
	StatusRegenerating Status = "regenerating"
	// StatusCompleted 已完成
	StatusCompleted Status = "completed"
	// StatusError 失败
	StatusError Status = "error"
	// StatusCancelled 已取消
	StatusCancelled Status = "cancelled"
)

// Terminal 判断状态是否为终态
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// Format 总结文档格式
type Format string

const (
	// FormatMarkdown 新格式：单个 Markdown 字符串
	FormatMarkdown Format = "markdown"
	// FormatSections 旧格式：带显式顺序的分节块结构
	FormatSections Format = "sections"
)

// Block 旧格式文档中的内容块
type Block struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Color   string `json:"color,omitempty"`
}

// Section 旧格式文档中的一节
type Section struct {
	Title  string  `json:"title"`
	Blocks []Block `json:"blocks"`
}

// Document 总结文档，Markdown 与分节结构二选一的标签联合
// 每个会议至多一份在用文档，重新生成时整体替换而非合并
type Document struct {
	Format   Format    `json:"format"`
	Markdown string    `json:"markdown,omitempty"`
	Sections []Section `json:"sections,omitempty"`
	// SectionOrder 旧格式的显式节顺序
	SectionOrder []string `json:"section_order,omitempty"`
}

// NewMarkdownDocument 创建 Markdown 格式文档
func NewMarkdownDocument(markdown string) *Document {
	return &Document{
		Format:   FormatMarkdown,
		Markdown: markdown,
	}
}

// IsEmpty 判断文档是否空洞（生成成功但没有任何实际内容）
// 空洞结果视为独立失败类别，不算成功
func (d *Document) IsEmpty() bool {
	if d == nil {
		return true
	}
	switch d.Format {
	case FormatMarkdown:
		return strings.TrimSpace(d.Markdown) == ""
	case FormatSections:
		for _, section := range d.Sections {
			for _, block := range section.Blocks {
				if strings.TrimSpace(block.Content) != "" {
					return false
				}
			}
		}
		return true
	default:
		return true
	}
}

// ParseDocument 解析持久化的总结 JSON，统一迁移为当前联合类型
// 支持三代格式：
//   v2：{"format": "...", ...}（当前格式，直接解码）
//   v1：{"markdown": "..."} 或 {"summary": "..."}
//   v0：顶层即 {节名: [块...]}，可附带 section_order
func ParseDocument(raw []byte) (*Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty summary document")
	}

	// v2：带 format 标签的当前格式
	var tagged Document
	if err := json.Unmarshal(raw, &tagged); err == nil && tagged.Format != "" {
		return &tagged, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("malformed summary document: %w", err)
	}

	// v1：markdown 或 summary 字符串字段
	for _, key := range []string{"markdown", "summary"} {
		if rawText, ok := fields[key]; ok {
			var text string
			if err := json.Unmarshal(rawText, &text); err != nil {
				return nil, fmt.Errorf("malformed %s field: %w", key, err)
			}
			return NewMarkdownDocument(text), nil
		}
	}

	// v0：顶层键即节名，值为块数组
	var order []string
	if rawOrder, ok := fields["section_order"]; ok {
		if err := json.Unmarshal(rawOrder, &order); err != nil {
			return nil, fmt.Errorf("malformed section_order: %w", err)
		}
		delete(fields, "section_order")
	}

	sections := make(map[string][]Block, len(fields))
	for name, rawBlocks := range fields {
		var blocks []Block
		if err := json.Unmarshal(rawBlocks, &blocks); err != nil {
			return nil, fmt.Errorf("malformed section %q: %w", name, err)
		}
		sections[name] = blocks
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("summary document has no recognizable content")
	}

	// 无显式顺序时按节名出现顺序不可恢复，只能回退为排序后顺序
	if len(order) == 0 {
		for name := range sections {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	doc := &Document{Format: FormatSections, SectionOrder: order}
	for _, name := range order {
		blocks, ok := sections[name]
		if !ok {
			continue
		}
		doc.Sections = append(doc.Sections, Section{Title: name, Blocks: blocks})
	}
	return doc, nil
}

// Record 会议总结的持久化记录
// 轮询读取的就是该记录的快照，读取无副作用
type Record struct {
	MeetingID string    `json:"meeting_id"`
	ProcessID string    `json:"process_id,omitempty"`
	Status    Status    `json:"status"`
	Document  *Document `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// NewProcessID 生成总结任务进程 ID
func NewProcessID() string {
	return fmt.Sprintf("proc-%s", uuid.New().String())
}
