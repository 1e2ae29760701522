package summarize

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// 在包初始化时设置离线加载器
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Chunker 按 token 数切分长转写文本，块之间带重叠以保留上下文
type Chunker struct {
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

var (
	chunkerInstance *Chunker
	chunkerOnce     sync.Once
	chunkerErr      error
)

// GetChunker 获取 Chunker 单例
// 单例避免重复加载编码文件
func GetChunker() (*Chunker, error) {
	chunkerOnce.Do(func() {
		// cl100k_base 编码与主流模型兼容
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			chunkerErr = err
			return
		}
		chunkerInstance = &Chunker{encoding: enc}
	})

	if chunkerErr != nil {
		return nil, chunkerErr
	}
	return chunkerInstance, nil
}

// CountTokens 计算文本 token 数
func (c *Chunker) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// Split 按 token 数切分文本
// chunkSize/overlap 是显式参数而非隐藏常量；文本不超过单块时原样返回
func (c *Chunker) Split(text string, chunkSize, overlap int) []string {
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}

	c.mu.RLock()
	tokens := c.encoding.Encode(text, nil, nil)
	c.mu.RUnlock()

	if len(tokens) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	step := chunkSize - overlap
	for start := 0; start < len(tokens); start += step {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		c.mu.RLock()
		chunk := c.encoding.Decode(tokens[start:end])
		c.mu.RUnlock()
		chunks = append(chunks, chunk)

		if end == len(tokens) {
			break
		}
	}
	return chunks
}
