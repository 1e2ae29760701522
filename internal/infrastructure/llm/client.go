// Package llm 提供 OpenAI 兼容的 Chat 客户端，用于会议总结生成
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/log"
)

// ChatClient LLM Chat 客户端接口
type ChatClient interface {
	// Complete 发送一轮对话请求并返回文本结果
	Complete(ctx context.Context, provider, model string, messages []Message) (string, error)
}

// Client OpenAI 兼容 Chat 客户端
// provider 决定端点：ollama 走本地端点，其余走配置的远程端点
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// ChatRequest Chat API 请求
type ChatRequest struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model,omitempty"`
}

// Message Chat 消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse Chat API 响应
type ChatResponse struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// 各 provider 默认端点
var providerBaseURLs = map[string]string{
	"ollama": "http://localhost:11434/v1",
	"openai": "https://api.openai.com/v1",
	"claude": "https://api.anthropic.com/v1",
	"groq":   "https://api.groq.com/openai/v1",
}

// NewClient 创建 LLM 客户端
func NewClient(cfg *config.SummaryConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = providerBaseURLs["ollama"]
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			// 总结单块耗时可达分钟级
			Timeout: 5 * time.Minute,
		},
		logger: log.NewModuleLogger("llm", "client"),
	}
}

// Complete 发送一轮对话请求
func (c *Client) Complete(ctx context.Context, provider, model string, messages []Message) (string, error) {
	reqBody := ChatRequest{
		Messages: messages,
		Model:    model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.resolveBaseURL(provider))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	c.logger.Debug("发送 LLM 请求",
		"url", url,
		"provider", provider,
		"model", model,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("LLM API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := c.readResponseBody(resp)
		return "", fmt.Errorf("LLM API returned status %d: %s", resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode LLM response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("LLM API returned no choices")
	}

	c.logger.Debug("LLM 请求完成",
		"model", model,
		"tokens", chatResp.Usage.TotalTokens,
	)

	return chatResp.Choices[0].Message.Content, nil
}

// resolveBaseURL provider 有已知默认端点时优先使用，否则用配置端点
func (c *Client) resolveBaseURL(provider string) string {
	if url, ok := providerBaseURLs[strings.ToLower(provider)]; ok && c.baseURL == providerBaseURLs["ollama"] {
		return url
	}
	return c.baseURL
}

// readResponseBody 读取响应体
func (c *Client) readResponseBody(resp *http.Response) (string, error) {
	if resp.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
