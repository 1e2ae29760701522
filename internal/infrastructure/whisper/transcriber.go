// Package whisper 通过 whisper-cli 外部进程执行语音转写
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrModelNotReady 模型未下载或损坏，无法转写
var ErrModelNotReady = errors.New("speech model not ready")

// Segment 一条转写结果
type Segment struct {
	// Start/End 相对音频起点的秒数
	Start float64
	End   float64
	Text  string
	// Confidence token 概率均值，取值 [0,1]
	Confidence float64
}

// Options 转写选项
type Options struct {
	// Language 语言码，"auto" 表示自动检测
	Language string
	// Translate 翻译为英文
	Translate bool
}

// ParseLanguageHint 解析 UI 传入的语言提示
// 取值 auto、auto-translate 或明确语言码
func ParseLanguageHint(hint string) Options {
	switch hint {
	case "", "auto":
		return Options{Language: "auto"}
	case "auto-translate":
		return Options{Language: "auto", Translate: true}
	default:
		return Options{Language: hint}
	}
}

// Transcriber 转写引擎接口
type Transcriber interface {
	// TranscribeFile 转写整个 WAV 文件，返回按时间有序的片段
	TranscribeFile(ctx context.Context, wavPath, modelPath string, opts Options) ([]Segment, error)
}

// cliTranscriber whisper-cli 子进程实现
type cliTranscriber struct {
	binPath string
}

// NewTranscriber 创建转写器
func NewTranscriber(binPath string) Transcriber {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	return &cliTranscriber{binPath: binPath}
}

// whisperJSON whisper-cli -ojf 输出格式
type whisperJSON struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text   string `json:"text"`
		Tokens []struct {
			P float64 `json:"p"`
		} `json:"tokens"`
	} `json:"transcription"`
}

// TranscribeFile 执行 whisper-cli 并解析 JSON 输出
// 置信度取片段内 token 概率的均值
func (t *cliTranscriber) TranscribeFile(ctx context.Context, wavPath, modelPath string, opts Options) ([]Segment, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotReady, modelPath)
	}

	outDir, err := os.MkdirTemp("", "whisper-out-")
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)
	outBase := filepath.Join(outDir, "result")

	args := []string{
		"-m", modelPath,
		"-f", wavPath,
		"-ojf",
		"-of", outBase,
		"-np",
	}
	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	}
	if opts.Translate {
		args = append(args, "--translate")
	}

	cmd := exec.CommandContext(ctx, t.binPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper-cli failed: %w: %s", err, truncate(string(output), 512))
	}

	data, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	var parsed whisperJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse whisper output: %w", err)
	}

	segments := make([]Segment, 0, len(parsed.Transcription))
	for _, item := range parsed.Transcription {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}

		confidence := 0.0
		if len(item.Tokens) > 0 {
			var sum float64
			for _, token := range item.Tokens {
				sum += token.P
			}
			confidence = sum / float64(len(item.Tokens))
		}

		segments = append(segments, Segment{
			Start:      float64(item.Offsets.From) / 1000.0,
			End:        float64(item.Offsets.To) / 1000.0,
			Text:       text,
			Confidence: confidence,
		})
	}
	return segments, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
