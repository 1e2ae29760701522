package audiodev

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedFormat 文件格式不在支持的导入格式内
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrInvalidAudioFile 文件损坏或不是音频文件
	ErrInvalidAudioFile = errors.New("invalid audio file")
)

// supportedImportFormats 支持的导入格式（按扩展名）
var supportedImportFormats = map[string]bool{
	"mp4": true, "m4a": true, "wav": true, "mp3": true,
	"flac": true, "ogg": true, "aac": true, "wma": true,
}

// AudioFileInfo 音频文件探测结果
type AudioFileInfo struct {
	Path            string  `json:"path"`
	Filename        string  `json:"filename"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
	Format          string  `json:"format"`
}

// Prober 音频文件探测接口
type Prober interface {
	// ValidateAudioFile 校验文件可导入并返回元信息
	// 格式不支持返回 ErrUnsupportedFormat，文件损坏返回 ErrInvalidAudioFile
	ValidateAudioFile(ctx context.Context, path string) (*AudioFileInfo, error)
}

// ffprobeProber 基于 ffprobe 的探测实现
type ffprobeProber struct {
	ffprobePath string
}

// NewProber 创建音频文件探测器
func NewProber(ffmpegPath string) Prober {
	// ffprobe 与 ffmpeg 同目录发行
	ffprobePath := "ffprobe"
	if ffmpegPath != "" && ffmpegPath != "ffmpeg" {
		ffprobePath = filepath.Join(filepath.Dir(ffmpegPath), "ffprobe")
	}
	return &ffprobeProber{ffprobePath: ffprobePath}
}

type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// ValidateAudioFile 用 ffprobe 读取时长和格式
func (p *ffprobeProber) ValidateAudioFile(ctx context.Context, path string) (*AudioFileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudioFile, err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !supportedImportFormats[ext] {
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration,format_name",
		"-of", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed: %v", ErrInvalidAudioFile, err)
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(output, &probed); err != nil {
		return nil, fmt.Errorf("%w: malformed ffprobe output: %v", ErrInvalidAudioFile, err)
	}

	duration, err := strconv.ParseFloat(probed.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return nil, fmt.Errorf("%w: no decodable audio duration", ErrInvalidAudioFile)
	}

	return &AudioFileInfo{
		Path:            path,
		Filename:        filepath.Base(path),
		DurationSeconds: duration,
		SizeBytes:       info.Size(),
		Format:          ext,
	}, nil
}

// DecodeToWAV 将任意支持格式解码为 16kHz 单声道 WAV
// 导入流水线在转写前统一走这一步
func DecodeToWAV(ctx context.Context, ffmpegPath, srcPath, dstPath string, sampleRate int) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", srcPath,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-y",
		dstPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: decode failed: %v: %s", ErrInvalidAudioFile, err, string(output))
	}
	return nil
}
