package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meetily/backend/internal/domain/audio"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Capture    CaptureConfig    `yaml:"capture"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Summary    SummaryConfig    `yaml:"summary"`
	Whisper    WhisperConfig    `yaml:"whisper"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"` // 固定端口，用于单例锁
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string `yaml:"path"` // 留空表示 <datadir>/meetily.db
}

// WebSocketConfig WebSocket 配置
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`
}

// CaptureConfig 音频采集配置
type CaptureConfig struct {
	// SampleRate 采集与转写统一采样率
	SampleRate int `yaml:"sample_rate"`
	// ChunkMs 单个音频块时长（毫秒）
	ChunkMs int `yaml:"chunk_ms"`
	// LevelIntervalMs 电平监测发布周期（亚秒级）
	LevelIntervalMs int               `yaml:"level_interval_ms"`
	Mixer           audio.MixerConfig `yaml:"mixer"`
	// FFmpegPath ffmpeg 可执行文件路径，留空表示从 PATH 查找
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// CheckpointConfig 检查点与恢复配置
type CheckpointConfig struct {
	// Retention 保留上限：更旧的会话不再作为恢复候选
	Retention time.Duration `yaml:"retention"`
	// MinAge 最小年龄：更新的会话被隐藏，避免与进行中的保存竞争
	MinAge time.Duration `yaml:"min_age"`
	// FlushInterval 缓冲落盘周期
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// SummaryConfig 总结任务配置
type SummaryConfig struct {
	// PollInterval 后端状态轮询周期
	PollInterval time.Duration `yaml:"poll_interval"`
	// PollTimeout 客户端侧轮询上限，超过即判定 JobTimeout
	PollTimeout time.Duration `yaml:"poll_timeout"`
	// DefaultChunkSize 默认分块 token 数
	DefaultChunkSize int `yaml:"default_chunk_size"`
	// DefaultOverlap 默认分块重叠 token 数
	DefaultOverlap int `yaml:"default_overlap"`
	// BaseURL OpenAI 兼容端点，ollama 默认 http://localhost:11434/v1
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// WhisperConfig 本地转写引擎配置
type WhisperConfig struct {
	// BinPath whisper-cli 可执行文件路径，留空表示从 PATH 查找
	BinPath string `yaml:"bin_path"`
}

// NewConfig 创建配置：默认值 + 可选 YAML 覆盖 + 环境变量覆盖
func NewConfig() *Config {
	cfg := defaultConfig()

	// YAML 覆盖：<datadir>/config.yaml 存在时生效
	// 数据目录不可解析时跳过文件覆盖，仅用默认值与环境变量
	if dataDir, err := GetDataDir(); err == nil {
		path := filepath.Join(dataDir, "config.yaml")
		if err := cfg.loadFile(path); err != nil && !os.IsNotExist(err) {
			// 配置文件损坏时继续使用默认值，由调用方日志提示
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}

	// 环境变量覆盖
	if port := os.Getenv("MEETILY_HTTP_PORT"); port != "" {
		cfg.Server.HTTPPort = port
	}
	if key := os.Getenv("MEETILY_LLM_API_KEY"); key != "" {
		cfg.Summary.APIKey = key
	}
	if url := os.Getenv("MEETILY_LLM_BASE_URL"); url != "" {
		cfg.Summary.BaseURL = url
	}

	return cfg
}

// defaultConfig 默认配置
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: ":5167",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		Capture: CaptureConfig{
			SampleRate:      16000,
			ChunkMs:         250,
			LevelIntervalMs: 100,
			Mixer:           audio.DefaultMixerConfig(),
		},
		Checkpoint: CheckpointConfig{
			Retention:     8 * 24 * time.Hour,
			MinAge:        15 * time.Second,
			FlushInterval: 500 * time.Millisecond,
		},
		Summary: SummaryConfig{
			PollInterval:     5 * time.Second,
			PollTimeout:      15 * time.Minute,
			DefaultChunkSize: 40000,
			DefaultOverlap:   1000,
			BaseURL:          "http://localhost:11434/v1",
		},
		Whisper: WhisperConfig{},
	}
}

// loadFile 从 YAML 文件加载覆盖项
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// NewDatabaseConfig 创建数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewCaptureConfig 创建采集配置
func NewCaptureConfig(cfg *Config) *CaptureConfig {
	return &cfg.Capture
}

// NewCheckpointConfig 创建检查点配置
func NewCheckpointConfig(cfg *Config) *CheckpointConfig {
	return &cfg.Checkpoint
}

// NewSummaryConfig 创建总结配置
func NewSummaryConfig(cfg *Config) *SummaryConfig {
	return &cfg.Summary
}

// NewWhisperConfig 创建转写引擎配置
func NewWhisperConfig(cfg *Config) *WhisperConfig {
	return &cfg.Whisper
}
