package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// 设置项键名
const (
	SettingKeyModelConfig      = "model_config"
	SettingKeyTranscriptConfig = "transcript_config"
)

// ModelConfig 总结模型配置
type ModelConfig struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	WhisperModel string `json:"whisperModel"`
	APIKey       string `json:"apiKey,omitempty"`
}

// TranscriptConfig 转写配置
type TranscriptConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

// DefaultModelConfig 默认总结模型配置
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		Provider:     "ollama",
		Model:        "llama3.1:latest",
		WhisperModel: "large-v3-turbo",
	}
}

// DefaultTranscriptConfig 默认转写配置
func DefaultTranscriptConfig() *TranscriptConfig {
	return &TranscriptConfig{
		Provider: "localWhisper",
		Model:    "large-v3-turbo",
		Language: "auto",
	}
}

// SettingsRepository 设置仓储接口
type SettingsRepository interface {
	GetModelConfig() (*ModelConfig, error)
	SaveModelConfig(cfg *ModelConfig) error
	GetTranscriptConfig() (*TranscriptConfig, error)
	SaveTranscriptConfig(cfg *TranscriptConfig) error
}

// settingsRepository 设置 SQLite 仓储实现，按键存储 JSON 值
type settingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository 创建设置仓储实例
func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// GetModelConfig 查询总结模型配置，未设置时返回默认值
func (r *settingsRepository) GetModelConfig() (*ModelConfig, error) {
	var cfg ModelConfig
	found, err := r.getJSON(SettingKeyModelConfig, &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultModelConfig(), nil
	}
	return &cfg, nil
}

// SaveModelConfig 保存总结模型配置
func (r *settingsRepository) SaveModelConfig(cfg *ModelConfig) error {
	return r.setJSON(SettingKeyModelConfig, cfg)
}

// GetTranscriptConfig 查询转写配置，未设置时返回默认值
func (r *settingsRepository) GetTranscriptConfig() (*TranscriptConfig, error) {
	var cfg TranscriptConfig
	found, err := r.getJSON(SettingKeyTranscriptConfig, &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultTranscriptConfig(), nil
	}
	return &cfg, nil
}

// SaveTranscriptConfig 保存转写配置
func (r *settingsRepository) SaveTranscriptConfig(cfg *TranscriptConfig) error {
	return r.setJSON(SettingKeyTranscriptConfig, cfg)
}

func (r *settingsRepository) getJSON(key string, out interface{}) (bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to query setting %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal setting %s: %w", key, err)
	}
	return true, nil
}

func (r *settingsRepository) setJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}
	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		key, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}
