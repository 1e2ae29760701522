package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSettingsRepository_Defaults 测试未设置时返回默认配置
func TestSettingsRepository_Defaults(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepository(db)

	modelCfg, err := repo.GetModelConfig()
	require.NoError(t, err)
	assert.Equal(t, "ollama", modelCfg.Provider)
	assert.Equal(t, "llama3.1:latest", modelCfg.Model)

	transcriptCfg, err := repo.GetTranscriptConfig()
	require.NoError(t, err)
	assert.Equal(t, "localWhisper", transcriptCfg.Provider)
	assert.Equal(t, "auto", transcriptCfg.Language)
}

// TestSettingsRepository_SaveAndGet 测试保存后读回覆盖默认值
func TestSettingsRepository_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepository(db)

	require.NoError(t, repo.SaveModelConfig(&ModelConfig{
		Provider:     "anthropic",
		Model:        "claude-sonnet",
		WhisperModel: "medium",
		APIKey:       "sk-test",
	}))

	got, err := repo.GetModelConfig()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", got.Provider)
	assert.Equal(t, "claude-sonnet", got.Model)
	assert.Equal(t, "sk-test", got.APIKey)

	// 再次保存整体替换
	require.NoError(t, repo.SaveModelConfig(&ModelConfig{Provider: "groq", Model: "llama-70b"}))
	got, err = repo.GetModelConfig()
	require.NoError(t, err)
	assert.Equal(t, "groq", got.Provider)
	assert.Empty(t, got.APIKey)

	require.NoError(t, repo.SaveTranscriptConfig(&TranscriptConfig{
		Provider: "localWhisper", Model: "small", Language: "zh",
	}))
	tc, err := repo.GetTranscriptConfig()
	require.NoError(t, err)
	assert.Equal(t, "small", tc.Model)
	assert.Equal(t, "zh", tc.Language)
}
