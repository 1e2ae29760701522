package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDataDir_EnvOverride 环境变量指定数据目录时各级目录随之解析
func TestDataDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	ResetDataDir()
	t.Cleanup(ResetDataDir)

	dataDir, err := GetDataDir()
	require.NoError(t, err)
	require.Equal(t, dir, dataDir)

	modelsDir, err := GetModelsDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "models"), modelsDir)

	recordingsDir, err := GetRecordingsDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "recordings"), recordingsDir)

	checkpointsDir, err := GetCheckpointsDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "checkpoints"), checkpointsDir)
}

// TestDataDir_Cached 首次解析后结果被缓存，环境变量变更不再生效
func TestDataDir_Cached(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	ResetDataDir()
	t.Cleanup(ResetDataDir)

	first, err := GetDataDir()
	require.NoError(t, err)

	t.Setenv(EnvDataDir, t.TempDir())
	second, err := GetDataDir()
	require.NoError(t, err)
	require.Equal(t, first, second)
}
