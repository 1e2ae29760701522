package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// EnvDataDir 数据目录环境变量名
	EnvDataDir = "MEETILY_DATA_DIR"
	// DefaultDataDirName 默认数据目录名
	DefaultDataDirName = ".meetily"
)

var (
	dataDirOnce sync.Once
	dataDirPath string
	dataDirErr  error
)

// GetDataDir 获取数据根目录
// 优先读取 MEETILY_DATA_DIR 环境变量，默认 ~/.meetily/
// 此函数是所有数据路径的唯一入口，禁止直接拼接 homeDir + ".meetily"
func GetDataDir() (string, error) {
	dataDirOnce.Do(func() {
		if dir := os.Getenv(EnvDataDir); dir != "" {
			dataDirPath = dir
			return
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			dataDirErr = fmt.Errorf("failed to resolve home directory: %w", err)
			return
		}
		dataDirPath = filepath.Join(homeDir, DefaultDataDirName)
	})
	return dataDirPath, dataDirErr
}

// GetModelsDir 获取语音模型目录
func GetModelsDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "models"), nil
}

// GetRecordingsDir 获取录音目录（会议文件夹的父目录）
func GetRecordingsDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "recordings"), nil
}

// GetCheckpointsDir 获取检查点目录
func GetCheckpointsDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "checkpoints"), nil
}

// ResetDataDir 重置数据目录缓存（仅用于测试）
func ResetDataDir() {
	dataDirOnce = sync.Once{}
	dataDirPath = ""
	dataDirErr = nil
}
