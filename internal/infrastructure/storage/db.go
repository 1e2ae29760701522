// Package storage 提供基于 SQLite 的持久化仓储实现
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/meetily/backend/internal/infrastructure/config"
)

// GetDBPath 获取 meetily 数据库路径
// Windows: %USERPROFILE%\.meetily\meetily.db
// macOS/Linux: ~/.meetily/meetily.db
func GetDBPath() (string, error) {
	dataDir, err := config.GetDataDir()
	if err != nil {
		return "", fmt.Errorf("failed to get data directory: %w", err)
	}
	return filepath.Join(dataDir, "meetily.db"), nil
}

// OpenDB 打开数据库连接
func OpenDB() (*sql.DB, error) {
	dbPath, err := GetDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite 单连接写入，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	return db, nil
}

// ProvideDB 提供数据库连接并初始化表结构（wire provider）
func ProvideDB() (*sql.DB, error) {
	db, err := OpenDB()
	if err != nil {
		return nil, err
	}
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema 初始化数据库表结构
func InitSchema(db *sql.DB) error {
	// 创建 meetings 表
	createMeetingsSQL := `
	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		folder_path TEXT,
		language TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createMeetingsSQL); err != nil {
		return fmt.Errorf("failed to create meetings table: %w", err)
	}

	// 创建 transcripts 表
	// (meeting_id, sequence) 唯一：final 片段通过 upsert 替换同序号的 partial 片段
	createTranscriptsSQL := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		text TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		audio_start_time REAL NOT NULL,
		audio_end_time REAL NOT NULL,
		confidence REAL NOT NULL,
		final INTEGER NOT NULL DEFAULT 0,
		supersedes_id TEXT,
		UNIQUE(meeting_id, sequence)
	);`

	if _, err := db.Exec(createTranscriptsSQL); err != nil {
		return fmt.Errorf("failed to create transcripts table: %w", err)
	}

	createTranscriptIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_transcripts_meeting ON transcripts(meeting_id, audio_start_time, sequence);`

	if _, err := db.Exec(createTranscriptIndexSQL); err != nil {
		return fmt.Errorf("failed to create transcripts index: %w", err)
	}

	// 创建 summaries 表和备份槽表
	createSummariesSQL := `
	CREATE TABLE IF NOT EXISTS summaries (
		meeting_id TEXT PRIMARY KEY,
		process_id TEXT,
		status TEXT NOT NULL,
		document TEXT,
		error TEXT,
		provider TEXT,
		model TEXT,
		started_at INTEGER,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS summary_backups (
		meeting_id TEXT PRIMARY KEY,
		process_id TEXT,
		status TEXT NOT NULL,
		document TEXT,
		error TEXT,
		provider TEXT,
		model TEXT,
		started_at INTEGER,
		updated_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createSummariesSQL); err != nil {
		return fmt.Errorf("failed to create summaries tables: %w", err)
	}

	// 创建 settings 表
	createSettingsSQL := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createSettingsSQL); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}

	return nil
}
