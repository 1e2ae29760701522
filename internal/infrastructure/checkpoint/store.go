// Package checkpoint 提供检查点存储的 SQLite + 文件实现
// 会话索引和转写片段存 SQLite，音频块按序号落为独立 PCM 文件
package checkpoint

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/meetily/backend/internal/domain/checkpoint"
	"github.com/meetily/backend/internal/domain/meeting"
	"github.com/meetily/backend/internal/infrastructure/log"
)

const (
	chunkFilePrefix = "chunk_"
	chunkFileSuffix = ".pcm"
	// writeBufferSize 每个会话的音频块写缓冲容量
	// 缓冲满时丢弃新块而不是阻塞采集热路径，恢复流程容忍缺块
	writeBufferSize = 256
)

// sqliteStore 检查点存储实现
type sqliteStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	writers map[string]*sessionWriter
	closed  bool
}

// NewStore 创建检查点存储实例
func NewStore(db *sql.DB) (checkpoint.Store, error) {
	if err := initCheckpointTables(db); err != nil {
		return nil, err
	}
	return &sqliteStore{
		db:      db,
		logger:  log.NewModuleLogger("infrastructure", "checkpoint"),
		writers: make(map[string]*sessionWriter),
	}, nil
}

// initCheckpointTables 初始化检查点表
func initCheckpointTables(db *sql.DB) error {
	createSessionsSQL := `
	CREATE TABLE IF NOT EXISTS checkpoint_sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		folder_path TEXT NOT NULL,
		state TEXT NOT NULL,
		sample_rate INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		last_updated INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		segment_count INTEGER NOT NULL DEFAULT 0
	);`

	if _, err := db.Exec(createSessionsSQL); err != nil {
		return fmt.Errorf("failed to create checkpoint_sessions table: %w", err)
	}

	createSegmentsSQL := `
	CREATE TABLE IF NOT EXISTS checkpoint_segments (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		text TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		audio_start_time REAL NOT NULL,
		audio_end_time REAL NOT NULL,
		confidence REAL NOT NULL,
		final INTEGER NOT NULL DEFAULT 0,
		supersedes_id TEXT,
		UNIQUE(session_id, sequence)
	);`

	if _, err := db.Exec(createSegmentsSQL); err != nil {
		return fmt.Errorf("failed to create checkpoint_segments table: %w", err)
	}

	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_checkpoint_sessions_state ON checkpoint_sessions(state, last_updated);
	CREATE INDEX IF NOT EXISTS idx_checkpoint_segments_session ON checkpoint_segments(session_id, audio_start_time, sequence);`

	if _, err := db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create checkpoint indexes: %w", err)
	}

	return nil
}

// Begin 登记新会话并创建音频块目录
func (s *sqliteStore) Begin(session *checkpoint.Session) error {
	if session.State == "" {
		session.State = checkpoint.StateActive
	}
	now := time.Now()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	if session.LastUpdated.IsZero() {
		session.LastUpdated = now
	}

	if err := os.MkdirAll(session.FolderPath, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint folder: %w", err)
	}

	query := `
		INSERT INTO checkpoint_sessions
		(id, title, folder_path, state, sample_rate, started_at, last_updated, chunk_count, segment_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0)`

	if _, err := s.db.Exec(query, session.ID, session.Title, session.FolderPath,
		string(session.State), session.SampleRate, session.StartedAt.Unix(), session.LastUpdated.Unix()); err != nil {
		return fmt.Errorf("failed to register checkpoint session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return checkpoint.ErrSessionClosed
	}
	s.writers[session.ID] = newSessionWriter(s, session.ID, session.FolderPath)
	return nil
}

// AppendAudio 追加音频块，缓冲异步落盘，绝不阻塞调用方
func (s *sqliteStore) AppendAudio(sessionID string, pcm []byte) error {
	s.mu.Lock()
	writer, ok := s.writers[sessionID]
	s.mu.Unlock()
	if !ok {
		return checkpoint.ErrSessionClosed
	}
	writer.enqueue(pcm)
	return nil
}

// AppendSegment 追加转写片段
// final 片段按 (session_id, sequence) 替换 partial 片段
func (s *sqliteStore) AppendSegment(sessionID string, seg *meeting.TranscriptSegment) error {
	ts := seg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
		INSERT INTO checkpoint_segments
		(id, session_id, sequence, text, timestamp, audio_start_time, audio_end_time, confidence, final, supersedes_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, sequence) DO UPDATE SET
			id = excluded.id,
			text = excluded.text,
			timestamp = excluded.timestamp,
			audio_start_time = excluded.audio_start_time,
			audio_end_time = excluded.audio_end_time,
			confidence = excluded.confidence,
			final = excluded.final,
			supersedes_id = excluded.supersedes_id
		WHERE excluded.final = 1 OR checkpoint_segments.final = 0`

	finalFlag := 0
	if seg.Final {
		finalFlag = 1
	}

	if _, err := s.db.Exec(query, seg.ID, sessionID, seg.Sequence, seg.Text, ts.Unix(),
		seg.AudioStartTime, seg.AudioEndTime, seg.Confidence, finalFlag, seg.SupersedesID); err != nil {
		return fmt.Errorf("failed to checkpoint segment: %w", err)
	}

	touchSQL := `
		UPDATE checkpoint_sessions SET
			segment_count = (SELECT COUNT(*) FROM checkpoint_segments WHERE session_id = ?),
			last_updated = ?
		WHERE id = ?`

	if _, err := s.db.Exec(touchSQL, sessionID, time.Now().Unix(), sessionID); err != nil {
		return fmt.Errorf("failed to touch checkpoint session: %w", err)
	}
	return nil
}

// Flush 等待会话缓冲数据全部落盘
func (s *sqliteStore) Flush(sessionID string) error {
	s.mu.Lock()
	writer, ok := s.writers[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return writer.flush()
}

// SetState 迁移会话状态
func (s *sqliteStore) SetState(sessionID string, state checkpoint.SessionState) error {
	result, err := s.db.Exec(`UPDATE checkpoint_sessions SET state = ? WHERE id = ?`,
		string(state), sessionID)
	if err != nil {
		return fmt.Errorf("failed to set session state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return checkpoint.ErrSessionNotFound
	}
	return nil
}

// Get 查询会话
func (s *sqliteStore) Get(sessionID string) (*checkpoint.Session, error) {
	query := `
		SELECT id, title, folder_path, state, sample_rate, started_at, last_updated, chunk_count, segment_count
		FROM checkpoint_sessions WHERE id = ?`

	session, err := scanSession(s.db.QueryRow(query, sessionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, checkpoint.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to query checkpoint session: %w", err)
	}
	return session, nil
}

// ListRecoverable 列出满足恢复条件的会话
// 窗口过滤：太新（可能仍在写入）和太旧（超过保留期）的都排除
// Finalizing/Saved 状态的会话绝不进入候选
func (s *sqliteStore) ListRecoverable(now time.Time, retention, minAge time.Duration) ([]*checkpoint.Session, error) {
	query := `
		SELECT id, title, folder_path, state, sample_rate, started_at, last_updated, chunk_count, segment_count
		FROM checkpoint_sessions
		WHERE last_updated > ? AND last_updated < ?
		AND state NOT IN (?, ?)
		ORDER BY last_updated DESC`

	oldest := now.Add(-retention).Unix()
	newest := now.Add(-minAge).Unix()

	rows, err := s.db.Query(query, oldest, newest,
		string(checkpoint.StateFinalizing), string(checkpoint.StateSaved))
	if err != nil {
		return nil, fmt.Errorf("failed to list recoverable sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*checkpoint.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoint sessions: %w", err)
	}
	return sessions, nil
}

// LoadSegments 读取会话全部检查点片段，按音频时间全序返回
func (s *sqliteStore) LoadSegments(sessionID string) ([]*meeting.TranscriptSegment, error) {
	query := `
		SELECT id, sequence, text, timestamp, audio_start_time, audio_end_time, confidence, final, supersedes_id
		FROM checkpoint_segments
		WHERE session_id = ?
		ORDER BY audio_start_time ASC, sequence ASC`

	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint segments: %w", err)
	}
	defer rows.Close()

	var segments []*meeting.TranscriptSegment
	for rows.Next() {
		var seg meeting.TranscriptSegment
		var ts int64
		var final int
		var supersedes sql.NullString
		if err := rows.Scan(&seg.ID, &seg.Sequence, &seg.Text, &ts,
			&seg.AudioStartTime, &seg.AudioEndTime, &seg.Confidence, &final, &supersedes); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint segment: %w", err)
		}
		seg.Timestamp = time.Unix(ts, 0)
		seg.Final = final != 0
		seg.SupersedesID = supersedes.String
		segments = append(segments, &seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoint segments: %w", err)
	}
	return segments, nil
}

// HasAudio 判断目录中是否存在音频检查点
func (s *sqliteStore) HasAudio(folder string) (bool, error) {
	chunks, err := listChunks(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return len(chunks) > 0, nil
}

// RecoverAudio 尽力从音频块重建连续 WAV 文件
// 缺块、坏块都跳过并降级为 partial；部分重建是可接受的结果
func (s *sqliteStore) RecoverAudio(folder string, sampleRate int) (*checkpoint.RecoveredAudio, error) {
	chunks, err := listChunks(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return &checkpoint.RecoveredAudio{Status: checkpoint.RecoveryNone}, nil
		}
		return nil, err
	}
	if len(chunks) == 0 {
		return &checkpoint.RecoveredAudio{Status: checkpoint.RecoveryNone}, nil
	}

	wavPath := filepath.Join(folder, fmt.Sprintf("recovered_%d.wav", time.Now().Unix()))
	writer, err := NewWAVWriter(wavPath, sampleRate)
	if err != nil {
		return nil, err
	}

	written := 0
	partial := false
	lastIndex := -1
	for _, chunk := range chunks {
		// 序号不连续说明中间有块丢失
		if lastIndex >= 0 && chunk.index != lastIndex+1 {
			partial = true
		}
		lastIndex = chunk.index

		data, err := os.ReadFile(chunk.path)
		if err != nil || len(data) == 0 || len(data)%2 != 0 {
			s.logger.Warn("跳过无法读取的音频块", "path", chunk.path, "error", err)
			partial = true
			continue
		}
		if err := writer.Write(data); err != nil {
			writer.Close()
			os.Remove(wavPath)
			return nil, err
		}
		written++
	}

	if written == 0 {
		writer.Close()
		os.Remove(wavPath)
		return &checkpoint.RecoveredAudio{Status: checkpoint.RecoveryFailed, ChunkCount: 0}, nil
	}

	duration := writer.DurationSeconds()
	if err := writer.Close(); err != nil {
		os.Remove(wavPath)
		return nil, err
	}

	status := checkpoint.RecoverySuccess
	if partial {
		status = checkpoint.RecoveryPartial
	}
	return &checkpoint.RecoveredAudio{
		Status:          status,
		Path:            wavPath,
		ChunkCount:      written,
		DurationSeconds: duration,
	}, nil
}

// MarkSaved 标记会话已保存并停止其写入器
func (s *sqliteStore) MarkSaved(sessionID string) error {
	s.stopWriter(sessionID)
	return s.SetState(sessionID, checkpoint.StateSaved)
}

// Discard 不可逆地丢弃会话及其音频块
func (s *sqliteStore) Discard(sessionID string) error {
	s.stopWriter(sessionID)

	session, err := s.Get(sessionID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM checkpoint_segments WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete checkpoint segments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM checkpoint_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete checkpoint session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := os.RemoveAll(session.FolderPath); err != nil {
		// 索引已删，残留文件只是垃圾，记日志不报错
		s.logger.Warn("清理检查点目录失败", "folder", session.FolderPath, "error", err)
	}
	return nil
}

// Cleanup 清理目录中的音频块文件，重建出的 WAV 保留，失败不影响已完成的恢复
func (s *sqliteStore) Cleanup(folder string) error {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read checkpoint folder: %w", err)
	}

	var firstErr error
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, chunkFilePrefix) || !strings.HasSuffix(name, chunkFileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(folder, name)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("failed to cleanup checkpoint chunks: %w", firstErr)
	}
	return nil
}

// Close 停止全部写入器并落盘缓冲
func (s *sqliteStore) Close() error {
	s.mu.Lock()
	s.closed = true
	writers := make([]*sessionWriter, 0, len(s.writers))
	for _, w := range s.writers {
		writers = append(writers, w)
	}
	s.writers = make(map[string]*sessionWriter)
	s.mu.Unlock()

	for _, w := range writers {
		w.stop()
	}
	return nil
}

func (s *sqliteStore) stopWriter(sessionID string) {
	s.mu.Lock()
	writer, ok := s.writers[sessionID]
	if ok {
		delete(s.writers, sessionID)
	}
	s.mu.Unlock()
	if ok {
		writer.stop()
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*checkpoint.Session, error) {
	var session checkpoint.Session
	var state string
	var startedAt, lastUpdated int64

	if err := row.Scan(&session.ID, &session.Title, &session.FolderPath, &state,
		&session.SampleRate, &startedAt, &lastUpdated, &session.ChunkCount, &session.SegmentCount); err != nil {
		return nil, err
	}
	session.State = checkpoint.SessionState(state)
	session.StartedAt = time.Unix(startedAt, 0)
	session.LastUpdated = time.Unix(lastUpdated, 0)
	return &session, nil
}

type chunkFile struct {
	path  string
	index int
}

// listChunks 列出目录中的音频块文件并按序号排序
func listChunks(folder string) ([]chunkFile, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var chunks []chunkFile
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, chunkFilePrefix) || !strings.HasSuffix(name, chunkFileSuffix) {
			continue
		}
		indexStr := strings.TrimSuffix(strings.TrimPrefix(name, chunkFilePrefix), chunkFileSuffix)
		index, err := strconv.Atoi(indexStr)
		if err != nil {
			continue
		}
		chunks = append(chunks, chunkFile{path: filepath.Join(folder, name), index: index})
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })
	return chunks, nil
}
