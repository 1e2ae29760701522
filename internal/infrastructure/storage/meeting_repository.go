package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/meetily/backend/internal/domain/meeting"
)

// meetingRepository 会议 SQLite 仓储实现
type meetingRepository struct {
	db *sql.DB
}

// NewMeetingRepository 创建会议仓储实例
func NewMeetingRepository(db *sql.DB) meeting.Repository {
	return &meetingRepository{db: db}
}

// Create 创建会议
func (r *meetingRepository) Create(m *meeting.Meeting) error {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	query := `
		INSERT INTO meetings (id, title, folder_path, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query, m.ID, m.Title, m.FolderPath, m.Language,
		m.CreatedAt.Unix(), m.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

// CreateWithSegments 在单个事务内创建会议及其全部转写片段
// 任何失败都回滚，不留下部分写入
func (r *meetingRepository) CreateWithSegments(m *meeting.Meeting, segments []*meeting.TranscriptSegment) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	insertMeeting := `
		INSERT INTO meetings (id, title, folder_path, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := tx.Exec(insertMeeting, m.ID, m.Title, m.FolderPath, m.Language,
		m.CreatedAt.Unix(), m.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	insertSegment := `
		INSERT INTO transcripts
		(id, meeting_id, sequence, text, timestamp, audio_start_time, audio_end_time, confidence, final, supersedes_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.Prepare(insertSegment)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		if _, err := stmt.Exec(seg.ID, m.ID, seg.Sequence, seg.Text, seg.Timestamp.Unix(),
			seg.AudioStartTime, seg.AudioEndTime, seg.Confidence, boolToInt(seg.Final), seg.SupersedesID); err != nil {
			return fmt.Errorf("failed to insert segment %s: %w", seg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get 按 ID 查询会议
func (r *meetingRepository) Get(id string) (*meeting.Meeting, error) {
	query := `
		SELECT id, title, folder_path, language, created_at, updated_at
		FROM meetings WHERE id = ?`

	var m meeting.Meeting
	var folderPath, language sql.NullString
	var createdAt, updatedAt int64

	err := r.db.QueryRow(query, id).Scan(&m.ID, &m.Title, &folderPath, &language, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, meeting.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to query meeting: %w", err)
	}

	m.FolderPath = folderPath.String
	m.Language = language.String
	m.CreatedAt = time.Unix(createdAt, 0)
	m.UpdatedAt = time.Unix(updatedAt, 0)
	return &m, nil
}

// List 按创建时间倒序列出所有会议
func (r *meetingRepository) List() ([]*meeting.Meeting, error) {
	query := `
		SELECT id, title, folder_path, language, created_at, updated_at
		FROM meetings ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*meeting.Meeting
	for rows.Next() {
		var m meeting.Meeting
		var folderPath, language sql.NullString
		var createdAt, updatedAt int64
		if err := rows.Scan(&m.ID, &m.Title, &folderPath, &language, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		m.FolderPath = folderPath.String
		m.Language = language.String
		m.CreatedAt = time.Unix(createdAt, 0)
		m.UpdatedAt = time.Unix(updatedAt, 0)
		meetings = append(meetings, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meetings: %w", err)
	}
	return meetings, nil
}

// UpdateTitle 更新会议标题
func (r *meetingRepository) UpdateTitle(id, title string) error {
	query := `UPDATE meetings SET title = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Exec(query, title, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update meeting title: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return meeting.ErrMeetingNotFound
	}
	return nil
}

// Delete 删除会议及其片段、总结和备份
func (r *meetingRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return meeting.ErrMeetingNotFound
	}

	if _, err := tx.Exec(`DELETE FROM transcripts WHERE meeting_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transcripts: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM summaries WHERE meeting_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM summary_backups WHERE meeting_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete summary backup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
