package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meetily/backend/internal/domain/summary"
)

// summaryRepository 总结 SQLite 仓储实现
// 备份槽是独立的单行表，重新生成失败时从备份槽整体恢复
type summaryRepository struct {
	db *sql.DB
}

// NewSummaryRepository 创建总结仓储实例
func NewSummaryRepository(db *sql.DB) summary.Repository {
	return &summaryRepository{db: db}
}

// Get 查询会议总结记录，不存在时返回 (nil, nil)
func (r *summaryRepository) Get(meetingID string) (*summary.Record, error) {
	return r.getFrom("summaries", meetingID)
}

func (r *summaryRepository) getFrom(table, meetingID string) (*summary.Record, error) {
	query := fmt.Sprintf(`
		SELECT meeting_id, process_id, status, document, error, provider, model, started_at, updated_at
		FROM %s WHERE meeting_id = ?`, table)

	var record summary.Record
	var processID, document, errMsg, provider, model sql.NullString
	var startedAt sql.NullInt64
	var updatedAt int64

	err := r.db.QueryRow(query, meetingID).Scan(
		&record.MeetingID, &processID, &record.Status, &document,
		&errMsg, &provider, &model, &startedAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}

	record.ProcessID = processID.String
	record.Error = errMsg.String
	record.Provider = provider.String
	record.Model = model.String
	if startedAt.Valid {
		record.StartedAt = time.Unix(startedAt.Int64, 0)
	}
	record.UpdatedAt = time.Unix(updatedAt, 0)

	if document.Valid && document.String != "" {
		doc, err := summary.ParseDocument([]byte(document.String))
		if err != nil {
			return nil, fmt.Errorf("failed to parse summary document: %w", err)
		}
		record.Document = doc
	}
	return &record, nil
}

// Save 写入（替换）会议总结记录
func (r *summaryRepository) Save(record *summary.Record) error {
	var document sql.NullString
	if record.Document != nil {
		data, err := json.Marshal(record.Document)
		if err != nil {
			return fmt.Errorf("failed to marshal summary document: %w", err)
		}
		document = sql.NullString{String: string(data), Valid: true}
	}

	var startedAt sql.NullInt64
	if !record.StartedAt.IsZero() {
		startedAt = sql.NullInt64{Int64: record.StartedAt.Unix(), Valid: true}
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT OR REPLACE INTO summaries
		(meeting_id, process_id, status, document, error, provider, model, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query, record.MeetingID, record.ProcessID, string(record.Status),
		document, record.Error, record.Provider, record.Model, startedAt, updatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// SetStatus 仅更新状态与错误信息，不触碰文档内容
// 记录不存在时插入一条无文档的状态记录
func (r *summaryRepository) SetStatus(meetingID string, processID string, status summary.Status, errMsg string) error {
	now := time.Now().Unix()

	result, err := r.db.Exec(`
		UPDATE summaries SET process_id = ?, status = ?, error = ?, updated_at = ?
		WHERE meeting_id = ?`,
		processID, string(status), errMsg, now, meetingID)
	if err != nil {
		return fmt.Errorf("failed to update summary status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = r.db.Exec(`
		INSERT INTO summaries (meeting_id, process_id, status, error, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		meetingID, processID, string(status), errMsg, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert summary status: %w", err)
	}
	return nil
}

// Backup 将当前总结复制到备份槽，没有现存总结时是无操作
func (r *summaryRepository) Backup(meetingID string) error {
	query := `
		INSERT OR REPLACE INTO summary_backups
		(meeting_id, process_id, status, document, error, provider, model, started_at, updated_at)
		SELECT meeting_id, process_id, status, document, error, provider, model, started_at, updated_at
		FROM summaries WHERE meeting_id = ?`

	if _, err := r.db.Exec(query, meetingID); err != nil {
		return fmt.Errorf("failed to backup summary: %w", err)
	}
	return nil
}

// RestoreBackup 用备份槽内容覆盖当前总结，返回备份是否存在
func (r *summaryRepository) RestoreBackup(meetingID string) (bool, error) {
	var exists int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM summary_backups WHERE meeting_id = ?`, meetingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check summary backup: %w", err)
	}
	if exists == 0 {
		return false, nil
	}

	query := `
		INSERT OR REPLACE INTO summaries
		(meeting_id, process_id, status, document, error, provider, model, started_at, updated_at)
		SELECT meeting_id, process_id, status, document, error, provider, model, started_at, updated_at
		FROM summary_backups WHERE meeting_id = ?`

	if _, err := r.db.Exec(query, meetingID); err != nil {
		return false, fmt.Errorf("failed to restore summary backup: %w", err)
	}
	return true, nil
}

// DeleteBackup 丢弃备份槽内容
func (r *summaryRepository) DeleteBackup(meetingID string) error {
	if _, err := r.db.Exec(`DELETE FROM summary_backups WHERE meeting_id = ?`, meetingID); err != nil {
		return fmt.Errorf("failed to delete summary backup: %w", err)
	}
	return nil
}

// Delete 删除会议的总结记录和备份
func (r *summaryRepository) Delete(meetingID string) error {
	if _, err := r.db.Exec(`DELETE FROM summaries WHERE meeting_id = ?`, meetingID); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	return r.DeleteBackup(meetingID)
}
