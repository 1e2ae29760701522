package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/meetily/backend/internal/domain/meeting"
)

// transcriptRepository 转写片段 SQLite 仓储实现
type transcriptRepository struct {
	db *sql.DB
}

// NewTranscriptRepository 创建转写片段仓储实例
func NewTranscriptRepository(db *sql.DB) meeting.TranscriptRepository {
	return &transcriptRepository{db: db}
}

// Upsert 写入片段
// 按 (meeting_id, sequence) 冲突时替换：final 片段替换同序号的 partial 片段
func (r *transcriptRepository) Upsert(seg *meeting.TranscriptSegment) error {
	query := `
		INSERT INTO transcripts
		(id, meeting_id, sequence, text, timestamp, audio_start_time, audio_end_time, confidence, final, supersedes_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(meeting_id, sequence) DO UPDATE SET
			id = excluded.id,
			text = excluded.text,
			timestamp = excluded.timestamp,
			audio_start_time = excluded.audio_start_time,
			audio_end_time = excluded.audio_end_time,
			confidence = excluded.confidence,
			final = excluded.final,
			supersedes_id = excluded.supersedes_id
		WHERE excluded.final = 1 OR transcripts.final = 0`

	ts := seg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := r.db.Exec(query, seg.ID, seg.MeetingID, seg.Sequence, seg.Text, ts.Unix(),
		seg.AudioStartTime, seg.AudioEndTime, seg.Confidence, boolToInt(seg.Final), seg.SupersedesID)
	if err != nil {
		return fmt.Errorf("failed to upsert transcript segment: %w", err)
	}
	return nil
}

// Page 分页读取转写片段
// 按音频相对起始时间排序，同一起始时间按序列号排序，保证分页边界稳定
func (r *transcriptRepository) Page(meetingID string, limit, offset int) (*meeting.TranscriptPage, error) {
	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM transcripts WHERE meeting_id = ?`, meetingID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transcripts: %w", err)
	}

	query := `
		SELECT id, meeting_id, sequence, text, timestamp, audio_start_time, audio_end_time, confidence, final, supersedes_id
		FROM transcripts
		WHERE meeting_id = ?
		ORDER BY audio_start_time ASC, sequence ASC
		LIMIT ? OFFSET ?`

	rows, err := r.db.Query(query, meetingID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	segments := make([]*meeting.TranscriptSegment, 0, limit)
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcripts: %w", err)
	}

	return &meeting.TranscriptPage{
		Segments:   segments,
		TotalCount: total,
		HasMore:    offset+len(segments) < total,
	}, nil
}

// Search 跨会议全文子串检索，返回片段上下文和所属会议
func (r *transcriptRepository) Search(query string) ([]*meeting.SearchResult, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, nil
	}

	// LIKE 通配符转义，检索按字面子串匹配
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(trimmed)

	searchSQL := `
		SELECT t.meeting_id, m.title, t.text, t.timestamp
		FROM transcripts t
		JOIN meetings m ON m.id = t.meeting_id
		WHERE t.text LIKE ? ESCAPE '\'
		ORDER BY t.timestamp DESC
		LIMIT 50`

	rows, err := r.db.Query(searchSQL, "%"+escaped+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search transcripts: %w", err)
	}
	defer rows.Close()

	var results []*meeting.SearchResult
	for rows.Next() {
		var result meeting.SearchResult
		var ts int64
		if err := rows.Scan(&result.ID, &result.Title, &result.MatchContext, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		result.Timestamp = time.Unix(ts, 0).Format(time.RFC3339)
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}
	return results, nil
}

func scanSegment(rows *sql.Rows) (*meeting.TranscriptSegment, error) {
	var seg meeting.TranscriptSegment
	var ts int64
	var final int
	var supersedes sql.NullString

	if err := rows.Scan(&seg.ID, &seg.MeetingID, &seg.Sequence, &seg.Text, &ts,
		&seg.AudioStartTime, &seg.AudioEndTime, &seg.Confidence, &final, &supersedes); err != nil {
		return nil, fmt.Errorf("failed to scan transcript segment: %w", err)
	}

	seg.Timestamp = time.Unix(ts, 0)
	seg.Final = final != 0
	seg.SupersedesID = supersedes.String
	return &seg, nil
}
