package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record is one user's recorded attendance at a meeting.
type Record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MeetingID  string    `json:"meeting_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordAttendance records attendance for (userID, meetingID). A duplicate
// pair is a no-op, so the write is safe to retry and to replay from the
// queue.
func (r *Repository) RecordAttendance(ctx context.Context, userID, meetingID string) error {
	if userID == "" || meetingID == "" {
		return errors.New("user and meeting required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO meeting_attendances (id, user_id, meeting_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, meeting_id) DO NOTHING
	`, uuid.NewString(), userID, meetingID)
	return err
}

// ListByMeeting returns recorded attendances for a meeting, newest first.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID string, limit, offset int) ([]Record, error) {
	if meetingID == "" {
		return nil, errors.New("meeting id required")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, meeting_id, recorded_at
		FROM meeting_attendances
		WHERE meeting_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2 OFFSET $3
	`, meetingID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.MeetingID, &rec.RecordedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
