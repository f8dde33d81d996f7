package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-risk-monitor/internal/models"
)

// AttendanceRepository persists daily attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert writes the mark for (student, date). An existing mark has its status and timestamp overwritten.
func (r *AttendanceRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	const query = `INSERT INTO attendance (id, student_id, date, status, timestamp)
        VALUES (:id, :student_id, :date, :status, :timestamp)
        ON CONFLICT (student_id, date) DO UPDATE SET status = EXCLUDED.status, timestamp = EXCLUDED.timestamp`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListSince returns a student's marks with timestamp at or after since, newest first.
func (r *AttendanceRepository) ListSince(ctx context.Context, studentID string, since time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, student_id, date, status, timestamp FROM attendance WHERE student_id = $1 AND timestamp >= $2 ORDER BY timestamp DESC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID, since); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// TallySince counts a student's marks by status with timestamp at or after since.
func (r *AttendanceRepository) TallySince(ctx context.Context, exec sqlx.ExtContext, studentID string, since time.Time) (models.AttendanceTally, error) {
	const query = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'present') AS present,
        COUNT(*) FILTER (WHERE status = 'late') AS late,
        COUNT(*) FILTER (WHERE status = 'absent') AS absent
        FROM attendance WHERE student_id = $1 AND timestamp >= $2`
	var tally models.AttendanceTally
	if err := sqlx.GetContext(ctx, r.exec(exec), &tally, query, studentID, since); err != nil {
		return models.AttendanceTally{}, fmt.Errorf("tally attendance: %w", err)
	}
	return tally, nil
}
